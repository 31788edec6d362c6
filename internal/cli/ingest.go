package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lenscan/lenscan/internal/model"
	"github.com/lenscan/lenscan/internal/pipeline"
	"github.com/lenscan/lenscan/internal/planner"
	"github.com/lenscan/lenscan/internal/worker"
)

var (
	ingestLens    string
	ingestBudget  float64
	ingestDryRun  bool
	ingestTimeout time.Duration
)

// ingestCmd plans and fetches without running interpretation. Useful for
// inspecting what a lens would spend and what connectors return.
var ingestCmd = &cobra.Command{
	Use:   "ingest <query>",
	Short: "Plan connector calls and fetch raw payloads only",
	Long: `Ingest runs the planning and fetching stages and stops there: every
successful response is persisted as a raw ingestion, but nothing is
extracted or merged. With --dry-run the plan is printed and no call is
issued.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestLens, "lens", "", "lens document path (required)")
	ingestCmd.Flags().Float64Var(&ingestBudget, "budget", 0, "total cost budget (overrides config)")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "print the plan without calling connectors")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 5*time.Minute, "overall timeout")
	_ = ingestCmd.MarkFlagRequired("lens")
}

func runIngest(cmd *cobra.Command, args []string) error {
	query := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	cfg := buildConfig()
	if ingestBudget > 0 {
		cfg.Run.Budget = ingestBudget
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	contract, err := loadContract(ingestLens, registry)
	if err != nil {
		return err
	}

	features := planner.ExtractFeatures(query, contract.Vocabulary)
	plan, err := planner.Plan(features, contract.ConnectorRules, registry, cfg.Run.Budget)
	if err != nil {
		var empty *planner.EmptyPlanError
		if errors.As(err, &empty) {
			fmt.Printf("No connector triggered for %q: nothing to fetch.\n", query)
			return nil
		}
		return err
	}

	printPlan(plan, cfg.Run.Budget)
	if ingestDryRun {
		return nil
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	orch := pipeline.NewOrchestrator(registry, store, buildCache(cfg), cfg.Cache.TTL, cfg.Run.CallTimeout)
	budget := worker.NewBudget(cfg.Run.Budget)
	ingestions, outcomes, err := orch.Run(ctx, plan, query, budget)
	if err != nil {
		return err
	}

	printOutcomes(outcomes, ingestions)
	return nil
}

func printPlan(plan *planner.ExecutionPlan, budget float64) {
	fmt.Printf("Plan: %d phase(s), %d call(s), cost %.4f of budget %.4f\n",
		len(plan.Phases), len(plan.Calls()), plan.TotalCost, budget)
	for i, phase := range plan.Phases {
		for _, call := range phase {
			fmt.Printf("  phase %d: %-12s cost %.4f\n", i+1, call.ConnectorID, call.Cost)
		}
	}
}

func printOutcomes(outcomes []pipeline.CallOutcome, ingestions []model.RawIngestion) {
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			fmt.Printf("  %-12s skipped (budget)\n", o.ConnectorID)
		case o.Err != nil:
			fmt.Fprintf(os.Stderr, "  %-12s failed: %v\n", o.ConnectorID, o.Err)
		case o.Cached:
			fmt.Printf("  %-12s ok (cached) -> %s\n", o.ConnectorID, o.Ingestion.ID)
		default:
			fmt.Printf("  %-12s ok -> %s\n", o.ConnectorID, o.Ingestion.ID)
		}
	}
	fmt.Printf("Persisted %d raw ingestion(s).\n", len(ingestions))
}
