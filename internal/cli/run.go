package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lenscan/lenscan/internal/model"
	"github.com/lenscan/lenscan/internal/pipeline"
)

var (
	runLens     string
	runJSON     string
	runBudget   float64
	runTimeout  time.Duration
	runNoCache  bool
	fixtureDir  string
	scrapeSeeds []string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Run the full pipeline for a query",
	Long: `Run plans connector calls for the query under the lens, executes them
in phases, extracts and interprets every response, deduplicates and
merges same-run observations, and persists one canonical record per
real-world entity.

Example:
  lenscan run "padel clubs in rotterdam" --lens lenses/padel.yaml
  lenscan run "padel near me" --lens lenses/padel.yaml --budget 0.02`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runLens, "lens", "", "lens document path (required)")
	runCmd.Flags().StringVar(&runJSON, "json", "", "output JSON path (default from config, run.json)")
	runCmd.Flags().Float64Var(&runBudget, "budget", 0, "total cost budget (overrides config)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 5*time.Minute, "overall run timeout")
	runCmd.Flags().BoolVar(&runNoCache, "no-cache", false, "disable response cache")
	runCmd.Flags().StringVar(&fixtureDir, "fixtures", "", "fixture directory for the static connector")
	runCmd.Flags().StringSliceVar(&scrapeSeeds, "seed", nil, "seed URL template for the webscrape connector (repeatable)")
	_ = runCmd.MarkFlagRequired("lens")
}

func runRun(cmd *cobra.Command, args []string) error {
	query := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	cfg := buildConfig()
	applyRunFlags(cfg)

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	// Lens validation is exhaustive and happens before any connector
	// call; a bad document stops the run here.
	contract, err := loadContract(runLens, registry)
	if err != nil {
		return err
	}

	extractors, err := buildExtractors(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	p := pipeline.New(cfg, contract, registry, extractors, pipeline.Stores{
		Raw:      store,
		Entities: store,
	}, buildCache(cfg))

	result, err := p.Run(ctx, query)
	if err != nil {
		return err
	}

	if jsonPath := cfg.Output.JSONPath; jsonPath != "" {
		if err := pipeline.RenderJSON(result, jsonPath); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Wrote JSON: %s\n", jsonPath)
		}
	}
	pipeline.RenderSummary(result)
	return nil
}

func applyRunFlags(cfg *model.Config) {
	if runBudget > 0 {
		cfg.Run.Budget = runBudget
	}
	if runJSON != "" {
		cfg.Output.JSONPath = runJSON
	}
	if runNoCache {
		cfg.Cache.Enabled = false
	}
	if fixtureDir != "" {
		cfg.Connectors.FixtureDir = fixtureDir
	}
	if len(scrapeSeeds) > 0 {
		cfg.Connectors.Scrape = scrapeSeeds
	}
	cfg.Output.Verbose = verbose
}
