package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lenscan/lenscan/internal/classify"
	"github.com/lenscan/lenscan/internal/connector"
	"github.com/lenscan/lenscan/internal/extract"
	"github.com/lenscan/lenscan/internal/mapping"
	"github.com/lenscan/lenscan/internal/model"
)

var extractLens string

// extractCmd re-runs extraction and interpretation over one stored raw
// ingestion. The two stages are pure over the stored payload, so this is
// the fastest way to iterate on a lens without re-fetching anything.
var extractCmd = &cobra.Command{
	Use:   "extract <raw-ingestion-id>",
	Short: "Re-extract a stored raw ingestion and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractLens, "lens", "", "lens document path (required)")
	_ = extractCmd.MarkFlagRequired("lens")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := buildConfig()
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	contract, err := loadContract(extractLens, registry)
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

	raw, err := store.GetRawIngestion(ctx, args[0])
	if err != nil {
		return fmt.Errorf("load ingestion %s: %w", args[0], err)
	}

	extractor, ok := extractors.For(raw.ConnectorID)
	if !ok {
		return fmt.Errorf("no extractor registered for connector %s", raw.ConnectorID)
	}

	extractions, err := extractor.Extract(ctx, &connector.Payload{ContentType: raw.ContentType, Body: raw.Payload})
	if err != nil {
		return fmt.Errorf("extract %s: %w", raw.ID, err)
	}

	engine := mapping.NewEngine(contract)
	forbidden := contract.ForbiddenExtractionKeys()
	var entities []model.ExtractedEntity
	for _, ex := range extractions {
		if err := extract.CheckBoundary(raw.ConnectorID, ex, forbidden); err != nil {
			fmt.Fprintf(os.Stderr, "dropped: %v\n", err)
			continue
		}
		entity := model.ExtractedEntity{
			RawIngestionID: raw.ID,
			ConnectorID:    raw.ConnectorID,
			TrustLevel:     raw.TrustLevel,
			Primitives:     ex.Primitives,
			Observations:   ex.Observations,
		}
		entity = engine.Apply(entity)
		entity.Class = classify.Classify(entity)
		entities = append(entities, entity)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entities)
}
