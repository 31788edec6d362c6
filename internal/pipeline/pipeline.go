// Package pipeline wires the full run: plan, orchestrate, extract,
// interpret, classify, deduplicate, merge and finalize.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lenscan/lenscan/internal/cache"
	"github.com/lenscan/lenscan/internal/classify"
	"github.com/lenscan/lenscan/internal/connector"
	"github.com/lenscan/lenscan/internal/dedup"
	"github.com/lenscan/lenscan/internal/extract"
	"github.com/lenscan/lenscan/internal/finalize"
	"github.com/lenscan/lenscan/internal/lens"
	"github.com/lenscan/lenscan/internal/logger"
	"github.com/lenscan/lenscan/internal/mapping"
	"github.com/lenscan/lenscan/internal/merge"
	"github.com/lenscan/lenscan/internal/model"
	"github.com/lenscan/lenscan/internal/planner"
	"github.com/lenscan/lenscan/internal/worker"
)

// Pipeline runs queries through one lens contract.
type Pipeline struct {
	cfg          *model.Config
	contract     *lens.Contract
	registry     *connector.Registry
	extractors   *extract.Registry
	orchestrator *Orchestrator
	engine       *mapping.Engine
	finalizer    *finalize.Finalizer
}

// Stores bundles the persistence surfaces the pipeline needs.
type Stores struct {
	Raw      RawStore
	Entities finalize.Store
}

// New assembles a pipeline. respCache may be nil.
func New(cfg *model.Config, contract *lens.Contract, registry *connector.Registry, extractors *extract.Registry, stores Stores, respCache cache.Cache) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		contract:     contract,
		registry:     registry,
		extractors:   extractors,
		orchestrator: NewOrchestrator(registry, stores.Raw, respCache, cfg.Cache.TTL, cfg.Run.CallTimeout),
		engine:       mapping.NewEngine(contract),
		finalizer:    finalize.NewFinalizer(stores.Entities),
	}
}

// ConnectorStats are the per-connector outcome counts reported to the
// user.
type ConnectorStats struct {
	ConnectorID string `json:"connector_id"`
	Attempted   int    `json:"attempted"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
}

// RunResult is the complete outcome of one run.
type RunResult struct {
	RunID        string    `json:"run_id"`
	Query        string    `json:"query"`
	Lens         string    `json:"lens"`
	ContractHash string    `json:"contract_hash"`
	StartedAt    time.Time `json:"started_at"`
	Duration     string    `json:"duration"`

	EmptyPlan  bool             `json:"empty_plan,omitempty"`
	Connectors []ConnectorStats `json:"connectors"`

	RawIngestions      int      `json:"raw_ingestions"`
	Extracted          int      `json:"extracted"`
	BoundaryViolations []string `json:"boundary_violations,omitempty"`
	Groups             int      `json:"groups"`
	Merged             int      `json:"merged"`
	Persisted          int      `json:"persisted"`

	// FirstError carries the first fatal error verbatim.
	FirstError string `json:"first_error,omitempty"`

	Entities []model.PersistedEntity `json:"entities"`
}

// Run executes the full pipeline for one query. Per-call connector
// failures are a normal, reported outcome; only pre-run validation and
// storage failures surface as errors.
func (p *Pipeline) Run(ctx context.Context, query string) (*RunResult, error) {
	started := time.Now()
	result := &RunResult{
		RunID:        uuid.NewString(),
		Query:        query,
		Lens:         p.contract.Name,
		ContractHash: p.contract.Hash(),
		StartedAt:    started.UTC(),
	}
	defer func() { result.Duration = time.Since(started).Round(time.Millisecond).String() }()

	// 1. Features and plan.
	features := planner.ExtractFeatures(query, p.contract.Vocabulary)
	plan, err := planner.Plan(features, p.contract.ConnectorRules, p.registry, p.cfg.Run.Budget)
	if err != nil {
		var empty *planner.EmptyPlanError
		if errors.As(err, &empty) {
			// A legitimate early end, not a crash.
			result.EmptyPlan = true
			result.FirstError = empty.Error()
			return result, nil
		}
		return result, err
	}
	logger.Debug("plan: %d phase(s), total cost %.4f", len(plan.Phases), plan.TotalCost)

	// 2. Orchestrate connector calls.
	budget := worker.NewBudget(p.cfg.Run.Budget)
	ingestions, outcomes, err := p.orchestrator.Run(ctx, plan, query, budget)
	result.Connectors = collectStats(plan, outcomes)
	result.RawIngestions = len(ingestions)
	if err != nil {
		result.FirstError = err.Error()
		return result, err
	}

	// 3. Extract, interpret, classify.
	entities := p.extractAll(ctx, ingestions, result)
	result.Extracted = len(entities)

	// 4. Deduplicate and merge.
	groups := dedup.Group(entities)
	result.Groups = len(groups)

	byID := make(map[string]model.ExtractedEntity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	verifiedAt := time.Now()
	for _, group := range groups {
		members := make([]model.ExtractedEntity, 0, len(group.Members))
		for _, id := range group.Members {
			members = append(members, byID[id])
		}
		merged := merge.Merge(members, verifiedAt)
		result.Merged++

		// 5. Finalize: per-entity transaction, so an aborted run keeps
		// everything already persisted.
		persisted, err := p.finalizer.Finalize(ctx, merged)
		if err != nil {
			if result.FirstError == "" {
				result.FirstError = err.Error()
			}
			logger.Error("finalize %q: %v", merged.Primitives.Name, err)
			continue
		}
		result.Persisted++
		result.Entities = append(result.Entities, persisted)
	}

	return result, nil
}

// extractAll runs the extraction boundary and the mapping engine over
// every ingestion. A record that violates the boundary is dropped
// loudly and surfaced in the result; the rest of the batch continues.
func (p *Pipeline) extractAll(ctx context.Context, ingestions []model.RawIngestion, result *RunResult) []model.ExtractedEntity {
	forbidden := p.contract.ForbiddenExtractionKeys()
	var entities []model.ExtractedEntity

	for _, raw := range ingestions {
		extractor, ok := p.extractors.For(raw.ConnectorID)
		if !ok {
			logger.Warn("no extractor for connector %s, ingestion %s ignored", raw.ConnectorID, raw.ID)
			continue
		}

		extractions, err := extractor.Extract(ctx, &connector.Payload{ContentType: raw.ContentType, Body: raw.Payload})
		if err != nil {
			logger.Warn("extract %s: %v", raw.ID, err)
			continue
		}

		for i, ex := range extractions {
			if err := extract.CheckBoundary(raw.ConnectorID, ex, forbidden); err != nil {
				// Extractor defect, not bad input: drop the record and
				// say so prominently.
				logger.Error("extraction boundary violation: %v", err)
				result.BoundaryViolations = append(result.BoundaryViolations, err.Error())
				if result.FirstError == "" {
					result.FirstError = err.Error()
				}
				continue
			}

			entity := model.ExtractedEntity{
				ID:             entityID(raw.ID, i),
				RawIngestionID: raw.ID,
				ConnectorID:    raw.ConnectorID,
				TrustLevel:     raw.TrustLevel,
				Primitives:     ex.Primitives,
				Observations:   ex.Observations,
			}
			entity = p.engine.Apply(entity)
			entity.Class = classify.Classify(entity)
			entities = append(entities, entity)
		}
	}
	return entities
}

func collectStats(plan *planner.ExecutionPlan, outcomes []CallOutcome) []ConnectorStats {
	index := map[string]int{}
	var stats []ConnectorStats
	for _, call := range plan.Calls() {
		index[call.ConnectorID] = len(stats)
		stats = append(stats, ConnectorStats{ConnectorID: call.ConnectorID})
	}
	for _, o := range outcomes {
		i, ok := index[o.ConnectorID]
		if !ok {
			continue
		}
		stats[i].Attempted++
		switch {
		case o.Skipped:
			stats[i].Skipped++
		case o.Err != nil:
			stats[i].Failed++
		default:
			stats[i].Succeeded++
		}
	}
	return stats
}

// entityID derives a stable per-record ID so downstream tie-breaks do
// not depend on anything random.
func entityID(rawIngestionID string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d", rawIngestionID, index)))
	return "ent_" + hex.EncodeToString(sum[:])[:24]
}
