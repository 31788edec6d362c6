package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lenscan/lenscan/internal/cache"
	"github.com/lenscan/lenscan/internal/connector"
	"github.com/lenscan/lenscan/internal/logger"
	"github.com/lenscan/lenscan/internal/model"
	"github.com/lenscan/lenscan/internal/planner"
	"github.com/lenscan/lenscan/internal/worker"
)

// RawStore is the append-only persistence surface for raw ingestions.
type RawStore interface {
	InsertRawIngestion(ctx context.Context, r model.RawIngestion) error
}

// CallOutcome is the settled result of one planned connector call.
type CallOutcome struct {
	ConnectorID string
	Ingestion   *model.RawIngestion
	Err         error
	// Skipped means the call was never issued: its cost no longer fit
	// the remaining budget.
	Skipped bool
	Cached  bool
}

// GetError implements worker.Result.
func (o *CallOutcome) GetError() error { return o.Err }

// Orchestrator executes an ExecutionPlan: phases run sequentially with a
// barrier between them, calls within a phase run concurrently, and each
// successful response is persisted before the phase settles so a later
// failure cannot lose fetched data.
type Orchestrator struct {
	registry *connector.Registry
	store    RawStore
	limiter  *worker.Limiter
	respCache cache.Cache
	cacheTTL  time.Duration
	// callTimeout bounds a call whose registry entry declares none.
	callTimeout time.Duration
	// now is injectable for tests.
	now func() time.Time
}

// NewOrchestrator wires the orchestrator. respCache may be nil to
// disable response caching; callTimeout zero falls back to 20s.
func NewOrchestrator(registry *connector.Registry, store RawStore, respCache cache.Cache, cacheTTL, callTimeout time.Duration) *Orchestrator {
	limiter := worker.NewLimiter(1, 1)
	for _, id := range registry.IDs() {
		if entry, ok := registry.Entry(id); ok && entry.RatePerSec > 0 {
			limiter.SetConnectorRate(id, entry.RatePerSec, entry.Burst)
		}
	}
	return &Orchestrator{
		registry:    registry,
		store:       store,
		limiter:     limiter,
		respCache:   respCache,
		cacheTTL:    cacheTTL,
		callTimeout: callTimeout,
		now:         time.Now,
	}
}

// Run executes every phase of the plan. Per-call failures and timeouts
// are caught, logged and excluded; they never abort the phase. The
// returned ingestions are in settlement order, which carries no
// semantic meaning: the ingestion set is what downstream consumes.
func (o *Orchestrator) Run(ctx context.Context, plan *planner.ExecutionPlan, query string, budget *worker.Budget) ([]model.RawIngestion, []CallOutcome, error) {
	var (
		ingestions []model.RawIngestion
		outcomes   []CallOutcome
	)

	for i, phase := range plan.Phases {
		logger.Section(fmt.Sprintf("phase %d: %d connector(s)", i+1, len(phase)))

		pool := worker.NewPool(len(phase))
		pool.Start()
		for _, call := range phase {
			pool.Submit(&fetchJob{
				orchestrator: o,
				call:         call,
				query:        query,
				budget:       budget,
				parent:       ctx,
			})
		}
		// Wait is the phase barrier: every call has settled (succeeded,
		// timed out, failed, or was skipped) before the next phase.
		for _, res := range pool.Wait() {
			outcome := res.(*CallOutcome)
			outcomes = append(outcomes, *outcome)
			switch {
			case outcome.Skipped:
				logger.Debug("connector %s skipped: cost exceeds remaining budget", outcome.ConnectorID)
			case outcome.Err != nil:
				logger.Warn("connector %s failed: %v", outcome.ConnectorID, outcome.Err)
			default:
				ingestions = append(ingestions, *outcome.Ingestion)
			}
		}

		if err := ctx.Err(); err != nil {
			return ingestions, outcomes, err
		}
	}

	return ingestions, outcomes, nil
}

// fetchJob is one connector call bounded by its own timeout, the
// connector's rate window and the shared budget.
type fetchJob struct {
	orchestrator *Orchestrator
	call         planner.Call
	query        string
	budget       *worker.Budget
	parent       context.Context
}

// Execute implements worker.Job.
func (j *fetchJob) Execute(_ context.Context) worker.Result {
	o := j.orchestrator
	outcome := &CallOutcome{ConnectorID: j.call.ConnectorID}

	// Budget is checked at issue time: reservation fails means the call
	// is skipped without being issued. Calls already in flight are
	// never cancelled by budget exhaustion.
	if !j.budget.Reserve(j.call.Cost) {
		outcome.Skipped = true
		return outcome
	}

	entry, ok := o.registry.Entry(j.call.ConnectorID)
	if !ok {
		outcome.Err = &connector.Error{ConnectorID: j.call.ConnectorID, Err: fmt.Errorf("not registered")}
		return outcome
	}

	payload, cached, err := o.fetch(j.parent, j.call, j.query)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Cached = cached

	ingestion := model.RawIngestion{
		ID:          ingestionID(j.call.ConnectorID, j.query, payload.Body),
		ConnectorID: j.call.ConnectorID,
		Query:       j.query,
		FetchedAt:   o.now().UTC(),
		ContentType: payload.ContentType,
		Payload:     payload.Body,
		Cost:        j.call.Cost,
		TrustLevel:  entry.TrustLevel,
	}

	// Write-ahead of extraction: the raw row is durable before anything
	// downstream runs.
	if err := o.store.InsertRawIngestion(j.parent, ingestion); err != nil {
		outcome.Err = fmt.Errorf("persist ingestion %s: %w", ingestion.ID, err)
		return outcome
	}

	outcome.Ingestion = &ingestion
	return outcome
}

func (o *Orchestrator) fetch(ctx context.Context, call planner.Call, query string) (*connector.Payload, bool, error) {
	key := cache.Key(call.ConnectorID, query)
	if o.respCache != nil {
		if data, ok := o.respCache.Get(key); ok {
			var payload connector.Payload
			if err := json.Unmarshal(data, &payload); err == nil {
				return &payload, true, nil
			}
		}
	}

	if err := o.limiter.Wait(ctx, call.ConnectorID); err != nil {
		return nil, false, &connector.Error{ConnectorID: call.ConnectorID, Err: err}
	}

	c, ok := o.registry.Connector(call.ConnectorID)
	if !ok {
		return nil, false, &connector.Error{ConnectorID: call.ConnectorID, Err: fmt.Errorf("not registered")}
	}

	timeout := call.Timeout
	if timeout <= 0 {
		timeout = o.callTimeout
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	// The per-call timeout cancels only this call.
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := c.Fetch(callCtx, query)
	if err != nil {
		if connector.IsTimeout(err) {
			return nil, false, &connector.TimeoutError{ConnectorID: call.ConnectorID}
		}
		return nil, false, err
	}

	if o.respCache != nil {
		if data, err := json.Marshal(payload); err == nil {
			_ = o.respCache.Set(key, data, o.cacheTTL)
		}
	}
	return payload, false, nil
}

// ingestionID derives a deterministic ID from the call's content, so
// identical plan and responses produce a content-identical ingestion
// set across runs. FetchedAt is operational metadata, not content.
func ingestionID(connectorID, query string, payload []byte) string {
	sum := sha256.Sum256(payload)
	key := sha256.Sum256([]byte(connectorID + "\x00" + query + "\x00" + hex.EncodeToString(sum[:])))
	return "raw_" + hex.EncodeToString(key[:])[:24]
}
