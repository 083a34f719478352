package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
	"github.com/kirillkom/knowledge-agents/internal/core/ports"
)

const defaultTopK = 5

// PipelineTimeouts bound the stages that wait on the network. Validation
// is local and runs unbounded.
type PipelineTimeouts struct {
	Reformulate time.Duration
	Retrieve    time.Duration
	Synthesize  time.Duration
}

func (t PipelineTimeouts) withDefaults() PipelineTimeouts {
	if t.Reformulate <= 0 {
		t.Reformulate = 8 * time.Second
	}
	if t.Retrieve <= 0 {
		t.Retrieve = 5 * time.Second
	}
	if t.Synthesize <= 0 {
		t.Synthesize = 12 * time.Second
	}
	return t
}

// Orchestrator drives one query through the pipeline: reformulate,
// retrieve, synthesize, validate. Stages run strictly in order; a stage
// failure ends the run but keeps everything produced so far. Cancellation
// is honored between stages, never mid-write.
type Orchestrator struct {
	reformulator *Reformulator
	retriever    *HybridRetriever
	synthesizer  *Synthesizer
	validator    *Validator
	runs         ports.QueryRunStore
	topKDefault  int
	timeouts     PipelineTimeouts
}

func NewOrchestrator(
	reformulator *Reformulator,
	retriever *HybridRetriever,
	synthesizer *Synthesizer,
	validator *Validator,
	runs ports.QueryRunStore,
	topKDefault int,
	timeouts PipelineTimeouts,
) *Orchestrator {
	if topKDefault <= 0 {
		topKDefault = defaultTopK
	}
	return &Orchestrator{
		reformulator: reformulator,
		retriever:    retriever,
		synthesizer:  synthesizer,
		validator:    validator,
		runs:         runs,
		topKDefault:  topKDefault,
		timeouts:     timeouts.withDefaults(),
	}
}

// HandleQuery validates the request, runs the pipeline and records the
// run. The returned result is non-nil even when err is set, carrying the
// partial state of a failed run; only input validation returns a bare
// error.
func (o *Orchestrator) HandleQuery(ctx context.Context, query string, topK int) (*domain.QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "handle query", errors.New("query must not be empty"))
	}
	if topK == 0 {
		topK = o.topKDefault
	}
	if topK < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "handle query", fmt.Errorf("top_k must be at least 1, got %d", topK))
	}

	state := &domain.PipelineState{
		RunID:     uuid.NewString(),
		Query:     query,
		TopK:      topK,
		StartedAt: time.Now().UTC(),
	}

	start := time.Now()
	o.run(ctx, state)
	state.Elapsed = time.Since(start)

	o.record(ctx, state)

	result := state.Result()
	if state.Err != nil {
		return result, state.Err
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, state *domain.PipelineState) {
	if !o.enter(ctx, state, domain.StageReformulating) {
		return
	}
	o.reformulate(ctx, state)

	if !o.enter(ctx, state, domain.StageRetrieving) {
		return
	}
	if !o.retrieve(ctx, state) {
		return
	}

	if !o.enter(ctx, state, domain.StageSynthesizing) {
		return
	}
	if !o.synthesize(ctx, state) {
		return
	}

	if !o.enter(ctx, state, domain.StageValidating) {
		return
	}
	o.validate(state)

	state.Stage = domain.StageDone
}

// enter advances the state machine to the next stage, refusing to start
// it on a dead context.
func (o *Orchestrator) enter(ctx context.Context, state *domain.PipelineState, stage domain.Stage) bool {
	if err := ctx.Err(); err != nil {
		state.Fail(stage, fmt.Errorf("pipeline cancelled before %s: %w", stage, err))
		return false
	}
	state.Stage = stage
	return true
}

func (o *Orchestrator) reformulate(ctx context.Context, state *domain.PipelineState) {
	stageCtx, cancel := context.WithTimeout(ctx, o.timeouts.Reformulate)
	defer cancel()

	start := time.Now()
	reformulated, _ := o.reformulator.Reformulate(stageCtx, state.Query)
	o.observe(state, domain.StageReformulating, start)
	state.ReformulatedQuery = reformulated
}

func (o *Orchestrator) retrieve(ctx context.Context, state *domain.PipelineState) bool {
	stageCtx, cancel := context.WithTimeout(ctx, o.timeouts.Retrieve)
	defer cancel()

	start := time.Now()
	docs, err := o.retriever.Retrieve(stageCtx, state.ReformulatedQuery, state.TopK)
	o.observe(state, domain.StageRetrieving, start)
	if err != nil {
		state.Fail(domain.StageRetrieving, err)
		return false
	}
	state.Documents = docs
	return true
}

func (o *Orchestrator) synthesize(ctx context.Context, state *domain.PipelineState) bool {
	stageCtx, cancel := context.WithTimeout(ctx, o.timeouts.Synthesize)
	defer cancel()

	start := time.Now()
	answer, err := o.synthesizer.Synthesize(stageCtx, state.Query, state.Documents)
	o.observe(state, domain.StageSynthesizing, start)
	if err != nil {
		state.Fail(domain.StageSynthesizing, err)
		return false
	}
	state.Answer = answer
	return true
}

func (o *Orchestrator) validate(state *domain.PipelineState) {
	start := time.Now()
	verdict := o.validator.Validate(state.Answer, state.Documents)
	o.observe(state, domain.StageValidating, start)
	state.Verdict = &verdict
}

func (o *Orchestrator) observe(state *domain.PipelineState, stage domain.Stage, start time.Time) {
	state.StageTimings = append(state.StageTimings, domain.StageTiming{
		Stage:      stage,
		DurationMS: float64(time.Since(start).Microseconds()) / 1000.0,
	})
}

// record appends the run to the audit log. Failures are logged, not
// surfaced: losing an audit row must not fail the query.
func (o *Orchestrator) record(ctx context.Context, state *domain.PipelineState) {
	if o.runs == nil {
		return
	}
	rec := domain.RunRecord{
		ID:                state.RunID,
		Query:             state.Query,
		ReformulatedQuery: state.ReformulatedQuery,
		State:             state.Stage,
		SourceCount:       len(state.Documents),
		DurationMS:        float64(state.Elapsed.Microseconds()) / 1000.0,
		CreatedAt:         time.Now().UTC(),
	}
	if state.Verdict != nil {
		rec.ValidationStatus = state.Verdict.Status
		rec.Confidence = state.Verdict.Confidence
	}
	if err := o.runs.Record(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("query_run_record_failed", "run_id", state.RunID, "error", err)
	}
}
