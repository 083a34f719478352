package domain

import "time"

// Stage names one step of the answer pipeline. A run moves strictly
// forward: reformulating -> retrieving -> synthesizing -> validating ->
// done, or stops at failed.
type Stage string

const (
	StageReformulating Stage = "reformulating"
	StageRetrieving    Stage = "retrieving"
	StageSynthesizing  Stage = "synthesizing"
	StageValidating    Stage = "validating"
	StageDone          Stage = "done"
	StageFailed        Stage = "failed"
)

type StageTiming struct {
	Stage      Stage   `json:"stage"`
	DurationMS float64 `json:"duration_ms"`
}

type ValidationStatus string

const (
	ValidationValid       ValidationStatus = "valid"
	ValidationNeedsReview ValidationStatus = "needs_review"
	ValidationInvalid     ValidationStatus = "invalid"
)

// ValidationVerdict is the deterministic audit of a synthesized answer.
// Confidence is an integer in [0,100]; Flagged lists unsupported
// statements and unresolvable citations.
type ValidationVerdict struct {
	Status     ValidationStatus `json:"status"`
	Confidence int              `json:"confidence"`
	Flagged    []string         `json:"flagged,omitempty"`
}

// PipelineState carries one run through the pipeline. Each stage fills in
// its own fields exactly once; earlier fields are never rewritten, so a
// failed run still exposes everything produced before the failure.
type PipelineState struct {
	RunID             string
	Query             string
	TopK              int
	ReformulatedQuery string
	Documents         []ScoredDocument
	Answer            string
	Verdict           *ValidationVerdict
	Stage             Stage
	FailedStage       Stage
	Err               error
	StageTimings      []StageTiming
	StartedAt         time.Time
	Elapsed           time.Duration
}

// Fail marks the run as terminally failed at the given stage.
func (s *PipelineState) Fail(stage Stage, err error) {
	s.Stage = StageFailed
	s.FailedStage = stage
	s.Err = err
}

// Result packages the run for API consumers. Partial fields of a failed
// run are kept; ProcessingTime is seconds.
func (s *PipelineState) Result() *QueryResult {
	res := &QueryResult{
		RunID:             s.RunID,
		Query:             s.Query,
		ReformulatedQuery: s.ReformulatedQuery,
		Answer:            s.Answer,
		Validation:        s.Verdict,
		Sources:           s.Documents,
		State:             s.Stage,
		FailedStage:       s.FailedStage,
		StageTimings:      s.StageTimings,
		ProcessingTime:    s.Elapsed.Seconds(),
	}
	if res.Sources == nil {
		res.Sources = []ScoredDocument{}
	}
	if res.StageTimings == nil {
		res.StageTimings = []StageTiming{}
	}
	if s.Err != nil {
		res.Error = s.Err.Error()
	}
	return res
}

// QueryResult is the public outcome of one pipeline run.
type QueryResult struct {
	RunID             string             `json:"run_id"`
	Query             string             `json:"query"`
	ReformulatedQuery string             `json:"reformulated_query,omitempty"`
	Answer            string             `json:"answer,omitempty"`
	Validation        *ValidationVerdict `json:"validation,omitempty"`
	Sources           []ScoredDocument   `json:"sources"`
	State             Stage              `json:"state"`
	FailedStage       Stage              `json:"failed_stage,omitempty"`
	Error             string             `json:"error,omitempty"`
	StageTimings      []StageTiming      `json:"stage_timings"`
	ProcessingTime    float64            `json:"processing_time"`
}

// RunRecord is the audit-log row written after every completed or failed
// run.
type RunRecord struct {
	ID                string
	Query             string
	ReformulatedQuery string
	State             Stage
	ValidationStatus  ValidationStatus
	Confidence        int
	SourceCount       int
	DurationMS        float64
	CreatedAt         time.Time
}

// RunStats aggregates the audit log for the stats endpoint.
type RunStats struct {
	TotalQueries  int64   `json:"total_queries"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
	AvgConfidence float64 `json:"avg_confidence"`
}
