package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kirillkom/knowledge-agents/internal/config"
	"github.com/kirillkom/knowledge-agents/internal/core/domain"
	"github.com/kirillkom/knowledge-agents/internal/core/ports"
	"github.com/kirillkom/knowledge-agents/internal/observability/metrics"
)

// StatsReader serves the aggregate view of the query audit log.
type StatsReader interface {
	Stats(ctx context.Context) (domain.RunStats, error)
}

type Router struct {
	cfg     config.Config
	ingest  ports.DocumentIngestor
	query   ports.QueryService
	docs    ports.DocumentReader
	stats   StatsReader
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	query ports.QueryService,
	docs ports.DocumentReader,
	stats StatsReader,
	m *metrics.HTTPServerMetrics,
) *Router {
	if m == nil {
		m = metrics.NewHTTPServerMetrics("api")
	}
	return &Router{
		cfg:     cfg,
		ingest:  ingest,
		query:   query,
		docs:    docs,
		stats:   stats,
		metrics: m,
	}
}

// Handler assembles the HTTP surface. Traffic control guards only the
// /v1 API; health and metrics stay reachable when the API sheds load.
func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/v1/query", rt.handleQuery)
	api.HandleFunc("/v1/documents", rt.uploadDocument)
	api.HandleFunc("/v1/documents/", rt.getDocumentByID)
	api.HandleFunc("/v1/stats", rt.getStats)

	var apiHandler http.Handler = api
	apiHandler = backpressureMiddleware(apiHandler, rt.cfg.APIMaxConcurrent, defaultBackpressureWait)
	apiHandler = rateLimitMiddleware(apiHandler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	root := http.NewServeMux()
	root.Handle("/v1/", apiHandler)
	root.HandleFunc("/healthz", rt.healthz)
	root.Handle("/metrics", rt.metrics.Handler())

	var handler http.Handler = root
	handler = rt.metrics.Middleware("api", handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleQuery runs the answer pipeline. A failed run still responds with
// the partial result body; the status code alone tells success apart.
func (rt *Router) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string `json:"query"`
		TopK  *int   `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	// An absent top_k falls back to the configured default; an explicit
	// zero or negative value is a client error.
	topK := 0
	if req.TopK != nil {
		topK = *req.TopK
		if topK <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top_k must be at least 1"})
			return
		}
	}

	result, err := rt.query.HandleQuery(r.Context(), req.Query, topK)
	rt.recordPipelineRun(result)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if result != nil {
			writeJSON(w, status, result)
			return
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) recordPipelineRun(result *domain.QueryResult) {
	if result == nil {
		return
	}
	rt.metrics.RecordPipelineRun("api", string(result.State), len(result.Sources))
	for _, timing := range result.StageTimings {
		rt.metrics.RecordStageDuration("api", string(timing.Stage), timing.DurationMS/1000.0)
	}
	if result.Validation != nil {
		rt.metrics.RecordValidation("api", string(result.Validation.Status))
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) getStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	stats, err := rt.stats.Stats(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
