package httpadapter

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/knowledge-agents/internal/config"
	"github.com/kirillkom/knowledge-agents/internal/core/domain"
)

func TestQueryMapsDomainInvalidInputTo400(t *testing.T) {
	query := &queryFake{
		err: domain.WrapError(domain.ErrInvalidInput, "handle query", errors.New("query must not be empty")),
	}
	handler := NewRouter(config.Config{}, ingestFake{}, query, docsFake{}, statsFake{}, nil).Handler()

	res := postQuery(t, handler, map[string]any{"query": "   "})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		ingestFake{},
		&queryFake{result: doneResult("ok")},
		docsFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id missing"))},
		statsFake{},
		nil,
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestUntypedErrorsMapTo500(t *testing.T) {
	query := &queryFake{err: errors.New("boom")}
	handler := NewRouter(config.Config{}, ingestFake{}, query, docsFake{}, statsFake{}, nil).Handler()

	res := postQuery(t, handler, map[string]any{"query": "q"})
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}
