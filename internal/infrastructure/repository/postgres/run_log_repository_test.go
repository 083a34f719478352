package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
)

func newRunLogWithMock(t *testing.T) (*RunLogRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &RunLogRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestRecordInsertsRun(t *testing.T) {
	repo, mock, done := newRunLogWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO query_runs").
		WithArgs("run-1", "what is jwt", "what is a json web token", string(domain.StageDone),
			string(domain.ValidationValid), 92, 3, 154.2, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Record(context.Background(), domain.RunRecord{
		ID:                "run-1",
		Query:             "what is jwt",
		ReformulatedQuery: "what is a json web token",
		State:             domain.StageDone,
		ValidationStatus:  domain.ValidationValid,
		Confidence:        92,
		SourceCount:       3,
		DurationMS:        154.2,
		CreatedAt:         now,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStatsScansAggregates(t *testing.T) {
	repo, mock, done := newRunLogWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT").
		WithArgs(string(domain.StageDone)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "avg_duration", "avg_confidence"}).
			AddRow(int64(42), 180.5, 83.25))

	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalQueries != 42 {
		t.Fatalf("total = %d, want 42", stats.TotalQueries)
	}
	if stats.AvgLatencyMS != 180.5 {
		t.Fatalf("avg latency = %v, want 180.5", stats.AvgLatencyMS)
	}
	if stats.AvgConfidence != 83.25 {
		t.Fatalf("avg confidence = %v, want 83.25", stats.AvgConfidence)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
