package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"health-records-platform/internal/rag"
)

type fakeHistoryStorage struct {
	entries []rag.HistoryEntry
	err     error
	limit   int
}

func (f *fakeHistoryStorage) Append(_ context.Context, entry rag.HistoryEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeHistoryStorage) ListByReport(_ context.Context, _ string, limit int) ([]rag.HistoryEntry, error) {
	f.limit = limit
	return f.entries, f.err
}

func TestBuildExportConvertsEntries(t *testing.T) {
	asked := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	storage := &fakeHistoryStorage{entries: []rag.HistoryEntry{
		{
			ReportID:       "RPT-1",
			ActorID:        "d1",
			Role:           rag.RoleDoctor,
			Question:       "What is the hemoglobin level?",
			Answer:         "Hemoglobin is 10.2 g/dL, below the reference range.",
			CitedSequences: []int{0, 3},
			AskedAt:        asked,
		},
	}}
	svc := NewExportService(storage)

	data, err := svc.BuildExport(context.Background(), "RPT-1")
	if err != nil {
		t.Fatalf("BuildExport: %v", err)
	}
	if data.ReportID != "RPT-1" {
		t.Errorf("report id = %s", data.ReportID)
	}
	if len(data.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(data.Entries))
	}
	row := data.Entries[0]
	if row.Role != "doctor" {
		t.Errorf("role = %q, want doctor", row.Role)
	}
	if row.ActorID != "d1" || !row.AskedAt.Equal(asked) {
		t.Errorf("row carried wrong identity fields: %+v", row)
	}
	if storage.limit != maxExportEntries {
		t.Errorf("list limit = %d, want %d", storage.limit, maxExportEntries)
	}
}

func TestBuildExportPropagatesStorageError(t *testing.T) {
	storage := &fakeHistoryStorage{err: errors.New("mongo down")}
	svc := NewExportService(storage)
	if _, err := svc.BuildExport(context.Background(), "RPT-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFormatSequences(t *testing.T) {
	if got := formatSequences(nil); got != "" {
		t.Errorf("nil = %q", got)
	}
	if got := formatSequences([]int{4, 0, 7}); got != "4, 0, 7" {
		t.Errorf("got %q", got)
	}
}
