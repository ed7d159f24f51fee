package rag

import (
	"context"
	"time"
)

// HistoryEntry is one answered question, recorded append-only.
type HistoryEntry struct {
	ReportID       string    `bson:"report_id" json:"report_id"`
	ActorID        string    `bson:"actor_id" json:"actor_id"`
	Role           Role      `bson:"role" json:"role"`
	Question       string    `bson:"question" json:"question"`
	Answer         string    `bson:"answer" json:"answer"`
	CitedSequences []int     `bson:"cited_sequences" json:"cited_sequences"`
	AskedAt        time.Time `bson:"asked_at" json:"asked_at"`
}

// HistoryStorage persists query history. Entries are never updated or
// deleted through this interface.
type HistoryStorage interface {
	Append(ctx context.Context, entry HistoryEntry) error
	ListByReport(ctx context.Context, reportID string, limit int) ([]HistoryEntry, error)
}

const DefaultHistoryLimit = 50

// HistoryLog records answered questions and lists them newest first.
type HistoryLog struct {
	storage HistoryStorage
	now     func() time.Time
}

func NewHistoryLog(storage HistoryStorage) *HistoryLog {
	return &HistoryLog{storage: storage, now: time.Now}
}

func (l *HistoryLog) Record(ctx context.Context, entry HistoryEntry) error {
	if entry.AskedAt.IsZero() {
		entry.AskedAt = l.now().UTC()
	}
	return l.storage.Append(ctx, entry)
}

// List returns up to limit entries for the report, newest first. A
// non-positive limit uses DefaultHistoryLimit.
func (l *HistoryLog) List(ctx context.Context, reportID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return l.storage.ListByReport(ctx, reportID, limit)
}
