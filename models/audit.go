package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"health-records-platform/internal/logger"
)

// AuditEvent is an immutable audit log entry. Events for one actor form a
// hash chain so tampering with stored history is detectable.
type AuditEvent struct {
	ID           string    `bson:"_id,omitempty"`
	Timestamp    time.Time `bson:"timestamp"`
	ActorID      string    `bson:"actor_id"`
	Role         string    `bson:"role"`
	Action       string    `bson:"action"`   // CREATE, READ, QUERY, DELETE, REVOKE
	Resource     string    `bson:"resource"` // report, consent, query, history
	ResourceID   string    `bson:"resource_id"`
	IPAddress    string    `bson:"ip_address"`
	UserAgent    string    `bson:"user_agent"`
	RequestID    string    `bson:"request_id"`
	Success      bool      `bson:"success"`
	ErrorCode    string    `bson:"error_code,omitempty"`
	DenialClause string    `bson:"denial_clause,omitempty"` // internal clause on consent denials
	PreviousHash string    `bson:"previous_hash"`
	CurrentHash  string    `bson:"current_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

// ComputeHash computes the chain hash of this audit event
func (e *AuditEvent) ComputeHash() string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%t|%s|%s",
		e.Timestamp.Format(time.RFC3339Nano),
		e.ActorID,
		e.Action,
		e.Resource,
		e.ResourceID,
		e.Success,
		e.DenialClause,
		e.PreviousHash,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// AuditLogger handles immutable audit logging
type AuditLogger struct {
	col        *mongo.Collection
	lastHashMu sync.Mutex
	lastHashes map[string]string // actorID -> last hash
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(db *mongo.Database) *AuditLogger {
	col := db.Collection("audit_logs")

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "actor_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "resource", Value: 1},
				{Key: "resource_id", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "action", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "request_id", Value: 1},
			},
		},
	}
	col.Indexes().CreateMany(context.Background(), indexes)

	return &AuditLogger{
		col:        col,
		lastHashes: make(map[string]string),
	}
}

// Log records an audit event. Events are insert-only, never updated.
func (al *AuditLogger) Log(event *AuditEvent) error {
	al.lastHashMu.Lock()
	defer al.lastHashMu.Unlock()

	event.PreviousHash = al.lastHashes[event.ActorID]
	event.Timestamp = time.Now().UTC()
	event.CreatedAt = event.Timestamp
	event.ID = fmt.Sprintf("%d_%s", time.Now().UnixNano(), event.ActorID)
	event.CurrentHash = event.ComputeHash()

	ctx := context.Background()
	_, err := al.col.InsertOne(ctx, event)
	if err != nil {
		logger.Error("failed to log audit event", "error", err)
		return err
	}

	al.lastHashes[event.ActorID] = event.CurrentHash
	return nil
}

// LogAsync records an audit event off the request path.
func (al *AuditLogger) LogAsync(event *AuditEvent) {
	go func() {
		if err := al.Log(event); err != nil {
			logger.Error("async audit logging failed", "error", err)
		}
	}()
}

// VerifyChain verifies the integrity of the audit chain for an actor
func (al *AuditLogger) VerifyChain(actorID string) (bool, error) {
	ctx := context.Background()
	cursor, err := al.col.Find(ctx,
		bson.M{"actor_id": actorID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return false, err
	}
	defer cursor.Close(ctx)

	var previousHash string
	eventCount := 0

	for cursor.Next(ctx) {
		var event AuditEvent
		if err := cursor.Decode(&event); err != nil {
			return false, err
		}

		eventCount++

		if eventCount > 1 && event.PreviousHash != previousHash {
			logger.Warn("audit chain broken", "event_id", event.ID)
			return false, nil
		}

		if event.CurrentHash != event.ComputeHash() {
			logger.Warn("audit event hash mismatch", "event_id", event.ID)
			return false, nil
		}

		previousHash = event.CurrentHash
	}

	return true, nil
}

// QueryAuditLogs queries audit logs with filters
func (al *AuditLogger) QueryAuditLogs(filter bson.M, page, pageSize int) ([]AuditEvent, int64, error) {
	ctx := context.Background()

	total, err := al.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := (page - 1) * pageSize
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(pageSize))

	cursor, err := al.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var events []AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

// Collection returns the audit collection for direct access
func (al *AuditLogger) Collection() *mongo.Collection {
	return al.col
}
