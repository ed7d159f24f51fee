package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Embedder converts text into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// QueryState tracks a question through the pipeline. States advance strictly
// forward; DENIED, NOT_FOUND and FAILED are terminal.
type QueryState string

const (
	StateReceived     QueryState = "RECEIVED"
	StateAuthorizing  QueryState = "AUTHORIZING"
	StateIndexLoading QueryState = "INDEX_LOADING"
	StateEmbedding    QueryState = "EMBEDDING_QUERY"
	StateSearching    QueryState = "SEARCHING"
	StateComposing    QueryState = "COMPOSING"
	StateDone         QueryState = "DONE"
	StateDenied       QueryState = "DENIED"
	StateNotFound     QueryState = "NOT_FOUND"
	StateFailed       QueryState = "FAILED"
)

// Query is one question against one report by one actor.
type Query struct {
	ReportID string
	ActorID  string
	Role     Role
	Question string
	TopK     int
}

const (
	MinQuestionLength = 3
	DefaultTopK       = 5
)

// RetrievalEngine runs the full consent-gated question pipeline. TopK and
// MinQuestionLen fall back to the package defaults when left zero.
type RetrievalEngine struct {
	gate     *ConsentGate
	store    *IndexStore
	embedder Embedder
	composer *AnswerComposer
	history  *HistoryLog
	log      *slog.Logger

	TopK           int
	MinQuestionLen int
}

func NewRetrievalEngine(gate *ConsentGate, store *IndexStore, embedder Embedder, composer *AnswerComposer, history *HistoryLog, log *slog.Logger) *RetrievalEngine {
	if log == nil {
		log = slog.Default()
	}
	return &RetrievalEngine{
		gate:     gate,
		store:    store,
		embedder: embedder,
		composer: composer,
		history:  history,
		log:      log,
	}
}

// AnswerQuestion validates, authorizes, retrieves and composes. Validation
// runs before authorization so malformed requests never hit the consent
// lookup. A denied actor causes zero embedding or index work.
func (e *RetrievalEngine) AnswerQuestion(ctx context.Context, q Query) (*Answer, error) {
	started := time.Now()

	minLen := e.MinQuestionLen
	if minLen <= 0 {
		minLen = MinQuestionLength
	}
	question := strings.TrimSpace(q.Question)
	if len([]rune(question)) < minLen {
		return nil, ErrQuestionTooShort(minLen)
	}
	if q.ReportID == "" {
		return nil, ErrInvalidArgument("report_id is required")
	}
	topK := q.TopK
	if topK == 0 {
		topK = e.TopK
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 0 {
		return nil, ErrInvalidArgument("top_k must be positive")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.gate.Authorize(ctx, q.ActorID, q.Role, q.ReportID); err != nil {
		e.logOutcome(q, StateDenied, started, err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	index, err := e.store.GetOrLoad(ctx, q.ReportID)
	if err != nil {
		if CodeOf(err) == CodeReportNotProcessed {
			e.logOutcome(q, StateNotFound, started, err)
		} else {
			e.logOutcome(q, StateFailed, started, err)
		}
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryVec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		e.logOutcome(q, StateFailed, started, err)
		return nil, ErrEmbeddingService(err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results, err := index.Search(queryVec, topK)
	if err != nil {
		e.logOutcome(q, StateFailed, started, err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	answer, err := e.composer.Compose(ctx, question, results)
	if err != nil {
		e.logOutcome(q, StateFailed, started, err)
		return nil, err
	}

	if e.history != nil {
		entry := HistoryEntry{
			ReportID:       q.ReportID,
			ActorID:        q.ActorID,
			Role:           q.Role,
			Question:       question,
			Answer:         answer.Text,
			CitedSequences: answer.CitedSequences,
		}
		if err := e.history.Record(ctx, entry); err != nil {
			// the answer is already composed; history failure is logged,
			// not returned
			e.log.Warn("history append failed",
				"report_id", q.ReportID,
				"error", err)
		}
	}

	e.log.Info("question answered",
		"report_id", q.ReportID,
		"actor_id", q.ActorID,
		"state", string(StateDone),
		"passages", len(results),
		"duration_ms", time.Since(started).Milliseconds())
	return answer, nil
}

func (e *RetrievalEngine) logOutcome(q Query, state QueryState, started time.Time, err error) {
	attrs := []any{
		"report_id", q.ReportID,
		"actor_id", q.ActorID,
		"state", string(state),
		"duration_ms", time.Since(started).Milliseconds(),
		"error", err,
	}
	if clause := ClauseOf(err); clause != "" {
		attrs = append(attrs, "denial_clause", clause)
	}
	e.log.Info("question not answered", attrs...)
}
