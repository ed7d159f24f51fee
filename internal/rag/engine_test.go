package rag

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

type fakeEmbedder struct {
	dim   int
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, f.dim)
	for i, r := range text {
		vec[i%f.dim] += float32(r)
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

type memoryHistory struct {
	entries []HistoryEntry
}

func (m *memoryHistory) Append(_ context.Context, entry HistoryEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryHistory) ListByReport(_ context.Context, reportID string, limit int) ([]HistoryEntry, error) {
	var out []HistoryEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].ReportID == reportID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

type engineFixture struct {
	engine   *RetrievalEngine
	src      *fakeConsentSource
	storage  *memoryIndexStorage
	embedder *fakeEmbedder
	gen      *fakeGenerator
	history  *memoryHistory
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	src := &fakeConsentSource{
		owners: map[string]string{"r1": "p1"},
		consents: map[string][]ConsentRecord{"p1|d1": {{
			PatientID: "p1", DoctorID: "d1", Permission: PermissionRead,
			ValidFrom: time.Now().Add(-time.Hour), ValidTo: time.Now().Add(time.Hour),
		}}},
	}
	storage := newMemoryIndexStorage()
	embedder := &fakeEmbedder{dim: 4}
	gen := &fakeGenerator{responses: []string{"The hemoglobin level is 13.5 g/dL."}}
	history := &memoryHistory{}

	composer := NewAnswerComposer(gen)
	composer.retryBackoff = 0
	engine := NewRetrievalEngine(
		NewConsentGate(src),
		NewIndexStore(storage, 4),
		embedder,
		composer,
		NewHistoryLog(history),
		slog.Default(),
	)

	fix := &engineFixture{engine: engine, src: src, storage: storage, embedder: embedder, gen: gen, history: history}
	fix.seedIndex(t, "r1", 6)
	return fix
}

func (f *engineFixture) seedIndex(t *testing.T, reportID string, n int) {
	t.Helper()
	inputs := make([]PassageInput, n)
	for i := range inputs {
		inputs[i] = PassageInput{SequenceNumber: i, Text: "passage text", Vector: []float32{float32(i + 1), 1, 0, 0}}
	}
	idx, err := BuildIndex(reportID, inputs)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	f.storage.indexes[reportID] = idx
}

func TestAnswerQuestionHappyPath(t *testing.T) {
	fix := newEngineFixture(t)
	answer, err := fix.engine.AnswerQuestion(context.Background(), Query{
		ReportID: "r1",
		ActorID:  "p1",
		Role:     RolePatient,
		Question: "What is the hemoglobin level?",
	})
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if answer.Text == "" {
		t.Error("expected non-empty answer")
	}
	if len(answer.CitedSequences) != DefaultTopK {
		t.Errorf("expected %d citations, got %d", DefaultTopK, len(answer.CitedSequences))
	}
	if len(fix.history.entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(fix.history.entries))
	}
	entry := fix.history.entries[0]
	if entry.Answer != answer.Text || entry.ReportID != "r1" || entry.ActorID != "p1" {
		t.Errorf("history entry not populated: %+v", entry)
	}
	if entry.AskedAt.IsZero() {
		t.Error("history entry missing timestamp")
	}
}

func TestAnswerQuestionDeniedDoesNoWork(t *testing.T) {
	fix := newEngineFixture(t)
	_, err := fix.engine.AnswerQuestion(context.Background(), Query{
		ReportID: "r1",
		ActorID:  "d-stranger",
		Role:     RoleDoctor,
		Question: "What are the findings?",
	})
	if CodeOf(err) != CodeConsentDenied {
		t.Fatalf("expected consent_denied, got %v", err)
	}
	if fix.embedder.calls != 0 {
		t.Errorf("denied query must not embed, got %d calls", fix.embedder.calls)
	}
	if fix.gen.calls != 0 {
		t.Errorf("denied query must not generate, got %d calls", fix.gen.calls)
	}
	if fix.storage.loads != 0 {
		t.Errorf("denied query must not load the index, got %d loads", fix.storage.loads)
	}
	if len(fix.history.entries) != 0 {
		t.Error("denied query must not be recorded in history")
	}
}

func TestAnswerQuestionValidationBeforeAuthorization(t *testing.T) {
	fix := newEngineFixture(t)
	_, err := fix.engine.AnswerQuestion(context.Background(), Query{
		ReportID: "r1",
		ActorID:  "d-stranger",
		Role:     RoleDoctor,
		Question: "  hi  ",
	})
	if CodeOf(err) != CodeQuestionTooShort {
		t.Fatalf("expected question_too_short, got %v", err)
	}
	if fix.src.lookups != 0 {
		t.Error("invalid question must not reach the consent gate")
	}
}

func TestAnswerQuestionUnprocessedReport(t *testing.T) {
	fix := newEngineFixture(t)
	fix.src.owners["r2"] = "p1"
	_, err := fix.engine.AnswerQuestion(context.Background(), Query{
		ReportID: "r2",
		ActorID:  "p1",
		Role:     RolePatient,
		Question: "What are the findings?",
	})
	if CodeOf(err) != CodeReportNotProcessed {
		t.Fatalf("expected report_not_processed, got %v", err)
	}
}

func TestAnswerQuestionEmbedderFailure(t *testing.T) {
	fix := newEngineFixture(t)
	fix.embedder.err = errors.New("quota exhausted")
	_, err := fix.engine.AnswerQuestion(context.Background(), Query{
		ReportID: "r1",
		ActorID:  "p1",
		Role:     RolePatient,
		Question: "What are the findings?",
	})
	if CodeOf(err) != CodeEmbeddingService {
		t.Fatalf("expected embedding_service_error, got %v", err)
	}
	if fix.gen.calls != 0 {
		t.Error("generation must not run after an embedding failure")
	}
	if len(fix.history.entries) != 0 {
		t.Error("failed query must not be recorded in history")
	}
}

func TestAnswerQuestionGenerationFailure(t *testing.T) {
	fix := newEngineFixture(t)
	fix.gen.errs = []error{errors.New("down"), errors.New("down")}
	fix.gen.responses = nil
	_, err := fix.engine.AnswerQuestion(context.Background(), Query{
		ReportID: "r1",
		ActorID:  "p1",
		Role:     RolePatient,
		Question: "What are the findings?",
	})
	if CodeOf(err) != CodeGenerationService {
		t.Fatalf("expected generation_service_error, got %v", err)
	}
	if len(fix.history.entries) != 0 {
		t.Error("failed query must not be recorded in history")
	}
}

func TestAnswerQuestionCancelled(t *testing.T) {
	fix := newEngineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fix.engine.AnswerQuestion(ctx, Query{
		ReportID: "r1",
		ActorID:  "p1",
		Role:     RolePatient,
		Question: "What are the findings?",
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAnswerQuestionTopKOverride(t *testing.T) {
	fix := newEngineFixture(t)
	answer, err := fix.engine.AnswerQuestion(context.Background(), Query{
		ReportID: "r1",
		ActorID:  "p1",
		Role:     RolePatient,
		Question: "What are the findings?",
		TopK:     2,
	})
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if len(answer.CitedSequences) != 2 {
		t.Errorf("expected 2 citations, got %d", len(answer.CitedSequences))
	}
}

func TestAnswerQuestionConfiguredDefaults(t *testing.T) {
	fix := newEngineFixture(t)
	fix.engine.TopK = 3
	fix.engine.MinQuestionLen = 10

	_, err := fix.engine.AnswerQuestion(context.Background(), Query{
		ReportID: "r1",
		ActorID:  "p1",
		Role:     RolePatient,
		Question: "short",
	})
	if CodeOf(err) != CodeQuestionTooShort {
		t.Fatalf("expected question_too_short under raised minimum, got %v", err)
	}

	answer, err := fix.engine.AnswerQuestion(context.Background(), Query{
		ReportID: "r1",
		ActorID:  "p1",
		Role:     RolePatient,
		Question: "What are the key findings?",
	})
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if len(answer.CitedSequences) != 3 {
		t.Errorf("expected 3 citations from the configured default, got %d", len(answer.CitedSequences))
	}
}

func TestHistoryListNewestFirst(t *testing.T) {
	history := &memoryHistory{}
	log := NewHistoryLog(history)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := log.Record(ctx, HistoryEntry{
			ReportID: "r1",
			ActorID:  "p1",
			Role:     RolePatient,
			Question: "q",
			Answer:   "a",
			AskedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := log.List(ctx, "r1", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].AskedAt.After(entries[i-1].AskedAt) {
			t.Error("entries not newest first")
		}
	}
}
