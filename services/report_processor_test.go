package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"health-records-platform/internal/rag"
	"health-records-platform/models"
)

type fakeReportStore struct {
	mu       sync.Mutex
	reports  map[string]*models.Report
	statuses []string
	lastErr  string
}

func newFakeReportStore(reports ...*models.Report) *fakeReportStore {
	s := &fakeReportStore{reports: make(map[string]*models.Report)}
	for _, r := range reports {
		s.reports[r.ReportID] = r
	}
	return s
}

func (s *fakeReportStore) Get(ctx context.Context, reportID string) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[reportID]
	if !ok {
		return nil, errors.New("report not found")
	}
	copied := *report
	return &copied, nil
}

func (s *fakeReportStore) SetStatus(ctx context.Context, reportID, status, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	s.lastErr = errorMessage
	if r, ok := s.reports[reportID]; ok {
		r.Status = status
		r.ErrorMessage = errorMessage
	}
	return nil
}

func (s *fakeReportStore) SetProcessed(ctx context.Context, reportID string, pages, chunkCount int, summary string, info *models.MedicalInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, models.ReportStatusProcessed)
	if r, ok := s.reports[reportID]; ok {
		r.Status = models.ReportStatusProcessed
		r.Pages = pages
		r.ChunkCount = chunkCount
		r.Summary = summary
		r.MedicalInfo = info
	}
	return nil
}

type fakeExtractor struct {
	result *ExtractionResult
	err    error
}

func (f *fakeExtractor) ExtractText(ctx context.Context, filePath string) (*ExtractionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeEmbedder struct {
	dim   int
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dim)
		vec[i%f.dim] = 1
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

type memoryIndexStorage struct {
	mu      sync.Mutex
	indexes map[string]*rag.VectorIndex
}

func newMemoryIndexStorage() *memoryIndexStorage {
	return &memoryIndexStorage{indexes: make(map[string]*rag.VectorIndex)}
}

func (m *memoryIndexStorage) Load(ctx context.Context, reportID string) (*rag.VectorIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexes[reportID]
	if !ok {
		return nil, rag.ErrIndexMissing
	}
	return idx, nil
}

func (m *memoryIndexStorage) Save(ctx context.Context, index *rag.VectorIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes[index.ReportID] = index
	return nil
}

func (m *memoryIndexStorage) Delete(ctx context.Context, reportID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.indexes, reportID)
	return nil
}

func processorFixture(t *testing.T, report *models.Report, extractor TextExtractor, embedder rag.Embedder) (*ReportProcessor, *fakeReportStore, *memoryIndexStorage) {
	t.Helper()
	reports := newFakeReportStore(report)
	storage := newMemoryIndexStorage()
	store := rag.NewIndexStore(storage, rag.DefaultMaxResident)
	medical := NewMedicalExtractor(&fakeGenerator{response: sampleExtractionJSON})
	p := NewReportProcessor(reports, extractor, rag.NewChunker(), embedder, store, medical)
	return p, reports, storage
}

func TestProcessBuildsAndPersistsIndex(t *testing.T) {
	report := &models.Report{ReportID: "RPT-20260310120000-AAAA1111", FilePath: "/tmp/report.pdf", Status: models.ReportStatusPending}
	extractor := &fakeExtractor{result: &ExtractionResult{
		Text:  "--- Page 1 ---\nHemoglobin 10.9 g/dL, below the reference range of 12.0-15.5.",
		Pages: 1,
	}}

	p, reports, storage := processorFixture(t, report, extractor, &fakeEmbedder{dim: 8})

	if err := p.Process(context.Background(), report.ReportID); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	stored := reports.reports[report.ReportID]
	if stored.Status != models.ReportStatusProcessed {
		t.Errorf("status = %s, want %s", stored.Status, models.ReportStatusProcessed)
	}
	if stored.Pages != 1 || stored.ChunkCount == 0 {
		t.Errorf("pages = %d, chunks = %d", stored.Pages, stored.ChunkCount)
	}
	if stored.MedicalInfo == nil || stored.MedicalInfo.PatientName == nil {
		t.Error("medical info not persisted")
	}
	if stored.Summary == "" {
		t.Error("summary not persisted")
	}

	idx, err := storage.Load(context.Background(), report.ReportID)
	if err != nil {
		t.Fatalf("index not persisted: %v", err)
	}
	if idx.Dimension != 8 || len(idx.Passages) != stored.ChunkCount {
		t.Errorf("index dimension = %d, passages = %d", idx.Dimension, len(idx.Passages))
	}
}

func TestProcessMarksFailedOnExtractionError(t *testing.T) {
	report := &models.Report{ReportID: "RPT-20260310120000-BBBB2222", FilePath: "/tmp/missing.pdf", Status: models.ReportStatusPending}
	extractor := &fakeExtractor{err: errors.New("no extractable text in PDF")}

	p, reports, _ := processorFixture(t, report, extractor, &fakeEmbedder{dim: 8})

	if err := p.Process(context.Background(), report.ReportID); err == nil {
		t.Fatal("expected error from failed extraction")
	}

	stored := reports.reports[report.ReportID]
	if stored.Status != models.ReportStatusFailed {
		t.Errorf("status = %s, want %s", stored.Status, models.ReportStatusFailed)
	}
	if stored.ErrorMessage == "" {
		t.Error("error message not recorded")
	}
}

func TestProcessMarksFailedOnEmbeddingError(t *testing.T) {
	report := &models.Report{ReportID: "RPT-20260310120000-CCCC3333", FilePath: "/tmp/report.pdf", Status: models.ReportStatusPending}
	extractor := &fakeExtractor{result: &ExtractionResult{Text: "Routine checkup, all values normal.", Pages: 1}}

	p, reports, storage := processorFixture(t, report, extractor, &fakeEmbedder{dim: 8, err: errors.New("service unavailable")})

	if err := p.Process(context.Background(), report.ReportID); err == nil {
		t.Fatal("expected error from failed embedding")
	}

	if reports.reports[report.ReportID].Status != models.ReportStatusFailed {
		t.Errorf("status = %s, want %s", reports.reports[report.ReportID].Status, models.ReportStatusFailed)
	}
	if _, err := storage.Load(context.Background(), report.ReportID); !errors.Is(err, rag.ErrIndexMissing) {
		t.Error("no index should be persisted on embedding failure")
	}
}

func TestProcessUnknownReport(t *testing.T) {
	p, _, _ := processorFixture(t, &models.Report{ReportID: "RPT-20260310120000-DDDD4444"}, &fakeExtractor{}, &fakeEmbedder{dim: 8})

	if err := p.Process(context.Background(), "RPT-20260310120000-ZZZZ9999"); err == nil {
		t.Fatal("expected error for unknown report")
	}
}
