package services

import (
	"context"
	"fmt"
	"time"

	"health-records-platform/internal/logger"
	"health-records-platform/internal/rag"
	"health-records-platform/models"
)

// ReportStore is the persistence surface the processor needs.
type ReportStore interface {
	Get(ctx context.Context, reportID string) (*models.Report, error)
	SetStatus(ctx context.Context, reportID, status, errorMessage string) error
	SetProcessed(ctx context.Context, reportID string, pages, chunkCount int, summary string, info *models.MedicalInfo) error
}

// TextExtractor produces plain text from an uploaded file.
type TextExtractor interface {
	ExtractText(ctx context.Context, filePath string) (*ExtractionResult, error)
}

// ReportProcessor runs the full ingestion pipeline for one report:
// extract, chunk, embed, index, and structured medical extraction.
type ReportProcessor struct {
	reports   ReportStore
	extractor TextExtractor
	chunker   *rag.Chunker
	embedder  rag.Embedder
	store     *rag.IndexStore
	medical   *MedicalExtractor
}

func NewReportProcessor(
	reports ReportStore,
	extractor TextExtractor,
	chunker *rag.Chunker,
	embedder rag.Embedder,
	store *rag.IndexStore,
	medical *MedicalExtractor,
) *ReportProcessor {
	return &ReportProcessor{
		reports:   reports,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		medical:   medical,
	}
}

// Process ingests the report end to end. Any stage failure marks the
// report failed with the error recorded, so a later reprocess can retry.
func (p *ReportProcessor) Process(ctx context.Context, reportID string) error {
	start := time.Now()

	report, err := p.reports.Get(ctx, reportID)
	if err != nil {
		return fmt.Errorf("load report %s: %w", reportID, err)
	}

	if err := p.reports.SetStatus(ctx, reportID, models.ReportStatusProcessing, ""); err != nil {
		return fmt.Errorf("mark report processing: %w", err)
	}

	pages, chunkCount, err := p.process(ctx, report)
	if err != nil {
		if statusErr := p.reports.SetStatus(ctx, reportID, models.ReportStatusFailed, err.Error()); statusErr != nil {
			logger.Error("failed to record processing failure", "report_id", reportID, "error", statusErr)
		}
		return err
	}

	logger.Info("report processed",
		"report_id", reportID,
		"pages", pages,
		"chunks", chunkCount,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (p *ReportProcessor) process(ctx context.Context, report *models.Report) (pages, chunkCount int, err error) {
	extraction, err := p.extractor.ExtractText(ctx, report.FilePath)
	if err != nil {
		return 0, 0, fmt.Errorf("extract text: %w", err)
	}

	chunks, err := p.chunker.Chunk(extraction.Text)
	if err != nil {
		return 0, 0, fmt.Errorf("chunk text: %w", err)
	}

	vectors, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, 0, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	inputs := make([]rag.PassageInput, len(chunks))
	for i, text := range chunks {
		inputs[i] = rag.PassageInput{
			SequenceNumber: i,
			Text:           text,
			Vector:         vectors[i],
		}
	}

	index, err := rag.BuildIndex(report.ReportID, inputs)
	if err != nil {
		return 0, 0, fmt.Errorf("build index: %w", err)
	}

	if err := p.store.Put(ctx, index); err != nil {
		return 0, 0, fmt.Errorf("persist index: %w", err)
	}

	// Structured extraction is best-effort: a model hiccup here should
	// not fail ingestion once the index is already persisted.
	var info *models.MedicalInfo
	var summary string
	if p.medical != nil {
		info, err = p.medical.Extract(ctx, extraction.Text)
		if err != nil {
			logger.Warn("medical extraction failed", "report_id", report.ReportID, "error", err)
			info = nil
		}
		summary, err = p.medical.Summarize(ctx, extraction.Text)
		if err != nil {
			logger.Warn("summary generation failed", "report_id", report.ReportID, "error", err)
			summary = ""
		}
	}

	if err := p.reports.SetProcessed(ctx, report.ReportID, extraction.Pages, len(chunks), summary, info); err != nil {
		return 0, 0, fmt.Errorf("mark report processed: %w", err)
	}

	return extraction.Pages, len(chunks), nil
}
