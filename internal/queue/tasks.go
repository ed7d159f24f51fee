package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"health-records-platform/internal/logger"
)

const (
	TaskProcessReport = "report:process"
)

type ReportProcessPayload struct {
	ReportID string `json:"report_id"`
}

// NewReportProcessTask enqueues extraction, chunking, embedding and indexing
// for one uploaded report.
func NewReportProcessTask(reportID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReportProcessPayload{ReportID: reportID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskProcessReport,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// ReportProcessor runs the full ingestion pipeline for one report.
type ReportProcessor interface {
	Process(ctx context.Context, reportID string) error
}

// TaskHandler dispatches queued tasks to the processing service.
type TaskHandler struct {
	processor ReportProcessor
}

func NewTaskHandler(processor ReportProcessor) *TaskHandler {
	return &TaskHandler{processor: processor}
}

func (h *TaskHandler) HandleReportProcess(ctx context.Context, t *asynq.Task) error {
	var payload ReportProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("processing report", "report_id", payload.ReportID)

	if err := h.processor.Process(ctx, payload.ReportID); err != nil {
		logger.Error("report processing failed", "report_id", payload.ReportID, "error", err)
		return err // asynq will retry up to MaxRetry
	}

	logger.Info("report processed", "report_id", payload.ReportID)
	return nil
}
