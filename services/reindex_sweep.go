package services

import (
	"context"
	"time"

	"health-records-platform/internal/logger"
	"health-records-platform/internal/queue"
	"health-records-platform/models"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"
)

// reindexBatchSize bounds how many reports one sweep re-enqueues.
const reindexBatchSize = 50

// ReindexLister finds processed reports flagged for reindexing.
type ReindexLister interface {
	ListReindexRequired(ctx context.Context, limit int) ([]models.Report, error)
}

// ReindexSweep periodically re-enqueues reports whose indexes are stale,
// for example after a chunking parameter change.
type ReindexSweep struct {
	reports   ReindexLister
	client    *asynq.Client
	scheduler *gocron.Scheduler
	cronExpr  string
}

func NewReindexSweep(reports ReindexLister, client *asynq.Client, cronExpr string) *ReindexSweep {
	return &ReindexSweep{
		reports:   reports,
		client:    client,
		scheduler: gocron.NewScheduler(time.UTC),
		cronExpr:  cronExpr,
	}
}

// Start registers the sweep job and runs the scheduler in the background.
func (s *ReindexSweep) Start() error {
	if _, err := s.scheduler.Cron(s.cronExpr).Tag("reindex-sweep").Do(s.runOnce); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	logger.Info("reindex sweep started", "cron", s.cronExpr)
	return nil
}

func (s *ReindexSweep) Stop() {
	s.scheduler.Stop()
}

func (s *ReindexSweep) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reports, err := s.reports.ListReindexRequired(ctx, reindexBatchSize)
	if err != nil {
		logger.Error("reindex sweep listing failed", "error", err)
		return
	}
	if len(reports) == 0 {
		return
	}

	enqueued := 0
	for _, report := range reports {
		task, err := queue.NewReportProcessTask(report.ReportID)
		if err != nil {
			logger.Error("failed to build reindex task", "report_id", report.ReportID, "error", err)
			continue
		}
		if _, err := s.client.EnqueueContext(ctx, task); err != nil {
			logger.Error("failed to enqueue reindex task", "report_id", report.ReportID, "error", err)
			continue
		}
		enqueued++
	}

	logger.Info("reindex sweep completed", "flagged", len(reports), "enqueued", enqueued)
}
