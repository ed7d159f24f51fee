package routes

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"health-records-platform/internal/config"
	"health-records-platform/internal/database"
	"health-records-platform/internal/queue"
	"health-records-platform/internal/rag"
	"health-records-platform/middleware"
	"health-records-platform/models"
	"health-records-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

// UploadReport accepts a PDF upload from a patient, stores the file,
// creates a pending report record and enqueues processing.
func UploadReport(cfg *config.Config, reports *database.MongoReportStore, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		patientID := middleware.GetActorID(c)

		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithBadRequest(c, "File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("report")
		if err != nil {
			utils.RespondWithBadRequest(c, "No report file provided", nil)
			return
		}
		defer file.Close()

		ct := header.Header.Get("Content-Type")
		typeOK := false
		for _, allowed := range cfg.AllowedTypes {
			if strings.HasPrefix(ct, strings.TrimSpace(allowed)) {
				typeOK = true
				break
			}
		}
		if !typeOK && !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
			utils.RespondWithBadRequest(c, "Only PDF files are allowed", nil)
			return
		}
		if header.Size > cfg.MaxFileSize {
			utils.RespondWithBadRequest(c, "File size exceeds maximum limit", nil)
			return
		}

		// Cheap magic-byte check before touching disk.
		headerBuf := make([]byte, 5)
		if _, err := io.ReadFull(file, headerBuf); err != nil || string(headerBuf[:4]) != "%PDF" {
			utils.RespondWithBadRequest(c, "File does not appear to be a valid PDF", nil)
			return
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			utils.RespondWithInternalError(c, "Failed to reset file for saving", nil)
			return
		}

		now := time.Now()
		reportID := models.NewReportID(now)

		uploadDir := filepath.Join(cfg.FileStorageDir, "reports", patientID)
		if err := os.MkdirAll(uploadDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create upload directory", nil)
			return
		}

		filename := fmt.Sprintf("%s.pdf", reportID)
		filePath := filepath.Join(uploadDir, filename)
		dst, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to open destination", nil)
			return
		}
		if _, err := io.Copy(dst, io.LimitReader(file, cfg.MaxFileSize)); err != nil {
			dst.Close()
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}
		dst.Close()

		fileHash, err := utils.HashFile(filePath)
		if err != nil {
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to hash file", nil)
			return
		}

		report := &models.Report{
			ReportID:     reportID,
			PatientID:    patientID,
			Filename:     filename,
			OriginalName: header.Filename,
			FilePath:     filePath,
			FileHash:     fileHash,
			Status:       models.ReportStatusPending,
			UploadedAt:   now,
		}
		if err := reports.Insert(c.Request.Context(), report); err != nil {
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to create report record", nil)
			return
		}

		task, err := queue.NewReportProcessTask(reportID)
		if err != nil {
			os.Remove(filePath)
			reports.Delete(c.Request.Context(), reportID)
			utils.RespondWithInternalError(c, "Failed to create processing task", nil)
			return
		}
		info, err := queueClient.Enqueue(task)
		if err != nil {
			os.Remove(filePath)
			reports.Delete(c.Request.Context(), reportID)
			utils.RespondWithInternalError(c, "Failed to enqueue processing task", nil)
			return
		}

		c.JSON(http.StatusAccepted, models.UploadResponse{
			ReportID: reportID,
			Filename: header.Filename,
			Status:   models.ReportStatusPending,
			Message:  "Report accepted for processing",
			TaskID:   info.ID,
		})
	}
}

// GetReport returns one report's metadata and processing state.
// Patients see only their own reports; doctors go through the gate.
func GetReport(reports *database.MongoReportStore, gate *rag.ConsentGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		reportID := c.Param("report_id")
		actorID := middleware.GetActorID(c)
		role := rag.Role(middleware.GetRole(c))

		if err := gate.Authorize(c.Request.Context(), actorID, role, reportID); err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		report, err := reports.Get(c.Request.Context(), reportID)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		// Never leak the server-side file path.
		report.FilePath = ""
		c.JSON(http.StatusOK, report)
	}
}

// ListMyReports returns the calling patient's reports, newest first.
func ListMyReports(reports *database.MongoReportStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		patientID := middleware.GetActorID(c)

		list, err := reports.ListByPatient(c.Request.Context(), patientID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list reports", nil)
			return
		}

		for i := range list {
			list[i].FilePath = ""
		}
		c.JSON(http.StatusOK, gin.H{"reports": list, "count": len(list)})
	}
}

// DeleteReport removes the report record, its vector index and the
// stored file. Only the owning patient may delete.
func DeleteReport(reports *database.MongoReportStore, store *rag.IndexStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		reportID := c.Param("report_id")
		actorID := middleware.GetActorID(c)

		report, err := reports.Get(c.Request.Context(), reportID)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		if report.PatientID != actorID {
			utils.RespondWithDomainError(c, rag.ErrNotOwner())
			return
		}

		if err := store.Drop(c.Request.Context(), reportID); err != nil {
			utils.RespondWithInternalError(c, "Failed to remove index", nil)
			return
		}
		if err := reports.Delete(c.Request.Context(), reportID); err != nil {
			utils.RespondWithInternalError(c, "Failed to delete report", nil)
			return
		}
		if report.FilePath != "" {
			os.Remove(report.FilePath)
		}

		c.JSON(http.StatusOK, gin.H{"report_id": reportID, "message": "report deleted"})
	}
}

// FlagReindex marks a processed report for the background reindex sweep,
// typically after chunking or embedding parameters change. Admin only.
func FlagReindex(reports *database.MongoReportStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		reportID := c.Param("report_id")

		if _, err := reports.Get(c.Request.Context(), reportID); err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		if err := reports.MarkReindexRequired(c.Request.Context(), reportID); err != nil {
			utils.RespondWithInternalError(c, "Failed to flag report", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{"report_id": reportID, "reindex_required": true})
	}
}

// ReprocessReport re-enqueues extraction and indexing for a report the
// caller owns, typically after a processing failure.
func ReprocessReport(reports *database.MongoReportStore, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		reportID := c.Param("report_id")
		actorID := middleware.GetActorID(c)

		report, err := reports.Get(c.Request.Context(), reportID)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		if report.PatientID != actorID && !middleware.IsAdmin(c) {
			utils.RespondWithDomainError(c, rag.ErrNotOwner())
			return
		}

		task, err := queue.NewReportProcessTask(reportID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create processing task", nil)
			return
		}
		info, err := queueClient.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to enqueue processing task", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"report_id": reportID,
			"task_id":   info.ID,
			"message":   "report queued for reprocessing",
		})
	}
}
