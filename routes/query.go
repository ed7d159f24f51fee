package routes

import (
	"errors"
	"net/http"
	"strconv"

	"health-records-platform/internal/ai"
	"health-records-platform/internal/database"
	"health-records-platform/internal/logger"
	"health-records-platform/internal/rag"
	"health-records-platform/middleware"
	"health-records-platform/services"
	"health-records-platform/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// AskRequest is the body of POST /api/chat/ask.
type AskRequest struct {
	ReportID string `json:"report_id" binding:"required"`
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"top_k"`
}

// AskQuestion answers a question about one report through the
// consent-gated retrieval pipeline.
func AskQuestion(engine *rag.RetrievalEngine, reports *database.MongoReportStore, db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "report_id and question are required", nil)
			return
		}

		actorID := middleware.GetActorID(c)
		role := middleware.GetRole(c)

		if err := ai.CheckActorQuota(c.Request.Context(), actorID, db); err != nil {
			if errors.Is(err, ai.ErrQuotaExceeded) {
				utils.RespondWithError(c, http.StatusTooManyRequests, "quota_exceeded", "Daily question limit reached", nil)
				return
			}
			utils.RespondWithInternalError(c, "Failed to check quota", nil)
			return
		}

		answer, err := engine.AnswerQuestion(c.Request.Context(), rag.Query{
			ReportID: req.ReportID,
			ActorID:  actorID,
			Role:     rag.Role(role),
			Question: req.Question,
			TopK:     req.TopK,
		})
		if err != nil {
			// A corrupt or stale index gets flagged so the background
			// sweep rebuilds it.
			if rag.CategoryOf(err) == rag.CategoryIntegrity {
				if flagErr := reports.MarkReindexRequired(c.Request.Context(), req.ReportID); flagErr != nil {
					logger.Warn("failed to flag report for reindex", "report_id", req.ReportID, "error", flagErr)
				}
			}
			utils.RespondWithDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"report_id":       req.ReportID,
			"answer":          answer.Text,
			"cited_sequences": answer.CitedSequences,
		})
	}
}

// GetQueryHistory lists answered questions for a report, newest first.
// Access follows the same consent rules as asking.
func GetQueryHistory(gate *rag.ConsentGate, history *rag.HistoryLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		reportID := c.Param("report_id")
		actorID := middleware.GetActorID(c)
		role := rag.Role(middleware.GetRole(c))

		if err := gate.Authorize(c.Request.Context(), actorID, role, reportID); err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				utils.RespondWithBadRequest(c, "limit must be a non-negative integer", nil)
				return
			}
			limit = parsed
		}

		entries, err := history.List(c.Request.Context(), reportID, limit)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load query history", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"report_id": reportID,
			"entries":   entries,
			"count":     len(entries),
		})
	}
}

// ExportQueryHistory streams the report's history as JSON or XLSX.
func ExportQueryHistory(gate *rag.ConsentGate, exporter *services.ExportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		reportID := c.Param("report_id")
		actorID := middleware.GetActorID(c)
		role := rag.Role(middleware.GetRole(c))

		if err := gate.Authorize(c.Request.Context(), actorID, role, reportID); err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		format := c.DefaultQuery("format", "excel")
		data, err := exporter.BuildExport(c.Request.Context(), reportID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build export", nil)
			return
		}

		if err := exporter.StreamExport(c, data, format); err != nil {
			utils.RespondWithBadRequest(c, "Unsupported export format", nil)
			return
		}
	}
}
