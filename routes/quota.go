package routes

import (
	"net/http"

	"health-records-platform/internal/ai"
	"health-records-platform/middleware"
	"health-records-platform/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// GetMyQuota returns the caller's daily question usage.
func GetMyQuota(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := middleware.GetActorID(c)

		quota, err := ai.GetActorQuotaStatus(c.Request.Context(), actorID, db)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load quota", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"actor_id":        quota.ActorID,
			"daily_limit":     quota.DailyQuestionLimit,
			"questions_today": quota.QuestionsToday,
			"remaining":       quota.DailyQuestionLimit - quota.QuestionsToday,
		})
	}
}

// SetQuotaRequest is the body of PUT /api/quota/:actor_id.
type SetQuotaRequest struct {
	DailyLimit int `json:"daily_limit" binding:"required,min=1"`
}

// SetActorQuota overrides an actor's daily question limit. Admin only.
func SetActorQuota(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.Param("actor_id")

		var req SetQuotaRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "daily_limit must be a positive integer", nil)
			return
		}

		if err := ai.SetActorQuotaLimit(c.Request.Context(), actorID, req.DailyLimit, db); err != nil {
			utils.RespondWithInternalError(c, "Failed to update quota", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{"actor_id": actorID, "daily_limit": req.DailyLimit})
	}
}
