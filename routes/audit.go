package routes

import (
	"net/http"
	"strconv"
	"time"

	"health-records-platform/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
)

// QueryAuditLogs returns filtered, paginated audit events. Admin only.
func QueryAuditLogs(auditor *models.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.Query("actor_id")
		action := c.Query("action")
		resource := c.Query("resource")
		resourceID := c.Query("resource_id")
		startTimeStr := c.Query("start_time")
		endTimeStr := c.Query("end_time")

		page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
		if err != nil || page < 1 {
			page = 1
		}
		pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
		if err != nil || pageSize < 1 || pageSize > 100 {
			pageSize = 20
		}

		filter := bson.M{}
		if actorID != "" {
			filter["actor_id"] = actorID
		}
		if action != "" {
			filter["action"] = action
		}
		if resource != "" {
			filter["resource"] = resource
		}
		if resourceID != "" {
			filter["resource_id"] = resourceID
		}

		if startTimeStr != "" || endTimeStr != "" {
			timeFilter := bson.M{}
			if startTimeStr != "" {
				if startTime, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
					timeFilter["$gte"] = startTime
				}
			}
			if endTimeStr != "" {
				if endTime, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
					timeFilter["$lte"] = endTime
				}
			}
			if len(timeFilter) > 0 {
				filter["timestamp"] = timeFilter
			}
		}

		events, total, err := auditor.QueryAuditLogs(filter, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error_code": "query_failed",
				"message":    "Failed to query audit logs",
			})
			return
		}

		totalPages := (total + int64(pageSize) - 1) / int64(pageSize)

		c.JSON(http.StatusOK, gin.H{
			"events": events,
			"pagination": gin.H{
				"page":        page,
				"page_size":   pageSize,
				"total":       total,
				"total_pages": totalPages,
			},
		})
	}
}

// VerifyAuditChain checks hash-chain integrity for one actor's events.
func VerifyAuditChain(auditor *models.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.Param("actor_id")

		isValid, err := auditor.VerifyChain(actorID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error_code": "verification_failed",
				"message":    "Failed to verify audit chain",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"actor_id": actorID,
			"is_valid": isValid,
		})
	}
}
