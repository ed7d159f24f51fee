package middleware

import (
	"strings"
	"time"

	"health-records-platform/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditMiddleware records every API request as an immutable audit event.
// Consent denials carry their internal clause here and nowhere else visible.
func AuditMiddleware(auditor *models.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("request_id")
		if requestID == "" {
			requestID = uuid.NewString()
			c.Set("request_id", requestID)
		}

		c.Next()

		// Log after request completes, off the response path
		auditor.LogAsync(createAuditEvent(c, requestID))
	}
}

// createAuditEvent creates an audit event from the request context
func createAuditEvent(c *gin.Context, requestID string) *models.AuditEvent {
	event := &models.AuditEvent{
		ActorID:   GetActorID(c),
		Role:      GetRole(c),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: requestID,
		Success:   c.Writer.Status() < 400,
		CreatedAt: time.Now(),
	}

	event.Action = mapRequestToAction(c.Request.Method, c.Request.URL.Path)
	event.Resource, event.ResourceID = extractResourceFromPath(c.Request.URL.Path)

	if !event.Success {
		event.ErrorCode = c.GetString("error_code")
		// internal denial clause, set by the error responder on 403s
		event.DenialClause = c.GetString("denial_clause")
	}

	return event
}

// mapRequestToAction maps a request to an audit action
func mapRequestToAction(method, path string) string {
	if strings.Contains(path, "/ask") {
		return "QUERY"
	}
	if strings.Contains(path, "/revoke") {
		return "REVOKE"
	}
	switch method {
	case "GET":
		return "READ"
	case "POST":
		return "CREATE"
	case "PUT", "PATCH":
		return "UPDATE"
	case "DELETE":
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// extractResourceFromPath extracts resource type and ID from URL path
func extractResourceFromPath(path string) (string, string) {
	switch {
	case strings.Contains(path, "/api/chat/history"):
		return "history", extractReportIDFromPath(path)
	case strings.Contains(path, "/api/chat"):
		return "query", ""
	case strings.Contains(path, "/api/reports"):
		return "report", extractReportIDFromPath(path)
	case strings.Contains(path, "/api/consents"):
		return "consent", ""
	case strings.Contains(path, "/api/assignments"):
		return "assignment", ""
	case strings.Contains(path, "/api/audit"):
		return "audit", ""
	default:
		return "unknown", ""
	}
}

// extractReportIDFromPath finds a report identifier in the URL path
func extractReportIDFromPath(path string) string {
	for _, part := range strings.Split(path, "/") {
		if strings.HasPrefix(part, "RPT-") {
			return part
		}
	}
	return ""
}
