package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type RoleMiddleware struct{}

func NewRoleMiddleware() *RoleMiddleware {
	return &RoleMiddleware{}
}

func (r *RoleMiddleware) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		if role == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error_code": "unauthorized",
				"message":    "Actor role not found",
			})
			c.Abort()
			return
		}

		hasRole := false
		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				hasRole = true
				break
			}
		}

		if !hasRole {
			c.JSON(http.StatusForbidden, gin.H{
				"error_code": "forbidden",
				"message":    "Insufficient permissions",
				"details": gin.H{
					"required_roles": allowedRoles,
					"actor_role":     role,
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (r *RoleMiddleware) AdminGuard() gin.HandlerFunc {
	return r.RequireRole("admin")
}

// PatientGuard restricts a route to patients.
func (r *RoleMiddleware) PatientGuard() gin.HandlerFunc {
	return r.RequireRole("patient")
}

// CareGuard allows any authenticated care participant. Route handlers still
// run the consent gate; this only filters out unknown roles early.
func (r *RoleMiddleware) CareGuard() gin.HandlerFunc {
	return r.RequireRole("patient", "doctor", "admin")
}

// Helper function to check if actor is admin
func IsAdmin(c *gin.Context) bool {
	return GetRole(c) == "admin"
}

// Helper function to check if actor is a patient
func IsPatient(c *gin.Context) bool {
	return GetRole(c) == "patient"
}

// Helper function to check if actor is a doctor
func IsDoctor(c *gin.Context) bool {
	return GetRole(c) == "doctor"
}
