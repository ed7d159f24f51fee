package routes

import (
	"net/http"
	"time"

	"health-records-platform/middleware"
	"health-records-platform/models"
	"health-records-platform/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateConsentRequest is the body of POST /api/consents.
type CreateConsentRequest struct {
	DoctorID   string    `json:"doctor_id" binding:"required"`
	Permission string    `json:"permission" binding:"required,oneof=READ WRITE SHARE"`
	ValidFrom  time.Time `json:"valid_from" binding:"required"`
	ValidTo    time.Time `json:"valid_to" binding:"required"`
}

// CreateConsent records a patient's grant to one doctor.
func CreateConsent(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateConsentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "doctor_id, permission, valid_from and valid_to are required", nil)
			return
		}
		if !req.ValidTo.After(req.ValidFrom) {
			utils.RespondWithBadRequest(c, "valid_to must be after valid_from", nil)
			return
		}

		consent := models.Consent{
			PatientID:  middleware.GetActorID(c),
			DoctorID:   req.DoctorID,
			Permission: req.Permission,
			ValidFrom:  req.ValidFrom,
			ValidTo:    req.ValidTo,
			CreatedAt:  time.Now(),
		}

		result, err := db.Collection("consents").InsertOne(c.Request.Context(), consent)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create consent", nil)
			return
		}
		consent.ID = result.InsertedID.(primitive.ObjectID)

		c.JSON(http.StatusCreated, consent)
	}
}

// RevokeConsent marks a consent revoked. Revocation takes effect on the
// next access check; it is never undone.
func RevokeConsent(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		consentID, err := primitive.ObjectIDFromHex(c.Param("consent_id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid consent id", nil)
			return
		}
		patientID := middleware.GetActorID(c)
		now := time.Now()

		result, err := db.Collection("consents").UpdateOne(
			c.Request.Context(),
			bson.M{"_id": consentID, "patient_id": patientID, "revoked": false},
			bson.M{"$set": bson.M{"revoked": true, "revoked_at": now}},
		)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to revoke consent", nil)
			return
		}
		if result.MatchedCount == 0 {
			utils.RespondWithNotFound(c, "Consent not found or already revoked")
			return
		}

		c.JSON(http.StatusOK, gin.H{"consent_id": consentID.Hex(), "revoked_at": now})
	}
}

// ListMyConsents returns the calling patient's grants, active and revoked.
func ListMyConsents(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		patientID := middleware.GetActorID(c)

		opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
		cursor, err := db.Collection("consents").Find(c.Request.Context(), bson.M{"patient_id": patientID}, opts)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list consents", nil)
			return
		}
		defer cursor.Close(c.Request.Context())

		var consents []models.Consent
		if err := cursor.All(c.Request.Context(), &consents); err != nil {
			utils.RespondWithInternalError(c, "Failed to decode consents", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{"consents": consents, "count": len(consents)})
	}
}

// CreateAssignmentRequest is the body of POST /api/assignments.
type CreateAssignmentRequest struct {
	PatientID string `json:"patient_id" binding:"required"`
	DoctorID  string `json:"doctor_id" binding:"required"`
	Ward      string `json:"ward"`
}

// CreateAssignment links a doctor to a patient for care coordination.
// Assignments grant no record access.
func CreateAssignment(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAssignmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "patient_id and doctor_id are required", nil)
			return
		}

		assignment := models.Assignment{
			PatientID: req.PatientID,
			DoctorID:  req.DoctorID,
			Ward:      req.Ward,
			CreatedAt: time.Now(),
		}

		result, err := db.Collection("assignments").InsertOne(c.Request.Context(), assignment)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create assignment", nil)
			return
		}
		assignment.ID = result.InsertedID.(primitive.ObjectID)

		c.JSON(http.StatusCreated, assignment)
	}
}

// ListAssignments returns assignments for the calling doctor, or for a
// given patient when the caller is an admin.
func ListAssignments(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := bson.M{}
		if middleware.IsAdmin(c) {
			if patientID := c.Query("patient_id"); patientID != "" {
				filter["patient_id"] = patientID
			}
		} else {
			filter["doctor_id"] = middleware.GetActorID(c)
		}

		opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
		cursor, err := db.Collection("assignments").Find(c.Request.Context(), filter, opts)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list assignments", nil)
			return
		}
		defer cursor.Close(c.Request.Context())

		var assignments []models.Assignment
		if err := cursor.All(c.Request.Context(), &assignments); err != nil {
			utils.RespondWithInternalError(c, "Failed to decode assignments", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{"assignments": assignments, "count": len(assignments)})
	}
}
