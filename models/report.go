package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Report represents one uploaded medical report and its processing state
type Report struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReportID        string             `bson:"report_id" json:"report_id"`
	PatientID       string             `bson:"patient_id" json:"patient_id"`
	Filename        string             `bson:"filename" json:"filename"`
	OriginalName    string             `bson:"original_name" json:"original_name"`
	FilePath        string             `bson:"file_path" json:"file_path"`
	FileHash        string             `bson:"file_hash" json:"file_hash"` // For deduplication
	Status          string             `bson:"status" json:"status"`
	ErrorMessage    string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	Pages           int                `bson:"pages" json:"pages"`
	ChunkCount      int                `bson:"chunk_count" json:"chunk_count"`
	Summary         string             `bson:"summary,omitempty" json:"summary,omitempty"`
	MedicalInfo     *MedicalInfo       `bson:"medical_info,omitempty" json:"medical_info,omitempty"`
	ReindexRequired bool               `bson:"reindex_required" json:"reindex_required"`
	UploadedAt      time.Time          `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt     *time.Time         `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// Report processing status constants
const (
	ReportStatusPending    = "pending"
	ReportStatusProcessing = "processing"
	ReportStatusProcessed  = "processed"
	ReportStatusFailed     = "failed"
)

// NewReportID generates an external report identifier of the form
// RPT-<timestamp>-<8 uppercase uuid chars>.
func NewReportID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("RPT-%s-%s", now.Format("20060102150405"), suffix)
}

// UploadResponse is returned after a successful report upload
type UploadResponse struct {
	ReportID string `json:"report_id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	TaskID   string `json:"task_id,omitempty"`
}
