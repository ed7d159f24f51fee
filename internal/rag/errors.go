package rag

import (
	"errors"
	"fmt"
	"net/http"
)

// Category groups errors by how the caller should react to them.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryAuthorization Category = "authorization"
	CategoryNotFound      Category = "not_found"
	CategoryDependency    Category = "dependency"
	CategoryIntegrity     Category = "data_integrity"
)

// Stable machine-readable error codes returned to callers.
const (
	CodeEmptyInput         = "empty_input"
	CodeQuestionTooShort   = "question_too_short"
	CodeInvalidArgument    = "invalid_argument"
	CodeNotOwner           = "not_owner"
	CodeConsentDenied      = "consent_denied"
	CodeIndexNotFound      = "index_not_found"
	CodeReportNotFound     = "report_not_found"
	CodeReportNotProcessed = "report_not_processed"
	CodeEmbeddingService   = "embedding_service_error"
	CodeGenerationService  = "generation_service_error"
	CodeDimensionMismatch  = "dimension_mismatch"
	CodeEmptyIndex         = "empty_index"
)

// Denial clauses. Logged for audit only; all consent denials look identical
// to the caller so that revocation timelines cannot be probed from outside.
const (
	ClauseNoActiveConsent      = "no_active_consent"
	ClausePermissionNotGranted = "permission_not_granted"
	ClauseConsentExpired       = "consent_expired"
)

// Error is the typed error returned by every component of the retrieval core.
type Error struct {
	Code     string
	Category Category
	Message  string
	Clause   string // set only on authorization denials, never serialized to callers
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code string, category Category, message string) *Error {
	return &Error{Code: code, Category: category, Message: message}
}

// ErrEmptyInput reports empty or whitespace-only chunker input.
func ErrEmptyInput() *Error {
	return newError(CodeEmptyInput, CategoryValidation, "input text is empty")
}

func ErrQuestionTooShort(minLen int) *Error {
	return newError(CodeQuestionTooShort, CategoryValidation,
		fmt.Sprintf("question must be at least %d characters", minLen))
}

func ErrInvalidArgument(message string) *Error {
	return newError(CodeInvalidArgument, CategoryValidation, message)
}

func ErrNotOwner() *Error {
	return newError(CodeNotOwner, CategoryAuthorization, "report belongs to another patient")
}

// ErrConsentDenied carries the violated clause internally. The message is the
// same for every clause on purpose.
func ErrConsentDenied(clause string) *Error {
	e := newError(CodeConsentDenied, CategoryAuthorization, "no valid consent for this report")
	e.Clause = clause
	return e
}

func ErrIndexNotFound(reportID string) *Error {
	return newError(CodeIndexNotFound, CategoryNotFound,
		fmt.Sprintf("no index stored for report %s", reportID))
}

func ErrReportNotFound(reportID string) *Error {
	return newError(CodeReportNotFound, CategoryNotFound,
		fmt.Sprintf("report %s does not exist", reportID))
}

func ErrReportNotProcessed(reportID string) *Error {
	return newError(CodeReportNotProcessed, CategoryNotFound,
		fmt.Sprintf("report %s has not been processed yet", reportID))
}

func ErrEmbeddingService(err error) *Error {
	e := newError(CodeEmbeddingService, CategoryDependency, "embedding service failed")
	e.Err = err
	return e
}

func ErrGenerationService(err error) *Error {
	e := newError(CodeGenerationService, CategoryDependency, "generation service failed")
	e.Err = err
	return e
}

func ErrDimensionMismatch(want, got int) *Error {
	return newError(CodeDimensionMismatch, CategoryIntegrity,
		fmt.Sprintf("expected vector dimension %d, got %d", want, got))
}

func ErrEmptyIndex() *Error {
	return newError(CodeEmptyIndex, CategoryIntegrity, "index must contain at least one passage")
}

// CodeOf returns the machine code of err, or empty string for untyped errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// CategoryOf returns the category of err, or empty string for untyped errors.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

// ClauseOf returns the internal denial clause for audit logging.
func ClauseOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Clause
	}
	return ""
}

// HTTPStatus maps an error to the status code its category implies.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Category {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryAuthorization:
		return http.StatusForbidden
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
