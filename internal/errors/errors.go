package errors

import (
	"fmt"
	"time"
)

// ErrorCode classifies extraction failures for structured reporting.
type ErrorCode string

const (
	// Fatal input errors abort the run before any output is produced.
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"

	// Recoverable, page-scoped errors.
	ErrorPageExtraction ErrorCode = "PAGE_EXTRACTION_FAILED"
	ErrorOCRFailed      ErrorCode = "OCR_FAILED"
	ErrorOCRUnavailable ErrorCode = "OCR_UNAVAILABLE"
	ErrorTableEngine    ErrorCode = "TABLE_ENGINE_FAILED"

	// Recoverable, session-scoped errors.
	ErrorSessionIO ErrorCode = "SESSION_IO_FAILED"
)

// ExtractionError is a structured error carried through page records,
// cleanup stats and the run manifest.
type ExtractionError struct {
	Code      ErrorCode
	Message   string
	SessionID string
	Page      int
	Timestamp time.Time
	Cause     error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether the error must abort the run.
func (e *ExtractionError) IsFatal() bool {
	return e.Code == ErrorInvalidInput
}

// Factory functions for common errors

func NewInvalidInputError(source string, cause error) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorInvalidInput,
		Message:   fmt.Sprintf("source is not a readable PDF document: %s", source),
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewPageExtractionError(page int, cause error) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorPageExtraction,
		Message:   fmt.Sprintf("failed to extract page %d", page),
		Page:      page,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewOCRFailedError(page int, cause error) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR escalation failed on page %d", page),
		Page:      page,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewOCRUnavailableError(page int) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorOCRUnavailable,
		Message:   fmt.Sprintf("OCR capability unavailable, kept native text on page %d", page),
		Page:      page,
		Timestamp: time.Now(),
	}
}

func NewTableEngineError(page int, engine string, cause error) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorTableEngine,
		Message:   fmt.Sprintf("table engine %q failed on page %d", engine, page),
		Page:      page,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewSessionIOError(sessionID string, cause error) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorSessionIO,
		Message:   fmt.Sprintf("session I/O failed for %s", sessionID),
		SessionID: sessionID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts the error to a flat map for manifest serialization.
func (e *ExtractionError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}
	if e.Page > 0 {
		result["page"] = e.Page
	}
	if e.SessionID != "" {
		result["session_id"] = e.SessionID
	}
	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}
	return result
}
