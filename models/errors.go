package models

import (
	"errors"
	"fmt"
)

// Error codes for every failure the harvest pipeline distinguishes.
const (
	ErrCodeTransientRender = "TRANSIENT_RENDER"
	ErrCodePermanentRender = "PERMANENT_RENDER"
	ErrCodeExtractionMiss  = "EXTRACTION_MISS"
	ErrCodeFetch           = "FETCH_FAILED"
	ErrCodeDiscovery       = "DISCOVERY_FAILED"
	ErrCodeBrowserCrash    = "BROWSER_CRASH"
)

// ErrorDetail is the structured error carried in pass reports.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HarvestError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type HarvestError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *HarvestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *HarvestError) Unwrap() error {
	return e.Err
}

// NewHarvestError creates a new HarvestError.
func NewHarvestError(code, message string, err error) *HarvestError {
	return &HarvestError{Code: code, Message: message, Err: err}
}

// DetailOf converts any error to an ErrorDetail. Errors without a code get
// an empty one.
func DetailOf(err error) *ErrorDetail {
	var he *HarvestError
	if errors.As(err, &he) {
		return &ErrorDetail{Code: he.Code, Message: err.Error()}
	}
	return &ErrorDetail{Message: err.Error()}
}

// CodeOf returns the code of the first HarvestError in err's chain, or "".
func CodeOf(err error) string {
	var he *HarvestError
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

// IsTransient reports whether err is a timeout-class render failure that
// may be retried with backoff.
func IsTransient(err error) bool {
	return CodeOf(err) == ErrCodeTransientRender
}
