package analysis

import (
	"errors"
	"fmt"
)

// Failure taxonomy of the analysis pipeline. All of these are recoverable at
// the orchestration boundary; stages that fail with one of them leave case
// state untouched.
var (
	// ErrCaseNotFound indicates the requested case does not exist.
	ErrCaseNotFound = errors.New("case not found")
	// ErrEvidenceNotFound indicates a backing evidence object is absent from storage.
	ErrEvidenceNotFound = errors.New("evidence not found")
	// ErrAnalysisInProgress indicates another analysis is already running for the case.
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	// ErrServiceUnreachable indicates a transport-level failure (or timeout) talking
	// to the re-id service.
	ErrServiceUnreachable = errors.New("re-id service unreachable")
	// ErrMalformedResponse indicates the service's success body could not be decoded.
	ErrMalformedResponse = errors.New("malformed re-id service response")
	// ErrPersistence indicates the result/status commit failed after the external
	// work was already spent.
	ErrPersistence = errors.New("persistence failure")
)

// ServiceError carries the upstream error body verbatim when the re-id service
// answers with a non-success status.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("re-id service error (HTTP %d): %s", e.StatusCode, e.Body)
}
