package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches DomainErrors by code so wrapped instances compare equal to
// their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeInvalidDocument      = "INVALID_DOCUMENT"
	ErrCodeEmbeddingUnavailable = "EMBEDDING_UNAVAILABLE"
	ErrCodeBuildInProgress      = "BUILD_IN_PROGRESS"
	ErrCodeCorruptStore         = "CORRUPT_STORE"
	ErrCodeTierUnavailable      = "TIER_UNAVAILABLE"
	ErrCodeTierTimeout          = "TIER_TIMEOUT"
	ErrCodeExhausted            = "EXHAUSTED"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// Build-time errors
var (
	// ErrInvalidDocument marks a source document that is empty or not
	// decodable text. Builds record the failure and continue with the
	// remaining documents.
	ErrInvalidDocument = NewDomainError(ErrCodeInvalidDocument, "document is empty or not decodable text")

	// ErrEmbeddingUnavailable means the embedding model or service cannot
	// be reached. Fatal for index builds: no partial index is written.
	ErrEmbeddingUnavailable = NewDomainError(ErrCodeEmbeddingUnavailable, "embedding provider unavailable")

	// ErrBuildInProgress rejects a build while another build holds the
	// single-writer lock.
	ErrBuildInProgress = NewDomainError(ErrCodeBuildInProgress, "an index build is already in progress")

	// ErrCorruptStore means the persisted store failed its referential
	// integrity check at load. Partial data is never served.
	ErrCorruptStore = NewDomainError(ErrCodeCorruptStore, "knowledge store failed integrity check")
)

// Query-time errors
var (
	// ErrTierUnavailable drives fallback to the next tier; it is not
	// surfaced to the caller unless all tiers are exhausted.
	ErrTierUnavailable = NewDomainError(ErrCodeTierUnavailable, "generation tier unavailable")

	// ErrTierTimeout marks a tier attempt that exceeded its deadline.
	ErrTierTimeout = NewDomainError(ErrCodeTierTimeout, "generation tier timed out")

	// ErrExhausted is the terminal error after every configured tier has
	// failed. The caller decides whether to prompt for a retry.
	ErrExhausted = NewDomainError(ErrCodeExhausted, "all generation tiers failed")
)

// Lookup errors
var (
	ErrPassageNotFound = NewDomainError(ErrCodeNotFound, "passage not found")
	ErrStoreNotFound   = NewDomainError(ErrCodeNotFound, "knowledge store not found")
)
