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

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Common domain error codes
const (
	ErrCodeConfiguration      = "CONFIGURATION_ERROR"
	ErrCodeExtractionFailure  = "EXTRACTION_FAILURE"
	ErrCodeEmbeddingFailure   = "EMBEDDING_FAILURE"
	ErrCodeGraphWriteFailure  = "GRAPH_WRITE_FAILURE"
	ErrCodeVectorUnavailable  = "VECTOR_UNAVAILABLE"
	ErrCodeIntegrityViolation = "INTEGRITY_VIOLATION"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAlreadyExists      = "ALREADY_EXISTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// Configuration errors fail fast, before any I/O.
var (
	ErrInvalidChunkConfig   = NewDomainError(ErrCodeConfiguration, "invalid chunking configuration")
	ErrDimensionMismatch    = NewDomainError(ErrCodeConfiguration, "embedding dimension does not match vector store")
	ErrInvalidSearchMode    = NewDomainError(ErrCodeConfiguration, "invalid search mode")
	ErrInvalidEntityType    = NewDomainError(ErrCodeConfiguration, "invalid entity type")
	ErrInvalidTraversalHops = NewDomainError(ErrCodeConfiguration, "max hops must be >= 1")
)

// Not found / conflict errors
var (
	ErrDocumentNotFound      = NewDomainError(ErrCodeNotFound, "document not found")
	ErrChunkNotFound         = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrDocumentAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "document already ingested; pass replace to overwrite")
)

// Backend availability
var (
	ErrVectorStoreUnavailable = NewDomainError(ErrCodeVectorUnavailable, "vector store unavailable")
)

// NewGraphWriteError wraps a core graph persistence failure. Graph write
// failures are fatal for the affected document and trigger rollback.
func NewGraphWriteError(documentID string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeGraphWriteFailure,
		fmt.Sprintf("graph write failed for document %s", documentID), err)
}

// NewIntegrityError reports a detected consistency violation. Violations are
// reported, never silently repaired.
func NewIntegrityError(detail string) *DomainError {
	return NewDomainError(ErrCodeIntegrityViolation, detail)
}
