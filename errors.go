package payable

import (
	"errors"
	"fmt"

	"github.com/xraph/payable/posting"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("payable: not found")
	ErrAlreadyExists = errors.New("payable: already exists")
	ErrInvalidInput  = errors.New("payable: invalid input")

	// Input errors
	ErrDocumentEmpty   = errors.New("payable: document reference is empty")
	ErrUnknownVendor   = errors.New("payable: unknown vendor")
	ErrRunTerminal     = errors.New("payable: run already terminal")
	ErrNoVendorHistory = errors.New("payable: no history for vendor")

	// Run errors
	ErrRunNotFound = errors.New("payable: run not found")

	// Provider errors
	ErrProviderFailure       = errors.New("payable: document provider failure")
	ErrProviderNotConfigured = errors.New("payable: document provider not configured")

	// Posting errors
	ErrUnbalancedPostings = posting.ErrUnbalanced

	// Engine errors
	ErrEngineClosed      = errors.New("payable: engine is closed")
	ErrArchiveBufferFull = errors.New("payable: archive buffer full")

	// Store errors
	ErrStoreNotReady     = errors.New("payable: store not ready")
	ErrStoreClosed       = errors.New("payable: store is closed")
	ErrTransactionFailed = errors.New("payable: transaction failed")
	ErrMigrationFailed   = errors.New("payable: migration failed")

	// Audit errors
	ErrAuditNotFound = errors.New("payable: audit record not found")
)

// StageError wraps an unexpected failure inside a pipeline stage. The run it
// belongs to stops without a decision.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("payable: stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "payable: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("payable: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrAuditNotFound) ||
		errors.Is(err, ErrNoVendorHistory)
}

// IsInputError returns true if the error was caused by a malformed or
// unusable request rather than a system fault.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrDocumentEmpty) ||
		errors.Is(err, ErrUnknownVendor) ||
		errors.Is(err, ErrRunTerminal)
}

// IsProviderError returns true if the error came from the external document
// provider.
func IsProviderError(err error) bool {
	return errors.Is(err, ErrProviderFailure) ||
		errors.Is(err, ErrProviderNotConfigured)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrArchiveBufferFull) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrProviderFailure)
}
