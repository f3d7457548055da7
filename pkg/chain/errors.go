package chain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ledger subsystem. Callers branch with
// errors.Is; the concrete wrapper types below carry detail.
var (
	// ErrAppendConflict means a concurrent writer claimed the sequence
	// index first. The losing append persisted nothing and is safe to
	// retry from a fresh read of the tail.
	ErrAppendConflict = errors.New("append conflict: sequence index already claimed")

	// ErrTamperDetected means a block's stored digest does not match its
	// recomputed content.
	ErrTamperDetected = errors.New("tamper detected: digest does not match content")

	// ErrBrokenLink means a block's previous_digest does not match its
	// predecessor's stored digest.
	ErrBrokenLink = errors.New("broken link: previous digest does not match predecessor")

	// ErrSignatureInvalid means a block signature failed verification.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrStoreUnavailable means the block store could not be reached.
	ErrStoreUnavailable = errors.New("block store unavailable")

	// ErrNotFound means no block matches the query.
	ErrNotFound = errors.New("block not found")
)

// AppendConflictError reports a lost append race at a specific sequence
// index. Unwraps to ErrAppendConflict.
type AppendConflictError struct {
	Sequence uint64
	Cause    error
}

func (e *AppendConflictError) Error() string {
	return fmt.Sprintf("append conflict at sequence %d: %v", e.Sequence, e.Cause)
}

func (e *AppendConflictError) Unwrap() error { return ErrAppendConflict }

// StoreError wraps a storage failure with the operation that hit it.
// Unwraps to ErrStoreUnavailable.
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error { return ErrStoreUnavailable }
