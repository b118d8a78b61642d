package domain

import (
	"errors"
	"fmt"
)

// Infrastructure sentinels, wrapped by the store and cache implementations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")
)

// ErrorKind classifies an engine error per the resolution error taxonomy.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindState         ErrorKind = "state"
	KindAuthorization ErrorKind = "authorization"
	KindResource      ErrorKind = "resource"
	KindArithmetic    ErrorKind = "arithmetic"
)

// Recovery is the strategy hint the caller should apply to a failed
// operation. The engine performs no internal retries.
type Recovery string

const (
	RecoveryRetry  Recovery = "retry"
	RecoveryAbort  Recovery = "abort"
	RecoverySkip   Recovery = "skip"
	RecoveryManual Recovery = "manual"
)

// Machine-readable error codes carried by Error.Code.
const (
	CodeNotYetClosed          = "not_yet_closed"
	CodeAlreadyResolved       = "already_resolved"
	CodeNoOracleResult        = "no_oracle_result"
	CodeOracleUnavailable     = "oracle_unavailable"
	CodeUnknownProvider       = "unknown_provider"
	CodeNonPositivePrice      = "non_positive_price"
	CodeNonPositiveThreshold  = "non_positive_threshold"
	CodeEmptyOutcome          = "empty_outcome"
	CodeInvalidOutcome        = "invalid_outcome"
	CodeInvalidComparator     = "invalid_comparator"
	CodeInvalidAddress        = "invalid_address"
	CodeMarketNotActive       = "market_not_active"
	CodeMarketCancelled       = "market_cancelled"
	CodeNotAdmin              = "not_admin"
	CodeStakeBelowThreshold   = "stake_below_threshold"
	CodeThresholdBelowMin     = "threshold_below_minimum"
	CodeThresholdExceedsMax   = "threshold_exceeds_maximum"
	CodeInvalidExtensionDays  = "invalid_extension_days"
	CodeExtensionDaysExceeded = "extension_days_exceeded"
	CodeExtensionNotAllowed   = "extension_not_allowed"
	CodeFeeAlreadyCollected   = "fee_already_collected"
	CodeDisputePending        = "dispute_pending"
	CodeAlreadyClaimed        = "already_claimed"
	CodePayoutOverflow        = "payout_overflow"
	CodeReentrantCall         = "reentrant_call"
)

// Error is the structured error type returned by every engine operation. It
// carries a machine code, a human message, and a recovery-strategy tag that
// the calling layer acts on.
type Error struct {
	Kind     ErrorKind
	Code     string
	Message  string
	Recovery Recovery
	Err      error // wrapped cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Code, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a validation error. Validation failures abort the whole
// operation before any state write.
func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg, Recovery: RecoveryAbort}
}

// State builds a lifecycle error (wrong market state for the operation).
func State(code, msg string) *Error {
	return &Error{Kind: KindState, Code: code, Message: msg, Recovery: RecoverySkip}
}

// Authorization builds an error for a non-privileged actor attempting a
// privileged operation.
func Authorization(code, msg string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: msg, Recovery: RecoveryAbort}
}

// Resource builds an error for an unavailable external collaborator. Callers
// may retry; the engine itself never does.
func Resource(code, msg string, cause error) *Error {
	return &Error{Kind: KindResource, Code: code, Message: msg, Recovery: RecoveryRetry, Err: cause}
}

// Arithmetic builds an error for a computed value outside configured bounds.
func Arithmetic(code, msg string) *Error {
	return &Error{Kind: KindArithmetic, Code: code, Message: msg, Recovery: RecoveryManual}
}

// IsKind reports whether err (or anything it wraps) is a *Error of the given
// kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// CodeOf extracts the machine code from err, or "" when err carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
