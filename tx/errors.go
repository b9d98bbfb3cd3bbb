package tx

import "errors"

// Kind is a stable category for programmatic error handling.
//
// These categories are intended to remain stable across versions. Callers
// should branch on Kind/RuleID rather than matching error strings; Error()
// strings are human-readable and may evolve.
//
// Recovery semantics per kind:
//   - Malformed, Unresolved, TypeMismatch: build-time, locally recoverable.
//   - Violation: non-retryable, aborts the protocol instance.
//   - Signature: pre-notarization, recoverable by restarting from
//     proposal construction.
//   - DoubleSpend: irrecoverable for the exact input set that was submitted.
type Kind string

const (
	KindMalformed    Kind = "Malformed"
	KindUnresolved   Kind = "Unresolved"
	KindTypeMismatch Kind = "TypeMismatch"
	KindViolation    Kind = "Violation"
	KindSignature    Kind = "Signature"
	KindDoubleSpend  Kind = "DoubleSpend"
	KindWire         Kind = "Wire"
	KindInternal     Kind = "Internal"
)

// Error is the protocol core's structured error type.
//
// RuleID is a stable identifier (e.g., TXF-BLD-101, TXF-VAL-211,
// TXF-SIG-201) that names the violated invariant or validation rule.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError builds a structured error. Exported so collaborating packages
// (resolver, notary, flows) share one taxonomy.
func NewError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

// WrapError builds a structured error wrapping a cause.
func WrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return NewError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
