// Package xerrors implements the six error kinds from spec §7 as typed,
// wrapped errors whose kind can be read back with As or KindOf while still
// printing (and logging, via %w) the underlying cause — the same
// fmt.Errorf("...: %w", err) convention the teacher uses everywhere, with
// the kind made explicit. No stage in this module currently branches on it.
package xerrors

import "fmt"

// Kind enumerates the error taxonomy of spec §7.
type Kind int

const (
	// KindRPC is a transport/upstream failure. No stage in this module
	// retries on it; the error is returned or logged like any other.
	KindRPC Kind = iota
	// KindDecode is a malformed trace/receipt/ABI output. The affected
	// tx/group is dropped with a recorded reason; upstream is not retried.
	KindDecode
	// KindValidation is a contract violation (missing factory, bad
	// selector).
	KindValidation
	// KindNotFound is an absent receipt, block, or snapshot.
	KindNotFound
	// KindTimeout is a simulation or RPC timeout.
	KindTimeout
	// KindOther is unclassified; never used for control flow.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindRPC:
		return "rpc_error"
	case KindDecode:
		return "decode_error"
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout_error"
	default:
		return "other"
	}
}

// Error is a typed error carrying a Kind, a human-readable message, and the
// wrapped cause (if any).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, &xerrors.Error{Kind: xerrors.KindDecode}) style checks by comparing on
// Kind when the target is also a *Error with a zero Cause used purely as a
// kind sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// RPCf constructs a KindRPC error.
func RPCf(cause error, format string, args ...interface{}) *Error {
	return newf(KindRPC, cause, format, args...)
}

// Decodef constructs a KindDecode error.
func Decodef(cause error, format string, args ...interface{}) *Error {
	return newf(KindDecode, cause, format, args...)
}

// Validationf constructs a KindValidation error.
func Validationf(cause error, format string, args ...interface{}) *Error {
	return newf(KindValidation, cause, format, args...)
}

// NotFoundf constructs a KindNotFound error.
func NotFoundf(cause error, format string, args ...interface{}) *Error {
	return newf(KindNotFound, cause, format, args...)
}

// Timeoutf constructs a KindTimeout error.
func Timeoutf(cause error, format string, args ...interface{}) *Error {
	return newf(KindTimeout, cause, format, args...)
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, defaulting
// to KindOther otherwise.
func KindOf(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// As is a hand-rolled counterpart of errors.As specialized for *Error, so
// callers don't need a second import just to unwrap a Kind. It follows
// single-error Unwrap chains only.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
