package usb

import (
	"errors"
	"fmt"
)

// Kind is a closed taxonomy of USB operation outcomes. Every driver status
// code maps onto exactly one Kind; an unrecognized code becomes KindOther.
type Kind int

const (
	KindIO Kind = iota
	KindInvalidParam
	KindAccess
	KindNoDevice
	KindNotFound
	KindBusy
	KindTimeout
	KindOverflow
	KindPipe
	KindInterrupted
	KindNoMem
	KindNotSupported
	KindCancelled
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindInvalidParam:
		return "invalid_param"
	case KindAccess:
		return "access"
	case KindNoDevice:
		return "no_device"
	case KindNotFound:
		return "not_found"
	case KindBusy:
		return "busy"
	case KindTimeout:
		return "timeout"
	case KindOverflow:
		return "overflow"
	case KindPipe:
		return "pipe"
	case KindInterrupted:
		return "interrupted"
	case KindNoMem:
		return "no_mem"
	case KindNotSupported:
		return "not_supported"
	case KindCancelled:
		return "cancelled"
	default:
		return "other"
	}
}

// Error is the uniform result type every operation in this package returns
// on failure. Op names the failing operation; Kind classifies it; Err, when
// set, carries the underlying driver or wrapped cause.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != KindOther {
		msg = e.Kind.String()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, &usb.Error{Kind: usb.KindTimeout}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapErr(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Message: err.Error(), Err: err}
}

// KindOf extracts the Kind carried by err, if any; ok is false for errors
// that did not originate from this package.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindOther, false
}
