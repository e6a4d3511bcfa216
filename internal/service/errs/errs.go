package errs

import "errors"

// Code classifies a service error.
type Code int

const (
	ErrValidation Code = iota + 1
	ErrNotFound
	ErrConfiguration
	ErrDispatch
	ErrStore
	ErrDecode
)

func (c Code) Error() string {
	switch c {
	case ErrValidation:
		return "validation error"
	case ErrNotFound:
		return "not found"
	case ErrConfiguration:
		return "configuration error"
	case ErrDispatch:
		return "dispatch error"
	case ErrStore:
		return "store error"
	case ErrDecode:
		return "decode error"
	default:
		return "unknown error"
	}
}

// Error carries a code, a human-readable message, the failing operation and its cause.
// Msg is safe to show to clients for ErrValidation and ErrNotFound only.
type Error struct {
	Code  Code
	Msg   string
	Op    string
	Cause error
}

func (e *Error) Error() string {
	base := e.Code.Error()
	if e.Msg != "" {
		base += ": " + e.Msg
	}
	if e.Op != "" {
		base = e.Op + ": " + base
	}
	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Is reports a match against a bare Code, so errors.Is(err, errs.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	if code, ok := target.(Code); ok {
		return e.Code == code
	}

	return false
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with the given options applied.
func New(code Code, opts ...func(*Error)) *Error {
	err := &Error{Code: code}
	for _, opt := range opts {
		opt(err)
	}

	return err
}

func WithMsg(msg string) func(*Error) {
	return func(e *Error) { e.Msg = msg }
}

func WithOp(op string) func(*Error) {
	return func(e *Error) { e.Op = op }
}

func WithCause(err error) func(*Error) {
	return func(e *Error) { e.Cause = err }
}

// Message returns the client-facing message of err when it has one.
func Message(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg, true
	}

	return "", false
}

// CodeOf returns the code of the outermost Error in the chain, or 0.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return 0
}
