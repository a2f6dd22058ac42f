// Package errkind holds the error taxonomy shared by every ez-reset
// package: transport failures, D4/END4 protocol violations, malformed
// on-wire structures, an unresolvable printer model, and END4-specific
// framing problems.
package errkind

import "github.com/gravitational/trace"

// Code names one of the error kinds callers branch on.
type Code string

const (
	Transport    Code = "transport"
	Protocol     Code = "protocol"
	Format       Code = "format"
	UnknownModel Code = "unknown_model"
	Backend      Code = "backend"
)

// Error is a typed, wrapped error. It mirrors goserial's Error{msg, err}
// shape, with a Code added so callers can branch on error kind without
// string matching.
type Error struct {
	code Code
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.msg == "" {
		return string(e.code)
	}
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }
func (e *Error) Code() Code    { return e.code }

func newErr(code Code, msg string, err error) *Error {
	return &Error{code: code, msg: msg, err: err}
}

// New builds a bare Error of the given kind with no wrapped cause.
func New(code Code, msg string) error {
	return trace.Wrap(newErr(code, msg, nil))
}

// Wrap annotates err as the given kind, adding call-site context via
// gravitational/trace the way the teleport bpf package does.
func Wrap(code Code, msg string, err error) error {
	if err == nil {
		return nil
	}
	return trace.Wrap(newErr(code, msg, err))
}

// TransportErr wraps err as a TransportError.
func TransportErr(msg string, err error) error { return Wrap(Transport, msg, err) }

// ProtocolErr wraps err (or builds a bare error if err is nil) as a
// ProtocolError.
func ProtocolErr(msg string, err error) error {
	if err == nil {
		return New(Protocol, msg)
	}
	return Wrap(Protocol, msg, err)
}

// FormatErr wraps err (or builds a bare error if err is nil) as a
// FormatError.
func FormatErr(msg string, err error) error {
	if err == nil {
		return New(Format, msg)
	}
	return Wrap(Format, msg, err)
}

// UnknownModelErr reports that model could not be resolved in the device
// registry.
func UnknownModelErr(model string) error {
	return New(UnknownModel, "unknown printer model: "+model)
}

// BackendErr wraps err (or builds a bare error if err is nil) as a
// BackendError.
func BackendErr(msg string, err error) error {
	if err == nil {
		return New(Backend, msg)
	}
	return Wrap(Backend, msg, err)
}

// OfCode extracts the Code from err, walking Unwrap chains. Returns ""
// if err (or nothing in its chain) carries a Code.
func OfCode(err error) Code {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ""
}
