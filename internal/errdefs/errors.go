package errdefs

import (
	"errors"
	"fmt"
)

var (
	ErrConfig    = errors.New("configuration error")
	ErrScan      = errors.New("scan error")
	ErrArchive   = errors.New("archive error")
	ErrAuth      = errors.New("authentication error")
	ErrNotFound  = errors.New("not found")
	ErrServer    = errors.New("server error")
	ErrTransport = errors.New("transport error")
)

// Error is a classified failure of one pipeline stage. Kind is one of the
// sentinels above, so errors.Is(err, ErrAuth) works through any wrapping.
type Error struct {
	Kind   error
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func Config(op, format string, args ...any) error {
	return &Error{Kind: ErrConfig, Op: op, Err: fmt.Errorf(format, args...)}
}

func Scan(op string, err error) error {
	return &Error{Kind: ErrScan, Op: op, Err: err}
}

func Archive(op string, err error) error {
	return &Error{Kind: ErrArchive, Op: op, Err: err}
}

func Transport(op string, err error) error {
	return &Error{Kind: ErrTransport, Op: op, Err: err}
}

// FromStatus classifies a non-2xx HTTP response.
func FromStatus(op string, status int, body string) error {
	e := &Error{Op: op, Status: status, Body: body}
	switch {
	case status == 401 || status == 403:
		e.Kind = ErrAuth
	case status == 404:
		e.Kind = ErrNotFound
	default:
		e.Kind = ErrServer
	}
	return e
}

// KindOf returns the sentinel an error was classified with, or nil.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
