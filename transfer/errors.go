package transfer

import (
	"errors"
	"fmt"
)

// Code is the closed set of outcomes a Connection reports.
type Code int

const (
	CodeOK Code = iota
	CodeInvalidArgument
	CodeNoMemory
	CodeLocalFile
	CodeConnection
	CodeCanceled
	CodeNotFound
	CodeProtocol
	CodeUnknown
)

var codeNames = map[Code]string{
	CodeOK:              "ok",
	CodeInvalidArgument: "invalid argument",
	CodeNoMemory:        "out of memory",
	CodeLocalFile:       "local file error",
	CodeConnection:      "connection failure",
	CodeCanceled:        "canceled",
	CodeNotFound:        "not found",
	CodeProtocol:        "protocol failure",
	CodeUnknown:         "unknown error",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is returned by every Connection operation.
type Error struct {
	Code  Code
	Op    string // "get", "put", "list", "DELE", ...
	Path  string
	Reply int // raw FTP reply code when one was observed
	Err   error
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Reply != 0 {
		msg += fmt.Sprintf(" [reply %d]", e.Reply)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument}
	ErrNoMemory        = &Error{Code: CodeNoMemory}
	ErrLocalFile       = &Error{Code: CodeLocalFile}
	ErrConnection      = &Error{Code: CodeConnection}
	ErrCanceled        = &Error{Code: CodeCanceled}
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrProtocol        = &Error{Code: CodeProtocol}
	ErrUnknown         = &Error{Code: CodeUnknown}
)

// ErrAbortTransfer is returned from sink and source callbacks to make the
// transport stop the current data transfer.
var ErrAbortTransfer = errors.New("transfer aborted by callback")

// CodeOf returns the Code carried by err, CodeOK for nil.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(Translate(err), &e) {
		return e.Code
	}
	return CodeUnknown
}

func newError(code Code, op, path string, err error) *Error {
	return &Error{Code: code, Op: op, Path: path, Err: err}
}

// withContext fills Op and Path on a translated error when they are unset.
func withContext(err error, op, path string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(Translate(err), &e) {
		return newError(CodeUnknown, op, path, err)
	}
	out := *e
	if out.Op == "" {
		out.Op = op
	}
	if out.Path == "" {
		out.Path = path
	}
	return &out
}
