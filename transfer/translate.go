package transfer

import (
	"errors"
	"fmt"
)

// StatusKind classifies a transport outcome.
type StatusKind int

const (
	StatusUnknown StatusKind = iota
	StatusResolve
	StatusConnect
	StatusLogin
	StatusTimeout
	StatusAborted
	StatusReply
	StatusBadRequest
)

func (k StatusKind) String() string {
	switch k {
	case StatusResolve:
		return "resolve"
	case StatusConnect:
		return "connect"
	case StatusLogin:
		return "login"
	case StatusTimeout:
		return "timeout"
	case StatusAborted:
		return "aborted"
	case StatusReply:
		return "reply"
	case StatusBadRequest:
		return "bad request"
	default:
		return "unknown"
	}
}

// Status is the error shape a Transport returns. Only Translate looks at
// its fields.
type Status struct {
	Kind  StatusKind
	Reply int
	Err   error
}

func (s *Status) Error() string {
	msg := "transport " + s.Kind.String()
	if s.Reply != 0 {
		msg += fmt.Sprintf(" %d", s.Reply)
	}
	if s.Err != nil {
		msg += ": " + s.Err.Error()
	}
	return msg
}

func (s *Status) Unwrap() error { return s.Err }

// ReplyStatus wraps a server reply code that was not the expected one.
func ReplyStatus(code int, err error) *Status {
	return &Status{Kind: StatusReply, Reply: code, Err: err}
}

// Translate maps a transport error onto *Error. It is pure: the result
// depends only on err.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var s *Status
	if !errors.As(err, &s) {
		if errors.Is(err, ErrAbortTransfer) {
			return &Error{Code: CodeCanceled, Err: err}
		}
		return &Error{Code: CodeUnknown, Err: err}
	}

	out := &Error{Code: translateStatus(s), Reply: s.Reply, Err: s.Err}
	if out.Err == nil {
		out.Err = s
	}
	return out
}

func translateStatus(s *Status) Code {
	switch s.Kind {
	case StatusResolve, StatusConnect, StatusLogin, StatusTimeout:
		return CodeConnection
	case StatusAborted:
		return CodeCanceled
	case StatusBadRequest:
		return CodeInvalidArgument
	case StatusReply:
		return translateReply(s.Reply)
	default:
		return CodeUnknown
	}
}

func translateReply(code int) Code {
	switch {
	case code < 100 || code > 599:
		return CodeUnknown
	case code == 421, code == 425, code == 426, code == 530, code == 532:
		return CodeConnection
	case code == 450, code == 550:
		return CodeNotFound
	default:
		// An unexpected 1xx/2xx/3xx is still a failed exchange.
		return CodeProtocol
	}
}
