package transfer

import (
	"io"

	"github.com/pauliuspaskevicius/libARUtils/config"
)

// Verb is a control-channel command.
type Verb string

const (
	VerbDelete  Verb = "DELE"
	VerbList    Verb = "LIST"
	VerbNameLst Verb = "NLST"
	VerbRenFrom Verb = "RNFR"
	VerbRenTo   Verb = "RNTO"
	VerbRmDir   Verb = "RMD"
	VerbMkDir   Verb = "MKD"
	VerbSize    Verb = "SIZE"
	VerbCwd     Verb = "CWD"
	VerbNoop    Verb = "NOOP"
	VerbPwd     Verb = "PWD"
)

// takesPath reports whether the verb needs a non-empty argument.
func (v Verb) takesPath() bool {
	switch v {
	case VerbNoop, VerbPwd, VerbList, VerbNameLst:
		return false
	}
	return true
}

// dataChannel reports whether the verb opens a data connection or is one
// half of a two-step exchange.
func (v Verb) dataChannel() bool {
	switch v {
	case VerbList, VerbNameLst, VerbRenFrom, VerbRenTo:
		return true
	}
	return false
}

func (v Verb) valid() bool {
	switch v {
	case VerbDelete, VerbList, VerbNameLst, VerbRenFrom, VerbRenTo,
		VerbRmDir, VerbMkDir, VerbSize, VerbCwd, VerbNoop, VerbPwd:
		return true
	}
	return false
}

// Op is the kind of data transfer a Request performs.
type Op int

const (
	OpRetrieve Op = iota
	OpStore
	OpList
)

func (o Op) String() string {
	switch o {
	case OpRetrieve:
		return "get"
	case OpStore:
		return "put"
	case OpList:
		return "list"
	}
	return "unknown"
}

// Request describes one data transfer.
//
// For OpRetrieve and OpList the transport writes into Sink; for OpStore it
// reads from Source. Offset is the REST position. Progress receives absolute
// positions and a non-nil return stops the transfer.
type Request struct {
	Op       Op
	Path     string
	Offset   int64
	Total    int64
	Sink     io.Writer
	Source   io.Reader
	Progress func(done, total int64) error
}

// Transport performs FTP operations for one authenticated session. Errors
// are *Status values.
type Transport interface {
	// Command issues one control command and returns the success reply.
	// For SIZE the returned value is the reply code, use Size for the value.
	Command(verb Verb, arg string) (int, error)
	Rename(from, to string) (int, error)
	Size(path string) (int64, error)
	Transfer(req *Request) error
	Close() error
}

// Dialer opens authenticated sessions. Blocking I/O on the returned
// Transport must be released when gate is signaled.
type Dialer interface {
	Dial(cfg config.FTPLoginConfig, gate *Gate) (Transport, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(cfg config.FTPLoginConfig, gate *Gate) (Transport, error)

func (f DialerFunc) Dial(cfg config.FTPLoginConfig, gate *Gate) (Transport, error) {
	return f(cfg, gate)
}
