package transfer

import (
	"time"

	uuid "github.com/satori/go.uuid"
)

// State of the transfer engine.
type State int32

const (
	StateIdle State = iota
	StatePreparing
	StateTransferring
	StateCompleted
	StateFailed
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateTransferring:
		return "transferring"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCanceled:
		return "canceled"
	}
	return "unknown"
}

// Report describes one finished get, put or list.
type Report struct {
	ID         string
	Op         Op
	RemotePath string
	LocalPath  string // empty for memory downloads and listings
	Offset     int64
	Bytes      int64 // moved during this call, offset excluded
	Started    time.Time
	Elapsed    time.Duration
	State      State
	Err        error
}

// Observer is notified after every get, put and list. It runs on the
// goroutine that made the call.
type Observer interface {
	TransferFinished(r Report)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(r Report)

func (f ObserverFunc) TransferFinished(r Report) { f(r) }

func newTransferID() string {
	return uuid.NewV4().String()
}
