package transfer

import (
	"sync"

	"go.uber.org/atomic"
)

// Gate is the cancellation signal shared between the goroutine running a
// transfer and the goroutine that wants to stop it.
//
// The flag is polled by the transfer callbacks between chunks. Wakers
// registered with Watch are fired on Signal so the transport can unblock
// an I/O call that is waiting on the network.
type Gate struct {
	signaled atomic.Bool
	inFlight atomic.Int32

	mu     sync.Mutex
	nextID uint64
	wakers map[uint64]func()
}

// NewGate returns an unsignaled gate.
func NewGate() *Gate {
	return &Gate{wakers: make(map[uint64]func())}
}

// Signal marks the gate and fires every registered waker. Calling it more
// than once is harmless.
func (g *Gate) Signal() {
	if !g.signaled.CAS(false, true) {
		return
	}
	g.mu.Lock()
	wakers := make([]func(), 0, len(g.wakers))
	for _, w := range g.wakers {
		wakers = append(wakers, w)
	}
	g.mu.Unlock()

	for _, w := range wakers {
		w()
	}
}

// Signaled reports whether Signal was called since the last Reset.
func (g *Gate) Signaled() bool {
	return g.signaled.Load()
}

// Reset clears the signal. It fails while a transfer holds the gate.
func (g *Gate) Reset() error {
	if g.inFlight.Load() > 0 {
		return newError(CodeInvalidArgument, "reset", "", errBusy)
	}
	g.signaled.Store(false)
	return nil
}

// Watch registers wake to run on the next Signal. If the gate is already
// signaled wake runs immediately. The returned func unregisters it.
func (g *Gate) Watch(wake func()) (stop func()) {
	g.mu.Lock()
	if g.wakers == nil {
		g.wakers = make(map[uint64]func())
	}
	id := g.nextID
	g.nextID++
	g.wakers[id] = wake
	g.mu.Unlock()

	if g.signaled.Load() {
		wake()
	}
	return func() {
		g.mu.Lock()
		delete(g.wakers, id)
		g.mu.Unlock()
	}
}

// enter and leave bracket a transfer so Reset can refuse to run under it.
func (g *Gate) enter() { g.inFlight.Inc() }
func (g *Gate) leave() { g.inFlight.Dec() }
