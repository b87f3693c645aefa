package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/pauliuspaskevicius/libARUtils/transfer"
)

var errInterrupted = errors.New("connection interrupted by cancel")

// past is the deadline used to release a blocked Read or Write.
var past = time.Unix(1, 0)

// gatedConn is a net.Conn whose pending I/O fails as soon as the gate is
// signaled. Every control and data connection goes through it.
type gatedConn struct {
	net.Conn
	gate    *transfer.Gate
	timeout time.Duration // idle timeout per Read/Write, 0 disables it

	mu   sync.Mutex
	stop func()
}

func newGatedConn(c net.Conn, gate *transfer.Gate, timeout time.Duration) *gatedConn {
	g := &gatedConn{Conn: c, gate: gate, timeout: timeout}
	g.stop = gate.Watch(g.interrupt)
	return g
}

func (c *gatedConn) interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.Conn.SetDeadline(past)
}

// arm sets the idle deadline for the next I/O, unless the gate already
// fired. Without a timeout it clears a past deadline left by an earlier
// interrupt. The lock orders it against interrupt.
func (c *gatedConn) arm(set func(time.Time) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gate.Signaled() {
		return errInterrupted
	}
	if c.timeout > 0 {
		return set(time.Now().Add(c.timeout))
	}
	return set(time.Time{})
}

func (c *gatedConn) Read(p []byte) (int, error) {
	if err := c.arm(c.Conn.SetReadDeadline); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *gatedConn) Write(p []byte) (int, error) {
	if err := c.arm(c.Conn.SetWriteDeadline); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}

// SetDeadline keeps a fired interrupt in place.
func (c *gatedConn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gate.Signaled() {
		return c.Conn.SetDeadline(past)
	}
	return c.Conn.SetDeadline(t)
}

func (c *gatedConn) Close() error {
	c.stop()
	return c.Conn.Close()
}
