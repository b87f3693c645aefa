// Package ftptest runs a small FTP server over a local directory for
// integration tests.
package ftptest

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Server serves one directory on 127.0.0.1.
type Server struct {
	root     string
	user     string
	password string
	log      *zap.Logger

	chunkSize  int
	throttle   time.Duration
	stallAfter int64
	noSize     bool

	failRenameTo atomic.Bool

	ln     net.Listener
	wg     sync.WaitGroup
	closed atomic.Bool

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithCredentials sets the accepted login. Defaults to anonymous with any
// password.
func WithCredentials(user, password string) Option {
	return func(s *Server) { s.user, s.password = user, password }
}

// WithLogger logs every command.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithThrottle sends RETR data in chunks of size bytes with d between them.
func WithThrottle(size int, d time.Duration) Option {
	return func(s *Server) { s.chunkSize, s.throttle = size, d }
}

// WithStallAfter stops sending RETR data after n bytes and waits for the
// client to hang up.
func WithStallAfter(n int64) Option {
	return func(s *Server) { s.stallAfter = n }
}

// WithoutSize answers SIZE with 502.
func WithoutSize() Option {
	return func(s *Server) { s.noSize = true }
}

// Start listens on a free port and serves root until Close.
func Start(root string, opts ...Option) (*Server, error) {
	s := &Server{
		root:      root,
		user:      "anonymous",
		log:       zap.NewNop(),
		chunkSize: 32 * 1024,
		conns:     make(map[net.Conn]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s.ln = ln

	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr is the host:port of the control listener.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Root is the served directory.
func (s *Server) Root() string { return s.root }

// FailRenameTo makes every RNTO fail with 553 after RNFR succeeded.
func (s *Server) FailRenameTo(fail bool) { s.failRenameTo.Store(fail) }

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !s.closed.Load() {
				s.log.Warn("accept", zap.Error(err))
			}
			return
		}
		if !s.track(conn) {
			_ = conn.Close()
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			newSession(s, conn).serve()
		}()
	}
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// Close stops the listener, drops every session and waits for them.
func (s *Server) Close() error {
	if !s.closed.CAS(false, true) {
		return nil
	}
	var result *multierror.Error
	if err := s.ln.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	s.mu.Lock()
	for c := range s.conns {
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
	return result.ErrorOrNil()
}
