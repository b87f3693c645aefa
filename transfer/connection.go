package transfer

import (
	"errors"
	"path"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/pauliuspaskevicius/libARUtils/config"
)

var (
	errBusy   = errors.New("another operation is in progress")
	errClosed = errors.New("connection is closed")
)

// Connection drives commands and transfers over one FTP session. Calls
// must be serialized: a call made while another is running fails with
// CodeInvalidArgument. Cancel is the only method meant to be called from
// another goroutine.
type Connection struct {
	cfg       config.FTPLoginConfig
	dialer    Dialer
	gate      *Gate
	log       *zap.Logger
	observer  Observer
	retry     RetryPolicy
	maxMemory int64

	busy  atomic.Bool
	stale atomic.Bool
	state atomic.Int32

	mu     sync.Mutex // guards tr and closed against Close
	tr     Transport
	closed bool

	cwd string // guarded by mu
}

// Option configures a Connection.
type Option func(*Connection)

// WithDialer sets how sessions are opened. It is required.
func WithDialer(d Dialer) Option {
	return func(c *Connection) { c.dialer = d }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Connection) { c.log = l }
}

// WithObserver receives a Report after every transfer.
func WithObserver(o Observer) Option {
	return func(c *Connection) { c.observer = o }
}

// WithMaxMemory caps memory downloads and listings. Zero means no cap.
func WithMaxMemory(n int64) Option {
	return func(c *Connection) { c.maxMemory = n }
}

// WithRetry sets the policy used when opening a session.
func WithRetry(p RetryPolicy) Option {
	return func(c *Connection) { c.retry = p }
}

// WithGate shares an existing cancellation gate.
func WithGate(g *Gate) Option {
	return func(c *Connection) { c.gate = g }
}

// Dial validates cfg, opens a session and returns the Connection.
func Dial(cfg config.FTPLoginConfig, opts ...Option) (*Connection, error) {
	c := &Connection{
		cfg:   cfg,
		log:   zap.NewNop(),
		retry: DefaultRetryPolicy,
	}
	for _, o := range opts {
		o(c)
	}
	if c.gate == nil {
		c.gate = NewGate()
	}
	if err := cfg.Validate(); err != nil {
		return nil, newError(CodeInvalidArgument, "dial", cfg.Address, err)
	}
	if c.dialer == nil {
		return nil, newError(CodeInvalidArgument, "dial", cfg.Address, errors.New("no dialer"))
	}
	c.log = c.log.With(zap.String("server", cfg.Address))

	tr, err := c.dial()
	if err != nil {
		return nil, err
	}
	c.tr = tr
	c.log.Info("connected", zap.String("user", cfg.Username))
	return c, nil
}

func (c *Connection) dial() (Transport, error) {
	var tr Transport
	err := retryWithBackoff(c.log, c.retry, c.gate, "dial", func() error {
		var err error
		tr, err = c.dialer.Dial(c.cfg, c.gate)
		return err
	})
	if err != nil {
		return nil, withContext(err, "dial", c.cfg.Address)
	}
	return tr, nil
}

// Gate returns the cancellation gate of the connection.
func (c *Connection) Gate() *Gate { return c.gate }

// State returns the state of the last or current transfer.
func (c *Connection) State() State { return State(c.state.Load()) }

func (c *Connection) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s {
		c.log.Debug("state", zap.Stringer("from", old), zap.Stringer("to", s))
	}
}

// Cancel stops the running operation, if any. The connection refuses
// further work until ResetCancel is called.
func (c *Connection) Cancel() error {
	c.gate.Signal()
	c.log.Info("cancel requested")
	return nil
}

// ResetCancel clears a previous Cancel. It fails while an operation runs.
func (c *Connection) ResetCancel() error {
	return c.gate.Reset()
}

// Close ends the session.
func (c *Connection) Close() error {
	if !c.busy.CAS(false, true) {
		return newError(CodeInvalidArgument, "close", "", errBusy)
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.tr == nil {
		return nil
	}
	err := c.tr.Close()
	c.tr = nil
	if err != nil {
		c.log.Debug("close session", zap.Error(err))
	}
	return nil
}

// begin claims the connection for one call and clears per-call state.
func (c *Connection) begin(op string) error {
	if !c.busy.CAS(false, true) {
		return newError(CodeInvalidArgument, op, "", errBusy)
	}
	c.gate.enter()
	return nil
}

func (c *Connection) end() {
	c.gate.leave()
	c.busy.Store(false)
}

// session returns a usable transport, replacing one that was left in an
// unknown state by a cancel or a broken link.
func (c *Connection) session(op string) (Transport, error) {
	if c.gate.Signaled() {
		return nil, newError(CodeCanceled, op, "", errors.New("cancel was not reset"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, newError(CodeConnection, op, "", errClosed)
	}
	if c.tr != nil && !c.stale.Load() {
		return c.tr, nil
	}

	if c.tr != nil {
		if err := c.tr.Close(); err != nil {
			c.log.Debug("drop stale session", zap.Error(err))
		}
		c.tr = nil
	}
	c.log.Info("reconnecting", zap.String("cwd", c.cwd))
	tr, err := c.dial()
	if err != nil {
		return nil, err
	}
	if c.cwd != "" {
		if _, err := tr.Command(VerbCwd, c.cwd); err != nil {
			_ = tr.Close()
			return nil, withContext(err, string(VerbCwd), c.cwd)
		}
	}
	c.tr = tr
	c.stale.Store(false)
	return tr, nil
}

// fail translates err and poisons the session when the link can no longer
// be trusted.
func (c *Connection) fail(err error, op, p string) error {
	err = withContext(err, op, p)
	switch CodeOf(err) {
	case CodeCanceled, CodeConnection:
		c.stale.Store(true)
	}
	return err
}

// Command issues one control command on path and returns the reply code.
// LIST, NLST, RNFR and RNTO are rejected: use ListDirectory and Rename.
func (c *Connection) Command(p string, verb Verb) (int, error) {
	op := string(verb)
	if !verb.valid() || verb.dataChannel() {
		return 0, newError(CodeInvalidArgument, op, p, errors.New("unsupported command"))
	}
	if verb.takesPath() && p == "" {
		return 0, newError(CodeInvalidArgument, op, p, errors.New("empty path"))
	}
	if err := c.begin(op); err != nil {
		return 0, err
	}
	defer c.end()

	tr, err := c.session(op)
	if err != nil {
		return 0, err
	}
	reply, err := tr.Command(verb, p)
	if err != nil {
		err = c.fail(err, op, p)
		c.log.Warn("command failed", zap.String("op", op), zap.String("path", p), zap.Error(err))
		return replyOf(err), err
	}
	if verb == VerbCwd {
		c.mu.Lock()
		c.cwd = joinDir(c.cwd, p)
		c.mu.Unlock()
	}
	c.log.Debug("command", zap.String("op", op), zap.String("path", p), zap.Int("reply", reply))
	return reply, nil
}

func replyOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Reply
	}
	return 0
}

// joinDir tracks the working directory so it can be restored on reconnect.
func joinDir(cwd, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	if cwd == "" {
		return path.Clean(p)
	}
	return path.Join(cwd, p)
}

// WorkingDirectory is the path of the last successful ChangeDirectory, or
// "" before any. It is the directory restored after a reconnect.
func (c *Connection) WorkingDirectory() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cwd
}

// ChangeDirectory changes the remote working directory.
func (c *Connection) ChangeDirectory(p string) error {
	_, err := c.Command(p, VerbCwd)
	return err
}

// Delete removes a remote file.
func (c *Connection) Delete(p string) error {
	_, err := c.Command(p, VerbDelete)
	return err
}

// MakeDirectory creates a remote directory.
func (c *Connection) MakeDirectory(p string) error {
	_, err := c.Command(p, VerbMkDir)
	return err
}

// RemoveDirectory removes an empty remote directory.
func (c *Connection) RemoveDirectory(p string) error {
	_, err := c.Command(p, VerbRmDir)
	return err
}

// Size returns the size of a remote file in bytes.
func (c *Connection) Size(p string) (int64, error) {
	op := string(VerbSize)
	if p == "" {
		return 0, newError(CodeInvalidArgument, op, p, errors.New("empty path"))
	}
	if err := c.begin(op); err != nil {
		return 0, err
	}
	defer c.end()

	tr, err := c.session(op)
	if err != nil {
		return 0, err
	}
	n, err := tr.Size(p)
	if err != nil {
		return 0, c.fail(err, op, p)
	}
	return n, nil
}

// Rename moves from to to with RNFR followed by RNTO. Both must succeed.
// The two commands are not atomic on the server: after a failed rename,
// list the directory again instead of assuming from still exists.
func (c *Connection) Rename(from, to string) error {
	const op = "rename"
	if from == "" || to == "" {
		return newError(CodeInvalidArgument, op, from, errors.New("empty path"))
	}
	if err := c.begin(op); err != nil {
		return err
	}
	defer c.end()

	tr, err := c.session(op)
	if err != nil {
		return err
	}
	if _, err := tr.Rename(from, to); err != nil {
		err = c.fail(err, op, from)
		c.log.Warn("rename failed", zap.String("from", from), zap.String("to", to), zap.Error(err))
		return err
	}
	return nil
}
