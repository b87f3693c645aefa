// Package transport implements transfer.Transport on top of
// github.com/jlaffaye/ftp.
package transport

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"

	"github.com/jlaffaye/ftp"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"

	"github.com/pauliuspaskevicius/libARUtils/config"
	"github.com/pauliuspaskevicius/libARUtils/transfer"
)

// DefaultChunkSize is the read size used for downloads.
const DefaultChunkSize = 64 * 1024

// Dialer opens jlaffaye/ftp sessions.
type Dialer struct {
	Logger    *zap.Logger
	ChunkSize int
}

// NewDialer returns a Dialer logging to log.
func NewDialer(log *zap.Logger, chunkSize int) *Dialer {
	return &Dialer{Logger: log, ChunkSize: chunkSize}
}

// Dial connects, negotiates TLS if configured and logs in.
func (d *Dialer) Dial(cfg config.FTPLoginConfig, gate *transfer.Gate) (transfer.Transport, error) {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	chunk := d.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	host, _, err := net.SplitHostPort(cfg.Address)
	if err != nil {
		return nil, &transfer.Status{Kind: transfer.StatusBadRequest, Err: err}
	}
	var tlsConf *tls.Config
	if cfg.TLS != config.TLSNone {
		tlsConf = &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			ClientSessionCache: tls.NewLRUClientSessionCache(0),
		}
	}

	opts := []ftp.DialOption{
		ftp.DialWithTimeout(cfg.Timeout),
		ftp.DialWithDisabledEPSV(cfg.DisableEPSV),
		ftp.DialWithDialFunc(dialFunc(cfg, tlsConf, gate)),
	}
	switch cfg.TLS {
	case config.TLSExplicit:
		opts = append(opts, ftp.DialWithExplicitTLS(tlsConf))
	case config.TLSImplicit:
		// The dial func does the wrapping, this only turns on PBSZ/PROT.
		opts = append(opts, ftp.DialWithTLS(tlsConf))
	}
	if cfg.DebugProtocol {
		opts = append(opts, ftp.DialWithDebugOutput(&zapio.Writer{Log: log.Named("ftp"), Level: zap.DebugLevel}))
	}

	conn, err := ftp.Dial(cfg.Address, opts...)
	if err != nil {
		return nil, toStatus(err, gate)
	}
	if err := conn.Login(cfg.Username, cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, loginStatus(err, gate)
	}
	log.Debug("logged in", zap.String("server", cfg.Address), zap.String("user", cfg.Username))
	return &Session{conn: conn, gate: gate, log: log, chunk: chunk}, nil
}

// dialFunc dials every connection of a session through a gatedConn. The
// ftp library does not wrap data connections in TLS when a dial func is
// set, so that happens here too.
func dialFunc(cfg config.FTPLoginConfig, tlsConf *tls.Config, gate *transfer.Gate) func(network, address string) (net.Conn, error) {
	var dials atomic.Int32
	return func(network, address string) (net.Conn, error) {
		if gate.Signaled() {
			return nil, errInterrupted
		}
		nd := net.Dialer{Timeout: cfg.Timeout}
		raw, err := nd.Dial(network, address)
		if err != nil {
			return nil, err
		}
		control := dials.Inc() == 1

		var c net.Conn = raw
		switch {
		case cfg.TLS == config.TLSImplicit:
			c = tls.Client(raw, tlsConf)
		case cfg.TLS == config.TLSExplicit && !control:
			c = tls.Client(raw, tlsConf)
		}
		return newGatedConn(c, gate, cfg.Timeout), nil
	}
}

// Session is one logged-in FTP control connection.
type Session struct {
	conn  *ftp.ServerConn
	gate  *transfer.Gate
	log   *zap.Logger
	chunk int
}

// Command issues a single control command.
func (s *Session) Command(verb transfer.Verb, arg string) (int, error) {
	var reply int
	var err error
	switch verb {
	case transfer.VerbDelete:
		reply, err = ftp.StatusRequestedFileActionOK, s.conn.Delete(arg)
	case transfer.VerbMkDir:
		reply, err = ftp.StatusPathCreated, s.conn.MakeDir(arg)
	case transfer.VerbRmDir:
		reply, err = ftp.StatusRequestedFileActionOK, s.conn.RemoveDir(arg)
	case transfer.VerbCwd:
		reply, err = ftp.StatusRequestedFileActionOK, s.conn.ChangeDir(arg)
	case transfer.VerbSize:
		reply = ftp.StatusFile
		_, err = s.conn.FileSize(arg)
	case transfer.VerbNoop:
		reply, err = ftp.StatusCommandOK, s.conn.NoOp()
	case transfer.VerbPwd:
		reply = ftp.StatusPathCreated
		_, err = s.conn.CurrentDir()
	default:
		return 0, &transfer.Status{Kind: transfer.StatusBadRequest, Err: fmt.Errorf("unsupported command %s", verb)}
	}
	if err != nil {
		return 0, toStatus(err, s.gate)
	}
	return reply, nil
}

// Rename sends RNFR then RNTO.
func (s *Session) Rename(from, to string) (int, error) {
	if err := s.conn.Rename(from, to); err != nil {
		return 0, toStatus(err, s.gate)
	}
	return ftp.StatusRequestedFileActionOK, nil
}

// Size returns the SIZE of path.
func (s *Session) Size(path string) (int64, error) {
	n, err := s.conn.FileSize(path)
	if err != nil {
		return 0, toStatus(err, s.gate)
	}
	return n, nil
}

// Transfer runs a RETR, STOR or LIST.
func (s *Session) Transfer(req *transfer.Request) error {
	if req.Offset < 0 {
		return &transfer.Status{Kind: transfer.StatusBadRequest, Err: fmt.Errorf("negative offset %d", req.Offset)}
	}
	var err error
	switch req.Op {
	case transfer.OpRetrieve:
		err = s.retrieve(req)
	case transfer.OpStore:
		err = s.store(req)
	case transfer.OpList:
		err = s.list(req)
	default:
		return &transfer.Status{Kind: transfer.StatusBadRequest, Err: fmt.Errorf("unknown operation %v", req.Op)}
	}
	return toStatus(err, s.gate)
}

func (s *Session) retrieve(req *transfer.Request) error {
	resp, err := s.conn.RetrFrom(req.Path, uint64(req.Offset))
	if err != nil {
		return err
	}
	buf := make([]byte, s.chunk)
	if err := copyWithProgress(req.Sink, resp, buf, req.Offset, req.Total, req.Progress); err != nil {
		if cerr := resp.Close(); cerr != nil {
			s.log.Debug("close data connection", zap.Error(cerr))
		}
		return err
	}
	return resp.Close()
}

func (s *Session) store(req *transfer.Request) error {
	pr := &ProgressReader{
		Reader:      req.Source,
		Total:       req.Total,
		Transferred: req.Offset,
		OnProgress:  req.Progress,
	}
	return s.conn.StorFrom(req.Path, pr, uint64(req.Offset))
}

// list regenerates ls -l text from the entries jlaffaye parsed; lines it
// cannot parse are dropped.
func (s *Session) list(req *transfer.Request) error {
	entries, err := s.conn.List(req.Path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if _, err := io.WriteString(req.Sink, FormatEntry(e)); err != nil {
			return err
		}
	}
	return nil
}

// FormatEntry renders an entry as an ls -l line ending in CRLF.
func FormatEntry(e *ftp.Entry) string {
	perm := "-rw-r--r--"
	switch e.Type {
	case ftp.EntryTypeFolder:
		perm = "drwxr-xr-x"
	case ftp.EntryTypeLink:
		perm = "lrwxrwxrwx"
	}
	name := e.Name
	if e.Type == ftp.EntryTypeLink && e.Target != "" {
		name += " -> " + e.Target
	}
	return fmt.Sprintf("%s 1 ftp ftp %d %s %s\r\n", perm, e.Size, e.Time.UTC().Format(listTime), name)
}

const listTime = "Jan 02 15:04"

// Close sends QUIT and closes the control connection.
func (s *Session) Close() error {
	err := s.conn.Quit()
	if err != nil {
		s.log.Debug("quit", zap.Error(err))
	}
	return err
}

var (
	_ transfer.Transport = (*Session)(nil)
	_ transfer.Dialer    = (*Dialer)(nil)
)
