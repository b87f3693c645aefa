package ftptest

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const dataAcceptTimeout = 10 * time.Second

// session is the state of one control connection.
type session struct {
	srv  *Server
	conn net.Conn
	tp   *textproto.Conn
	log  *zap.Logger

	userName      string
	authenticated bool
	cwd           string
	restartPos    int64
	renameFrom    string
	pasv          net.Listener
}

func newSession(srv *Server, conn net.Conn) *session {
	return &session{
		srv:  srv,
		conn: conn,
		tp:   textproto.NewConn(conn),
		log:  srv.log.With(zap.String("client", conn.RemoteAddr().String())),
		cwd:  "/",
	}
}

func (s *session) serve() {
	defer s.close()
	s.SendResponse(220, "ftptest ready")
	for {
		line, err := s.tp.ReadLine()
		if err != nil {
			return
		}
		if !s.HandleCommand(line) {
			return
		}
	}
}

func (s *session) close() {
	s.CloseDataListener()
	_ = s.tp.Close()
}

// SendResponse writes a single-line reply.
func (s *session) SendResponse(code int, message string) {
	if err := s.tp.PrintfLine("%d %s", code, message); err != nil {
		s.log.Debug("reply", zap.Error(err))
	}
}

// sendMultiline writes a reply with continuation lines.
func (s *session) sendMultiline(code int, first string, lines []string, last string) {
	w := s.tp.Writer
	_ = w.PrintfLine("%d-%s", code, first)
	for _, l := range lines {
		_ = w.PrintfLine(" %s", l)
	}
	_ = w.PrintfLine("%d %s", code, last)
}

// ResolvePath returns the cleaned virtual path of p.
func (s *session) ResolvePath(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(s.cwd, p)
}

// FullPath maps a virtual path into the served directory.
func (s *session) FullPath(virtual string) string {
	return filepath.Join(s.srv.root, filepath.FromSlash(virtual))
}

// OpenPassive starts a data listener and returns its port.
func (s *session) OpenPassive() (int, error) {
	s.CloseDataListener()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	s.pasv = ln
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// OpenDataConnection accepts the client on the passive listener.
func (s *session) OpenDataConnection() (net.Conn, error) {
	if s.pasv == nil {
		return nil, errors.New("no passive listener")
	}
	if tl, ok := s.pasv.(*net.TCPListener); ok {
		_ = tl.SetDeadline(time.Now().Add(dataAcceptTimeout))
	}
	conn, err := s.pasv.Accept()
	s.CloseDataListener()
	if err != nil {
		return nil, err
	}
	if !s.srv.track(conn) {
		_ = conn.Close()
		return nil, errors.New("server closed")
	}
	return conn, nil
}

func (s *session) closeData(conn net.Conn) {
	_ = conn.Close()
	s.srv.untrack(conn)
}

// CloseDataListener drops the passive listener, if any.
func (s *session) CloseDataListener() {
	if s.pasv != nil {
		_ = s.pasv.Close()
		s.pasv = nil
	}
}

// HandleCommand routes one command line. It returns false when the
// session must end.
func (s *session) HandleCommand(line string) bool {
	cmd, args := line, ""
	if i := strings.IndexByte(line, ' '); i >= 0 {
		cmd, args = line[:i], strings.TrimSpace(line[i+1:])
	}
	cmd = strings.ToUpper(cmd)
	if cmd == "PASS" {
		s.log.Debug("command", zap.String("cmd", cmd))
	} else {
		s.log.Debug("command", zap.String("cmd", cmd), zap.String("args", args))
	}

	switch cmd {
	case "USER":
		s.HandleUSER(args)
	case "PASS":
		s.HandlePASS(args)
	case "QUIT":
		s.SendResponse(221, "Goodbye")
		return false

	case "SYST":
		s.SendResponse(215, "UNIX Type: L8")
	case "FEAT":
		s.HandleFEAT()
	case "TYPE":
		s.HandleTYPE(args)
	case "OPTS":
		s.SendResponse(200, "OK")
	case "NOOP":
		s.SendResponse(200, "NOOP command successful")

	case "PWD", "XPWD":
		s.withAuth(func() { s.SendResponse(257, fmt.Sprintf("%q is the current directory", s.cwd)) })
	case "CWD":
		s.HandleCWD(args)

	case "EPSV":
		s.HandleEPSV()
	case "PASV":
		s.HandlePASV()

	case "REST":
		s.HandleREST(args)
	case "RETR":
		s.HandleRETR(args)
	case "STOR":
		s.HandleSTOR(args)
	case "LIST":
		s.HandleLIST(args)
	case "SIZE":
		s.HandleSIZE(args)

	case "MKD", "XMKD":
		s.HandleMKD(args)
	case "RMD", "XRMD":
		s.HandleRMD(args)
	case "DELE":
		s.HandleDELE(args)
	case "RNFR":
		s.HandleRNFR(args)
	case "RNTO":
		s.HandleRNTO(args)

	default:
		s.SendResponse(502, "Command not implemented")
	}
	return true
}

func parseOffset(v string) (int64, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad offset %q", v)
	}
	return n, nil
}

// copyThrottled sends src in chunks, sleeping between them, and stops
// after limit bytes when limit > 0.
func copyThrottled(dst io.Writer, src io.Reader, chunk int, pause time.Duration, limit int64) (int64, error) {
	buf := make([]byte, chunk)
	var sent int64
	for {
		if limit > 0 && sent >= limit {
			return sent, nil
		}
		want := len(buf)
		if limit > 0 && int64(want) > limit-sent {
			want = int(limit - sent)
		}
		n, err := src.Read(buf[:want])
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return sent, werr
			}
			sent += int64(n)
			if pause > 0 {
				time.Sleep(pause)
			}
		}
		if err == io.EOF {
			return sent, nil
		}
		if err != nil {
			return sent, err
		}
	}
}
