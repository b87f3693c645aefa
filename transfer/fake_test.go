package transfer

import (
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/pauliuspaskevicius/libARUtils/config"
)

// fakeServer is an in-memory FTP server behind the Transport interface.
type fakeServer struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool

	chunk           int
	noSize          bool
	failRenameTo    bool
	dialErr         error
	dials           int
	commands        []string
	onChunk         func(n int)
	blockOnTransfer bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
		chunk: 4,
	}
}

func (s *fakeServer) dialer() Dialer {
	return DialerFunc(func(cfg config.FTPLoginConfig, gate *Gate) (Transport, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.dials++
		if s.dialErr != nil {
			return nil, s.dialErr
		}
		return &fakeTransport{srv: s, gate: gate, cwd: "/"}, nil
	})
}

func (s *fakeServer) put(p string, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[p] = []byte(data)
}

func (s *fakeServer) get(p string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[p]
	return string(b), ok
}

type fakeTransport struct {
	srv    *fakeServer
	gate   *Gate
	cwd    string
	closed bool
}

func (t *fakeTransport) abs(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(t.cwd, p)
}

func (t *fakeTransport) Command(verb Verb, arg string) (int, error) {
	s := t.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, string(verb)+" "+arg)
	if t.closed {
		return 0, &Status{Kind: StatusConnect, Err: errors.New("closed")}
	}
	p := t.abs(arg)
	switch verb {
	case VerbDelete:
		if _, ok := s.files[p]; !ok {
			return 0, ReplyStatus(550, errors.New("no such file"))
		}
		delete(s.files, p)
		return 250, nil
	case VerbMkDir:
		if s.dirs[p] {
			return 0, ReplyStatus(550, errors.New("exists"))
		}
		s.dirs[p] = true
		return 257, nil
	case VerbRmDir:
		if !s.dirs[p] {
			return 0, ReplyStatus(550, errors.New("no such directory"))
		}
		delete(s.dirs, p)
		return 250, nil
	case VerbCwd:
		if !s.dirs[p] {
			return 0, ReplyStatus(550, errors.New("no such directory"))
		}
		t.cwd = p
		return 250, nil
	case VerbSize:
		if _, ok := s.files[p]; !ok {
			return 0, ReplyStatus(550, errors.New("no such file"))
		}
		return 213, nil
	case VerbNoop:
		return 200, nil
	case VerbPwd:
		return 257, nil
	}
	return 0, ReplyStatus(502, errors.New("not implemented"))
}

func (t *fakeTransport) Rename(from, to string) (int, error) {
	s := t.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	from, to = t.abs(from), t.abs(to)
	s.commands = append(s.commands, "RNFR "+from)
	data, ok := s.files[from]
	if !ok {
		return 0, ReplyStatus(550, errors.New("no such file"))
	}
	s.commands = append(s.commands, "RNTO "+to)
	if s.failRenameTo {
		return 0, ReplyStatus(553, errors.New("name not allowed"))
	}
	delete(s.files, from)
	s.files[to] = data
	return 250, nil
}

func (t *fakeTransport) Size(p string) (int64, error) {
	s := t.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, "SIZE "+p)
	if s.noSize {
		return 0, ReplyStatus(502, errors.New("SIZE not implemented"))
	}
	data, ok := s.files[t.abs(p)]
	if !ok {
		return 0, ReplyStatus(550, errors.New("no such file"))
	}
	return int64(len(data)), nil
}

func (t *fakeTransport) Transfer(req *Request) error {
	if t.srv.blockOnTransfer {
		woke := make(chan struct{})
		var once sync.Once
		stop := t.gate.Watch(func() { once.Do(func() { close(woke) }) })
		defer stop()
		<-woke
		return &Status{Kind: StatusAborted, Err: errors.New("connection interrupted")}
	}

	switch req.Op {
	case OpRetrieve:
		return t.retrieve(req)
	case OpStore:
		return t.store(req)
	case OpList:
		return t.list(req)
	}
	return &Status{Kind: StatusBadRequest}
}

func sinkStatus(err error) error {
	if errors.Is(err, ErrAbortTransfer) {
		return &Status{Kind: StatusAborted, Err: err}
	}
	return err
}

func (t *fakeTransport) retrieve(req *Request) error {
	s := t.srv
	s.mu.Lock()
	data, ok := s.files[t.abs(req.Path)]
	s.mu.Unlock()
	if !ok {
		return ReplyStatus(550, errors.New("no such file"))
	}
	if req.Offset > int64(len(data)) {
		return ReplyStatus(554, errors.New("bad offset"))
	}
	total := int64(len(data))
	for pos, i := req.Offset, 0; pos < total; i++ {
		end := pos + int64(s.chunk)
		if end > total {
			end = total
		}
		if _, err := req.Sink.Write(data[pos:end]); err != nil {
			return sinkStatus(err)
		}
		pos = end
		if req.Progress != nil {
			if err := req.Progress(pos, total); err != nil {
				return sinkStatus(err)
			}
		}
		if s.onChunk != nil {
			s.onChunk(i)
		}
	}
	return nil
}

func (t *fakeTransport) store(req *Request) error {
	s := t.srv
	p := t.abs(req.Path)

	s.mu.Lock()
	existing := s.files[p]
	s.mu.Unlock()
	if req.Offset > int64(len(existing)) {
		return ReplyStatus(554, errors.New("bad offset"))
	}
	out := append([]byte(nil), existing[:req.Offset]...)

	buf := make([]byte, s.chunk)
	var err error
	for i := 0; ; i++ {
		n, rerr := req.Source.Read(buf)
		out = append(out, buf[:n]...)
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			err = sinkStatus(rerr)
			break
		}
		if req.Progress != nil {
			if perr := req.Progress(int64(len(out)), req.Total); perr != nil {
				err = sinkStatus(perr)
				break
			}
		}
		if s.onChunk != nil {
			s.onChunk(i)
		}
	}

	// A server keeps what it received before the data connection broke.
	s.mu.Lock()
	s.files[p] = out
	s.mu.Unlock()
	return err
}

func (t *fakeTransport) list(req *Request) error {
	s := t.srv
	dir := t.cwd
	if req.Path != "" {
		dir = t.abs(req.Path)
	}

	s.mu.Lock()
	if !s.dirs[dir] {
		s.mu.Unlock()
		return ReplyStatus(550, errors.New("no such directory"))
	}
	var lines []string
	for p, data := range s.files {
		if path.Dir(p) == dir {
			lines = append(lines, fmt.Sprintf("-rw-r--r-- 1 ftp ftp %d Jan 02 15:04 %s", len(data), path.Base(p)))
		}
	}
	s.mu.Unlock()

	if len(lines) == 0 {
		return nil
	}
	sort.Strings(lines)
	_, err := io.WriteString(req.Sink, strings.Join(lines, "\r\n")+"\r\n")
	return sinkStatus(err)
}

func (t *fakeTransport) Close() error {
	t.closed = true
	return nil
}
