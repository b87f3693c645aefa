package ftptest

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := Start(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func login(t *testing.T, s *Server, user, pass string) *ftp.ServerConn {
	t.Helper()
	c, err := ftp.Dial(s.Addr())
	require.NoError(t, err)
	require.NoError(t, c.Login(user, pass))
	t.Cleanup(func() { _ = c.Quit() })
	return c
}

func TestServerLogin(t *testing.T) {
	s := startServer(t, WithCredentials("drone", "secret"))

	c, err := ftp.Dial(s.Addr())
	require.NoError(t, err)
	defer c.Quit()
	assert.Error(t, c.Login("drone", "wrong"))

	login(t, s, "drone", "secret")
}

func TestServerRoundTrip(t *testing.T) {
	s := startServer(t)
	c := login(t, s, "anonymous", "guest")

	require.NoError(t, c.MakeDir("media"))
	require.NoError(t, c.ChangeDir("media"))
	dir, err := c.CurrentDir()
	require.NoError(t, err)
	assert.Equal(t, "/media", dir)

	require.NoError(t, c.Stor("a.txt", bytes.NewBufferString("hello")))
	require.NoError(t, c.StorFrom("a.txt", bytes.NewBufferString(" world"), 5))

	size, err := c.FileSize("a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)

	resp, err := c.RetrFrom("a.txt", 6)
	require.NoError(t, err)
	got, err := io.ReadAll(resp)
	require.NoError(t, err)
	require.NoError(t, resp.Close())
	assert.Equal(t, "world", string(got))

	entries, err := c.List("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, uint64(11), entries[0].Size)

	require.NoError(t, c.Rename("a.txt", "b.txt"))
	_, err = os.Stat(filepath.Join(s.Root(), "media", "b.txt"))
	assert.NoError(t, err)
	require.NoError(t, c.Delete("b.txt"))
	_, err = c.FileSize("b.txt")
	assert.Error(t, err)
}

func TestServerFailRenameTo(t *testing.T) {
	s := startServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "a"), []byte("x"), 0o644))
	s.FailRenameTo(true)
	c := login(t, s, "anonymous", "")

	assert.Error(t, c.Rename("a", "b"))
	_, err := os.Stat(filepath.Join(s.Root(), "a"))
	assert.NoError(t, err)
}

func TestServerRejectsBeforeLogin(t *testing.T) {
	s := startServer(t)
	c, err := ftp.Dial(s.Addr())
	require.NoError(t, err)
	defer c.Quit()

	assert.Error(t, c.MakeDir("x"))
}
