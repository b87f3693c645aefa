package transfer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRejectsBadInput(t *testing.T) {
	srv := newFakeServer()
	c := dialFake(t, srv)

	for _, v := range []Verb{VerbList, VerbNameLst, VerbRenFrom, VerbRenTo, Verb("STOR")} {
		_, err := c.Command("/a", v)
		assert.ErrorIs(t, err, ErrInvalidArgument, string(v))
	}
	_, err := c.Command("", VerbDelete)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Empty(t, srv.commands)
}

func TestCommandReplies(t *testing.T) {
	srv := newFakeServer()
	srv.put("/a", "abc")
	c := dialFake(t, srv)

	reply, err := c.Command("", VerbNoop)
	require.NoError(t, err)
	assert.Equal(t, 200, reply)

	reply, err = c.Command("/a", VerbSize)
	require.NoError(t, err)
	assert.Equal(t, 213, reply)

	reply, err = c.Command("/nope", VerbDelete)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 550, reply)
}

func TestDeleteThenSizeIsNotFound(t *testing.T) {
	srv := newFakeServer()
	srv.put("/a", "abc")
	c := dialFake(t, srv)

	require.NoError(t, c.Delete("/a"))
	_, err := c.Command("/a", VerbSize)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Size("/a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.Delete("/a"), ErrNotFound)
}

func TestSize(t *testing.T) {
	srv := newFakeServer()
	srv.put("/a", "abcdef")
	c := dialFake(t, srv)

	n, err := c.Size("/a")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	_, err = c.Size("")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDirectories(t *testing.T) {
	srv := newFakeServer()
	c := dialFake(t, srv)

	require.NoError(t, c.MakeDirectory("/photos"))
	assert.ErrorIs(t, c.ChangeDirectory("/missing"), ErrNotFound)
	require.NoError(t, c.ChangeDirectory("/photos"))
	require.NoError(t, c.ChangeDirectory("/"))
	require.NoError(t, c.RemoveDirectory("/photos"))
	assert.ErrorIs(t, c.RemoveDirectory("/photos"), ErrNotFound)
}

func TestRename(t *testing.T) {
	srv := newFakeServer()
	srv.put("/a", "abc")
	c := dialFake(t, srv)

	require.NoError(t, c.Rename("/a", "/b"))
	_, ok := srv.get("/b")
	assert.True(t, ok)
	assert.ErrorIs(t, c.Rename("/a", "/c"), ErrNotFound)
	assert.ErrorIs(t, c.Rename("", "/c"), ErrInvalidArgument)
}

func TestRenameFailsWhenSecondHalfFails(t *testing.T) {
	srv := newFakeServer()
	srv.put("/a", "abc")
	srv.failRenameTo = true
	c := dialFake(t, srv)

	err := c.Rename("/a", "/b")
	require.Error(t, err)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, CodeProtocol, e.Code)
	assert.Equal(t, 553, e.Reply)
	assert.Contains(t, srv.commands, "RNFR /a")

	listing, err := c.ListDirectory("/")
	require.NoError(t, err)
	assert.NotContains(t, string(listing), " b\r\n")
}

func TestListDirectory(t *testing.T) {
	srv := newFakeServer()
	srv.put("/one", "1")
	srv.put("/two", "22")
	c := dialFake(t, srv)

	listing, err := c.ListDirectory("/")
	require.NoError(t, err)
	require.NotEmpty(t, listing)
	assert.Equal(t, byte(0), listing[len(listing)-1])
	text := string(listing[:len(listing)-1])
	assert.Equal(t, 2, strings.Count(text, "\r\n"))
	assert.Contains(t, text, " one\r\n")
	assert.NotContains(t, text, "\x00")
}

func TestListDirectoryEmpty(t *testing.T) {
	srv := newFakeServer()
	srv.dirs["/empty"] = true
	c := dialFake(t, srv)

	listing, err := c.ListDirectory("/empty")
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, listing)
}

func TestListDirectoryMissing(t *testing.T) {
	c := dialFake(t, newFakeServer())

	listing, err := c.ListDirectory("/missing")
	assert.Nil(t, listing)
	assert.ErrorIs(t, err, ErrNotFound)

	// Failures leave the connection usable.
	_, err = c.ListDirectory("")
	assert.NoError(t, err)
}

func TestClose(t *testing.T) {
	srv := newFakeServer()
	c := dialFake(t, srv)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err := c.Command("", VerbNoop)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestJoinDir(t *testing.T) {
	assert.Equal(t, "/a", joinDir("", "/a/"))
	assert.Equal(t, "/a/b", joinDir("/a", "b"))
	assert.Equal(t, "/", joinDir("/a", ".."))
	assert.Equal(t, "b", joinDir("", "b"))
}

func TestWorkingDirectoryTracksCwd(t *testing.T) {
	srv := newFakeServer()
	c := dialFake(t, srv)
	assert.Equal(t, "", c.WorkingDirectory())

	require.NoError(t, c.MakeDirectory("/media"))
	require.NoError(t, c.MakeDirectory("/media/raw"))
	require.NoError(t, c.ChangeDirectory("/media"))
	require.NoError(t, c.ChangeDirectory("raw"))
	assert.Equal(t, "/media/raw", c.WorkingDirectory())

	assert.ErrorIs(t, c.ChangeDirectory("/nope"), ErrNotFound)
	assert.Equal(t, "/media/raw", c.WorkingDirectory())
}
