package terminal

import (
	"errors"
	"testing"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/stretchr/testify/assert"
)

type fakeLister struct {
	listing []byte
	err     error
	calls   int
}

func (f *fakeLister) ListDirectory(string) ([]byte, error) {
	f.calls++
	return f.listing, f.err
}

func document(text string) prompt.Document {
	buf := prompt.NewBuffer()
	buf.InsertText(text, false, true)
	return *buf.Document()
}

func texts(s []prompt.Suggest) []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		out = append(out, v.Text)
	}
	return out
}

func TestCompleteCommands(t *testing.T) {
	c := NewCommandCompleter()
	assert.ElementsMatch(t, []string{"mkdir", "mv"}, texts(c.Completer(document("m"))))
	assert.Len(t, c.Completer(document("")), 14)
}

func TestCompleteRemoteNames(t *testing.T) {
	l := &fakeLister{listing: []byte(sampleListing)}
	c := NewCommandCompleter()
	c.SetLister(l)

	assert.Equal(t, []string{"media"}, texts(c.Completer(document("cd m"))))
	assert.Equal(t, []string{"flight log.bin"}, texts(c.Completer(document("get f"))))
	assert.Equal(t, 1, l.calls, "second lookup is served from the cache")
}

func TestCompleteRefreshesStaleCache(t *testing.T) {
	now := time.Now()
	l := &fakeLister{listing: []byte(sampleListing)}
	c := NewCommandCompleter()
	c.now = func() time.Time { return now }
	c.SetLister(l)

	c.Completer(document("cd m"))
	now = now.Add(time.Minute)
	l.err = errors.New("offline")
	assert.Equal(t, []string{"media"}, texts(c.Completer(document("cd m"))))
	assert.Equal(t, 2, l.calls)
}

func TestCompleteFlagsAndThemes(t *testing.T) {
	c := NewCommandCompleter()
	assert.Equal(t, []string{"--resume", "--restart"}, texts(c.Completer(document("get --re"))))
	assert.Empty(t, c.Completer(document("rm --re")))
	assert.Equal(t, []string{"light"}, texts(c.Completer(document("theme l"))))
}

func TestCompleteHidesDotNames(t *testing.T) {
	c := NewCommandCompleter()
	c.UpdateRemoteFiles([]string{".hidden", "visible"}, nil)
	assert.Equal(t, []string{"visible"}, texts(c.Completer(document("rm v"))))
	assert.Empty(t, c.Completer(document("rm h")))
	assert.Equal(t, []string{".hidden"}, texts(c.Completer(document("rm ."))))
}
