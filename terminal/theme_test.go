package terminal

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThemeManager(t *testing.T) {
	var out bytes.Buffer
	tm, err := NewThemeManager("dark", &out)
	require.NoError(t, err)
	assert.Equal(t, "dark", tm.GetThemeName())

	require.NoError(t, tm.SetTheme("light"))
	assert.Equal(t, "light", tm.GetThemeName())
	assert.Error(t, tm.SetTheme("neon"))
	assert.Equal(t, "light", tm.GetThemeName())

	tm.Error(errors.New("boom"))
	tm.Success("saved %d bytes", 3)
	assert.Contains(t, out.String(), "Error: boom")
	assert.Contains(t, out.String(), "saved 3 bytes")
}

func TestUnknownInitialTheme(t *testing.T) {
	_, err := NewThemeManager("neon", &bytes.Buffer{})
	assert.Error(t, err)
}
