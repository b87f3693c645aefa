package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "client.toml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadConfigDefaults(t *testing.T) {
	c, err := LoadConfigFromFilepath("")
	require.NoError(t, err)

	assert.Equal(t, "anonymous", c.Server.Username)
	assert.Equal(t, 30*time.Second, c.Server.Timeout.Duration)
	assert.Equal(t, int64(64*1024*1024), c.Transfer.MaxMemory)
	assert.Equal(t, 3, c.Transfer.Retries)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "dark", c.Terminal.Theme)
}

func TestLoadConfigFromFile(t *testing.T) {
	p := writeConfig(t, `
[server]
address = "192.168.42.1"
username = "drone"
password = "secret"
timeout = "5s"
tls = "explicit"

[transfer]
max-memory = 1024
retry-delay = "50ms"
metrics-file = "perf/transfers.csv"

[log]
level = "debug"
debug-protocol = true
`)
	c, err := LoadConfigFromFilepath(p)
	require.NoError(t, err)

	assert.Equal(t, "192.168.42.1:21", c.Server.Address)
	assert.Equal(t, 5*time.Second, c.Server.Timeout.Duration)
	assert.Equal(t, int64(1024), c.Transfer.MaxMemory)
	assert.Equal(t, 50*time.Millisecond, c.Transfer.RetryDelay.Duration)
	assert.Equal(t, "perf/transfers.csv", c.Transfer.MetricsFile)

	login := c.Login()
	assert.Equal(t, "drone", login.Username)
	assert.Equal(t, TLSExplicit, login.TLS)
	assert.True(t, login.DebugProtocol)
	assert.NoError(t, login.Validate())
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	p := writeConfig(t, "[server]\nadress = \"typo\"\n")
	_, err := LoadConfigFromFilepath(p)
	assert.Error(t, err)
}

func TestLoadConfigBadDuration(t *testing.T) {
	p := writeConfig(t, "[server]\ntimeout = \"soon\"\n")
	_, err := LoadConfigFromFilepath(p)
	assert.Error(t, err)
}

func TestLoginValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  FTPLoginConfig
		ok   bool
	}{
		{"valid", FTPLoginConfig{Address: "h:21", Username: "u"}, true},
		{"no address", FTPLoginConfig{Username: "u"}, false},
		{"no user", FTPLoginConfig{Address: "h:21"}, false},
		{"bad tls", FTPLoginConfig{Address: "h:21", Username: "u", TLS: "maybe"}, false},
		{"negative timeout", FTPLoginConfig{Address: "h:21", Username: "u", Timeout: -time.Second}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSetServer(t *testing.T) {
	c, err := LoadConfigFromFilepath("")
	require.NoError(t, err)

	c.SetServer("192.168.42.1", "")
	assert.Equal(t, "192.168.42.1:21", c.Server.Address)
	assert.Equal(t, "anonymous", c.Server.Username)

	c.SetServer("", "pilot")
	assert.Equal(t, "192.168.42.1:21", c.Server.Address)
	assert.Equal(t, "pilot", c.Server.Username)
}
