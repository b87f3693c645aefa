package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// TLS modes accepted in the [server] section.
const (
	TLSNone     = ""
	TLSExplicit = "explicit"
	TLSImplicit = "implicit"
)

// FTPLoginConfig holds FTP connection credentials and settings.
type FTPLoginConfig struct {
	Address  string // Example: "192.168.42.1:21"
	Username string
	Password string
	Timeout  time.Duration

	TLS                string // TLSNone, TLSExplicit or TLSImplicit
	InsecureSkipVerify bool
	DisableEPSV        bool
	DebugProtocol      bool // trace the control channel through the logger
}

// Validate reports whether the login settings are usable for a dial.
func (c FTPLoginConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server address is empty")
	}
	if c.Username == "" {
		return fmt.Errorf("username is empty")
	}
	switch c.TLS {
	case TLSNone, TLSExplicit, TLSImplicit:
	default:
		return fmt.Errorf("unknown tls mode %q", c.TLS)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("negative timeout %v", c.Timeout)
	}
	return nil
}

// Duration is a time.Duration decoded from a TOML string such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig is the [server] section.
type ServerConfig struct {
	Address            string   `toml:"address"`
	Username           string   `toml:"username"`
	Password           string   `toml:"password"`
	Timeout            Duration `toml:"timeout"`
	TLS                string   `toml:"tls"`
	InsecureSkipVerify bool     `toml:"insecure-skip-verify"`
	DisableEPSV        bool     `toml:"disable-epsv"`
}

// TransferConfig is the [transfer] section.
type TransferConfig struct {
	MaxMemory   int64    `toml:"max-memory"`  // cap for in-memory downloads and listings
	ChunkSize   int      `toml:"chunk-size"`  // transport read size per data callback
	Retries     int      `toml:"retries"`     // connect attempts
	RetryDelay  Duration `toml:"retry-delay"` // first backoff delay
	MetricsFile string   `toml:"metrics-file"`
}

// LogConfig is the [log] section.
type LogConfig struct {
	Level         string `toml:"level"`
	Development   bool   `toml:"development"`
	DebugProtocol bool   `toml:"debug-protocol"`
}

// TerminalConfig is the [terminal] section.
type TerminalConfig struct {
	Theme string `toml:"theme"`
}

// A Config stores the whole configuration of the client.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Transfer TransferConfig `toml:"transfer"`
	Log      LogConfig      `toml:"log"`
	Terminal TerminalConfig `toml:"terminal"`
}

// LoadConfigFromFilepath loads configuration from a specified local path.
// An empty path yields the defaults.
func LoadConfigFromFilepath(p string) (*Config, error) {
	conf := &Config{}
	if p != "" {
		md, err := toml.DecodeFile(p, conf)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", p, err)
		}
		if keys := md.Undecoded(); len(keys) > 0 {
			return nil, fmt.Errorf("decode %s: unknown keys %v", p, keys)
		}
	}
	setDefaultValue(conf)
	return conf, nil
}

// setDefaultValue fills every unset field.
func setDefaultValue(c *Config) {
	if c.Server.Address != "" && !strings.Contains(c.Server.Address, ":") {
		c.Server.Address += ":21"
	}
	if c.Server.Username == "" {
		c.Server.Username = "anonymous"
	}
	if c.Server.Timeout.Duration == 0 {
		c.Server.Timeout.Duration = 30 * time.Second
	}
	if c.Transfer.MaxMemory == 0 {
		c.Transfer.MaxMemory = 64 * 1024 * 1024
	}
	if c.Transfer.ChunkSize == 0 {
		c.Transfer.ChunkSize = 64 * 1024
	}
	if c.Transfer.Retries == 0 {
		c.Transfer.Retries = 3
	}
	if c.Transfer.RetryDelay.Duration == 0 {
		c.Transfer.RetryDelay.Duration = 500 * time.Millisecond
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Terminal.Theme == "" {
		c.Terminal.Theme = "dark"
	}
}

// SetServer overrides the server address and user when they are not
// empty, as given on the command line.
func (c *Config) SetServer(address, username string) {
	if address != "" {
		c.Server.Address = address
	}
	if username != "" {
		c.Server.Username = username
	}
	setDefaultValue(c)
}

// Login extracts the connection settings used to dial the server.
func (c *Config) Login() FTPLoginConfig {
	return FTPLoginConfig{
		Address:            c.Server.Address,
		Username:           c.Server.Username,
		Password:           c.Server.Password,
		Timeout:            c.Server.Timeout.Duration,
		TLS:                c.Server.TLS,
		InsecureSkipVerify: c.Server.InsecureSkipVerify,
		DisableEPSV:        c.Server.DisableEPSV,
		DebugProtocol:      c.Log.DebugProtocol,
	}
}
