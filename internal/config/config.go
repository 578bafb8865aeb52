package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds every rdbg setting.
type Config struct {
	Connection ConnectionConfig `json:"connection" yaml:"connection" toml:"connection"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging" toml:"logging"`
	HTTP       HTTPConfig       `json:"http" yaml:"http" toml:"http"`
	Dispatch   DispatchConfig   `json:"dispatch" yaml:"dispatch" toml:"dispatch"`
}

// ConnectionConfig describes how to reach the debuggee agent.
type ConnectionConfig struct {
	// Address is the host:port used by attach.
	Address string `json:"address" yaml:"address" toml:"address"`

	// DialTimeout bounds the TCP connect. Zero means no limit.
	DialTimeout Duration `json:"dial_timeout" yaml:"dial_timeout" toml:"dial_timeout"`

	// ReceiveBuffer is how many event groups may wait for the dispatcher.
	ReceiveBuffer int `json:"receive_buffer" yaml:"receive_buffer" toml:"receive_buffer"`

	// AdapterCommand starts the agent for launch, e.g. ["debug-agent", "--stdio"].
	AdapterCommand []string `json:"adapter_command" yaml:"adapter_command" toml:"adapter_command"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// HTTPConfig controls the status endpoint.
type HTTPConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Addr           string   `json:"addr" yaml:"addr" toml:"addr"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
}

// DispatchConfig controls the event dispatcher.
type DispatchConfig struct {
	// IsolateListeners recovers panicking listeners instead of letting the
	// panic end the session.
	IsolateListeners bool `json:"isolate_listeners" yaml:"isolate_listeners" toml:"isolate_listeners"`
}

// Duration is a time.Duration written as "10s" in files.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Connection: ConnectionConfig{
			Address:       "localhost:8000",
			DialTimeout:   Duration(10 * time.Second),
			ReceiveBuffer: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:7070",
		},
		Dispatch: DispatchConfig{
			IsolateListeners: true,
		},
	}
}

// Load reads path over Defaults(). Supports .toml, .yaml/.yml and .json.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return cfg, &ParseError{Path: path, Err: err}
	}
	return cfg, nil
}

// Validate checks every setting and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil || c.Logging.Level == "" {
		add("logging.level", "unknown level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		add("logging.format", "must be json or console, got %q", c.Logging.Format)
	}
	if c.Connection.DialTimeout < 0 {
		add("connection.dial_timeout", "must not be negative")
	}
	if c.Connection.ReceiveBuffer < 0 {
		add("connection.receive_buffer", "must not be negative")
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		add("http.addr", "required when http is enabled")
	}

	return errors.Join(errs...)
}
