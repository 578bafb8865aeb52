package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultEnvPrefix is the prefix of environment overrides.
const DefaultEnvPrefix = "RDBG_"

// envSetters maps a variable name (without prefix) to the setting it
// overrides.
var envSetters = map[string]func(*Config, string) error{
	"ADDRESS": func(c *Config, v string) error {
		c.Connection.Address = v
		return nil
	},
	"DIAL_TIMEOUT": func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.Connection.DialTimeout = Duration(d)
		return nil
	},
	"RECEIVE_BUFFER": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Connection.ReceiveBuffer = n
		return nil
	},
	"ADAPTER_COMMAND": func(c *Config, v string) error {
		c.Connection.AdapterCommand = strings.Fields(v)
		return nil
	},
	"LOG_LEVEL": func(c *Config, v string) error {
		c.Logging.Level = strings.ToLower(v)
		return nil
	},
	"LOG_FORMAT": func(c *Config, v string) error {
		c.Logging.Format = strings.ToLower(v)
		return nil
	},
	"HTTP_ENABLED": func(c *Config, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		c.HTTP.Enabled = b
		return nil
	},
	"HTTP_ADDR": func(c *Config, v string) error {
		c.HTTP.Addr = v
		return nil
	},
	"HTTP_ALLOWED_ORIGINS": func(c *Config, v string) error {
		c.HTTP.AllowedOrigins = splitList(v)
		return nil
	},
	"ISOLATE_LISTENERS": func(c *Config, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		c.Dispatch.IsolateListeners = b
		return nil
	},
}

// ApplyEnv overrides settings from environment variables named
// prefix+NAME, e.g. RDBG_LOG_LEVEL. An empty prefix means
// DefaultEnvPrefix. Empty values are treated as set.
func (c *Config) ApplyEnv(prefix string) error {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	for name, set := range envSetters {
		val, ok := os.LookupEnv(prefix + name)
		if !ok {
			continue
		}
		if err := set(c, val); err != nil {
			return fmt.Errorf("%s%s: %w", prefix, name, err)
		}
	}
	return nil
}

// parseBool accepts the same spellings as the file formats plus yes/no
// and on/off.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
