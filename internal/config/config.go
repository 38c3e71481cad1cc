package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

const (
	DefaultBinary           = "mpv"
	DefaultSocketPathPrefix = "/tmp/mpvsock-"
)

// Mode selects how the link to mpv is established.
type Mode string

const (
	ModeConnect     Mode = "connect"
	ModeSpawnServer Mode = "spawn-server"
	ModeSpawnClient Mode = "spawn-client"
)

type Config struct {
	Binary     string   `toml:"binary"`
	SocketPath string   `toml:"socket_path"`
	Mode       Mode     `toml:"mode"`
	ExtraArgs  []string `toml:"extra_args"`
	Debug      bool     `toml:"debug"`
	Metrics    bool     `toml:"metrics"`
	Fullscreen bool     `toml:"fullscreen"`
}

// Load builds the configuration from defaults, then the TOML file at path if
// path is not empty, then environment variables.
func Load(path string) (Config, error) {
	cfg := Config{
		Binary: DefaultBinary,
		Mode:   ModeSpawnClient,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.Binary = envVar("MPV_BINARY", cfg.Binary)
	cfg.SocketPath = envVar("MPVSOCK_SOCKET_PATH", cfg.SocketPath)
	cfg.Mode = Mode(envVar("MPVSOCK_MODE", string(cfg.Mode)))
	if args := os.Getenv("MPVSOCK_EXTRA_ARGS"); args != "" {
		cfg.ExtraArgs = strings.Fields(args)
	}
	cfg.Debug = envVar("MPVSOCK_DEBUG", cfg.Debug)
	cfg.Metrics = envVar("MPVSOCK_METRICS", cfg.Metrics)
	cfg.Fullscreen = envVar("MPVSOCK_FULLSCREEN", cfg.Fullscreen)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func envVar[T ~string | ~bool | ~int](key string, def T) T {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	switch any(def).(type) {
	case string:
		return any(v).(T)
	case bool:
		if b, err := strconv.ParseBool(v); err == nil {
			return any(b).(T)
		}
	case int:
		if i, err := strconv.Atoi(v); err == nil {
			return any(i).(T)
		}
	}
	return def
}

// Validate checks the configuration and fills in defaults that depend on
// other fields. Call it again after overriding fields.
func (c *Config) Validate() error {
	if c.Binary == "" {
		c.Binary = DefaultBinary
	}

	switch c.Mode {
	case ModeSpawnClient:
	case ModeSpawnServer:
		// one socket per run
		if c.SocketPath == "" {
			c.SocketPath = DefaultSocketPathPrefix + uuid.NewString()
		}
	case ModeConnect:
		if c.SocketPath == "" {
			return fmt.Errorf("socket_path required in %s mode", c.Mode)
		}
	default:
		return fmt.Errorf("unknown mode %q: want %s, %s or %s", c.Mode, ModeConnect, ModeSpawnServer, ModeSpawnClient)
	}
	return nil
}
