package chat

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the server configuration as read from a TOML file.
type Config struct {
	Server ServerSection `toml:"server"`
	Limits LimitsSection `toml:"limits"`
	Log    LogSection    `toml:"log"`
}

type ServerSection struct {
	Addr        string `toml:"addr"`
	WSAddr      string `toml:"ws_addr"`      // empty disables the WebSocket listener
	MetricsAddr string `toml:"metrics_addr"` // empty disables /metrics and /health
}

type LimitsSection struct {
	ReadBufferSize         int `toml:"read_buffer_size"`
	MaxLineBytes           int `toml:"max_line_bytes"`
	MaxMessageLength       int `toml:"max_message_length"` // runes kept from a chat line
	OutboundQueue          int `toml:"outbound_queue"`
	WriteTimeoutSeconds    int `toml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int `toml:"shutdown_timeout_seconds"`
}

type LogSection struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerSection{
			Addr:        ":5000",
			MetricsAddr: ":9090",
		},
		Limits: LimitsSection{
			ReadBufferSize:         1024,
			MaxLineBytes:           4096,
			MaxMessageLength:       512,
			OutboundQueue:          64,
			WriteTimeoutSeconds:    10,
			ShutdownTimeoutSeconds: 5,
		},
		Log: LogSection{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads path on top of the defaults and applies CHAT_* environment
// overrides. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		switch {
		case errors.Is(err, os.ErrNotExist):
			cfg = DefaultConfig()
		case err != nil:
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		default:
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				keys := make([]string, len(undecoded))
				for i, k := range undecoded {
					keys[i] = k.String()
				}
				return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
			}
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides follows the pattern CHAT_SECTION_KEY,
// e.g. CHAT_SERVER_ADDR=:6000 or CHAT_LIMITS_OUTBOUND_QUEUE=128.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"CHAT_SERVER_ADDR":         &cfg.Server.Addr,
		"CHAT_SERVER_WS_ADDR":      &cfg.Server.WSAddr,
		"CHAT_SERVER_METRICS_ADDR": &cfg.Server.MetricsAddr,
		"CHAT_LOG_LEVEL":           &cfg.Log.Level,
		"CHAT_LOG_FORMAT":          &cfg.Log.Format,
	}
	for key, dst := range strs {
		if val, ok := os.LookupEnv(key); ok {
			*dst = val
		}
	}

	ints := map[string]*int{
		"CHAT_LIMITS_READ_BUFFER_SIZE":         &cfg.Limits.ReadBufferSize,
		"CHAT_LIMITS_MAX_LINE_BYTES":           &cfg.Limits.MaxLineBytes,
		"CHAT_LIMITS_MAX_MESSAGE_LENGTH":       &cfg.Limits.MaxMessageLength,
		"CHAT_LIMITS_OUTBOUND_QUEUE":           &cfg.Limits.OutboundQueue,
		"CHAT_LIMITS_WRITE_TIMEOUT_SECONDS":    &cfg.Limits.WriteTimeoutSeconds,
		"CHAT_LIMITS_SHUTDOWN_TIMEOUT_SECONDS": &cfg.Limits.ShutdownTimeoutSeconds,
	}
	for key, dst := range ints {
		val := os.Getenv(key)
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", key, val)
		}
		*dst = n
	}
	return nil
}

// Validate reports the first setting the server cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr must not be empty")
	}
	limits := []struct {
		name string
		val  int
	}{
		{"limits.read_buffer_size", c.Limits.ReadBufferSize},
		{"limits.max_line_bytes", c.Limits.MaxLineBytes},
		{"limits.max_message_length", c.Limits.MaxMessageLength},
		{"limits.outbound_queue", c.Limits.OutboundQueue},
		{"limits.write_timeout_seconds", c.Limits.WriteTimeoutSeconds},
		{"limits.shutdown_timeout_seconds", c.Limits.ShutdownTimeoutSeconds},
	}
	for _, l := range limits {
		if l.val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", l.name, l.val)
		}
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

func (c Config) WriteTimeout() time.Duration {
	return time.Duration(c.Limits.WriteTimeoutSeconds) * time.Second
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Limits.ShutdownTimeoutSeconds) * time.Second
}

func (l LogSection) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// NewLogger builds the process logger described by l.
func NewLogger(w io.Writer, l LogSection) (*slog.Logger, error) {
	lvl, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}
