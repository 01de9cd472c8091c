package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/papercomputeco/shopstream/pkg/sse"
)

// Config represents the persistent shopstream configuration stored as
// config.toml in the .shopstream/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Client      ClientConfig      `toml:"client"`
	Decoder     DecoderConfig     `toml:"decoder"`
	History     HistoryConfig     `toml:"history"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Mock        MockConfig        `toml:"mock"`
}

// ClientConfig holds settings for commands that talk to the shop assistant
// API. APITarget is a full URL (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
	Timeout   string `toml:"timeout,omitempty"`
}

// DecoderConfig holds event stream decoding settings.
type DecoderConfig struct {
	Encoding      string `toml:"encoding,omitempty"`
	Strict        bool   `toml:"strict,omitempty"`
	SkipMalformed bool   `toml:"skip_malformed,omitempty"`
	MaxBuffer     int    `toml:"max_buffer,omitempty"`
}

// HistoryConfig selects where conversations are recorded.
type HistoryConfig struct {
	// Provider is one of "sqlite", "postgres", "memory" or "none".
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventStreamConfig selects where received messages are published.
type EventStreamConfig struct {
	// Provider is one of "none" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of host:port pairs.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// MockConfig holds settings for the development mock server.
type MockConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),
	"client.timeout": {
		get: func(c *Config) string { return c.Client.Timeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for client.timeout: %w", err)
			}
			c.Client.Timeout = v
			return nil
		},
	},
	"decoder.encoding":       stringKey(func(c *Config) *string { return &c.Decoder.Encoding }),
	"decoder.strict":         boolKey("decoder.strict", func(c *Config) *bool { return &c.Decoder.Strict }),
	"decoder.skip_malformed": boolKey("decoder.skip_malformed", func(c *Config) *bool { return &c.Decoder.SkipMalformed }),
	"decoder.max_buffer": {
		get: func(c *Config) string {
			if c.Decoder.MaxBuffer == 0 {
				return ""
			}
			return strconv.Itoa(c.Decoder.MaxBuffer)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid value for decoder.max_buffer: %q", v)
			}
			c.Decoder.MaxBuffer = n
			return nil
		},
	},
	"history.provider": {
		get: func(c *Config) string { return c.History.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case "sqlite", "postgres", "memory", "none":
				c.History.Provider = v
				return nil
			}
			return fmt.Errorf("invalid value for history.provider: %q (available: sqlite, postgres, memory, none)", v)
		},
	},
	"history.sqlite_path":  stringKey(func(c *Config) *string { return &c.History.SQLitePath }),
	"history.postgres_dsn": stringKey(func(c *Config) *string { return &c.History.PostgresDSN }),
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case "none", "kafka":
				c.EventStream.Provider = v
				return nil
			}
			return fmt.Errorf("invalid value for eventstream.provider: %q (available: none, kafka)", v)
		},
	},
	"eventstream.brokers": stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":   stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
	"mock.listen":         stringKey(func(c *Config) *string { return &c.Mock.Listen }),
}

// TimeoutDuration parses Timeout, returning zero when it is unset or invalid.
func (c ClientConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// SSEOptions converts the decoder settings into event stream decoder options.
func (c DecoderConfig) SSEOptions() []sse.DecoderOption {
	opts := []sse.DecoderOption{
		sse.WithStrictDecoding(c.Strict),
		sse.WithMaxBufferSize(c.MaxBuffer),
	}
	if c.Encoding != "" {
		opts = append(opts, sse.WithEncoding(c.Encoding))
	}
	return opts
}
