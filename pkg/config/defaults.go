package config

import "github.com/papercomputeco/shopstream/pkg/sse"

const (
	defaultClientAPITarget = "http://localhost:8000"
	defaultClientTimeout   = "5m"

	defaultEncoding = "utf-8"

	defaultHistoryProvider = "sqlite"

	defaultEventStreamProvider = "none"
	defaultEventStreamTopic    = "shopstream.messages"

	defaultMockListen = ":8000"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
			Timeout:   defaultClientTimeout,
		},
		Decoder: DecoderConfig{
			Encoding:  defaultEncoding,
			MaxBuffer: sse.DefaultMaxBufferSize,
		},
		History: HistoryConfig{
			Provider: defaultHistoryProvider,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		Mock: MockConfig{
			Listen: defaultMockListen,
		},
	}
}
