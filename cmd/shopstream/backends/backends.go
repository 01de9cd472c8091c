// Package backends opens the history store and event publisher selected by
// configuration for shopstream commands.
package backends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/papercomputeco/shopstream/pkg/dotdir"
	"github.com/papercomputeco/shopstream/pkg/eventstream"
	"github.com/papercomputeco/shopstream/pkg/eventstream/kafka"
	"github.com/papercomputeco/shopstream/pkg/eventstream/nop"
	"github.com/papercomputeco/shopstream/pkg/eventstream/worker"
	"github.com/papercomputeco/shopstream/pkg/storage"
	"github.com/papercomputeco/shopstream/pkg/storage/inmemory"
	"github.com/papercomputeco/shopstream/pkg/storage/postgres"
	"github.com/papercomputeco/shopstream/pkg/storage/sqlite"
)

// historyFile is the default SQLite database name inside .shopstream/.
const historyFile = "history.db"

// ErrHistoryDisabled is returned by OpenHistory for provider "none".
var ErrHistoryDisabled = errors.New("conversation history is disabled")

// HistoryOptions selects a history backend.
type HistoryOptions struct {
	Provider    string
	SQLitePath  string
	PostgresDSN string

	// ConfigDir overrides .shopstream/ resolution for the default SQLite path.
	ConfigDir string

	Logger *slog.Logger
}

// OpenHistory opens the configured history store.
func OpenHistory(ctx context.Context, opts HistoryOptions) (storage.Driver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	switch opts.Provider {
	case "", "sqlite":
		path, err := ResolveSQLitePath(opts.SQLitePath, opts.ConfigDir)
		if err != nil {
			return nil, err
		}
		d, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("opening SQLite history %s: %w", path, err)
		}
		logger.Debug("using SQLite history", "path", path)
		return d, nil

	case "postgres":
		if opts.PostgresDSN == "" {
			return nil, errors.New("history provider postgres requires --postgres-dsn")
		}
		d, err := postgres.NewDriver(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening PostgreSQL history: %w", err)
		}
		logger.Debug("using PostgreSQL history")
		return d, nil

	case "memory":
		logger.Debug("using in-memory history")
		return inmemory.NewDriver(), nil

	case "none":
		return nil, ErrHistoryDisabled

	default:
		return nil, fmt.Errorf("unknown history provider: %q (available: sqlite, postgres, memory, none)", opts.Provider)
	}
}

// ResolveSQLitePath returns override when set, then $SHOPSTREAM_HISTORY_DB,
// then history.db inside the resolved .shopstream/ directory.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("SHOPSTREAM_HISTORY_DB")); envPath != "" {
		return envPath, nil
	}

	path, err := dotdir.NewManager().File(configDir, historyFile)
	if err != nil {
		return "", fmt.Errorf("resolving history database: %w", err)
	}
	return path, nil
}

// PublisherOptions selects an event publisher.
type PublisherOptions struct {
	Provider string

	// Brokers is a comma separated list of Kafka brokers.
	Brokers string
	Topic   string

	Logger *slog.Logger
}

// OpenPublisher returns the configured publisher. Provider "none" (or empty)
// yields a no-op publisher. Broker-backed publishers are wrapped in a
// worker.Pool so a slow broker never stalls the stream consumer.
func OpenPublisher(opts PublisherOptions) (eventstream.Publisher, error) {
	switch opts.Provider {
	case "", "none":
		return nop.NewPublisher(), nil

	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: kafka.ParseBrokers(opts.Brokers),
			Topic:   opts.Topic,
			Logger:  opts.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		pool, err := worker.NewPool(&worker.Config{
			Publisher: p,
			Logger:    opts.Logger,
		})
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("starting publish workers: %w", err)
		}
		return pool, nil

	default:
		return nil, fmt.Errorf("unknown eventstream provider: %q (available: none, kafka)", opts.Provider)
	}
}
