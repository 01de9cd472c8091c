// Package historycmder provides the history command for browsing recorded
// conversations.
package historycmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shopstream/cmd/shopstream/backends"
	"github.com/papercomputeco/shopstream/pkg/config"
	"github.com/papercomputeco/shopstream/pkg/logger"
	"github.com/papercomputeco/shopstream/pkg/storage"
)

var flagKeys = []string{
	config.FlagHistory,
	config.FlagSQLite,
	config.FlagPostgresDSN,
}

// historyCommander holds the flags shared by the history subcommands.
type historyCommander struct {
	history     string
	sqlitePath  string
	postgresDSN string

	configDir string
	cfg       *config.Config
	logger    *slog.Logger
}

const historyLongDesc string = `Browse conversations recorded by "shopstream ask".

Conversations are read from the configured history backend (SQLite by
default, see "shopstream config get history.provider").

Examples:
  shopstream history list
  shopstream history show            Show the most recent conversation
  shopstream history show 3f2a       Show a conversation by id prefix
  shopstream history rm 3f2a9c1e-...`

const historyShortDesc string = "Browse recorded conversations"

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")
			cmder.logger = logger.New(
				logger.WithDebug(debug),
				logger.WithPretty(true),
				logger.WithWriter(cmd.ErrOrStderr()),
			)

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)
			cmder.cfg = config.FromViper(v)
			return nil
		},
	}

	persistent := &cobra.Command{}
	config.AddStringFlag(persistent, config.Flags, config.FlagHistory, &cmder.history)
	config.AddStringFlag(persistent, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(persistent, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	cmd.PersistentFlags().AddFlagSet(persistent.Flags())

	cmd.AddCommand(newListCmd(cmder))
	cmd.AddCommand(newShowCmd(cmder))
	cmd.AddCommand(newRmCmd(cmder))

	return cmd
}

// open opens the configured history store.
func (c *historyCommander) open(ctx context.Context) (storage.Driver, error) {
	store, err := backends.OpenHistory(ctx, backends.HistoryOptions{
		Provider:    c.cfg.History.Provider,
		SQLitePath:  c.cfg.History.SQLitePath,
		PostgresDSN: c.cfg.History.PostgresDSN,
		ConfigDir:   c.configDir,
		Logger:      c.logger,
	})
	if errors.Is(err, backends.ErrHistoryDisabled) {
		return nil, fmt.Errorf("%w: set history.provider to sqlite or postgres", err)
	}
	return store, err
}

// resolveID returns the id of the single conversation whose id is arg or
// starts with arg.
func resolveID(ctx context.Context, store storage.Driver, arg string) (string, error) {
	if _, err := store.Get(ctx, arg); err == nil {
		return arg, nil
	} else if !errors.As(err, &storage.NotFoundError{}) {
		return "", err
	}

	convs, err := store.List(ctx, 0)
	if err != nil {
		return "", fmt.Errorf("listing conversations: %w", err)
	}

	var matches []string
	for _, c := range convs {
		if strings.HasPrefix(c.ID, arg) {
			matches = append(matches, c.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", storage.NotFoundError{ID: arg}
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("id prefix %q is ambiguous: matches %d conversations", arg, len(matches))
	}
}

func closeStore(store storage.Driver, w io.Writer) {
	if err := store.Close(); err != nil {
		fmt.Fprintf(w, "closing history: %v\n", err)
	}
}
