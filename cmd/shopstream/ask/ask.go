// Package askcmder provides the ask command, which sends queries to the shop
// assistant and renders the streamed answers.
package askcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shopstream/cmd/shopstream/backends"
	"github.com/papercomputeco/shopstream/cmd/shopstream/output"
	"github.com/papercomputeco/shopstream/pkg/chat"
	"github.com/papercomputeco/shopstream/pkg/client"
	"github.com/papercomputeco/shopstream/pkg/cliui"
	"github.com/papercomputeco/shopstream/pkg/config"
	"github.com/papercomputeco/shopstream/pkg/dotdir"
	"github.com/papercomputeco/shopstream/pkg/eventstream"
	"github.com/papercomputeco/shopstream/pkg/logger"
	"github.com/papercomputeco/shopstream/pkg/sse"
	"github.com/papercomputeco/shopstream/pkg/storage"
)

// storeTimeout bounds history writes, which must succeed even after the
// command context is canceled.
const storeTimeout = 5 * time.Second

var flagKeys = []string{
	config.FlagAPITarget,
	config.FlagTimeout,
	config.FlagEncoding,
	config.FlagStrict,
	config.FlagSkipMalformed,
	config.FlagMaxBuffer,
	config.FlagHistory,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagEventStream,
	config.FlagBrokers,
	config.FlagTopic,
}

type askCommander struct {
	flags struct {
		apiTarget     string
		timeout       time.Duration
		encoding      string
		strict        bool
		skipMalformed bool
		maxBuffer     int
		history       string
		sqlitePath    string
		postgresDSN   string
		eventStream   string
		brokers       string
		topic         string
	}

	jsonOut   bool
	noHistory bool
	noColor   bool
	rawOut    string
	logFile   string

	configDir string
	debug     bool
	cfg       *config.Config

	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	printer *output.Printer

	logger    *slog.Logger
	client    *client.Client
	store     storage.Driver
	publisher eventstream.Publisher
	source    eventstream.EventSource
}

const askLongDesc string = `Ask the shop assistant a question and render the streamed answer.

With a query argument the answer is printed once and the command exits.
Without one an interactive session starts: type a question and press Enter,
/exit or Ctrl+D quits.

Every decoded message is printed as soon as its record completes. Records
that fail to parse are reported in place and the rest of the stream is still
shown. Conversations are saved to the configured history backend and, when
an event stream is configured, every message is published to it.

Examples:
  shopstream ask "a backpack for hiking"
  shopstream ask --json "coffee mug" | jq .
  shopstream ask --api-target http://shop.internal:8000
  shopstream ask --history none --strict`

const askShortDesc string = "Ask the shop assistant"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.ArbitraryArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.noColor, _ = cmd.Flags().GetBool("no-color")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, strings.TrimSpace(strings.Join(args, " ")))
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.flags.apiTarget)
	config.AddDurationFlag(cmd, config.Flags, config.FlagTimeout, &cmder.flags.timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagEncoding, &cmder.flags.encoding)
	config.AddBoolFlag(cmd, config.Flags, config.FlagStrict, &cmder.flags.strict)
	config.AddBoolFlag(cmd, config.Flags, config.FlagSkipMalformed, &cmder.flags.skipMalformed)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxBuffer, &cmder.flags.maxBuffer)
	config.AddStringFlag(cmd, config.Flags, config.FlagHistory, &cmder.flags.history)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.flags.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.flags.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &cmder.flags.eventStream)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &cmder.flags.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &cmder.flags.topic)

	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print one JSON object per decoded record")
	cmd.Flags().BoolVar(&cmder.noHistory, "no-history", false, "Do not save conversations")
	cmd.Flags().StringVar(&cmder.rawOut, "raw-out", "", "Append the raw response bytes to this file")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *askCommander) run(ctx context.Context, query string) error {
	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	cliui.SetPlain(c.noColor || c.jsonOut || !cliui.IsTerminal(c.out))
	c.printer = output.NewPrinter(c.out, c.jsonOut)

	cleanup, err := c.setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if query != "" {
		return c.askOne(ctx, query)
	}
	return c.repl(ctx)
}

func (c *askCommander) setupLogger() (func(), error) {
	stderr := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(c.errOut),
	)

	if c.logFile == "" {
		c.logger = stderr
		return func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	c.logger = logger.Multi(stderr, logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	))
	return func() { _ = f.Close() }, nil
}

// setup builds the client, history store and publisher from configuration.
func (c *askCommander) setup(ctx context.Context) (func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var tee io.Writer
	if c.rawOut != "" {
		f, err := os.OpenFile(c.rawOut, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening raw output file: %w", err)
		}
		closers = append(closers, func() { _ = f.Close() })
		tee = f
	}

	cl, err := client.New(client.Config{
		BaseURL: c.cfg.Client.APITarget,
		Timeout: c.cfg.Client.TimeoutDuration(),
		DecoderOptions: []chat.DecoderOption{
			chat.WithSSEOptions(c.cfg.Decoder.SSEOptions()...),
			chat.WithSkipMalformed(c.cfg.Decoder.SkipMalformed),
		},
		Tee:    tee,
		Logger: c.logger,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("creating client: %w", err)
	}
	c.client = cl

	if !c.noHistory {
		store, err := backends.OpenHistory(ctx, backends.HistoryOptions{
			Provider:    c.cfg.History.Provider,
			SQLitePath:  c.cfg.History.SQLitePath,
			PostgresDSN: c.cfg.History.PostgresDSN,
			ConfigDir:   c.configDir,
			Logger:      c.logger,
		})
		switch {
		case errors.Is(err, backends.ErrHistoryDisabled):
		case err != nil:
			cleanup()
			return nil, err
		default:
			c.store = store
			closers = append(closers, func() { _ = store.Close() })
		}
	}

	pub, err := backends.OpenPublisher(backends.PublisherOptions{
		Provider: c.cfg.EventStream.Provider,
		Brokers:  c.cfg.EventStream.Brokers,
		Topic:    c.cfg.EventStream.Topic,
		Logger:   c.logger,
	})
	if err != nil {
		cleanup()
		return nil, err
	}
	c.publisher = pub
	closers = append(closers, func() {
		if err := pub.Close(); err != nil {
			c.logger.Warn("closing publisher", "error", err)
		}
	})

	host, _ := os.Hostname()
	c.source = eventstream.EventSource{APITarget: c.cfg.Client.APITarget, Host: host}

	return cleanup, nil
}

func (c *askCommander) repl(ctx context.Context) error {
	if !c.jsonOut {
		fmt.Fprintf(c.out, "\n  %s %s\n", cliui.KeyStyle.Render("Shop:"), cliui.NameStyle.Render(c.cfg.Client.APITarget))
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your question and press Enter. /exit or Ctrl+D to quit."))
	}

	scanner := bufio.NewScanner(c.in)
	for {
		if !c.jsonOut {
			fmt.Fprint(c.out, cliui.PromptStyle.Render("you> "))
		}
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if err := c.askOne(ctx, input); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !c.jsonOut {
				fmt.Fprintf(c.errOut, "  %s %v\n", cliui.FailMark, err)
			}
		}
		if !c.jsonOut {
			fmt.Fprintln(c.out)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// askOne streams one answer, printing every record as it completes. The
// returned error is the one that ended the stream early, if any.
func (c *askCommander) askOne(ctx context.Context, query string) error {
	conv := chat.NewConversation(query)
	log := c.logger.With("conversation_id", conv.ID)
	c.save(conv, log)

	stream, err := c.client.Ask(ctx, query)
	if err != nil {
		conv.Complete(err)
		c.finish(ctx, conv, log)
		return c.fail(conv, err)
	}
	defer stream.Close()

	var fatal error
	for msg, err := range stream.All() {
		if sse.IsFatal(err) {
			fatal = err
			break
		}

		seq := len(conv.Messages) + len(conv.Errors)
		conv.Apply(msg, err)

		if perr := c.printer.Value(seq, msg, err); perr != nil {
			werr := fmt.Errorf("writing output: %w", perr)
			conv.Complete(werr)
			c.finish(ctx, conv, log)
			return werr
		}
		if err != nil {
			log.Debug("skipping malformed record", "seq", seq, "error", err)
			continue
		}

		if err := c.publisher.PublishMessage(ctx, eventstream.NewMessageReceived(c.source, conv, seq, msg)); err != nil {
			log.Warn("could not publish message", "seq", seq, "error", err)
		}
	}

	conv.Complete(fatal)
	c.finish(ctx, conv, log)

	log.Debug("conversation finished",
		"status", conv.Status,
		"messages", len(conv.Messages),
		"record_errors", len(conv.Errors),
	)
	if fatal != nil {
		return c.fail(conv, fatal)
	}
	return nil
}

// fail reports the error that ended conv. JSON output carries it as the last
// line; styled output leaves it to the caller.
func (c *askCommander) fail(conv *chat.Conversation, err error) error {
	if c.printer.JSON() {
		if perr := c.printer.Failure(len(conv.Messages)+len(conv.Errors), err); perr != nil {
			return fmt.Errorf("writing output: %w", perr)
		}
	}
	return err
}

// finish records the final state of conv everywhere it is tracked.
func (c *askCommander) finish(ctx context.Context, conv *chat.Conversation, log *slog.Logger) {
	c.save(conv, log)

	if err := c.publisher.PublishConversation(context.WithoutCancel(ctx), eventstream.NewConversationEnded(c.source, conv)); err != nil {
		log.Warn("could not publish conversation", "error", err)
	}

	if c.store == nil {
		return
	}
	err := dotdir.NewManager().SaveSession(&dotdir.SessionState{
		ConversationID: conv.ID,
		Query:          conv.Query,
		APITarget:      c.cfg.Client.APITarget,
		UpdatedAt:      time.Now().UTC(),
	}, c.configDir)
	if err != nil {
		log.Warn("could not save session", "error", err)
	}
}

func (c *askCommander) save(conv *chat.Conversation, log *slog.Logger) {
	if c.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := c.store.Put(ctx, conv); err != nil {
		log.Warn("could not save conversation", "error", err)
	}
}
