// Package decodecmder provides the decode command, which runs the stream
// decoder over a recorded event stream.
package decodecmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shopstream/cmd/shopstream/output"
	"github.com/papercomputeco/shopstream/pkg/chat"
	"github.com/papercomputeco/shopstream/pkg/cliui"
	"github.com/papercomputeco/shopstream/pkg/config"
	"github.com/papercomputeco/shopstream/pkg/logger"
	"github.com/papercomputeco/shopstream/pkg/sse"
	"github.com/papercomputeco/shopstream/pkg/tail"
)

var flagKeys = []string{
	config.FlagEncoding,
	config.FlagStrict,
	config.FlagSkipMalformed,
	config.FlagMaxBuffer,
}

type decodeCommander struct {
	encoding      string
	strict        bool
	skipMalformed bool
	maxBuffer     int

	chunkSize int
	follow    bool
	events    bool
	jsonOut   bool
	noColor   bool

	cfg    *config.Config
	debug  bool
	logger *slog.Logger
	out    io.Writer
}

const decodeLongDesc string = `Decode a recorded event stream and print every record.

The input is read in chunks of --chunk-size bytes, so any capture can be
replayed with arbitrary chunk boundaries. Use "-" or no argument to read
standard input. With --follow the file is read as it grows, which pairs
with "shopstream ask --raw-out".

By default records are decoded into assistant messages. With --events the
raw SSE records are printed instead, without interpreting their payloads.

Examples:
  shopstream decode capture.sse
  shopstream decode --chunk-size 1 --json capture.sse
  curl -sN -d '{"query":"mug"}' http://localhost:8000/api/chat | shopstream decode
  shopstream decode --follow --events raw.sse`

const decodeShortDesc string = "Decode a recorded event stream"

func NewDecodeCmd() *cobra.Command {
	cmder := &decodeCommander{}

	cmd := &cobra.Command{
		Use:   "decode [file|-]",
		Short: decodeShortDesc,
		Long:  decodeLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
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
			cmder.out = cmd.OutOrStdout()
			cmder.logger = logger.New(
				logger.WithDebug(cmder.debug),
				logger.WithPretty(true),
				logger.WithWriter(cmd.ErrOrStderr()),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "-"
			if len(args) == 1 {
				path = args[0]
			}

			src, err := cmder.open(ctx, path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer src.Close()

			return cmder.run(src)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagEncoding, &cmder.encoding)
	config.AddBoolFlag(cmd, config.Flags, config.FlagStrict, &cmder.strict)
	config.AddBoolFlag(cmd, config.Flags, config.FlagSkipMalformed, &cmder.skipMalformed)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxBuffer, &cmder.maxBuffer)

	cmd.Flags().IntVarP(&cmder.chunkSize, "chunk-size", "c", sse.DefaultChunkSize, "Bytes read from the input per chunk")
	cmd.Flags().BoolVarP(&cmder.follow, "follow", "f", false, "Keep reading as the file grows")
	cmd.Flags().BoolVar(&cmder.events, "events", false, "Print raw SSE records instead of messages")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print one JSON object per decoded record")

	return cmd
}

func (c *decodeCommander) open(ctx context.Context, path string, stdin io.Reader) (io.ReadCloser, error) {
	switch {
	case path == "-" && c.follow:
		return nil, fmt.Errorf("--follow needs a file, not standard input")
	case path == "-":
		return io.NopCloser(stdin), nil
	case c.follow:
		return tail.Follow(ctx, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	return f, nil
}

func (c *decodeCommander) run(src io.Reader) error {
	cliui.SetPlain(c.noColor || c.jsonOut || !cliui.IsTerminal(c.out))
	printer := output.NewPrinter(c.out, c.jsonOut)
	sseOpts := c.cfg.Decoder.SSEOptions()

	c.logger.Debug("decoding stream",
		"chunk_size", c.chunkSize,
		"encoding", c.cfg.Decoder.Encoding,
		"strict", c.cfg.Decoder.Strict,
		"events", c.events,
	)

	if c.events {
		dec, err := sse.NewDecoder(sseOpts...)
		if err != nil {
			return fmt.Errorf("creating decoder: %w", err)
		}
		reader := sse.NewReader[*sse.Event](src, dec, sse.WithChunkSize(c.chunkSize))
		return drain(reader, printer, func(seq int, ev *sse.Event) error {
			return printer.Event(seq, ev)
		})
	}

	dec, err := chat.NewDecoder(
		chat.WithSSEOptions(sseOpts...),
		chat.WithSkipMalformed(c.cfg.Decoder.SkipMalformed),
		chat.WithLogger(c.logger),
	)
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	reader := sse.NewReader[chat.Message](src, dec, sse.WithChunkSize(c.chunkSize))
	return drain(reader, printer, func(seq int, msg chat.Message) error {
		return printer.Message(seq, msg)
	})
}

// drain prints every value of r in stream order and returns the error that
// ended it, if any. JSON output also carries that error as its last line.
func drain[T any](r *sse.Reader[T], printer *output.Printer, print func(int, T) error) error {
	seq := 0
	for v, err := range r.All() {
		if sse.IsFatal(err) {
			if printer.JSON() {
				if perr := printer.Failure(seq, err); perr != nil {
					return fmt.Errorf("writing output: %w", perr)
				}
			}
			return err
		}

		var perr error
		if err != nil {
			perr = printer.RecordError(chat.NewRecordError(seq, err))
		} else {
			perr = print(seq, v)
		}
		if perr != nil {
			return fmt.Errorf("writing output: %w", perr)
		}
		seq++
	}
	return nil
}
