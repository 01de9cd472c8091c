// Package mockcmder provides the mock command, which runs a stand-in shop
// assistant API for local development.
package mockcmder

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shopstream/pkg/config"
	"github.com/papercomputeco/shopstream/pkg/logger"
	"github.com/papercomputeco/shopstream/pkg/mock"
)

var flagKeys = []string{config.FlagMockListen}

type mockCommander struct {
	listen    string
	file      string
	chunkSize int
	delay     time.Duration

	debug  bool
	logger *slog.Logger

	// ready receives the bound address once the server listens.
	ready func(addr string)
}

const mockLongDesc string = `Run a mock shop assistant API.

The mock answers POST /api/chat with an event stream built from a small
built-in catalogue, or with a recorded capture given by --file. Responses are
written in --chunk-size pieces with --delay between them, so clients see
records, lines and characters split across reads.

Examples:
  shopstream mock
  shopstream mock --listen :9000 --chunk-size 3 --delay 20ms
  shopstream mock --file raw.sse`

const mockShortDesc string = "Run a mock shop assistant API"

func NewMockCmd() *cobra.Command {
	return newMockCmd(&mockCommander{})
}

func newMockCmd(cmder *mockCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock",
		Short: mockShortDesc,
		Long:  mockLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)
			cmder.listen = config.FromViper(v).Mock.Listen
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.logger = logger.New(
				logger.WithDebug(cmder.debug),
				logger.WithPretty(true),
				logger.WithWriter(cmd.ErrOrStderr()),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagMockListen, &cmder.listen)
	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "Serve this recorded event stream for every query")
	cmd.Flags().IntVarP(&cmder.chunkSize, "chunk-size", "c", 16, "Bytes written per chunk (0 writes the whole response at once)")
	cmd.Flags().DurationVar(&cmder.delay, "delay", 10*time.Millisecond, "Pause between chunks")

	return cmd
}

func (c *mockCommander) run(ctx context.Context) error {
	cfg := mock.Config{
		ListenAddr: c.listen,
		ChunkSize:  c.chunkSize,
		Delay:      c.delay,
	}

	if c.file != "" {
		capture, err := os.ReadFile(c.file)
		if err != nil {
			return fmt.Errorf("reading capture: %w", err)
		}
		cfg.Capture = capture
		c.logger.Info("serving capture", "file", c.file, "bytes", len(capture))
	}

	ln, err := net.Listen("tcp", c.listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", c.listen, err)
	}

	server := mock.NewServer(cfg, c.logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Listener(ln)
	}()

	if c.ready != nil {
		c.ready(ln.Addr().String())
	}

	select {
	case <-ctx.Done():
		c.logger.Info("shutting down mock server")
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("mock server error: %w", err)
	}
}
