// Package mock provides a development stand-in for the shop assistant API.
// It streams a recorded capture, or a synthesized answer from a built-in
// catalogue, in small chunks so the client decoder sees arbitrary chunk
// boundaries over a real HTTP body.
package mock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/shopstream/pkg/chat"
)

// Config is the mock server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000").
	ListenAddr string

	// Capture is a raw event stream served verbatim for every query.
	// When empty, responses are synthesized from Catalog.
	Capture []byte

	// ChunkSize is the number of bytes written per chunk. Zero writes the
	// whole response at once.
	ChunkSize int

	// Delay is the pause between chunks.
	Delay time.Duration
}

type errorResponse struct {
	Error string `json:"error"`
}

type chatRequest struct {
	Query string `json:"query"`
}

// Server is the mock shop assistant API server.
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new mock server.
func NewServer(config Config, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		logger: logger,
		app:    app,
	}

	app.Get("/api/health", s.handleHealth)
	app.Post("/api/chat", s.handleChat)

	return s
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting mock server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Listener serves on an existing listener.
func (s *Server) Listener(ln net.Listener) error {
	s.logger.Info("starting mock server", "listen", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "query required"})
	}

	body := s.config.Capture
	if len(body) == 0 {
		var err error
		body, err = Encode(Respond(req.Query))
		if err != nil {
			s.logger.Error("failed to encode response", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal error"})
		}
	}

	s.logger.Debug("streaming response",
		"query", req.Query,
		"bytes", len(body),
		"chunk_size", s.config.ChunkSize,
	)

	c.Set(fiber.HeaderContentType, "text/event-stream; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// io.Pipe gives per-chunk flushes: fasthttp writes every chunk read from
	// the pipe to the socket before the next Write unblocks.
	pr, pw := io.Pipe()
	go s.writeChunks(pw, body)
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

func (s *Server) writeChunks(pw *io.PipeWriter, body []byte) {
	defer pw.Close()

	size := s.config.ChunkSize
	if size <= 0 {
		size = len(body)
	}

	for len(body) > 0 {
		n := min(size, len(body))
		if _, err := pw.Write(body[:n]); err != nil {
			s.logger.Debug("client went away", "error", err)
			return
		}
		body = body[n:]

		if s.config.Delay > 0 && len(body) > 0 {
			time.Sleep(s.config.Delay)
		}
	}
}

// Encode renders messages as an event stream body.
func Encode(msgs []chat.Message) ([]byte, error) {
	var buf bytes.Buffer
	for _, m := range msgs {
		payload, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("marshaling message: %w", err)
		}
		buf.WriteString("data: ")
		buf.Write(payload)
		buf.WriteString("\n\n")
	}
	return buf.Bytes(), nil
}
