// Package client talks to the shop assistant HTTP API and streams decoded
// chat messages from its event-stream responses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/shopstream/pkg/chat"
	"github.com/papercomputeco/shopstream/pkg/logger"
	"github.com/papercomputeco/shopstream/pkg/sse"
)

const (
	chatPath   = "/api/chat"
	healthPath = "/api/health"

	// DefaultTimeout bounds a whole request, including the streamed body.
	DefaultTimeout = 5 * time.Minute
)

// ErrEmptyQuery is returned by Ask for a blank query.
var ErrEmptyQuery = errors.New("query required")

// StatusError is returned for a non-200 response. Message holds the "error"
// field of a JSON error body, or the raw body otherwise.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API target, e.g. "http://localhost:8000".
	BaseURL string

	// Timeout for one request. Zero uses DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the transport. Its Timeout is left untouched.
	HTTPClient *http.Client

	// DecoderOptions apply to the decoder built for every response.
	DecoderOptions []chat.DecoderOption

	// Tee, when set, receives every raw response byte.
	Tee io.Writer

	Logger *slog.Logger
}

// Client is a shop assistant API client. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	decOpts []chat.DecoderOption
	tee     io.Writer
	logger  *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	l := cfg.Logger
	if l == nil {
		l = logger.Nop()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		decOpts: cfg.DecoderOptions,
		tee:     cfg.Tee,
		logger:  l,
	}, nil
}

// Health checks that the API answers on its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("checking health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}
	if body.Status != "ok" {
		return fmt.Errorf("unhealthy status %q", body.Status)
	}
	return nil
}

type chatRequest struct {
	Query string `json:"query"`
}

// Ask sends query and returns the stream of decoded messages. The caller
// must Close the stream.
func (c *Client) Ask(ctx context.Context, query string) (*Stream, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	body, err := json.Marshal(chatRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("sending chat request", "api_target", c.baseURL, "query_len", len(query))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending chat request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	opts := append([]chat.DecoderOption{chat.WithLogger(c.logger)}, c.decOpts...)
	if charset := responseCharset(resp.Header.Get("Content-Type")); charset != "" {
		c.logger.Debug("using response charset", "charset", charset)
		opts = append(opts, chat.WithSSEOptions(sse.WithEncoding(charset)))
	}

	dec, err := chat.NewDecoder(opts...)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	var readerOpts []sse.ReaderOption
	if c.tee != nil {
		readerOpts = append(readerOpts, sse.WithTee(c.tee))
	}

	return &Stream{
		body:   resp.Body,
		reader: sse.NewReader[chat.Message](resp.Body, dec, readerOpts...),
	}, nil
}

// Stream is an in-flight chat response.
type Stream struct {
	body   io.ReadCloser
	reader *sse.Reader[chat.Message]
}

// Next returns the next message, io.EOF at the end of the response, or the
// error for a record that failed to decode. See sse.Reader.Next.
func (s *Stream) Next() (chat.Message, error) {
	return s.reader.Next()
}

// All yields the remaining messages and per-record errors.
func (s *Stream) All() iter.Seq2[chat.Message, error] {
	return s.reader.All()
}

// Close releases the response body.
func (s *Stream) Close() error {
	return s.body.Close()
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		msg = body.Error
	}

	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

// responseCharset returns the charset parameter of a Content-Type header.
func responseCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}
