package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/shopstream/pkg/sse"
)

// Status is the lifecycle state of a Conversation.
type Status string

const (
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
)

// RecordError is a per-record failure kept alongside the messages that did
// decode.
type RecordError struct {
	// Seq is the position of the record in the stream, counting messages
	// and failed records alike from zero.
	Seq    int    `json:"seq"`
	Raw    string `json:"raw,omitempty"`
	Reason string `json:"reason"`
}

// Conversation is one query and everything streamed back for it.
type Conversation struct {
	ID          string        `json:"id"`
	Query       string        `json:"query"`
	Status      Status        `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at,omitzero"`
	Messages    []Message     `json:"messages"`
	Errors      []RecordError `json:"errors,omitempty"`

	// Failure is the fatal error that ended the stream, if any.
	Failure string `json:"failure,omitempty"`

	seq int
}

// NewConversation starts a conversation for query.
func NewConversation(query string) *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		Query:     query,
		Status:    StatusStreaming,
		StartedAt: time.Now().UTC(),
		Messages:  []Message{},
	}
}

// Apply folds one decoded value into the conversation. Messages already
// applied are never changed by a later error.
func (c *Conversation) Apply(msg Message, err error) {
	defer func() { c.seq++ }()

	if err == nil {
		c.Messages = append(c.Messages, msg)
		return
	}

	c.Errors = append(c.Errors, NewRecordError(c.seq, err))
}

// NewRecordError describes the failed seq-th record. The raw record text is
// kept when err carries it.
func NewRecordError(seq int, err error) RecordError {
	re := RecordError{Seq: seq, Reason: err.Error()}

	var malformed *sse.MalformedMessageError
	var truncated *sse.TruncatedStreamError
	switch {
	case errors.As(err, &malformed):
		re.Raw = malformed.Raw
		re.Reason = malformed.Err.Error()
	case errors.As(err, &truncated):
		re.Raw = truncated.Raw
	}
	return re
}

// Complete ends the conversation. A non-nil err marks it failed.
func (c *Conversation) Complete(err error) {
	c.CompletedAt = time.Now().UTC()
	if err != nil {
		c.Status = StatusFailed
		c.Failure = err.Error()
		return
	}
	c.Status = StatusComplete
}

// Answer joins the answer text of every message, one per line.
func (c *Conversation) Answer() string {
	parts := make([]string, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.Answer != "" {
			parts = append(parts, m.Answer)
		}
	}
	return strings.Join(parts, "\n")
}

// Products returns every product seen, in arrival order, without duplicates.
func (c *Conversation) Products() []Product {
	seen := make(map[ProductID]bool)
	var out []Product
	for _, m := range c.Messages {
		for _, p := range m.Results {
			if !p.ID.IsZero() && seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	return out
}
