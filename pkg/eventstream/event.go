package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/shopstream/pkg/chat"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMessageReceived is emitted for every message decoded from a
	// chat stream.
	EventTypeMessageReceived = "shopstream.message.received"

	// EventTypeConversationEnded is emitted once a chat stream ends, cleanly
	// or not.
	EventTypeConversationEnded = "shopstream.conversation.ended"
)

// EventSource identifies where the conversation came from.
type EventSource struct {
	APITarget string `json:"api_target"`
	Host      string `json:"host,omitempty"`
}

// MessageReceivedEvent is a transport-neutral event payload for one
// decoded message.
type MessageReceivedEvent struct {
	SchemaVersion  int          `json:"schema_version"`
	EventType      string       `json:"event_type"`
	EventID        string       `json:"event_id"`
	EmittedAt      time.Time    `json:"emitted_at"`
	Source         EventSource  `json:"source"`
	ConversationID string       `json:"conversation_id"`
	Query          string       `json:"query"`
	Seq            int          `json:"seq"`
	Message        chat.Message `json:"message"`
}

// ConversationEndedEvent summarizes a finished conversation.
type ConversationEndedEvent struct {
	SchemaVersion  int         `json:"schema_version"`
	EventType      string      `json:"event_type"`
	EventID        string      `json:"event_id"`
	EmittedAt      time.Time   `json:"emitted_at"`
	Source         EventSource `json:"source"`
	ConversationID string      `json:"conversation_id"`
	Query          string      `json:"query"`
	Status         chat.Status `json:"status"`
	DurationMs     int64       `json:"duration_ms"`
	Messages       int         `json:"messages"`
	Products       int         `json:"products"`
	RecordErrors   int         `json:"record_errors"`
	Failure        string      `json:"failure,omitempty"`
}

// NewMessageReceived builds the event for the seq-th record of c.
func NewMessageReceived(src EventSource, c *chat.Conversation, seq int, msg chat.Message) *MessageReceivedEvent {
	return &MessageReceivedEvent{
		SchemaVersion:  SchemaVersionV1,
		EventType:      EventTypeMessageReceived,
		EventID:        uuid.NewString(),
		EmittedAt:      time.Now().UTC(),
		Source:         src,
		ConversationID: c.ID,
		Query:          c.Query,
		Seq:            seq,
		Message:        msg,
	}
}

// NewConversationEnded builds the summary event for a completed c.
func NewConversationEnded(src EventSource, c *chat.Conversation) *ConversationEndedEvent {
	var duration time.Duration
	if !c.CompletedAt.IsZero() {
		duration = c.CompletedAt.Sub(c.StartedAt)
	}

	return &ConversationEndedEvent{
		SchemaVersion:  SchemaVersionV1,
		EventType:      EventTypeConversationEnded,
		EventID:        uuid.NewString(),
		EmittedAt:      time.Now().UTC(),
		Source:         src,
		ConversationID: c.ID,
		Query:          c.Query,
		Status:         c.Status,
		DurationMs:     duration.Milliseconds(),
		Messages:       len(c.Messages),
		Products:       len(c.Products()),
		RecordErrors:   len(c.Errors),
		Failure:        c.Failure,
	}
}
