package chat

import (
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"strings"

	"github.com/papercomputeco/shopstream/pkg/logger"
	"github.com/papercomputeco/shopstream/pkg/sse"
)

const (
	// MessageEventType is the only typed SSE event carrying a chat message.
	// Untyped events default to it.
	MessageEventType = "message"

	// DoneSentinel marks the end of a stream in OpenAI style producers.
	DoneSentinel = "[DONE]"
)

// ErrNotObject is the cause of a MalformedMessageError for a data payload
// that is valid JSON but not an object.
var ErrNotObject = errors.New("payload is not a JSON object")

// DecoderOption configures a Decoder created with NewDecoder.
type DecoderOption func(*Decoder)

// WithSSEOptions passes options through to the underlying sse.Decoder.
func WithSSEOptions(opts ...sse.DecoderOption) DecoderOption {
	return func(d *Decoder) {
		d.sseOpts = append(d.sseOpts, opts...)
	}
}

// WithSkipMalformed drops malformed records instead of yielding their
// errors. Each dropped record is logged at Warn.
func WithSkipMalformed(skip bool) DecoderOption {
	return func(d *Decoder) {
		d.skipMalformed = skip
	}
}

// WithLogger sets the logger for skipped and ignored records.
func WithLogger(l *slog.Logger) DecoderOption {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// Decoder turns raw response chunks into chat messages. It composes an
// sse.Decoder with the JSON payload parse; see sse.Decoder for the buffering
// and ordering guarantees.
type Decoder struct {
	sse           *sse.Decoder
	sseOpts       []sse.DecoderOption
	skipMalformed bool
	logger        *slog.Logger
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...DecoderOption) (*Decoder, error) {
	d := &Decoder{logger: logger.Nop()}
	for _, opt := range opts {
		opt(d)
	}

	inner, err := sse.NewDecoder(d.sseOpts...)
	if err != nil {
		return nil, err
	}
	d.sse = inner

	return d, nil
}

// Feed consumes the next chunk and returns the messages it completes.
// A payload that fails to parse yields an *sse.MalformedMessageError in its
// place; later messages are unaffected.
func (d *Decoder) Feed(chunk []byte) iter.Seq2[Message, error] {
	return d.messages(d.sse.Feed(chunk))
}

// Finish marks the end of the stream. See sse.Decoder.Finish.
func (d *Decoder) Finish() iter.Seq2[Message, error] {
	return d.messages(d.sse.Finish())
}

// Buffered returns the bytes retained for an unterminated record.
func (d *Decoder) Buffered() int {
	return d.sse.Buffered()
}

func (d *Decoder) messages(events iter.Seq2[*sse.Event, error]) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for ev, err := range events {
			if err == nil {
				var ok bool
				var msg Message
				msg, ok, err = ParseEvent(ev)
				if err == nil {
					if !ok {
						d.logger.Debug("ignoring event", "type", ev.Type, "id", ev.ID)
						continue
					}
					if !yield(msg, nil) {
						return
					}
					continue
				}
			}

			if d.skipMalformed && !sse.IsFatal(err) {
				d.logger.Warn("skipping record", "error", err)
				continue
			}
			if !yield(Message{}, err) {
				return
			}
		}
	}
}

// ParseEvent converts one SSE event into a Message. It reports false for
// events that carry no message: typed events other than "message" and the
// [DONE] sentinel.
func ParseEvent(ev *sse.Event) (Message, bool, error) {
	if ev.Type != "" && ev.Type != MessageEventType {
		return Message{}, false, nil
	}

	payload := strings.TrimSpace(ev.Data)
	if payload == DoneSentinel {
		return Message{}, false, nil
	}

	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return Message{}, false, &sse.MalformedMessageError{Raw: ev.Raw, Err: err}
	}
	if !strings.HasPrefix(payload, "{") {
		return Message{}, false, &sse.MalformedMessageError{Raw: ev.Raw, Err: ErrNotObject}
	}

	return msg, true, nil
}
