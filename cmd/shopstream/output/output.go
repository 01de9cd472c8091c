// Package output prints decoded messages and record failures for shopstream
// commands, either styled for a terminal or as JSON lines.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/papercomputeco/shopstream/pkg/chat"
	"github.com/papercomputeco/shopstream/pkg/cliui"
	"github.com/papercomputeco/shopstream/pkg/sse"
)

// Line is one JSON output record. Exactly one of Message, Event, Error or
// Failure is set.
type Line struct {
	Seq     int           `json:"seq"`
	Message *chat.Message `json:"message,omitempty"`
	Event   *Event        `json:"event,omitempty"`
	Error   string        `json:"error,omitempty"`
	Raw     string        `json:"raw,omitempty"`
	Failure string        `json:"failure,omitempty"`
}

// Event is the JSON form of a raw SSE record.
type Event struct {
	Type    string `json:"type,omitempty"`
	ID      string `json:"id,omitempty"`
	Data    string `json:"data"`
	RetryMs int64  `json:"retry_ms,omitempty"`
}

// Printer writes decoded values to w.
type Printer struct {
	w     io.Writer
	json  bool
	width int
	enc   *json.Encoder
}

// NewPrinter creates a Printer. When jsonLines is set every value is written
// as one JSON object per line.
func NewPrinter(w io.Writer, jsonLines bool) *Printer {
	return &Printer{
		w:     w,
		json:  jsonLines,
		width: cliui.Width(w, 80),
		enc:   json.NewEncoder(w),
	}
}

// JSON reports whether p writes JSON lines.
func (p *Printer) JSON() bool {
	return p.json
}

// Value prints the seq-th decoded value: a message or a per-record error.
func (p *Printer) Value(seq int, msg chat.Message, err error) error {
	if err != nil {
		return p.RecordError(chat.NewRecordError(seq, err))
	}
	return p.Message(seq, msg)
}

// Message prints one message.
func (p *Printer) Message(seq int, msg chat.Message) error {
	if p.json {
		return p.enc.Encode(Line{Seq: seq, Message: &msg})
	}
	_, err := fmt.Fprintln(p.w, cliui.RenderMessage(msg, p.width))
	return err
}

// Event prints one SSE record without interpreting its payload.
func (p *Printer) Event(seq int, ev *sse.Event) error {
	if p.json {
		return p.enc.Encode(Line{Seq: seq, Event: &Event{
			Type:    ev.Type,
			ID:      ev.ID,
			Data:    ev.Data,
			RetryMs: ev.Retry.Milliseconds(),
		}})
	}

	header := fmt.Sprintf("#%d", seq)
	if ev.Type != "" {
		header += " event: " + ev.Type
	}
	if ev.ID != "" {
		header += " id: " + ev.ID
	}
	_, err := fmt.Fprintf(p.w, "%s\n%s\n", cliui.DimStyle.Render(header), ev.Data)
	return err
}

// RecordError prints one per-record failure.
func (p *Printer) RecordError(re chat.RecordError) error {
	if p.json {
		return p.enc.Encode(Line{Seq: re.Seq, Error: re.Reason, Raw: re.Raw})
	}
	_, err := fmt.Fprintln(p.w, cliui.RenderRecordError(re.Seq, re.Reason, re.Raw, p.width))
	return err
}

// Failure prints the fatal error that ended a stream.
func (p *Printer) Failure(seq int, failure error) error {
	if p.json {
		return p.enc.Encode(Line{Seq: seq, Failure: failure.Error()})
	}
	_, err := fmt.Fprintf(p.w, "%s %s\n", cliui.FailMark, failure)
	return err
}

// Conversation prints a recorded conversation in stream order.
func (p *Printer) Conversation(c *chat.Conversation) error {
	errs := c.Errors
	msgs := c.Messages
	for seq := 0; len(msgs) > 0 || len(errs) > 0; seq++ {
		var err error
		if len(errs) > 0 && errs[0].Seq == seq {
			err = p.RecordError(errs[0])
			errs = errs[1:]
		} else if len(msgs) > 0 {
			err = p.Message(seq, msgs[0])
			msgs = msgs[1:]
		}
		if err != nil {
			return err
		}
	}

	if c.Failure != "" {
		return p.Failure(len(c.Messages)+len(c.Errors), errors.New(c.Failure))
	}
	return nil
}
