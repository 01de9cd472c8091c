// Package sse provides an incremental SSE (Server-Sent Events) decoder for
// the shopstream client. Raw bytes arrive from the transport in chunks of any
// size and alignment; the Decoder carries partial characters, partial lines
// and partial records across chunk boundaries and yields only whole records.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "time"

// Event represents a single parsed SSE record, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n" (per the SSE spec, multiple data fields are joined
	// with a single newline).
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string

	// Retry is the reconnection time from the "retry:" field, if present.
	Retry time.Duration

	// Raw is the record exactly as it appeared between delimiters, after
	// text decoding and line ending normalization.
	Raw string
}
