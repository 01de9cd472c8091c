package sse

import (
	"bytes"
	"iter"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxBufferSize bounds a single unterminated record (1 MiB).
const DefaultMaxBufferSize = 1024 * 1024

// delimiter ends a record: a blank line after line ending normalization.
var delimiter = []byte("\n\n")

// DecoderOption configures a Decoder created with NewDecoder.
type DecoderOption func(*decoderConfig)

type decoderConfig struct {
	charset   string
	strict    bool
	maxBuffer int
}

// WithEncoding sets the declared charset of the byte stream, by WHATWG label
// (e.g. "utf-8", "iso-8859-1", "shift_jis"). Defaults to UTF-8.
func WithEncoding(charset string) DecoderOption {
	return func(c *decoderConfig) {
		c.charset = charset
	}
}

// WithStrictDecoding makes bytes that are invalid in the declared charset a
// fatal *DecodeError instead of substituting U+FFFD for them.
func WithStrictDecoding(strict bool) DecoderOption {
	return func(c *decoderConfig) {
		c.strict = strict
	}
}

// WithMaxBufferSize bounds the decoded text held for one unterminated record.
// Zero or a negative value disables the limit.
func WithMaxBufferSize(n int) DecoderOption {
	return func(c *decoderConfig) {
		c.maxBuffer = n
	}
}

// Decoder converts an ordered sequence of raw byte chunks into an ordered
// sequence of whole SSE records.
//
// A Decoder is owned by a single stream consumer and is not safe for
// concurrent use. Feed must be called with chunks in arrival order.
type Decoder struct {
	text *textDecoder

	// buf holds decoded text after the last delimiter seen. It is the prefix
	// of a record that has not been terminated yet.
	buf []byte

	// scanned is how much of buf is known to contain no delimiter.
	scanned int

	// discarding is set after an overflow, until the dropped record's
	// delimiter goes by.
	discarding bool

	maxBuffer int
	err       error
	closed    bool
}

// frame is one delimiter-bounded segment or a per-record error, kept in
// stream order.
type frame struct {
	raw string
	err error
}

// NewDecoder creates a Decoder. It fails only for an unknown charset.
func NewDecoder(opts ...DecoderOption) (*Decoder, error) {
	cfg := &decoderConfig{
		charset:   defaultCharset,
		maxBuffer: DefaultMaxBufferSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	text, err := newTextDecoder(cfg.charset, cfg.strict)
	if err != nil {
		return nil, err
	}

	return &Decoder{
		text:      text,
		maxBuffer: cfg.maxBuffer,
	}, nil
}

// Feed consumes the next chunk and returns the records it completes, in the
// order their delimiters appear in the stream. A record split across several
// chunks is returned by the call that supplies its delimiter, exactly once.
//
// All buffering happens before Feed returns; the returned sequence only
// parses the records already cut from the buffer, so it is safe to stop
// iterating early or not to iterate at all.
//
// Per-record failures are yielded in place as *MalformedMessageError or
// *BufferOverflowError. In strict mode an invalid byte yields a
// *DecodeError after every record completed before it, and the decoder
// then keeps returning that error.
func (d *Decoder) Feed(chunk []byte) iter.Seq2[*Event, error] {
	if d.closed {
		return failed(ErrDecoderClosed)
	}
	if d.err != nil {
		return failed(d.err)
	}

	text, err := d.text.decode(chunk, false)
	frames := d.push(text)
	if err != nil {
		d.err = err
	}

	return events(frames, err)
}

// Finish marks the end of the byte stream and returns any records completed
// by flushing the text decoder. Remaining buffered text that holds a field
// yields a *TruncatedStreamError; whitespace and comments are ignored.
// The decoder cannot be fed after Finish.
func (d *Decoder) Finish() iter.Seq2[*Event, error] {
	if d.closed {
		return failed(ErrDecoderClosed)
	}
	d.closed = true
	if d.err != nil {
		return failed(d.err)
	}

	text, err := d.text.decode(nil, true)
	frames := d.push(text)

	rest := string(d.buf)
	discarding := d.discarding
	d.buf = nil
	d.scanned = 0

	if err != nil {
		d.err = err
		return events(frames, err)
	}

	if !discarding && hasField(rest) {
		frames = append(frames, frame{err: &TruncatedStreamError{Raw: rest}})
	}

	return events(frames, nil)
}

// Buffered returns the number of bytes of decoded text currently retained
// for an unterminated record.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// push appends decoded text and cuts every complete record off the front of
// the buffer. The tail after the last delimiter stays buffered.
func (d *Decoder) push(text string) []frame {
	if text == "" {
		return nil
	}
	d.buf = append(d.buf, text...)

	var frames []frame
	off := 0
	for {
		// A delimiter may straddle the end of the previous scan.
		from := max(d.scanned-1, off)
		i := bytes.Index(d.buf[from:], delimiter)
		if i < 0 {
			break
		}

		end := from + i
		if d.discarding {
			d.discarding = false
		} else {
			frames = append(frames, frame{raw: string(d.buf[off:end])})
		}

		off = end + len(delimiter)
		d.scanned = off
	}

	d.buf = append(d.buf[:0], d.buf[off:]...)

	switch {
	case d.discarding:
		// Still inside a dropped record; it was reported when it overflowed.
		d.buf = dropPartial(d.buf)
	case d.maxBuffer > 0 && len(d.buf) > d.maxBuffer:
		frames = append(frames, frame{err: &BufferOverflowError{Size: len(d.buf), Limit: d.maxBuffer}})
		d.buf = dropPartial(d.buf)
		d.discarding = true
	}
	d.scanned = len(d.buf)

	return frames
}

// dropPartial empties buf but keeps a trailing newline, which may be the
// first half of a delimiter.
func dropPartial(buf []byte) []byte {
	if len(buf) > 0 && buf[len(buf)-1] == '\n' {
		return append(buf[:0], '\n')
	}
	return buf[:0]
}

// events parses frames lazily, skipping keep-alive records, and yields tail
// as the final error when it is set.
func events(frames []frame, tail error) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		for _, f := range frames {
			if f.err != nil {
				if !yield(nil, f.err) {
					return
				}
				continue
			}

			ev, err := parseRecord(f.raw)
			if ev == nil && err == nil {
				continue
			}
			if !yield(ev, err) {
				return
			}
		}

		if tail != nil {
			yield(nil, tail)
		}
	}
}

func failed(err error) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		yield(nil, err)
	}
}

// parseRecord parses one delimiter-bounded record. It returns nil, nil for
// records made only of whitespace and comments.
//
// Per the SSE spec, a line has the form "field:value" where the first
// space after the colon is optional and stripped if present. A line with
// no colon is a field name with an empty value.
func parseRecord(raw string) (*Event, error) {
	ev := &Event{Raw: raw}

	var (
		data     []string
		hasData  bool
		hasField bool
	)

	for line := range strings.SplitSeq(raw, "\n") {
		// Lines starting with ':' are comments.
		if isBlankOrComment(line) {
			continue
		}
		hasField = true

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			ev.Type = value
		case "id":
			// Per spec, an id containing NUL is ignored.
			if !strings.ContainsRune(value, 0) {
				ev.ID = value
			}
		case "retry":
			if ms, err := strconv.ParseUint(value, 10, 32); err == nil {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		default:
			// Unknown fields are ignored per the SSE spec.
		}
	}

	if !hasField {
		return nil, nil
	}
	if !hasData {
		return nil, &MalformedMessageError{Raw: raw, Err: ErrMissingData}
	}

	ev.Data = strings.Join(data, "\n")
	return ev, nil
}

// hasField reports whether text holds anything besides blank lines and
// comments.
func hasField(text string) bool {
	for line := range strings.SplitSeq(text, "\n") {
		if !isBlankOrComment(line) {
			return true
		}
	}
	return false
}

// isBlankOrComment reports whether line is whitespace only or a comment.
// Such lines never make a record on their own.
func isBlankOrComment(line string) bool {
	return strings.TrimSpace(line) == "" || strings.HasPrefix(line, ":")
}
