package sse

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/shopstream/pkg/utils"
)

var (
	// ErrMissingData indicates a record that carries fields but no "data:" line.
	ErrMissingData = errors.New("record has no data field")

	// ErrDecoderClosed is returned by Feed and Finish after Finish has run.
	ErrDecoderClosed = errors.New("sse: decoder closed")
)

// rawPreviewLen bounds how much of a raw record is quoted in error strings.
const rawPreviewLen = 64

// DecodeError reports bytes that are not valid text under the declared
// encoding. It is only produced in strict mode and is always fatal.
type DecodeError struct {
	// Offset is the position of the offending byte in the whole stream.
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding stream text at byte %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// MalformedMessageError reports a complete record whose payload could not be
// parsed. The stream stays usable: later records are decoded normally.
type MalformedMessageError struct {
	// Raw is the offending record as received.
	Raw string
	Err error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed record %q: %v", utils.Truncate(e.Raw, rawPreviewLen), e.Err)
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

// TruncatedStreamError reports a stream that ended in the middle of a record.
// It is only surfaced by Finish.
type TruncatedStreamError struct {
	// Raw is the unterminated partial record.
	Raw string
}

func (e *TruncatedStreamError) Error() string {
	return fmt.Sprintf("stream ended mid-record: %q", utils.Truncate(e.Raw, rawPreviewLen))
}

// BufferOverflowError reports a record that grew past the configured buffer
// limit without a delimiter. The partial record is dropped and decoding
// resumes after its delimiter.
type BufferOverflowError struct {
	Size  int
	Limit int
}

func (e *BufferOverflowError) Error() string {
	return fmt.Sprintf("record exceeds buffer limit (%d > %d bytes), dropped", e.Size, e.Limit)
}

// IsFatal reports whether err ends the stream. Per-record errors
// (MalformedMessageError, BufferOverflowError) are not fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var malformed *MalformedMessageError
	if errors.As(err, &malformed) {
		return false
	}

	var overflow *BufferOverflowError
	return !errors.As(err, &overflow)
}
