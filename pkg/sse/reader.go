package sse

import (
	"errors"
	"io"
	"iter"
)

// DefaultChunkSize is the read size used to pull chunks from the source.
const DefaultChunkSize = 32 * 1024

// ChunkDecoder is an incremental decoder fed with raw chunks in arrival order.
// *Decoder implements it for SSE events; higher level decoders wrap it to
// produce application messages.
type ChunkDecoder[T any] interface {
	Feed(chunk []byte) iter.Seq2[T, error]
	Finish() iter.Seq2[T, error]
}

// ReaderOption configures a Reader created with NewReader.
type ReaderOption func(*readerConfig)

type readerConfig struct {
	chunkSize int
	tee       io.Writer
}

// WithChunkSize sets how many bytes are requested from the source per read.
func WithChunkSize(n int) ReaderOption {
	return func(c *readerConfig) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithTee writes every raw byte read from the source verbatim to w before it
// is decoded.
func WithTee(w io.Writer) ReaderOption {
	return func(c *readerConfig) {
		c.tee = w
	}
}

// Reader pulls chunks from a source io.Reader, feeds them to a ChunkDecoder
// and hands out decoded values one at a time.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │ chunks
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │  ChunkDecoder    │   │ tee io.Writer (opt.)  │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │  Reader.Next()   │
// └──────────────────┘
//
// The tee, when set, receives the exact copy of the stream while the caller
// consumes decoded values.
type Reader[T any] struct {
	src  io.Reader
	tee  io.Writer
	dec  ChunkDecoder[T]
	buf  []byte
	done bool

	// queue holds decoded values not yet handed out by Next.
	queue []result[T]

	// err is the fatal error that ended the stream, if any.
	err error
}

type result[T any] struct {
	value T
	err   error
}

// NewReader returns a Reader that decodes src with dec.
func NewReader[T any](src io.Reader, dec ChunkDecoder[T], opts ...ReaderOption) *Reader[T] {
	cfg := &readerConfig{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Reader[T]{
		src: src,
		tee: cfg.tee,
		dec: dec,
		buf: make([]byte, cfg.chunkSize),
	}
}

// Next returns the next decoded value. It blocks reading the source until a
// complete record is available.
//
// Per-record errors are returned in stream order and the Reader stays
// usable. Next returns io.EOF once the source is exhausted cleanly. After a
// fatal error (transport failure, DecodeError, TruncatedStreamError) every
// later call returns that same error.
func (r *Reader[T]) Next() (T, error) {
	var zero T
	for {
		if len(r.queue) > 0 {
			res := r.queue[0]
			r.queue = r.queue[1:]
			return res.value, res.err
		}

		if r.err != nil {
			return zero, r.err
		}
		if r.done {
			return zero, io.EOF
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			if r.tee != nil {
				if _, werr := r.tee.Write(r.buf[:n]); werr != nil {
					r.err = werr
					continue
				}
			}
			r.collect(r.dec.Feed(r.buf[:n]))
		}

		switch {
		case errors.Is(err, io.EOF):
			if r.err == nil {
				r.collect(r.dec.Finish())
			}
			r.done = true
		case err != nil && r.err == nil:
			r.err = err
		}
	}
}

// All returns the remaining values as a sequence that ends at io.EOF or
// after yielding a fatal error.
func (r *Reader[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(v, err) {
				return
			}
			if IsFatal(err) {
				return
			}
		}
	}
}

// collect queues values from seq; a fatal error is kept aside and returned
// after everything decoded before it.
func (r *Reader[T]) collect(seq iter.Seq2[T, error]) {
	for v, err := range seq {
		if IsFatal(err) {
			r.err = err
			continue
		}
		r.queue = append(r.queue, result[T]{value: v, err: err})
	}
}
