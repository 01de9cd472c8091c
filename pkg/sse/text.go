package sse

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// errReplaced reports input the charset decoder could only substitute.
var errReplaced = errors.New("invalid byte sequence for charset")

// replacement is U+FFFD as the charset decoders write it.
var replacement = []byte(string(unicode.ReplacementChar))

const (
	defaultCharset = "utf-8"

	// initialScratch is the starting size of the transform output buffer.
	// It grows when a transformer cannot make progress.
	initialScratch = 4096
)

// textDecoder turns chunked bytes in a declared charset into UTF-8 text.
//
// The bytes of a multi-byte sequence cut by a chunk boundary are held in
// pending until the chunk that completes them arrives, so a split character
// is never emitted as replacement characters. The transformer itself is never
// reset between chunks.
type textDecoder struct {
	tr      transform.Transformer
	pending []byte
	scratch []byte

	// offset counts input bytes consumed so far, for DecodeError positions.
	offset int64

	// cr is set when the previous output ended in '\r' that was held back
	// to see whether a '\n' follows in the next chunk.
	cr bool
}

func newTextDecoder(charset string, strict bool) (*textDecoder, error) {
	if charset == "" {
		charset = defaultCharset
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}

	name, err := htmlindex.Name(enc)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}

	var tr transform.Transformer
	switch {
	case name == defaultCharset && strict:
		tr = encoding.UTF8Validator
	case strict:
		tr = &strictTransformer{inner: enc.NewDecoder()}
	default:
		tr = enc.NewDecoder()
	}

	return &textDecoder{
		tr:      tr,
		scratch: make([]byte, initialScratch),
	}, nil
}

// decode converts chunk to text with line endings normalized to "\n".
// When atEOF is set, any held back partial sequence is flushed.
//
// On invalid input the text decoded before the offending byte is returned
// together with a *DecodeError.
func (t *textDecoder) decode(chunk []byte, atEOF bool) (string, error) {
	src := chunk
	if len(t.pending) > 0 {
		src = append(t.pending, chunk...)
		t.pending = nil
	}

	var out strings.Builder
	for {
		nDst, nSrc, err := t.tr.Transform(t.scratch, src, atEOF)
		out.Write(t.scratch[:nDst])
		src = src[nSrc:]
		t.offset += int64(nSrc)

		switch {
		case err == nil:
			return t.normalize(out.String(), atEOF), nil

		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				t.scratch = make([]byte, 2*len(t.scratch))
			}

		case errors.Is(err, transform.ErrShortSrc):
			// Only the trailing incomplete sequence is left in src.
			t.pending = append([]byte(nil), src...)
			return t.normalize(out.String(), atEOF), nil

		default:
			return t.normalize(out.String(), true), &DecodeError{Offset: t.offset, Err: err}
		}
	}
}

// normalize rewrites "\r\n" and lone "\r" to "\n". A trailing '\r' is held
// back until the next call unless atEOF is set.
func (t *textDecoder) normalize(s string, atEOF bool) string {
	if t.cr {
		s = "\r" + s
		t.cr = false
	}

	if !atEOF && strings.HasSuffix(s, "\r") {
		s = s[:len(s)-1]
		t.cr = true
	}

	if strings.IndexByte(s, '\r') < 0 {
		return s
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// strictTransformer decodes a legacy charset one character at a time and
// stops at the first character the inner decoder replaced with U+FFFD.
// nSrc then points at that character, so the DecodeError offset is exact.
//
// Charsets that can encode U+FFFD itself (UTF-16, GB18030) report an
// encoded U+FFFD as invalid too.
type strictTransformer struct {
	inner transform.Transformer
}

func (s *strictTransformer) Reset() {
	s.inner.Reset()
}

func (s *strictTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for n := 1; nSrc < len(src); {
		end := nSrc + n
		d, c, err := s.inner.Transform(dst[nDst:], src[nSrc:end], atEOF && end == len(src))
		if bytes.Contains(dst[nDst:nDst+d], replacement) {
			return nDst, nSrc, errReplaced
		}
		nDst += d
		nSrc += c

		short := err == nil || errors.Is(err, transform.ErrShortSrc)
		switch {
		case short && c > 0:
			n = 1
		case short && end < len(src):
			// Not a whole character yet; widen the window.
			n++
		case err == nil && !atEOF:
			return nDst, nSrc, transform.ErrShortSrc
		default:
			return nDst, nSrc, err
		}
	}
	return nDst, nSrc, nil
}
