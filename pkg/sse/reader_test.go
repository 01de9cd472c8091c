package sse_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shopstream/pkg/sse"
)

var _ = Describe("Reader", func() {
	var dst *bytes.Buffer

	newReader := func(src io.Reader, opts ...sse.ReaderOption) *sse.Reader[*sse.Event] {
		return sse.NewReader[*sse.Event](src, newDecoder(), append([]sse.ReaderOption{sse.WithTee(dst)}, opts...)...)
	}

	BeforeEach(func() {
		dst = &bytes.Buffer{}
	})

	Describe("Next", func() {
		Context("with standard SSE events", func() {
			It("parses a single event", func() {
				r := newReader(strings.NewReader("data: hello world\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello world"))
				Expect(ev.Type).To(BeEmpty())
				Expect(ev.ID).To(BeEmpty())

				ev, err = r.Next()
				Expect(err).To(MatchError(io.EOF))
				Expect(ev).To(BeNil())
			})

			It("parses multiple events", func() {
				r := newReader(strings.NewReader("data: first\n\ndata: second\n\n"))

				ev1, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev1.Data).To(Equal("first"))

				ev2, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev2.Data).To(Equal("second"))

				_, err = r.Next()
				Expect(err).To(MatchError(io.EOF))
			})

			It("parses event type", func() {
				r := newReader(strings.NewReader("event: message\ndata: {\"answer\":\"hi\"}\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Type).To(Equal("message"))
				Expect(ev.Data).To(Equal("{\"answer\":\"hi\"}"))
			})

			It("parses event ID", func() {
				r := newReader(strings.NewReader("id: 42\ndata: hello\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.ID).To(Equal("42"))
				Expect(ev.Data).To(Equal("hello"))
			})

			It("joins multiple data lines with newline", func() {
				r := newReader(strings.NewReader("data: line one\ndata: line two\ndata: line three\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("line one\nline two\nline three"))
			})
		})

		Context("with a shop chat stream", func() {
			It("reads every record regardless of read size", func() {
				r := newReader(iotest.OneByteReader(strings.NewReader(productStream)))

				var data []string
				for ev, err := range r.All() {
					Expect(err).NotTo(HaveOccurred())
					data = append(data, ev.Data)
				}
				Expect(data).To(HaveLen(3))
				Expect(data[1]).To(ContainSubstring("Café crème ☕ 😀"))
			})

			It("honours the configured chunk size", func() {
				r := newReader(strings.NewReader(productStream), sse.WithChunkSize(5))

				count := 0
				for _, err := range r.All() {
					Expect(err).NotTo(HaveOccurred())
					count++
				}
				Expect(count).To(Equal(3))
			})
		})

		Context("with SSE comments", func() {
			It("ignores comment lines in parsed events", func() {
				r := newReader(strings.NewReader(": this is a comment\ndata: hello\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello"))
			})

			It("forwards comment lines to dst", func() {
				r := newReader(strings.NewReader(": keep-alive\ndata: hello\n\n"))

				_, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(dst.String()).To(ContainSubstring(": keep-alive\n"))
			})
		})

		Context("with data field variations", func() {
			It("handles data field with no space after colon", func() {
				r := newReader(strings.NewReader("data:no-space\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("no-space"))
			})

			It("handles empty data field", func() {
				r := newReader(strings.NewReader("data:\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(BeEmpty())
			})

			It("handles data field with only a space", func() {
				r := newReader(strings.NewReader("data: \n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(BeEmpty())
			})

			It("handles field with no colon", func() {
				r := newReader(strings.NewReader("data\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(BeEmpty())
			})
		})

		Context("verbatim byte forwarding", func() {
			It("forwards all bytes including delimiters to dst", func() {
				input := "data: first\n\ndata: second\n\n"
				r := newReader(strings.NewReader(input))

				_, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				_, err = r.Next()
				Expect(err).NotTo(HaveOccurred())

				Expect(dst.String()).To(Equal(input))
			})

			It("forwards CRLF framing and undecodable bytes untouched", func() {
				input := "data: caf\xe9\r\n\r\n"
				r := newReader(strings.NewReader(input))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("caf�"))
				Expect(dst.String()).To(Equal(input))
			})
		})

		Context("with per-record failures", func() {
			It("keeps reading after a malformed record", func() {
				r := newReader(strings.NewReader("data: one\n\nevent: ping\n\ndata: three\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("one"))

				_, err = r.Next()
				var malformed *sse.MalformedMessageError
				Expect(errors.As(err, &malformed)).To(BeTrue())

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("three"))
			})
		})

		Context("with fatal failures", func() {
			It("reports a stream that ends mid-record", func() {
				r := newReader(strings.NewReader("data: ok\n\ndata: unterminated"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("ok"))

				_, err = r.Next()
				var truncated *sse.TruncatedStreamError
				Expect(errors.As(err, &truncated)).To(BeTrue())
				Expect(truncated.Raw).To(Equal("data: unterminated"))

				_, again := r.Next()
				Expect(again).To(Equal(err))
			})

			It("returns the events read before a transport error", func() {
				src := io.MultiReader(
					strings.NewReader("data: before\n\n"),
					iotest.ErrReader(errors.New("connection reset")),
				)
				r := newReader(src)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("before"))

				_, err = r.Next()
				Expect(err).To(MatchError("connection reset"))
			})

			It("stops All after a fatal error", func() {
				r := sse.NewReader[*sse.Event](strings.NewReader("data: a\n\ndata: \xff\n\ndata: c\n\n"),
					newDecoder(sse.WithStrictDecoding(true)))

				var got []error
				for _, err := range r.All() {
					got = append(got, err)
				}
				Expect(got).To(HaveLen(2))
				Expect(got[0]).NotTo(HaveOccurred())

				var decodeErr *sse.DecodeError
				Expect(errors.As(got[1], &decodeErr)).To(BeTrue())
			})
		})

		Context("edge cases", func() {
			It("returns io.EOF on empty input", func() {
				r := newReader(strings.NewReader(""))

				ev, err := r.Next()
				Expect(err).To(MatchError(io.EOF))
				Expect(ev).To(BeNil())
			})

			It("returns io.EOF on input with only blank lines", func() {
				r := newReader(strings.NewReader("\n\n\n"))

				_, err := r.Next()
				Expect(err).To(MatchError(io.EOF))
			})

			It("skips leading blank lines before first event", func() {
				r := newReader(strings.NewReader("\n\ndata: hello\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello"))
			})

			It("ignores unknown fields", func() {
				r := newReader(strings.NewReader("retry: 3000\nfoo: bar\ndata: hello\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello"))
				Expect(ev.Retry.Seconds()).To(Equal(3.0))
			})
		})
	})
})
