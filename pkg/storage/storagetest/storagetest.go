// Package storagetest holds the behavior every storage.Driver must share,
// run by each driver's test suite.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shopstream/pkg/chat"
	"github.com/papercomputeco/shopstream/pkg/sse"
	"github.com/papercomputeco/shopstream/pkg/storage"
)

// Conversation builds a completed conversation started at the given time.
func Conversation(query string, started time.Time) *chat.Conversation {
	c := chat.NewConversation(query)
	c.StartedAt = started.UTC()
	c.Apply(chat.Message{
		Answer:  "Here are some products I found",
		Results: []chat.Product{{ID: chat.NumericID(42), Title: "Ceramic Mug", Price: 12.5}},
	}, nil)
	c.Apply(chat.Message{}, &sse.MalformedMessageError{Raw: "event: ping", Err: sse.ErrMissingData})
	c.Complete(nil)
	return c
}

// DescribeDriver registers the shared driver specs. newDriver is called
// before each spec; the returned driver is closed after it.
func DescribeDriver(newDriver func(ctx context.Context) storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver(ctx)
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("Put and Get", func() {
		It("round-trips a conversation", func() {
			c := Conversation("mug", time.Now())
			Expect(driver.Put(ctx, c)).To(Succeed())

			got, err := driver.Get(ctx, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(c.ID))
			Expect(got.Query).To(Equal("mug"))
			Expect(got.Status).To(Equal(chat.StatusComplete))
			Expect(got.StartedAt).To(BeTemporally("==", c.StartedAt))
			Expect(got.CompletedAt).To(BeTemporally("==", c.CompletedAt))
			Expect(got.Messages).To(Equal(c.Messages))
			Expect(got.Errors).To(Equal(c.Errors))
		})

		It("keeps the JSON shape of product ids", func() {
			c := chat.NewConversation("mug")
			c.Apply(chat.Message{Results: []chat.Product{
				{ID: chat.StringID("42"), Title: "Quoted"},
				{ID: chat.NumericID(42), Title: "Bare"},
			}}, nil)
			Expect(driver.Put(ctx, c)).To(Succeed())

			got, err := driver.Get(ctx, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Messages[0].Results[0].ID).To(Equal(chat.StringID("42")))
			Expect(got.Messages[0].Results[1].ID).To(Equal(chat.NumericID(42)))
		})

		It("replaces an earlier copy with the same ID", func() {
			c := chat.NewConversation("lamp")
			Expect(driver.Put(ctx, c)).To(Succeed())

			c.Apply(chat.Message{Answer: "One lamp"}, nil)
			c.Complete(errors.New("connection reset"))
			Expect(driver.Put(ctx, c)).To(Succeed())

			got, err := driver.Get(ctx, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(chat.StatusFailed))
			Expect(got.Failure).To(Equal("connection reset"))
			Expect(got.Messages).To(HaveLen(1))

			all, err := driver.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("returns NotFoundError for an unknown ID", func() {
			_, err := driver.Get(ctx, "missing")
			var nf storage.NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
			Expect(nf.ID).To(Equal("missing"))
		})

		It("rejects a nil conversation", func() {
			Expect(driver.Put(ctx, nil)).To(HaveOccurred())
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			for i := range 5 {
				c := Conversation(fmt.Sprintf("query %d", i), base.Add(time.Duration(i)*time.Minute))
				Expect(driver.Put(ctx, c)).To(Succeed())
			}
		})

		It("returns conversations newest first", func() {
			all, err := driver.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(5))
			Expect(all[0].Query).To(Equal("query 4"))
			Expect(all[4].Query).To(Equal("query 0"))
		})

		It("honours the limit", func() {
			some, err := driver.List(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(some).To(HaveLen(2))
			Expect(some[1].Query).To(Equal("query 3"))
		})
	})

	Describe("Delete", func() {
		It("removes a conversation", func() {
			c := Conversation("desk", time.Now())
			Expect(driver.Put(ctx, c)).To(Succeed())
			Expect(driver.Delete(ctx, c.ID)).To(Succeed())

			_, err := driver.Get(ctx, c.ID)
			Expect(err).To(BeAssignableToTypeOf(storage.NotFoundError{}))
		})

		It("fails for an unknown ID", func() {
			Expect(driver.Delete(ctx, "missing")).To(MatchError("conversation not found: missing"))
		})
	})
}
