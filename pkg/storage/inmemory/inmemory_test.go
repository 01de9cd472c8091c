package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shopstream/pkg/storage"
	"github.com/papercomputeco/shopstream/pkg/storage/inmemory"
	"github.com/papercomputeco/shopstream/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DescribeDriver(func(context.Context) storage.Driver {
		return inmemory.NewDriver()
	})

	It("keeps private copies of stored conversations", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()
		c := storagetest.Conversation("mug", time.Now())
		Expect(d.Put(ctx, c)).To(Succeed())

		c.Messages[0].Answer = "changed"
		got, err := d.Get(ctx, c.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Messages[0].Answer).To(Equal("Here are some products I found"))
		Expect(d.Count()).To(Equal(1))
	})
})
