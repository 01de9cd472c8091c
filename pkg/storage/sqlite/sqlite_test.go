package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shopstream/pkg/storage"
	"github.com/papercomputeco/shopstream/pkg/storage/sqlite"
	"github.com/papercomputeco/shopstream/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	Context("in memory", func() {
		storagetest.DescribeDriver(func(ctx context.Context) storage.Driver {
			d, err := sqlite.NewDriver(ctx, ":memory:")
			Expect(err).NotTo(HaveOccurred())
			return d
		})
	})

	Describe("NewDriver", func() {
		It("creates a file database that survives reopening", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "history.db")

			d, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())

			c := storagetest.Conversation("mug", time.Now())
			Expect(d.Put(ctx, c)).To(Succeed())
			Expect(d.Close()).To(Succeed())

			d, err = sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			got, err := d.Get(ctx, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Query).To(Equal("mug"))
		})

		It("fails for a path in a missing directory", func() {
			_, err := sqlite.NewDriver(context.Background(), filepath.Join(GinkgoT().TempDir(), "nope", "history.db"))
			Expect(err).To(HaveOccurred())
		})
	})
})
