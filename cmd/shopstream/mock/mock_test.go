package mockcmder_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	mockcmder "github.com/papercomputeco/shopstream/cmd/shopstream/mock"
	"github.com/papercomputeco/shopstream/pkg/chat"
	"github.com/papercomputeco/shopstream/pkg/client"
)

var _ = Describe("NewMockCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := mockcmder.NewMockCmd()
		Expect(cmd.Use).To(Equal("mock"))
	})

	It("defaults --listen from the configuration defaults", func() {
		cmd := mockcmder.NewMockCmd()
		flag := cmd.Flags().Lookup("listen")
		Expect(flag).NotTo(BeNil())
		Expect(flag.Shorthand).To(Equal("l"))
		Expect(flag.DefValue).To(Equal(":8000"))
	})
})

var _ = Describe("Mock command execution", func() {
	var (
		dir    string
		cancel context.CancelFunc
		done   chan error
	)

	// start runs the mock command under a parent carrying the global flags
	// and returns a client for it.
	start := func(args ...string) *client.Client {
		addrs := make(chan string, 1)
		root := &cobra.Command{Use: "shopstream"}
		root.PersistentFlags().String("config-dir", dir, "")
		root.PersistentFlags().Bool("debug", false, "")
		root.AddCommand(mockcmder.NewMockCmdWithReady(func(addr string) { addrs <- addr }))
		root.SetArgs(append([]string{"mock", "--listen", "127.0.0.1:0", "--delay", "0s"}, args...))
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() { done <- root.ExecuteContext(ctx) }()

		var addr string
		Eventually(addrs).Should(Receive(&addr))

		c, err := client.New(client.Config{BaseURL: "http://" + addr, Timeout: 10 * time.Second})
		Expect(err).NotTo(HaveOccurred())
		Eventually(func() error {
			return c.Health(context.Background())
		}).Should(Succeed())
		return c
	}

	collect := func(c *client.Client, query string) ([]chat.Message, []error) {
		stream, err := c.Ask(context.Background(), query)
		Expect(err).NotTo(HaveOccurred())
		defer stream.Close()

		var (
			msgs []chat.Message
			errs []error
		)
		for msg, err := range stream.All() {
			if err != nil {
				errs = append(errs, err)
				continue
			}
			msgs = append(msgs, msg)
		}
		return msgs, errs
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	AfterEach(func() {
		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("serves catalogue answers in small chunks", func() {
		c := start("--chunk-size", "2")

		msgs, errs := collect(c, "gaming monitor")
		Expect(errs).To(BeEmpty())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Results[0].Title).To(Equal("Samsung 49-Inch Gaming Monitor"))
	})

	It("serves a recorded capture", func() {
		path := filepath.Join(dir, "capture.sse")
		Expect(os.WriteFile(path, []byte("data: {\"answer\":\"recorded\"}\n\ndata: oops\n\n"), 0o644)).To(Succeed())

		c := start("--file", path, "--chunk-size", "1")

		msgs, errs := collect(c, "anything")
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Answer).To(Equal("recorded"))
		Expect(errs).To(HaveLen(1))
	})
})

var _ = Describe("Mock command errors", func() {
	It("fails for a missing capture file", func() {
		root := &cobra.Command{Use: "shopstream"}
		root.PersistentFlags().String("config-dir", GinkgoT().TempDir(), "")
		root.PersistentFlags().Bool("debug", false, "")
		root.AddCommand(mockcmder.NewMockCmd())
		root.SetArgs([]string{"mock", "--file", filepath.Join(GinkgoT().TempDir(), "missing.sse")})
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})

		Expect(root.Execute()).To(MatchError(ContainSubstring("reading capture")))
	})
})
