package askcmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	shopstreamcmder "github.com/papercomputeco/shopstream/cmd/shopstream"
	askcmder "github.com/papercomputeco/shopstream/cmd/shopstream/ask"
	"github.com/papercomputeco/shopstream/cmd/shopstream/output"
	"github.com/papercomputeco/shopstream/pkg/chat"
	"github.com/papercomputeco/shopstream/pkg/client"
	"github.com/papercomputeco/shopstream/pkg/dotdir"
	"github.com/papercomputeco/shopstream/pkg/logger"
	"github.com/papercomputeco/shopstream/pkg/mock"
	"github.com/papercomputeco/shopstream/pkg/storage/sqlite"
)

// brokenWriter fails every write, like a closed pipe.
type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

var _ = Describe("NewAskCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := askcmder.NewAskCmd()
		Expect(cmd.Use).To(Equal("ask [query]"))
	})

	It("registers the shared flags", func() {
		cmd := askcmder.NewAskCmd()
		for _, name := range []string{"api-target", "timeout", "strict", "skip-malformed", "history", "sqlite", "eventstream"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
		Expect(cmd.Flags().Lookup("api-target").Shorthand).To(Equal("a"))
		Expect(cmd.Flags().Lookup("history").DefValue).To(Equal("sqlite"))
	})
})

var _ = Describe("Ask command execution", func() {
	var (
		configDir string
		server    *mock.Server
		baseURL   string
		stdout    *bytes.Buffer
		stderr    *bytes.Buffer
	)

	startMock := func(cfg mock.Config) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		server = mock.NewServer(cfg, logger.Nop())
		go func() { _ = server.Listener(ln) }()
		baseURL = "http://" + ln.Addr().String()

		c, err := client.New(client.Config{BaseURL: baseURL})
		Expect(err).NotTo(HaveOccurred())
		Eventually(func() error {
			return c.Health(context.Background())
		}).Should(Succeed())
	}

	execute := func(stdin string, args ...string) error {
		cmd := shopstreamcmder.NewShopstreamCmd()
		cmd.SetArgs(append([]string{"ask", "--config-dir", configDir, "--api-target", baseURL, "--no-color"}, args...))
		cmd.SetIn(strings.NewReader(stdin))
		cmd.SetOut(stdout)
		cmd.SetErr(stderr)
		return cmd.Execute()
	}

	jsonLines := func() []output.Line {
		var lines []output.Line
		for raw := range strings.SplitSeq(strings.TrimSpace(stdout.String()), "\n") {
			var line output.Line
			Expect(json.Unmarshal([]byte(raw), &line)).To(Succeed())
			lines = append(lines, line)
		}
		return lines
	}

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		stdout = &bytes.Buffer{}
		stderr = &bytes.Buffer{}
		server = nil
	})

	AfterEach(func() {
		if server != nil {
			Expect(server.Shutdown()).To(Succeed())
		}
	})

	It("renders the answer and product cards for a single query", func() {
		startMock(mock.Config{ChunkSize: 7})

		Expect(execute("", "--history", "none", "coffee mug")).To(Succeed())
		Expect(stdout.String()).To(ContainSubstring("Here are some products I found"))
		Expect(stdout.String()).To(ContainSubstring("Ceramic Coffee Mug"))
		Expect(stdout.String()).To(ContainSubstring("$12.50"))
	})

	It("prints JSON lines with per-record errors in stream order", func() {
		startMock(mock.Config{
			ChunkSize: 5,
			Capture: []byte("data: {\"answer\":\"first\"}\n\n" +
				"data: not json\n\n" +
				"data: {\"answer\":\"third\",\"results\":[{\"id\":4,\"title\":\"Mug\",\"price\":12.5}]}\n\n"),
		})

		Expect(execute("", "--history", "none", "--json", "mug")).To(Succeed())

		lines := jsonLines()
		Expect(lines).To(HaveLen(3))
		Expect(lines[0].Message.Answer).To(Equal("first"))
		Expect(lines[1].Seq).To(Equal(1))
		Expect(lines[1].Error).NotTo(BeEmpty())
		Expect(lines[1].Raw).To(Equal("data: not json"))
		Expect(lines[2].Message.Results[0].ID).To(Equal(chat.NumericID(4)))
	})

	It("reports a truncated stream after the messages that arrived", func() {
		startMock(mock.Config{
			Capture: []byte("data: {\"answer\":\"partial\"}\n\ndata: {\"answ"),
		})

		err := execute("", "--history", "none", "--json", "mug")
		Expect(err).To(HaveOccurred())

		lines := jsonLines()
		Expect(lines).To(HaveLen(2))
		Expect(lines[0].Message.Answer).To(Equal("partial"))
		Expect(lines[1].Failure).To(ContainSubstring("stream ended mid-record"))
	})

	It("saves the conversation and session to SQLite history", func() {
		startMock(mock.Config{})
		dbPath := filepath.Join(configDir, "history.db")

		Expect(execute("", "--history", "sqlite", "--sqlite", dbPath, "backpack")).To(Succeed())

		session, err := dotdir.NewManager().LoadSession(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(session).NotTo(BeNil())
		Expect(session.Query).To(Equal("backpack"))

		store, err := sqlite.NewDriver(context.Background(), dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()

		conv, err := store.Get(context.Background(), session.ConversationID)
		Expect(err).NotTo(HaveOccurred())
		Expect(conv.Status).To(Equal(chat.StatusComplete))
		Expect(conv.Products()[0].Title).To(ContainSubstring("Backpack"))
	})

	It("records the conversation as failed when output cannot be written", func() {
		startMock(mock.Config{})
		dbPath := filepath.Join(configDir, "history.db")

		cmd := shopstreamcmder.NewShopstreamCmd()
		cmd.SetArgs([]string{"ask", "--config-dir", configDir, "--api-target", baseURL, "--no-color",
			"--history", "sqlite", "--sqlite", dbPath, "backpack"})
		cmd.SetOut(brokenWriter{})
		cmd.SetErr(stderr)
		Expect(cmd.Execute()).To(MatchError(ContainSubstring("writing output")))

		session, err := dotdir.NewManager().LoadSession(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(session).NotTo(BeNil())

		store, err := sqlite.NewDriver(context.Background(), dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()

		conv, err := store.Get(context.Background(), session.ConversationID)
		Expect(err).NotTo(HaveOccurred())
		Expect(conv.Status).To(Equal(chat.StatusFailed))
		Expect(conv.Failure).To(ContainSubstring("writing output"))
	})

	It("answers every question in an interactive session", func() {
		startMock(mock.Config{})

		Expect(execute("coffee mug\n\njacket\n/exit\nnever asked\n", "--history", "none")).To(Succeed())

		out := stdout.String()
		Expect(strings.Count(out, "you>")).To(Equal(4))
		Expect(out).To(ContainSubstring("Ceramic Coffee Mug"))
		Expect(out).To(ContainSubstring("Mens Cotton Jacket"))
	})

	It("writes the raw response bytes and JSON logs to files", func() {
		capture := "data: {\"answer\":\"hello\"}\r\n\r\n"
		startMock(mock.Config{Capture: []byte(capture)})
		rawPath := filepath.Join(configDir, "raw.sse")
		logPath := filepath.Join(configDir, "ask.log")

		Expect(execute("", "--history", "none", "--raw-out", rawPath, "--log-file", logPath, "--debug", "hello")).To(Succeed())

		raw, err := os.ReadFile(rawPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(Equal(capture))

		logs, err := os.ReadFile(logPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(logs)).To(ContainSubstring(`"msg":"conversation finished"`))
	})

	It("returns the server status as an error", func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"index offline"}`, http.StatusServiceUnavailable)
		}))
		defer ts.Close()
		baseURL = ts.URL

		err := execute("", "--history", "none", "--timeout", (2 * time.Second).String(), "mug")
		var statusErr *client.StatusError
		Expect(err).To(BeAssignableToTypeOf(statusErr))
		Expect(err.Error()).To(ContainSubstring("503"))
	})
})
