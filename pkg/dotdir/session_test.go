package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/shopstream/pkg/dotdir"
)

var _ = Describe("dotdir.Manager session", func() {
	var (
		dir string
		m   *dotdir.Manager
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		m = dotdir.NewManager()
	})

	It("returns nil when no session was recorded", func() {
		state, err := m.LoadSession(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("round-trips the session state", func() {
		saved := &dotdir.SessionState{
			ConversationID: "5b0a4c36-9a51-4a41-9d0e-3f0cf0b5b1f1",
			Query:          "red mug",
			APITarget:      "http://localhost:8000",
			UpdatedAt:      time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		}
		Expect(m.SaveSession(saved, dir)).To(Succeed())

		loaded, err := m.LoadSession(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.ConversationID).To(Equal(saved.ConversationID))
		Expect(loaded.Query).To(Equal(saved.Query))
		Expect(loaded.APITarget).To(Equal(saved.APITarget))
		Expect(loaded.UpdatedAt).To(BeTemporally("==", saved.UpdatedAt))
	})

	It("rejects a nil state", func() {
		Expect(m.SaveSession(nil, dir)).To(HaveOccurred())
	})

	It("fails on invalid JSON", func() {
		Expect(os.WriteFile(filepath.Join(dir, "session.json"), []byte("{"), 0o600)).To(Succeed())
		_, err := m.LoadSession(dir)
		Expect(err).To(HaveOccurred())
	})

	It("clears the session and tolerates a missing file", func() {
		Expect(m.SaveSession(&dotdir.SessionState{ConversationID: "x"}, dir)).To(Succeed())
		Expect(m.ClearSession(dir)).To(Succeed())
		Expect(filepath.Join(dir, "session.json")).NotTo(BeAnExistingFile())
		Expect(m.ClearSession(dir)).To(Succeed())
	})
})
