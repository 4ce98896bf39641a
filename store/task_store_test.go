package store_test

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lifeline/store"
)

var _ = Describe("TaskStore", func() {
	runTaskStoreTests := func(newBundle func() (*store.Bundle, func())) {
		var (
			bundle  *store.Bundle
			cleanup func()
			tasks   store.TaskStore
		)

		BeforeEach(func() {
			bundle, cleanup = newBundle()
			tasks = bundle.Tasks
		})

		AfterEach(func() {
			cleanup()
		})

		It("records and retrieves a task", func() {
			Expect(tasks.RecordTask("task-1", "quick-answer", "proj-1", "", "why is CI red")).To(Succeed())

			rec, err := tasks.GetTask("task-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).NotTo(BeNil())
			Expect(rec.Mode).To(Equal("quick-answer"))
			Expect(rec.ProjectID).To(Equal("proj-1"))
			Expect(rec.FirstMessage).To(Equal("why is CI red"))
			Expect(rec.Status).To(Equal("pending"))
			Expect(rec.ParentTaskID).To(BeEmpty())
			Expect(rec.FinishedAt).To(BeNil())
		})

		It("returns nil for an unknown task", func() {
			rec, err := tasks.GetTask("missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).To(BeNil())
		})

		It("is idempotent when recording the same task twice", func() {
			Expect(tasks.RecordTask("task-1", "quick-answer", "proj-1", "", "first")).To(Succeed())
			Expect(tasks.RecordTask("task-1", "quick-answer", "proj-1", "", "second")).To(Succeed())

			rec, err := tasks.GetTask("task-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.FirstMessage).To(Equal("first"))

			_, total, err := tasks.ListTasks(10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(1))
		})

		It("keeps the parent link for follow-up tasks", func() {
			Expect(tasks.RecordTask("task-2", "extended-chat", "proj-1", "task-1", "continuing")).To(Succeed())

			rec, err := tasks.GetTask("task-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ParentTaskID).To(Equal("task-1"))
		})

		It("stamps a finish time on terminal status updates", func() {
			Expect(tasks.RecordTask("task-1", "quick-answer", "proj-1", "", "msg")).To(Succeed())

			Expect(tasks.UpdateTaskStatus("task-1", "in_progress")).To(Succeed())
			rec, _ := tasks.GetTask("task-1")
			Expect(rec.Status).To(Equal("in_progress"))
			Expect(rec.FinishedAt).To(BeNil())

			Expect(tasks.UpdateTaskStatus("task-1", "completed")).To(Succeed())
			rec, _ = tasks.GetTask("task-1")
			Expect(rec.Status).To(Equal("completed"))
			Expect(rec.FinishedAt).NotTo(BeNil())
		})

		It("updates credit usage", func() {
			Expect(tasks.RecordTask("task-1", "extended-chat", "proj-1", "", "msg")).To(Succeed())
			Expect(tasks.UpdateCreditsUsed("task-1", 42)).To(Succeed())

			rec, _ := tasks.GetTask("task-1")
			Expect(rec.CreditsUsed).To(Equal(42))
		})

		It("lists newest first with pagination", func() {
			Expect(tasks.RecordTask("task-1", "quick-answer", "proj-1", "", "one")).To(Succeed())
			Expect(tasks.RecordTask("task-2", "quick-answer", "proj-1", "", "two")).To(Succeed())
			Expect(tasks.RecordTask("task-3", "quick-answer", "proj-1", "", "three")).To(Succeed())

			page, total, err := tasks.ListTasks(2, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(3))
			Expect(page).To(HaveLen(2))

			rest, _, err := tasks.ListTasks(2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(rest).To(HaveLen(1))
		})
	}

	runTranscriptTests := func(newBundle func() (*store.Bundle, func())) {
		var (
			bundle  *store.Bundle
			cleanup func()
		)

		BeforeEach(func() {
			bundle, cleanup = newBundle()
		})

		AfterEach(func() {
			cleanup()
		})

		It("appends and reads messages in order", func() {
			Expect(bundle.Tasks.RecordTask("task-1", "extended-chat", "proj-1", "", "hi")).To(Succeed())
			Expect(bundle.Transcripts.AppendMessage("task-1", "customer", "hi")).To(Succeed())
			Expect(bundle.Transcripts.AppendMessage("task-1", "engineer", "hello")).To(Succeed())
			Expect(bundle.Transcripts.AppendMessage("task-1", "customer", "it broke again")).To(Succeed())

			msgs, err := bundle.Transcripts.GetMessages("task-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(3))
			Expect(msgs[0].Sender).To(Equal("customer"))
			Expect(msgs[1].Sender).To(Equal("engineer"))
			Expect(msgs[2].Content).To(Equal("it broke again"))
		})

		It("returns an empty transcript for an unknown task", func() {
			msgs, err := bundle.Transcripts.GetMessages("missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(BeEmpty())
		})
	}

	newMemory := func() (*store.Bundle, func()) {
		return store.NewMemoryBundle(), func() {}
	}

	newSQLite := func() (*store.Bundle, func()) {
		path := filepath.Join(GinkgoT().TempDir(), "store.db")
		bundle, err := store.NewSQLiteBundle(path)
		Expect(err).NotTo(HaveOccurred())
		return bundle, func() { Expect(bundle.Close()).To(Succeed()) }
	}

	Context("memory backend", func() {
		runTaskStoreTests(newMemory)
		runTranscriptTests(newMemory)
	})

	Context("sqlite backend", func() {
		runTaskStoreTests(newSQLite)
		runTranscriptTests(newSQLite)
	})
})
