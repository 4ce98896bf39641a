package store

import (
	"fmt"
	"sync"
	"time"
)

// NewMemoryBundle creates a Bundle backed entirely by in-memory stores
func NewMemoryBundle() *Bundle {
	return &Bundle{
		Tasks:       &MemoryTaskStore{tasks: make(map[string]*TaskRecord)},
		Transcripts: &MemoryTranscriptStore{messages: make(map[string][]TranscriptMessage)},
	}
}

// MemoryTaskStore keeps task records in a map.
type MemoryTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*TaskRecord
	order []string // insertion order, newest appended last
}

func (s *MemoryTaskStore) RecordTask(taskID, mode, projectID, parentTaskID, firstMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; ok {
		return nil // resuming a task we already track
	}
	s.tasks[taskID] = &TaskRecord{
		TaskID:       taskID,
		Mode:         mode,
		ProjectID:    projectID,
		ParentTaskID: parentTaskID,
		FirstMessage: firstMessage,
		Status:       "pending",
		CreatedAt:    time.Now(),
	}
	s.order = append(s.order, taskID)
	return nil
}

func (s *MemoryTaskStore) UpdateTaskStatus(taskID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %q not tracked", taskID)
	}
	t.Status = status
	if status == "completed" || status == "cancelled" {
		now := time.Now()
		t.FinishedAt = &now
	}
	return nil
}

func (s *MemoryTaskStore) UpdateCreditsUsed(taskID string, creditsUsed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %q not tracked", taskID)
	}
	t.CreditsUsed = creditsUsed
	return nil
}

func (s *MemoryTaskStore) GetTask(taskID string) (*TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryTaskStore) ListTasks(limit, offset int) ([]TaskRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.order)

	// newest first
	var out []TaskRecord
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.tasks[s.order[i]])
	}
	return out, total, nil
}

// MemoryTranscriptStore keeps transcripts in a map.
type MemoryTranscriptStore struct {
	mu       sync.Mutex
	messages map[string][]TranscriptMessage
	nextID   int
}

func (s *MemoryTranscriptStore) AppendMessage(taskID, sender, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.messages[taskID] = append(s.messages[taskID], TranscriptMessage{
		ID:        s.nextID,
		TaskID:    taskID,
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *MemoryTranscriptStore) GetMessages(taskID string) ([]TranscriptMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[taskID]
	out := make([]TranscriptMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}
