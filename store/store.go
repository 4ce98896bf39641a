// Package store keeps a local record of exchange tasks this client created
// or resumed, and the messages exchanged on each. It is an audit trail for
// the `lifeline tasks` command, not the source of truth; the exchange is.
package store

import "time"

// Bundle holds all stores for tracking delegated work.
type Bundle struct {
	Tasks       TaskStore
	Transcripts TranscriptStore
	closer      func() error
}

// Close cleans up the bundle resources
func (b *Bundle) Close() error {
	if b.closer != nil {
		return b.closer()
	}
	return nil
}

// TaskStore tracks exchange tasks the client has touched.
type TaskStore interface {
	RecordTask(taskID, mode, projectID, parentTaskID, firstMessage string) error
	UpdateTaskStatus(taskID, status string) error
	UpdateCreditsUsed(taskID string, creditsUsed int) error
	GetTask(taskID string) (*TaskRecord, error)
	ListTasks(limit, offset int) ([]TaskRecord, int, error)
}

// TaskRecord is the local view of one exchange task.
type TaskRecord struct {
	TaskID       string     `json:"taskId"`
	Mode         string     `json:"mode"`
	ProjectID    string     `json:"projectId"`
	ParentTaskID string     `json:"parentTaskId,omitempty"`
	FirstMessage string     `json:"firstMessage"`
	Status       string     `json:"status"`
	CreditsUsed  int        `json:"creditsUsed"`
	CreatedAt    time.Time  `json:"createdAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// TranscriptStore keeps the message history per task.
type TranscriptStore interface {
	AppendMessage(taskID, sender, content string) error
	GetMessages(taskID string) ([]TranscriptMessage, error)
}

// TranscriptMessage is a single recorded message.
type TranscriptMessage struct {
	ID        int       `json:"id"`
	TaskID    string    `json:"taskId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
