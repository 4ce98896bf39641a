package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
    task_id TEXT PRIMARY KEY,
    mode TEXT NOT NULL,
    project_id TEXT NOT NULL,
    parent_task_id TEXT,
    first_message TEXT,
    status TEXT DEFAULT 'pending',
    credits_used INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS transcript_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id TEXT NOT NULL REFERENCES tasks(task_id),
    sender TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_transcript_messages_task ON transcript_messages(task_id);
`

// NewSQLiteBundle creates a Bundle backed by a SQLite database at path.
func NewSQLiteBundle(path string) (*Bundle, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Bundle{
		Tasks:       &SQLiteTaskStore{db: db},
		Transcripts: &SQLiteTranscriptStore{db: db},
		closer:      db.Close,
	}, nil
}

// SQLiteTaskStore persists task records.
type SQLiteTaskStore struct {
	db *sql.DB
}

func (s *SQLiteTaskStore) RecordTask(taskID, mode, projectID, parentTaskID, firstMessage string) error {
	_, err := s.db.Exec(`
		INSERT INTO tasks (task_id, mode, project_id, parent_task_id, first_message)
		VALUES (?, ?, ?, NULLIF(?, ''), ?)
		ON CONFLICT(task_id) DO NOTHING`,
		taskID, mode, projectID, parentTaskID, firstMessage)
	return err
}

func (s *SQLiteTaskStore) UpdateTaskStatus(taskID, status string) error {
	if status == "completed" || status == "cancelled" {
		_, err := s.db.Exec(`UPDATE tasks SET status = ?, finished_at = CURRENT_TIMESTAMP WHERE task_id = ?`, status, taskID)
		return err
	}
	_, err := s.db.Exec(`UPDATE tasks SET status = ? WHERE task_id = ?`, status, taskID)
	return err
}

func (s *SQLiteTaskStore) UpdateCreditsUsed(taskID string, creditsUsed int) error {
	_, err := s.db.Exec(`UPDATE tasks SET credits_used = ? WHERE task_id = ?`, creditsUsed, taskID)
	return err
}

func (s *SQLiteTaskStore) GetTask(taskID string) (*TaskRecord, error) {
	row := s.db.QueryRow(`
		SELECT task_id, mode, project_id, COALESCE(parent_task_id, ''), first_message,
		       status, credits_used, created_at, finished_at
		FROM tasks WHERE task_id = ?`, taskID)

	var t TaskRecord
	var finished sql.NullTime
	err := row.Scan(&t.TaskID, &t.Mode, &t.ProjectID, &t.ParentTaskID, &t.FirstMessage,
		&t.Status, &t.CreditsUsed, &t.CreatedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		ft := finished.Time
		t.FinishedAt = &ft
	}
	return &t, nil
}

func (s *SQLiteTaskStore) ListTasks(limit, offset int) ([]TaskRecord, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT task_id, mode, project_id, COALESCE(parent_task_id, ''), first_message,
		       status, credits_used, created_at, finished_at
		FROM tasks ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var t TaskRecord
		var finished sql.NullTime
		if err := rows.Scan(&t.TaskID, &t.Mode, &t.ProjectID, &t.ParentTaskID, &t.FirstMessage,
			&t.Status, &t.CreditsUsed, &t.CreatedAt, &finished); err != nil {
			return nil, 0, err
		}
		if finished.Valid {
			ft := finished.Time
			t.FinishedAt = &ft
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// SQLiteTranscriptStore persists per-task message transcripts.
type SQLiteTranscriptStore struct {
	db *sql.DB
}

func (s *SQLiteTranscriptStore) AppendMessage(taskID, sender, content string) error {
	_, err := s.db.Exec(`
		INSERT INTO transcript_messages (task_id, sender, content) VALUES (?, ?, ?)`,
		taskID, sender, content)
	return err
}

func (s *SQLiteTranscriptStore) GetMessages(taskID string) ([]TranscriptMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, task_id, sender, content, created_at
		FROM transcript_messages WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TranscriptMessage
	for rows.Next() {
		var m TranscriptMessage
		var created time.Time
		if err := rows.Scan(&m.ID, &m.TaskID, &m.Sender, &m.Content, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = created
		out = append(out, m)
	}
	return out, rows.Err()
}
