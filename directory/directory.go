// Package directory is the REST client for the exchange task directory.
// It is a thin request/response wrapper: no state beyond the HTTP client
// and token source, no retries, no interpretation of task contents.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

const userAgent = "lifeline-cli"

// Mode selects how a task is worked: a one-shot answer or a live session.
type Mode string

const (
	ModeQuickAnswer  Mode = "quick-answer"
	ModeExtendedChat Mode = "extended-chat"
)

// TokenSource supplies a valid bearer token for every request, refreshing
// behind the scenes when needed.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
}

// Client talks to the exchange task directory.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     hclog.Logger
}

// NewClient creates a directory client rooted at baseURL.
func NewClient(baseURL string, tokens TokenSource, log hclog.Logger) *Client {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		log:     log.Named("directory"),
	}
}

// UpstreamError wraps a failed directory call with enough context for the
// tool façade to explain what went wrong.
type UpstreamError struct {
	Op      string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("exchange %s failed (HTTP %d): %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("exchange %s failed: %s", e.Op, e.Message)
}

// CreateTaskRequest is the body for POST /tasks.
type CreateTaskRequest struct {
	Message      string `json:"message"`
	Mode         Mode   `json:"mode"`
	MaxCredits   int    `json:"maxBudgetUnits"`
	ProjectID    string `json:"projectId"`
	ParentTaskID string `json:"parentTaskId,omitempty"`
}

// CreateTaskResponse is the directory's answer to a task creation.
type CreateTaskResponse struct {
	TaskID               string `json:"taskId"`
	EstimatedWaitSeconds int    `json:"estimatedWaitSeconds"`
	CreditsRemaining     int    `json:"creditsRemaining"`
	MaxBudgetAllocated   int    `json:"maxBudgetAllocated"`
	Warning              string `json:"warning,omitempty"`
}

// TaskMessage is one message in a task's status transcript.
type TaskMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskStatus is the directory's view of a single task.
type TaskStatus struct {
	Status       string        `json:"status"`
	Messages     []TaskMessage `json:"messages"`
	Response     string        `json:"response,omitempty"`
	CreditsUsed  int           `json:"creditsUsed,omitempty"`
	ParentTaskID string        `json:"parentTaskId,omitempty"`
}

// Terminal reports whether the task has finished and no further messages
// will arrive.
func (s *TaskStatus) Terminal() bool {
	return s.Status == "completed" || s.Status == "cancelled"
}

// ActiveTask summarizes an unfinished task for disambiguation.
type ActiveTask struct {
	TaskID         string `json:"taskId"`
	Mode           Mode   `json:"mode"`
	Status         string `json:"status"`
	MessagePreview string `json:"messagePreview"`
}

// CreateTask opens a new task on the exchange.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*CreateTaskResponse, error) {
	var resp CreateTaskResponse
	if err := c.post(ctx, "create task", "/tasks", req, &resp); err != nil {
		return nil, err
	}
	c.log.Debug("task created", "taskId", resp.TaskID, "mode", req.Mode)
	return &resp, nil
}

// Status fetches the current status and message transcript for a task.
func (c *Client) Status(ctx context.Context, taskID string) (*TaskStatus, error) {
	var status TaskStatus
	if err := c.get(ctx, "task status", "/tasks/"+taskID+"/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ActiveTasks lists non-terminal tasks for a project, most recent first.
func (c *Client) ActiveTasks(ctx context.Context, projectID string) ([]ActiveTask, error) {
	body := map[string]string{"projectId": projectID}
	var tasks []ActiveTask
	if err := c.post(ctx, "active tasks", "/tasks/active", body, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Override closes an existing task in favor of a new one. The directory
// returns a link to the superseding task for audit.
func (c *Client) Override(ctx context.Context, taskID string) error {
	return c.post(ctx, "override", "/tasks/"+taskID+"/override", struct{}{}, nil)
}

// FollowupRequest is the body for POST /tasks/{id}/followup.
type FollowupRequest struct {
	Message    string `json:"message"`
	MaxCredits int    `json:"maxBudgetUnits"`
}

// Followup creates a child task continuing an existing one. The new task's
// parentTaskId is set server-side to taskID.
func (c *Client) Followup(ctx context.Context, taskID string, req FollowupRequest) (*CreateTaskResponse, error) {
	var resp CreateTaskResponse
	if err := c.post(ctx, "followup", "/tasks/"+taskID+"/followup", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel asks the directory to cancel a task.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	return c.post(ctx, "cancel", "/tasks/"+taskID+"/cancel", struct{}{}, nil)
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &UpstreamError{Op: op, Message: err.Error()}
	}
	return c.do(op, req, out)
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return &UpstreamError{Op: op, Message: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return &UpstreamError{Op: op, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	token, err := c.tokens.GetValidToken(req.Context())
	if err != nil {
		return &UpstreamError{Op: op, Message: fmt.Sprintf("auth: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return &UpstreamError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Op: op, Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Op: op, Status: resp.StatusCode, Message: upstreamMessage(raw)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return &UpstreamError{Op: op, Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
		}
	}
	return nil
}

// upstreamMessage pulls a human-readable error out of a failure body,
// falling back to the raw text truncated to something log-friendly.
func upstreamMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	s := string(raw)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
