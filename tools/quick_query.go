package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lifeline/config"
	"lifeline/directory"
	"lifeline/reply"
	"lifeline/resolver"
)

// QuickQueryTool asks an engineer a one-shot question. No live channel is
// opened; the answer is discovered by polling task status until the task
// completes.
type QuickQueryTool struct {
	deps *Deps
}

// NewQuickQueryTool creates the quick_query tool.
func NewQuickQueryTool(deps *Deps) *QuickQueryTool {
	return &QuickQueryTool{deps: deps}
}

func (t *QuickQueryTool) ToolName() string {
	return "quick_query"
}

func (t *QuickQueryTool) ToolDescription() string {
	return "Asks a human engineer a quick debugging question and waits for the answer. " +
		"Fire-and-forget: the engineer replies once and the task completes. " +
		"For back-and-forth collaboration use extended_chat instead."
}

func (t *QuickQueryTool) ToolPayloadSchema() Schema {
	return Schema{
		Type: TypeObject,
		Properties: PropertyMap{
			"message": {
				Type:        TypeString,
				Description: "The question for the engineer. Include error output and what you already tried.",
			},
			"max_credits": {
				Type:        TypeInteger,
				Description: "Budget cap in credits, 1-10.",
			},
			"timeout_seconds": {
				Type:        TypeInteger,
				Description: "How long to wait for the answer before giving up.",
			},
			"attachments": {
				Type:        TypeArray,
				Description: "Up to 5 file paths to share (binary files ≤10MB, text ≤1MB).",
				Items:       &Property{Type: TypeString},
			},
			"continue_task_id": {
				Type:        TypeString,
				Description: "Resume waiting on an existing task instead of creating one.",
			},
			"decision": {
				Type:        TypeString,
				Description: "Answer to a previous decision request: reconnect, followup, or override.",
			},
		},
		Required: []string{"message"},
	}
}

type quickQueryParams struct {
	Message        string   `json:"message"`
	MaxCredits     int      `json:"max_credits"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	Attachments    []string `json:"attachments"`
	ContinueTaskID string   `json:"continue_task_id"`
	Decision       string   `json:"decision"`
}

func (t *QuickQueryTool) Call(ctx context.Context, params string) string {
	var p quickQueryParams
	if err := json.Unmarshal([]byte(params), &p); err != nil {
		return errorText(&ValidationError{Field: "parameters", Reason: err.Error()})
	}

	if p.Message == "" {
		return errorText(&ValidationError{Field: "message", Reason: "message is required"})
	}
	if p.MaxCredits == 0 {
		p.MaxCredits = t.deps.Config.Defaults.QuickCredits
	}
	if p.MaxCredits < config.QuickCreditsMin || p.MaxCredits > config.QuickCreditsMax {
		return errorText(&ValidationError{
			Field:  "max_credits",
			Reason: fmt.Sprintf("must be between %d and %d for quick queries, got %d", config.QuickCreditsMin, config.QuickCreditsMax, p.MaxCredits),
		})
	}
	if err := validateAttachments(p.Attachments); err != nil {
		return errorText(err)
	}

	projectID := t.deps.Config.Exchange.ProjectID
	res, err := t.deps.Resolver.Resolve(ctx, projectID, resolver.Options{
		ContinueTaskID: p.ContinueTaskID,
		Decision:       resolver.Decision(p.Decision),
		Message:        p.Message,
		MaxCredits:     p.MaxCredits,
	})
	if err != nil {
		return errorText(err)
	}
	if res.Decision != nil {
		return formatDecisionRequest(res.Decision)
	}

	taskID := res.TaskID
	if taskID == "" {
		created, err := t.deps.Directory.CreateTask(ctx, directory.CreateTaskRequest{
			Message:    p.Message,
			Mode:       directory.ModeQuickAnswer,
			MaxCredits: p.MaxCredits,
			ProjectID:  projectID,
		})
		if err != nil {
			return errorText(err)
		}
		taskID = created.TaskID
		t.recordTask(taskID, projectID, p.Message)
	}

	if len(p.Attachments) > 0 {
		if err := uploadAttachments(ctx, t.deps.Directory, taskID, p.Attachments); err != nil {
			return errorText(fmt.Errorf("attachment upload failed, task %s aborted before waiting: %w", taskID, err))
		}
	}

	timeout := time.Duration(p.TimeoutSeconds) * time.Second
	if p.TimeoutSeconds == 0 {
		timeout = time.Duration(t.deps.Config.Defaults.TimeoutSeconds) * time.Second
	}

	poller := reply.NewPoller(t.deps.Directory, taskID, t.deps.Log)
	r, err := poller.AwaitReply(ctx, timeout)
	if err != nil {
		return errorText(err)
	}

	t.deps.Stores.Tasks.UpdateTaskStatus(taskID, "completed")
	t.deps.Stores.Tasks.UpdateCreditsUsed(taskID, r.CreditsUsed)
	if r.Text != "" {
		t.deps.Stores.Transcripts.AppendMessage(taskID, "engineer", r.Text)
	}

	return formatQuickResult(taskID, r)
}

func (t *QuickQueryTool) recordTask(taskID, projectID, message string) {
	if err := t.deps.Stores.Tasks.RecordTask(taskID, string(directory.ModeQuickAnswer), projectID, "", message); err != nil {
		t.deps.Log.Warn("record task", "taskId", taskID, "error", err)
	}
	t.deps.Stores.Transcripts.AppendMessage(taskID, "customer", message)
}
