package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lifeline/config"
	"lifeline/directory"
	"lifeline/resolver"
)

// escalationDepth is the ancestry depth at which the chat result starts
// hinting that follow-ups are compounding instead of converging.
const escalationDepth = 3

// ExtendedChatTool holds a live session with an engineer open across
// multiple tool calls. Each call sends one message and returns the next
// reply plus a directive to call again, keeping the loop alive until the
// engineer says the work is done.
type ExtendedChatTool struct {
	deps *Deps
}

// NewExtendedChatTool creates the extended_chat tool.
func NewExtendedChatTool(deps *Deps) *ExtendedChatTool {
	return &ExtendedChatTool{deps: deps}
}

func (t *ExtendedChatTool) ToolName() string {
	return "extended_chat"
}

func (t *ExtendedChatTool) ToolDescription() string {
	return "Opens (or continues) a live debugging session with a human engineer. " +
		"Send one message per call and keep calling with the returned task id until the engineer " +
		"indicates the task is complete."
}

func (t *ExtendedChatTool) ToolPayloadSchema() Schema {
	return Schema{
		Type: TypeObject,
		Properties: PropertyMap{
			"message": {
				Type:        TypeString,
				Description: "The message to send to the engineer.",
			},
			"max_credits": {
				Type:        TypeInteger,
				Description: "Budget cap in credits, 4-1920.",
			},
			"attachments": {
				Type:        TypeArray,
				Description: "Up to 5 file paths to share (binary files ≤10MB, text ≤1MB).",
				Items:       &Property{Type: TypeString},
			},
			"continue_task_id": {
				Type:        TypeString,
				Description: "Task id from a previous extended_chat result to continue that session.",
			},
			"decision": {
				Type:        TypeString,
				Description: "Answer to a previous decision request: reconnect, followup, or override.",
			},
			"previously_connected": {
				Type:        TypeBoolean,
				Description: "Set true when continuing a session so the introduction is not repeated.",
			},
		},
		Required: []string{"message"},
	}
}

type extendedChatParams struct {
	Message             string   `json:"message"`
	MaxCredits          int      `json:"max_credits"`
	Attachments         []string `json:"attachments"`
	ContinueTaskID      string   `json:"continue_task_id"`
	Decision            string   `json:"decision"`
	PreviouslyConnected bool     `json:"previously_connected"`
}

func (t *ExtendedChatTool) Call(ctx context.Context, params string) string {
	var p extendedChatParams
	if err := json.Unmarshal([]byte(params), &p); err != nil {
		return errorText(&ValidationError{Field: "parameters", Reason: err.Error()})
	}

	if p.Message == "" {
		return errorText(&ValidationError{Field: "message", Reason: "message is required"})
	}
	if p.MaxCredits == 0 {
		p.MaxCredits = t.deps.Config.Defaults.ChatCredits
	}
	if p.MaxCredits < config.ChatCreditsMin || p.MaxCredits > config.ChatCreditsMax {
		return errorText(&ValidationError{
			Field:  "max_credits",
			Reason: fmt.Sprintf("must be between %d and %d for extended chat, got %d", config.ChatCreditsMin, config.ChatCreditsMax, p.MaxCredits),
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
	resuming := taskID != ""
	if !resuming {
		created, err := t.deps.Directory.CreateTask(ctx, directory.CreateTaskRequest{
			Message:    p.Message,
			Mode:       directory.ModeExtendedChat,
			MaxCredits: p.MaxCredits,
			ProjectID:  projectID,
		})
		if err != nil {
			return errorText(err)
		}
		taskID = created.TaskID
		if err := t.deps.Stores.Tasks.RecordTask(taskID, string(directory.ModeExtendedChat), projectID, "", p.Message); err != nil {
			t.deps.Log.Warn("record task", "taskId", taskID, "error", err)
		}
	}
	t.deps.Stores.Transcripts.AppendMessage(taskID, "customer", p.Message)

	// Attachments go up before any wait begins; a partial set is worse than
	// none, so the first failure aborts the whole call.
	if len(p.Attachments) > 0 {
		if err := uploadAttachments(ctx, t.deps.Directory, taskID, p.Attachments); err != nil {
			return errorText(fmt.Errorf("attachment upload failed, aborting before waiting on task %s: %w", taskID, err))
		}
	}

	sess, err := t.deps.Sessions.Attach(ctx, taskID, p.PreviouslyConnected)
	if err != nil {
		return errorText(err)
	}

	// A fresh task already carries the message in its creation request;
	// only resumed sessions need it delivered over the channel.
	if resuming && res.SendMessage {
		if !sess.SendCustomerMessage(p.Message) {
			sess.Disconnect("send failed")
			t.deps.Sessions.Remove(taskID)
			return errorText(fmt.Errorf("could not deliver the message on the session channel for task %s", taskID))
		}
	}

	timeout := time.Duration(t.deps.Config.Defaults.TimeoutSeconds) * time.Second
	r, err := sess.AwaitReply(ctx, timeout)
	if err != nil {
		// Half-open channels leak; tear the session down on any wait
		// failure so the next call starts clean.
		sess.Disconnect("wait failed")
		t.deps.Sessions.Remove(taskID)
		return errorText(err)
	}

	if r.Text != "" {
		t.deps.Stores.Transcripts.AppendMessage(taskID, "engineer", r.Text)
	}
	t.deps.Stores.Tasks.UpdateCreditsUsed(taskID, r.CreditsUsed)

	escalation := t.deps.Resolver.AncestryDepth(ctx, taskID) >= escalationDepth
	return formatChatResult(taskID, r, escalation)
}
