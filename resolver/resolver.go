// Package resolver decides whether a tool call should create a fresh
// exchange task or continue an existing one. When an active task exists and
// the caller expressed no intent, it hands back a structured decision
// request instead of guessing.
package resolver

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"lifeline/directory"
)

// Decision is the caller's answer to a DecisionRequest.
type Decision string

const (
	DecisionReconnect Decision = "reconnect"
	DecisionFollowup  Decision = "followup"
	DecisionOverride  Decision = "override"
)

// maxAncestryDepth bounds parent-chain traversal when measuring how many
// times a task has been extended.
const maxAncestryDepth = 4

// Option is one choice offered in a DecisionRequest.
type Option struct {
	Name        Decision
	Description string
}

// DecisionRequest tells the caller an active task already exists and it
// must re-invoke with one of the named options. It is a terminal response,
// not an error.
type DecisionRequest struct {
	TaskID         string
	Status         string
	MessagePreview string
	Options        []Option
	Instruction    string
}

// Resolution is the outcome of resolving. Exactly one of these shapes:
//   - Decision != nil: hand the DecisionRequest back to the caller.
//   - TaskID != "": attach to that task; SendMessage says whether the
//     caller's content still needs to be delivered on the channel.
//   - TaskID == "": create a fresh task.
type Resolution struct {
	TaskID      string
	SendMessage bool
	Decision    *DecisionRequest
}

// Options carries the caller's continuation intent into Resolve.
type Options struct {
	ContinueTaskID string
	Decision       Decision
	Message        string
	MaxCredits     int
}

// Resolver queries the task directory to resolve continuation.
type Resolver struct {
	dir *directory.Client
	log hclog.Logger
}

// New creates a resolver over the given directory client.
func New(dir *directory.Client, log hclog.Logger) *Resolver {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Resolver{dir: dir, log: log.Named("resolver")}
}

// Resolve determines which task the call should operate on. Caller intent
// is authoritative: an explicit continuation id short-circuits everything.
func (r *Resolver) Resolve(ctx context.Context, projectID string, opts Options) (*Resolution, error) {
	if opts.ContinueTaskID != "" {
		return &Resolution{TaskID: opts.ContinueTaskID, SendMessage: true}, nil
	}

	active, err := r.dir.ActiveTasks(ctx, projectID)
	if err != nil {
		// Fail open: a directory hiccup must not block the primary flow.
		// Worst case is a duplicate task, which the engineer side can merge.
		r.log.Warn("active-task query failed, proceeding as if none exist", "error", err)
		return &Resolution{SendMessage: true}, nil
	}

	if len(active) == 0 {
		return &Resolution{SendMessage: true}, nil
	}

	existing := active[0] // most recent first

	switch opts.Decision {
	case "":
		return &Resolution{Decision: newDecisionRequest(existing)}, nil

	case DecisionReconnect:
		return &Resolution{TaskID: existing.TaskID, SendMessage: false}, nil

	case DecisionFollowup:
		created, err := r.dir.Followup(ctx, existing.TaskID, directory.FollowupRequest{
			Message:    opts.Message,
			MaxCredits: opts.MaxCredits,
		})
		if err != nil {
			return nil, fmt.Errorf("create follow-up for task %s: %w", existing.TaskID, err)
		}
		return &Resolution{TaskID: created.TaskID, SendMessage: true}, nil

	case DecisionOverride:
		// A failed override aborts: silently creating a new task next to a
		// live one is the duplicate-task bug this path exists to prevent.
		if err := r.dir.Override(ctx, existing.TaskID); err != nil {
			return nil, fmt.Errorf("override task %s: %w", existing.TaskID, err)
		}
		return &Resolution{SendMessage: true}, nil

	default:
		return nil, fmt.Errorf("unknown decision %q (expected reconnect, followup, or override)", opts.Decision)
	}
}

// AncestryDepth counts how many parent links lead out of taskID, traversing
// at most four hops. A deep chain suggests escalating complexity that a
// single follow-up will not fix.
func (r *Resolver) AncestryDepth(ctx context.Context, taskID string) int {
	depth := 0
	current := taskID
	for depth < maxAncestryDepth {
		status, err := r.dir.Status(ctx, current)
		if err != nil || status.ParentTaskID == "" {
			break
		}
		depth++
		current = status.ParentTaskID
	}
	return depth
}

func newDecisionRequest(existing directory.ActiveTask) *DecisionRequest {
	return &DecisionRequest{
		TaskID:         existing.TaskID,
		Status:         existing.Status,
		MessagePreview: existing.MessagePreview,
		Options: []Option{
			{Name: DecisionReconnect, Description: "attach to the existing task without re-sending your message"},
			{Name: DecisionFollowup, Description: "open a follow-up task linked to the existing one and send your message there"},
			{Name: DecisionOverride, Description: "close the existing task and start fresh with your message"},
		},
		Instruction: "An active task already exists for this project. Call the tool again with " +
			"decision set to one of: reconnect, followup, override.",
	}
}
