package tools

import (
	"fmt"
	"strings"

	"lifeline/reply"
	"lifeline/resolver"
)

// formatDecisionRequest renders the disambiguation prompt. This is a normal
// tool result; the agent reads it and calls again with a decision.
func formatDecisionRequest(d *resolver.DecisionRequest) string {
	var b strings.Builder
	b.WriteString("An active task already exists for this project.\n\n")
	fmt.Fprintf(&b, "Task: %s (status: %s)\n", d.TaskID, d.Status)
	if d.MessagePreview != "" {
		fmt.Fprintf(&b, "Last message: %s\n", d.MessagePreview)
	}
	b.WriteString("\nChoose how to proceed by calling this tool again with one of:\n")
	for _, opt := range d.Options {
		fmt.Fprintf(&b, "  decision=%s: %s\n", opt.Name, opt.Description)
	}
	b.WriteString("\n" + d.Instruction)
	return b.String()
}

// formatQuickResult is the terminal quick-query result: the reply plus
// usage, nothing further implied.
func formatQuickResult(taskID string, r reply.Reply) string {
	var b strings.Builder
	if r.Text == "" {
		b.WriteString("The engineer completed the task without a text reply.")
	} else {
		b.WriteString(r.Text)
	}
	fmt.Fprintf(&b, "\n\n---\nTask %s finished. Credits used: %d.", taskID, r.CreditsUsed)
	return b.String()
}

// formatChatResult appends the continuation directive. The protocol has no
// explicit "done" signal from the engineer, so the agent decides from the
// reply text whether to keep the loop going.
func formatChatResult(taskID string, r reply.Reply, escalationHint bool) string {
	var b strings.Builder
	b.WriteString(r.Text)
	if r.CreditsUsed > 0 {
		fmt.Fprintf(&b, "\n\n(credits used so far: %d)", r.CreditsUsed)
	}
	if escalationHint {
		b.WriteString("\n\nNote: this task has been extended several times. " +
			"If the problem keeps growing, consider opening a fresh task with a larger budget instead of another follow-up.")
	}
	fmt.Fprintf(&b, "\n\n---\nThe session is still open. Unless the engineer's reply above says the work is complete, "+
		"call extended_chat again with continue_task_id=%q and previously_connected=true to keep collaborating.", taskID)
	return b.String()
}
