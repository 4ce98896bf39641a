package reply

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"lifeline/directory"
)

// defaultPollInterval is how often the poller fetches task status.
const defaultPollInterval = 3 * time.Second

// Poller discovers engineer replies by periodically fetching task status
// from the directory. Used for quick queries, where no persistent channel
// exists. Replies are de-duplicated by message id so a status payload seen
// twice never double-counts.
type Poller struct {
	dir      *directory.Client
	taskID   string
	interval time.Duration
	log      hclog.Logger

	seen map[string]bool
}

// NewPoller creates a poll-mode waiter for one task.
func NewPoller(dir *directory.Client, taskID string, log hclog.Logger) *Poller {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Poller{
		dir:      dir,
		taskID:   taskID,
		interval: defaultPollInterval,
		log:      log.Named("poller"),
		seen:     make(map[string]bool),
	}
}

// AwaitReply polls until the task reaches a terminal status or the deadline
// elapses. Engineer messages accumulate across polls; hitting the deadline
// before a terminal status is a TimeoutError even if some text arrived.
func (p *Poller) AwaitReply(ctx context.Context, timeout time.Duration) (Reply, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var parts []string
	creditsUsed := 0

	for {
		status, err := p.dir.Status(ctx, p.taskID)
		if err != nil {
			// Transient fetch failures do not abort the wait; the deadline
			// bounds how long we keep trying.
			p.log.Warn("status fetch failed", "taskId", p.taskID, "error", err)
		} else {
			parts = append(parts, p.newEngineerMessages(status)...)
			if status.CreditsUsed > 0 {
				creditsUsed = status.CreditsUsed
			}
			if status.Terminal() {
				text := strings.Join(parts, "\n")
				if text == "" && status.Response != "" {
					text = fmt.Sprintf("[engineer]: %s", status.Response)
				}
				return Reply{Text: text, CreditsUsed: creditsUsed}, nil
			}
		}

		if time.Now().After(deadline) {
			return Reply{}, &TimeoutError{After: timeout}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		}
	}
}

// newEngineerMessages returns formatted engineer messages not seen in a
// previous poll, in transcript order.
func (p *Poller) newEngineerMessages(status *directory.TaskStatus) []string {
	var parts []string
	for _, m := range status.Messages {
		if m.Sender != "engineer" {
			continue
		}
		key := m.ID
		if key == "" {
			// Older directory builds omit message ids; fall back to a
			// composite that still survives duplicate fetches.
			key = fmt.Sprintf("%d|%s", m.Timestamp.UnixNano(), m.Content)
		}
		if p.seen[key] {
			continue
		}
		p.seen[key] = true
		parts = append(parts, fmt.Sprintf("[%s]: %s", m.Sender, m.Content))
	}
	return parts
}
