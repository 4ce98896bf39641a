// Package reply defines the "send a message, wait for the engineer's next
// reply" contract shared by both discovery strategies: the push backend
// (session.Session, fed by the live channel) and the poll backend (Poller,
// built on periodic task-status fetches).
package reply

import (
	"context"
	"fmt"
	"time"
)

// Reply is what a wait operation resolves with: the engineer's text so far
// (possibly several concatenated messages) and the last known credit usage.
type Reply struct {
	Text        string
	CreditsUsed int
}

// Waiter resolves the next engineer reply within the deadline.
//
// Implementations must tolerate zero, one, or many messages arriving before
// resolution, and must clear any internal pending state on timeout so a
// late-arriving message has no observable effect on an abandoned wait.
type Waiter interface {
	AwaitReply(ctx context.Context, timeout time.Duration) (Reply, error)
}

// TimeoutError reports that no reply arrived within the deadline. It is
// recoverable: the caller may retry or escalate.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no reply from the engineer within %s", e.After)
}
