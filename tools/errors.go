package tools

import (
	"errors"
	"fmt"

	"lifeline/directory"
	"lifeline/reply"
	"lifeline/session"
)

// ValidationError rejects a call before any network activity.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// errorText converts any failure into the short, human-readable result the
// agent sees. Raw error strings never pass through unclassified.
func errorText(err error) string {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return "Error: " + validation.Error()
	}

	var timeout *reply.TimeoutError
	if errors.As(err, &timeout) {
		return fmt.Sprintf("Error: timed out. %s. You can retry with a longer timeout, or check the task later with its id.", timeout.Error())
	}

	var conn *session.ConnectionError
	if errors.As(err, &conn) {
		return fmt.Sprintf("Error: connection problem. %s. The session has been closed; call again to reconnect.", conn.Reason)
	}

	var upstream *directory.UpstreamError
	if errors.As(err, &upstream) {
		return "Error: " + upstream.Error()
	}

	return "Error: " + err.Error()
}
