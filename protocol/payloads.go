package protocol

// MessagePayload carries conversational text for customer_message,
// engineer_message, and ai_assistant_message frames.
type MessagePayload struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ConnectedPayload acknowledges the handshake for a task channel.
type ConnectedPayload struct {
	TaskID              string `json:"taskId"`
	EngineerDisplayName string `json:"engineerDisplayName,omitempty"`
}

// BillingUpdatePayload reports credit consumption during a session.
type BillingUpdatePayload struct {
	UnitsUsed       int `json:"unitsUsed"`
	DurationSeconds int `json:"durationSeconds"`
}

// ClosureRequestPayload is sent when the engineer asks to wrap up.
type ClosureRequestPayload struct {
	Reason string `json:"reason,omitempty"`
}

// SessionEndPayload terminates the session from either side.
type SessionEndPayload struct {
	EndedBy string `json:"endedBy"`
	Summary string `json:"summary,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// RequestCommandPayload asks the client side to run a shell command and
// report its output back with a command_output frame.
type RequestCommandPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason,omitempty"`
}

// CommandOutputPayload carries the result of an executed command.
type CommandOutputPayload struct {
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}
