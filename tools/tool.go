package tools

import "context"

// Tool defines the interface for the operations exposed to the agent host.
type Tool interface {
	// ToolName returns the name of the tool
	ToolName() string

	// ToolDescription returns a description of what the tool does
	ToolDescription() string

	// ToolPayloadSchema returns the JSON schema for the tool's input parameters
	ToolPayloadSchema() Schema

	// Call executes the tool with the given parameters and returns a stringified
	// response. Failures come back as text too: the calling agent needs an
	// explanation it can read, not an exception.
	Call(ctx context.Context, params string) string
}
