package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"lifeline/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the stdio tool server",
	Long: `Run a stdio server exposing quick_query and extended_chat so a coding
agent can delegate debugging work to human engineers on the exchange.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// quickQueryArgs mirrors the quick_query payload schema.
type quickQueryArgs struct {
	Message        string   `json:"message" jsonschema:"The question for the engineer. Include error output and what you already tried."`
	MaxCredits     int      `json:"max_credits,omitempty" jsonschema:"Budget cap in credits, 1-10."`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" jsonschema:"How long to wait for the answer before giving up."`
	Attachments    []string `json:"attachments,omitempty" jsonschema:"Up to 5 file paths to share."`
	ContinueTaskID string   `json:"continue_task_id,omitempty" jsonschema:"Resume waiting on an existing task instead of creating one."`
	Decision       string   `json:"decision,omitempty" jsonschema:"Answer to a previous decision request: reconnect, followup, or override."`
}

// extendedChatArgs mirrors the extended_chat payload schema.
type extendedChatArgs struct {
	Message             string   `json:"message" jsonschema:"The message to send to the engineer."`
	MaxCredits          int      `json:"max_credits,omitempty" jsonschema:"Budget cap in credits, 4-1920."`
	Attachments         []string `json:"attachments,omitempty" jsonschema:"Up to 5 file paths to share."`
	ContinueTaskID      string   `json:"continue_task_id,omitempty" jsonschema:"Task id from a previous extended_chat result to continue that session."`
	Decision            string   `json:"decision,omitempty" jsonschema:"Answer to a previous decision request: reconnect, followup, or override."`
	PreviouslyConnected bool     `json:"previously_connected,omitempty" jsonschema:"Set true when continuing a session so the introduction is not repeated."`
}

// callAsText marshals the typed arguments back to the tool's JSON payload
// form and wraps the tool's text reply for the protocol.
func callAsText[T any](ctx context.Context, tool tools.Tool, args T) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	text := tool.Call(ctx, string(raw))
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil
}

func runServe(ctx context.Context) error {
	deps, err := buildDeps(configPath)
	if err != nil {
		return err
	}
	defer deps.Stores.Close()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "lifeline",
		Version: Version,
	}, nil)

	for _, tool := range tools.All(deps) {
		tool := tool
		switch tool.ToolName() {
		case "quick_query":
			mcp.AddTool(server, &mcp.Tool{
				Name:        tool.ToolName(),
				Description: tool.ToolDescription(),
			}, func(ctx context.Context, req *mcp.CallToolRequest, args quickQueryArgs) (*mcp.CallToolResult, any, error) {
				res, err := callAsText(ctx, tool, args)
				return res, nil, err
			})
		case "extended_chat":
			mcp.AddTool(server, &mcp.Tool{
				Name:        tool.ToolName(),
				Description: tool.ToolDescription(),
			}, func(ctx context.Context, req *mcp.CallToolRequest, args extendedChatArgs) (*mcp.CallToolResult, any, error) {
				res, err := callAsText(ctx, tool, args)
				return res, nil, err
			})
		default:
			return fmt.Errorf("no argument mapping for tool %s", tool.ToolName())
		}
	}

	deps.Log.Info("stdio server starting", "version", Version)
	err = server.Run(ctx, &mcp.StdioTransport{})

	// Tell engineers we are going away before the process exits. Bounded
	// by the per-session disconnect grace.
	deps.Sessions.Shutdown("client shutting down")

	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
