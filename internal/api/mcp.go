package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalenz/oaibatch/internal/batch"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Manager *batch.Manager

	// Submission defaults applied when a tool call omits them.
	DefaultModel           string
	DefaultMaxOutputTokens int
	DefaultReasoningEffort string
}

// NewMCPServer creates an MCP server exposing the batch lifecycle as
// tools. Results of long jobs arrive asynchronously; agents submit
// with create_batch and poll with read_batch.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"oaibatch",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("oaibatch — submit long-running prompts to the Batch API and collect results later."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("create_batch",
			mcp.WithDescription("Submit a prompt as an asynchronous batch job. Returns the request id used to read the result later."),
			mcp.WithString("prompt", mcp.Description("The prompt to submit"), mcp.Required()),
			mcp.WithString("instructions", mcp.Description("System instructions for the model")),
			mcp.WithString("model", mcp.Description("Model to use (defaults to the configured model)")),
			mcp.WithString("reasoning_effort", mcp.Description("Reasoning effort: none, low, medium, high, xhigh")),
		),
		mcpCreateBatch(deps),
	)

	s.AddTool(
		mcp.NewTool("list_batches",
			mcp.WithDescription("List all submitted batch jobs with their current status, refreshing from the remote service."),
		),
		mcpListBatches(deps),
	)

	s.AddTool(
		mcp.NewTool("read_batch",
			mcp.WithDescription("Read the result of a batch job. Fails while the job is still processing."),
			mcp.WithString("id", mcp.Description("Request id or remote batch id"), mcp.Required()),
		),
		mcpReadBatch(deps),
	)

	return s
}

func mcpCreateBatch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		promptText, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}

		instructions := req.GetString("instructions", "You are a helpful assistant.")
		model := req.GetString("model", deps.DefaultModel)
		effort := req.GetString("reasoning_effort", deps.DefaultReasoningEffort)

		rec, err := deps.Manager.Create(ctx, batch.CreateParams{
			Prompt:          promptText,
			Instructions:    instructions,
			Model:           model,
			MaxOutputTokens: deps.DefaultMaxOutputTokens,
			ReasoningEffort: effort,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("create failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Submitted batch job %s (remote id %s, status %s)", rec.ID, rec.RemoteJobID, rec.Status)), nil
	}
}

func mcpListBatches(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := deps.Manager.RefreshAll(ctx); err != nil {
			return mcpError(fmt.Sprintf("refresh failed: %v", err)), nil
		}

		type jobSummary struct {
			ID          string `json:"id"`
			RemoteJobID string `json:"remote_job_id"`
			Status      string `json:"status"`
			Model       string `json:"model"`
			CreatedAt   string `json:"created_at"`
			Prompt      string `json:"prompt"`
		}

		records := deps.Manager.Store().List()
		summaries := make([]jobSummary, len(records))
		for i, r := range records {
			promptText := r.Prompt
			if len(promptText) > 200 {
				promptText = promptText[:200] + "..."
			}
			summaries[i] = jobSummary{
				ID:          r.ID,
				RemoteJobID: r.RemoteJobID,
				Status:      r.Status,
				Model:       r.Model,
				CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
				Prompt:      promptText,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal jobs: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpReadBatch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		rec, err := deps.Manager.Fetch(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("read failed: %v", err)), nil
		}
		if rec.CachedResponseText == nil {
			return mcpError("no response available yet"), nil
		}
		return mcpText(*rec.CachedResponseText), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
