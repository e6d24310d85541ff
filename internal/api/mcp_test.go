package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalenz/oaibatch/internal/batch"
	"github.com/kalenz/oaibatch/internal/openai"
	"github.com/kalenz/oaibatch/internal/store"
)

func newTestMCPDeps(t *testing.T, remote http.HandlerFunc) MCPDeps {
	t.Helper()
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)
	client := openai.NewClientWithBaseURL("test-key", srv.URL)
	return MCPDeps{
		Manager:                batch.NewManager(client, store.Open(t.TempDir())),
		DefaultModel:           "gpt-5.2",
		DefaultMaxOutputTokens: 1000,
		DefaultReasoningEffort: "medium",
	}
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func TestMCPTool_CreateBatch_RequiresPrompt(t *testing.T) {
	deps := newTestMCPDeps(t, remoteStub(t))
	handler := mcpCreateBatch(deps)

	result, err := handler(context.Background(), makeCallToolRequest("create_batch", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing prompt")
	}
}

func TestMCPTool_CreateBatch(t *testing.T) {
	deps := newTestMCPDeps(t, remoteStub(t))
	handler := mcpCreateBatch(deps)

	req := makeCallToolRequest("create_batch", map[string]interface{}{
		"prompt": "explain goroutines",
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "batch_1") {
		t.Errorf("result = %q, want the remote id in it", toolText(t, result))
	}

	records := deps.Manager.Store().List()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Model != "gpt-5.2" {
		t.Errorf("model = %q, want default applied", records[0].Model)
	}
}

func TestMCPTool_ListBatches(t *testing.T) {
	deps := newTestMCPDeps(t, remoteStub(t))

	create := mcpCreateBatch(deps)
	if _, err := create(context.Background(), makeCallToolRequest("create_batch", map[string]interface{}{"prompt": "ping"})); err != nil {
		t.Fatalf("create: %v", err)
	}

	handler := mcpListBatches(deps)
	result, err := handler(context.Background(), makeCallToolRequest("list_batches", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var summaries []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &summaries); err != nil {
		t.Fatalf("decoding summaries: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}
	if summaries[0].Status != "in_progress" {
		t.Errorf("status = %q, want in_progress after refresh", summaries[0].Status)
	}
}

func TestMCPTool_ReadBatch_NotCompleted(t *testing.T) {
	deps := newTestMCPDeps(t, remoteStub(t))

	create := mcpCreateBatch(deps)
	if _, err := create(context.Background(), makeCallToolRequest("create_batch", map[string]interface{}{"prompt": "ping"})); err != nil {
		t.Fatalf("create: %v", err)
	}
	id := deps.Manager.Store().List()[0].ID

	handler := mcpReadBatch(deps)
	result, err := handler(context.Background(), makeCallToolRequest("read_batch", map[string]interface{}{"id": id}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result while the job is still running")
	}
	if !strings.Contains(toolText(t, result), "not completed") {
		t.Errorf("result = %q, want a not-completed message", toolText(t, result))
	}
}

func TestMCPTool_ReadBatch_ReturnsResponse(t *testing.T) {
	var customID string
	remote := func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/files" && r.Method == http.MethodPost:
			fmt.Fprint(w, `{"id":"file-1"}`)
		case r.URL.Path == "/batches" && r.Method == http.MethodPost:
			fmt.Fprint(w, `{"id":"batch_1","status":"validating"}`)
		case strings.HasSuffix(r.URL.Path, "/content"):
			fmt.Fprintf(w, `{"custom_id":%q,"response":{"body":{"output":[{"type":"message","content":[{"type":"output_text","text":"pong"}]}],"usage":{"input_tokens":2,"output_tokens":3}}}}`+"\n", customID)
		case strings.HasPrefix(r.URL.Path, "/batches/"):
			fmt.Fprint(w, `{"id":"batch_1","status":"completed","output_file_id":"file-out","completed_at":1700000000}`)
		default:
			http.NotFound(w, r)
		}
	}
	deps := newTestMCPDeps(t, remote)

	create := mcpCreateBatch(deps)
	if _, err := create(context.Background(), makeCallToolRequest("create_batch", map[string]interface{}{"prompt": "ping"})); err != nil {
		t.Fatalf("create: %v", err)
	}
	customID = deps.Manager.Store().List()[0].ID

	handler := mcpReadBatch(deps)
	result, err := handler(context.Background(), makeCallToolRequest("read_batch", map[string]interface{}{"id": customID}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "pong" {
		t.Errorf("response = %q, want pong", got)
	}
}
