package mcp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperengineering/pricecheck"
	pcmcp "github.com/hyperengineering/pricecheck/mcp"
)

const validEAN = "4006381333931"

func newTestClient(t *testing.T, cfg pricecheck.Config) *pricecheck.Client {
	t.Helper()
	if cfg.LocalPath == "" {
		cfg.LocalPath = filepath.Join(t.TempDir(), "test.db")
	}
	client, err := pricecheck.New(cfg)
	if err != nil {
		t.Fatalf("pricecheck.New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestServer(t *testing.T) (*pcmcp.Server, *pricecheck.Client) {
	t.Helper()
	client := newTestClient(t, pricecheck.Config{})
	return pcmcp.NewServer(client), client
}

func call(t *testing.T, s *pcmcp.Server, name string, args map[string]any) *pcmcp.ToolResult {
	t.Helper()
	result, err := s.CallTool(context.Background(), name, args)
	if err != nil {
		t.Fatalf("CallTool(%s) returned error: %v", name, err)
	}
	return result
}

func scopeArgs(extra map[string]any) map[string]any {
	args := map[string]any{"customer": "12345", "assortment": "AS1"}
	for k, v := range extra {
		args[k] = v
	}
	return args
}

// syncKeyFrom extracts the first sync key printed in a tool result.
func syncKeyFrom(t *testing.T, content string) string {
	t.Helper()
	for _, line := range strings.Split(content, "\n") {
		if key, ok := strings.CutPrefix(strings.TrimSpace(line), "Sync key: "); ok {
			return key
		}
	}
	t.Fatalf("no sync key in %q", content)
	return ""
}

// =============================================================================
// Server Initialization Tests
// =============================================================================

func TestServer_NewServer(t *testing.T) {
	server, _ := newTestServer(t)
	if server == nil {
		t.Fatal("NewServer() returned nil")
	}
}

func TestServer_ToolsList(t *testing.T) {
	server, _ := newTestServer(t)
	tools := server.ListTools()

	expected := []string{
		"pricecheck_search", "pricecheck_scan", "pricecheck_create",
		"pricecheck_collect", "pricecheck_discard", "pricecheck_pending",
		"pricecheck_hierarchy", "pricecheck_sync", "pricecheck_stats",
	}
	if len(tools) != len(expected) {
		t.Errorf("ListTools() returned %d tools, want %d", len(tools), len(expected))
	}

	names := make(map[string]bool)
	for _, tool := range tools {
		names[tool.Name] = true
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("Tool %q not found in registered tools", name)
		}
	}
}

func TestTool_Unknown(t *testing.T) {
	server, _ := newTestServer(t)

	result := call(t, server, "pricecheck_nope", nil)
	if !result.IsError {
		t.Error("unknown tool should return an error result")
	}
}

// =============================================================================
// Tool Execution Tests
// =============================================================================

func TestTool_Scan_CreatesThenFinds(t *testing.T) {
	server, _ := newTestServer(t)

	first := call(t, server, "pricecheck_scan", scopeArgs(map[string]any{"ean": validEAN}))
	if first.IsError {
		t.Fatalf("scan returned error: %s", first.Content)
	}
	if !strings.HasPrefix(first.Content, "Created product") {
		t.Errorf("first scan = %q, want created", first.Content)
	}
	if !strings.Contains(first.Content, "pending classification") {
		t.Errorf("scanned product should await classification: %q", first.Content)
	}

	second := call(t, server, "pricecheck_scan", scopeArgs(map[string]any{"ean": validEAN}))
	if !strings.HasPrefix(second.Content, "Found product") {
		t.Errorf("second scan = %q, want found", second.Content)
	}
	if syncKeyFrom(t, first.Content) != syncKeyFrom(t, second.Content) {
		t.Error("second scan returned a different product")
	}
}

func TestTool_Scan_InvalidEAN(t *testing.T) {
	server, _ := newTestServer(t)

	result := call(t, server, "pricecheck_scan", scopeArgs(map[string]any{"ean": "40063813"}))
	if !result.IsError {
		t.Fatalf("expected error for a short EAN, got %q", result.Content)
	}

	result = call(t, server, "pricecheck_scan", scopeArgs(nil))
	if !result.IsError || result.Content != "ean is required" {
		t.Errorf("missing ean = %+v", result)
	}
}

func TestTool_Search(t *testing.T) {
	server, _ := newTestServer(t)

	call(t, server, "pricecheck_scan", scopeArgs(map[string]any{"ean": validEAN}))

	result := call(t, server, "pricecheck_search", scopeArgs(map[string]any{"query": validEAN}))
	if result.IsError {
		t.Fatalf("search returned error: %s", result.Content)
	}
	if !strings.Contains(result.Content, "Found 1 products") {
		t.Errorf("search = %q, want one product", result.Content)
	}

	result = call(t, server, "pricecheck_search", scopeArgs(map[string]any{"query": "nothing like it"}))
	if result.Content != "No matching products found." {
		t.Errorf("search = %q, want no results", result.Content)
	}

	result = call(t, server, "pricecheck_search", scopeArgs(nil))
	if !result.IsError {
		t.Error("search without query should fail")
	}
}

func TestTool_CollectPendingDiscard(t *testing.T) {
	server, _ := newTestServer(t)

	created := call(t, server, "pricecheck_create", scopeArgs(map[string]any{
		"area": "A01", "division": "D01", "family": "F01", "category": "C01", "group": "G01",
	}))
	if created.IsError {
		t.Fatalf("create returned error: %s", created.Content)
	}
	key := syncKeyFrom(t, created.Content)

	collected := call(t, server, "pricecheck_collect", map[string]any{
		"sync_key":    key,
		"price":       "2,49",
		"promo_price": 1.99,
		"brand":       "Acme",
	})
	if collected.IsError {
		t.Fatalf("collect returned error: %s", collected.Content)
	}
	if !strings.Contains(collected.Content, "Price: 2.49") {
		t.Errorf("collect = %q, want normal price 2.49", collected.Content)
	}
	if !strings.Contains(collected.Content, "promo 1.99") {
		t.Errorf("collect = %q, want promo price 1.99", collected.Content)
	}

	pending := call(t, server, "pricecheck_pending", nil)
	if !strings.Contains(pending.Content, key) {
		t.Errorf("pending = %q, want %s", pending.Content, key)
	}

	discarded := call(t, server, "pricecheck_discard", map[string]any{"sync_key": key})
	if discarded.IsError {
		t.Fatalf("discard returned error: %s", discarded.Content)
	}

	pending = call(t, server, "pricecheck_pending", nil)
	if pending.Content != "No collected prices waiting for upload." {
		t.Errorf("pending after discard = %q", pending.Content)
	}
}

func TestTool_Collect_RequiresHierarchy(t *testing.T) {
	server, _ := newTestServer(t)

	scanned := call(t, server, "pricecheck_scan", scopeArgs(map[string]any{"ean": validEAN}))
	key := syncKeyFrom(t, scanned.Content)

	result := call(t, server, "pricecheck_collect", map[string]any{"sync_key": key, "price": "1.00"})
	if !result.IsError {
		t.Fatalf("collect without hierarchy should fail, got %q", result.Content)
	}
	if !strings.Contains(result.Content, "hierarchy") {
		t.Errorf("error = %q, want hierarchy mention", result.Content)
	}
}

func TestTool_Collect_Errors(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing key", map[string]any{"price": "1"}, "sync_key is required"},
		{"unknown key", map[string]any{"sync_key": "Products_nope"}, "product not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, server, "pricecheck_collect", tt.args)
			if !result.IsError {
				t.Fatal("expected error result")
			}
			if !strings.Contains(result.Content, tt.want) {
				t.Errorf("Content = %q, want %q", result.Content, tt.want)
			}
		})
	}
}

func TestTool_Hierarchy(t *testing.T) {
	server, client := newTestServer(t)

	base := pricecheck.Document{"Customer": "12345", "Assortment": "AS1"}
	put := func(id string, entity pricecheck.EntityName, fields map[string]any) {
		doc := base.Clone()
		doc["_id"] = id
		doc["entityName"] = string(entity)
		for k, v := range fields {
			doc[k] = v
		}
		if _, err := client.Store().Put(doc); err != nil {
			t.Fatalf("Put(%s): %v", id, err)
		}
	}
	put("a1", pricecheck.EntityAreas, map[string]any{"Area": "A01", "AreaDesc": "Food"})
	put("d1", pricecheck.EntityDivisions, map[string]any{"Area": "A01", "Division": "D01", "DivisionDesc": "Dairy"})

	areas := call(t, server, "pricecheck_hierarchy", scopeArgs(nil))
	if !strings.Contains(areas.Content, "A01  Food") {
		t.Errorf("areas = %q", areas.Content)
	}

	divisions := call(t, server, "pricecheck_hierarchy", scopeArgs(map[string]any{"area": "A01"}))
	if !strings.Contains(divisions.Content, "D01  Dairy") {
		t.Errorf("divisions = %q", divisions.Content)
	}

	families := call(t, server, "pricecheck_hierarchy", scopeArgs(map[string]any{"area": "A01", "division": "D01"}))
	if families.Content != "No Family options." {
		t.Errorf("families = %q", families.Content)
	}

	full := scopeArgs(map[string]any{"area": "A01", "division": "D01", "family": "F01", "category": "C01", "group": "G01"})
	call(t, server, "pricecheck_create", full)
	products := call(t, server, "pricecheck_hierarchy", full)
	if !strings.Contains(products.Content, "Found 1 products") {
		t.Errorf("products = %q", products.Content)
	}
}

func TestTool_Sync_Offline(t *testing.T) {
	server, _ := newTestServer(t)

	result := call(t, server, "pricecheck_sync", nil)
	if !result.IsError {
		t.Fatal("sync without backend should fail")
	}
	if !strings.Contains(result.Content, "unavailable") {
		t.Errorf("Content = %q", result.Content)
	}
}

func TestTool_Sync_FullRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/Areas") {
			_, _ = w.Write([]byte(`{"value":[{"Area":"A01","AreaDesc":"Food","Customer":"12345","Assortment":"AS1"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"value":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, pricecheck.Config{BackendURL: srv.URL, APIKey: "test-key"})
	server := pcmcp.NewServer(client)

	result := call(t, server, "pricecheck_sync", map[string]any{"proceed_on_failure": false})
	if result.IsError {
		t.Fatalf("sync returned error: %s", result.Content)
	}
	if !strings.Contains(result.Content, "Sync completed") {
		t.Errorf("Content = %q", result.Content)
	}
	if !strings.Contains(result.Content, "Downloaded: 1 documents") {
		t.Errorf("Content = %q, want one downloaded document", result.Content)
	}

	stats := call(t, server, "pricecheck_stats", nil)
	if strings.Contains(stats.Content, "Last sync: never") {
		t.Errorf("stats after sync = %q", stats.Content)
	}
}

func TestTool_Stats(t *testing.T) {
	server, _ := newTestServer(t)

	result := call(t, server, "pricecheck_stats", nil)
	if result.IsError {
		t.Fatalf("stats returned error: %s", result.Content)
	}
	for _, want := range []string{"Profile: ", "Documents: 0", "Pending upload: 0", "Last sync: never"} {
		if !strings.Contains(result.Content, want) {
			t.Errorf("stats = %q, missing %q", result.Content, want)
		}
	}
}

// =============================================================================
// Protocol Tests
// =============================================================================

func handle(t *testing.T, server *pcmcp.Server, request string) map[string]any {
	t.Helper()
	response := server.HandleMessage(context.Background(), []byte(request))
	if response == nil {
		t.Fatal("HandleMessage() returned nil response")
	}
	respBytes, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}
	var respMap map[string]any
	if err := json.Unmarshal(respBytes, &respMap); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	return respMap
}

func TestProtocol_Initialize(t *testing.T) {
	server, _ := newTestServer(t)

	resp := handle(t, server, `{
		"jsonrpc": "2.0",
		"id": 1,
		"method": "initialize",
		"params": {
			"protocolVersion": "2024-11-05",
			"capabilities": {},
			"clientInfo": {"name": "test-client", "version": "1.0.0"}
		}
	}`)

	if _, hasError := resp["error"]; hasError {
		t.Fatalf("Initialize response has error: %v", resp["error"])
	}
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatal("Initialize response missing result")
	}
	serverInfo, ok := result["serverInfo"].(map[string]any)
	if !ok {
		t.Fatal("Initialize result missing serverInfo")
	}
	if serverInfo["name"] != "pricecheck" {
		t.Errorf("serverInfo.name = %v, want 'pricecheck'", serverInfo["name"])
	}
	capabilities, ok := result["capabilities"].(map[string]any)
	if !ok {
		t.Fatal("Initialize result missing capabilities")
	}
	if _, hasTools := capabilities["tools"]; !hasTools {
		t.Error("Capabilities should include tools")
	}
}

func TestProtocol_ToolsList(t *testing.T) {
	server, _ := newTestServer(t)

	resp := handle(t, server, `{"jsonrpc": "2.0", "id": 2, "method": "tools/list"}`)

	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("tools/list response missing result: %v", resp)
	}
	tools, ok := result["tools"].([]any)
	if !ok {
		t.Fatal("tools/list result missing tools")
	}
	if len(tools) != len(server.ListTools()) {
		t.Errorf("tools/list returned %d tools, want %d", len(tools), len(server.ListTools()))
	}
}

func TestProtocol_CallTool(t *testing.T) {
	server, _ := newTestServer(t)

	resp := handle(t, server, `{
		"jsonrpc": "2.0",
		"id": 3,
		"method": "tools/call",
		"params": {"name": "pricecheck_search", "arguments": {}}
	}`)

	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("tools/call response missing result: %v", resp)
	}
	if result["isError"] != true {
		t.Errorf("isError = %v, want true for missing query", result["isError"])
	}
}

func TestProtocol_InvalidMethod(t *testing.T) {
	server, _ := newTestServer(t)

	resp := handle(t, server, `{"jsonrpc": "2.0", "id": 4, "method": "nonexistent/method"}`)

	errorObj, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatal("Response should have error for unknown method")
	}
	if code, _ := errorObj["code"].(float64); int(code) != -32601 {
		t.Errorf("Error code = %v, want -32601", errorObj["code"])
	}
}
