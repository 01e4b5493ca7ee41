package llm

import (
	"context"
	"errors"
	"os"
	"testing"

	"charm.land/catwalk/pkg/catwalk"
)

func TestNewProvider_Validation(t *testing.T) {
	if _, err := NewProvider(Options{Model: "m"}); err == nil {
		t.Error("expected error for missing provider")
	}
	if _, err := NewProvider(Options{Provider: "lmstudio"}); err == nil {
		t.Error("expected error for missing model")
	}
	if _, err := NewProvider(Options{Provider: "carrier-pigeon", Model: "m"}); err == nil {
		t.Error("expected error for unsupported provider")
	}
	if _, err := NewProvider(Options{Provider: "openai-compat", Model: "m"}); err == nil {
		t.Error("expected error for openai-compat without base_url")
	}
	if _, err := NewProvider(Options{Provider: "litellm", Model: "m"}); err == nil {
		t.Error("expected error for litellm without base_url")
	}
}

func TestErrorClassification(t *testing.T) {
	if !isRetryableError(errors.New("429 Too Many Requests")) {
		t.Error("rate limit should be retryable")
	}
	if !isRetryableError(errors.New("503 Service Unavailable")) {
		t.Error("5xx should be retryable")
	}
	if isRetryableError(errors.New("invalid api key")) {
		t.Error("auth failure should not be retryable")
	}
	if !isBillingError(errors.New("quota exceeded for this billing period")) {
		t.Error("quota exhaustion should be a billing error")
	}
	if isBillingError(errors.New("connection reset by peer")) {
		t.Error("transport failure is not a billing error")
	}
}

func TestParseToolCall(t *testing.T) {
	tc := parseToolCall("call_1", "read_file", `{"path":"notes.txt"}`)
	if tc.ID != "call_1" || tc.Name != "read_file" {
		t.Errorf("unexpected call identity: %+v", tc)
	}
	if tc.Args["path"] != "notes.txt" {
		t.Errorf("expected decoded args, got %v", tc.Args)
	}

	// Undecodable payload leaves Args nil; the dispatcher reports it.
	tc = parseToolCall("call_2", "read_file", `{not json`)
	if tc.Args != nil {
		t.Errorf("expected nil args for bad payload, got %v", tc.Args)
	}
}

func TestMessageConstructors(t *testing.T) {
	sys := SystemMessage("rules")
	if sys.Role != RoleSystem || sys.Content != "rules" {
		t.Errorf("unexpected system message: %+v", sys)
	}

	asst := AssistantMessage("thinking done", []ToolCall{{ID: "c1", Name: "list_dir"}})
	if asst.Role != RoleAssistant || len(asst.ToolCalls) != 1 {
		t.Errorf("unexpected assistant message: %+v", asst)
	}

	tm := ToolMessage(ToolResult{CallID: "c1", Content: "ok", IsError: false})
	if tm.Role != RoleTool || tm.ToolCallID != "c1" || tm.Content != "ok" {
		t.Errorf("unexpected tool message: %+v", tm)
	}
}

func TestMockProvider_Script(t *testing.T) {
	m := NewMockProvider()
	m.SetToolCalls(ToolCall{ID: "c1", Name: "list_dir", Args: map[string]interface{}{}})
	m.SetResponses("final answer")

	ctx := context.Background()

	resp, err := m.Chat(ctx, ChatRequest{Messages: []Message{UserMessage("go")}})
	if err != nil {
		t.Fatalf("chat error: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected tool call response, got %+v", resp)
	}

	resp, _ = m.Chat(ctx, ChatRequest{})
	if resp.Content != "final answer" {
		t.Errorf("expected second scripted response, got %q", resp.Content)
	}

	// Exhausted queue repeats the last response
	resp, _ = m.Chat(ctx, ChatRequest{})
	if resp.Content != "final answer" {
		t.Errorf("expected last response to repeat, got %q", resp.Content)
	}

	if m.CallCount() != 3 {
		t.Errorf("expected 3 calls, got %d", m.CallCount())
	}
}

func TestMockProvider_LastRequest(t *testing.T) {
	m := NewMockProvider()
	m.SetResponse("hi")

	m.Chat(context.Background(), ChatRequest{Messages: []Message{
		SystemMessage("prompt"),
		UserMessage("summarize notes.txt"),
	}})

	req := m.LastRequest()
	if len(req.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(req.Messages))
	}
	if req.Messages[1].Content != "summarize notes.txt" {
		t.Errorf("unexpected user message: %q", req.Messages[1].Content)
	}
}

func TestMockProvider_Error(t *testing.T) {
	m := NewMockProvider()
	m.SetError(errors.New("connection refused"))

	if _, err := m.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Error("expected scripted error")
	}
}

func TestGetProviderAPIKey(t *testing.T) {
	t.Setenv("TASKAGENT_CATALOG_KEY", "sk-from-env")

	p := catwalk.Provider{APIKey: "$TASKAGENT_CATALOG_KEY"}
	if got := GetProviderAPIKey(p); got != "sk-from-env" {
		t.Errorf("expected env-resolved key, got %q", got)
	}

	p = catwalk.Provider{APIKey: "$UNSET_VAR_FOR_TEST"}
	if got := GetProviderAPIKey(p); got != "" {
		t.Errorf("expected empty key for unset var, got %q", got)
	}
}

func TestListAllModels(t *testing.T) {
	// Requires the catwalk service; skipped unless explicitly enabled.
	if os.Getenv("CATWALK_URL") == "" {
		t.Skip("CATWALK_URL not set, skipping catwalk integration test")
	}

	models, err := ListAllModels(context.Background())
	if err != nil {
		t.Fatalf("ListAllModels failed: %v", err)
	}
	if len(models) == 0 {
		t.Error("expected at least some models")
	}
	for _, m := range models {
		if m.ID == "" {
			t.Error("model ID should not be empty")
		}
		if m.Provider == "" {
			t.Error("model provider should not be empty")
		}
	}
}
