package agent

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vinayprograms/taskagent/internal/config"
	"github.com/vinayprograms/taskagent/internal/llm"
	"github.com/vinayprograms/taskagent/internal/logging"
	"github.com/vinayprograms/taskagent/internal/sandbox"
	"github.com/vinayprograms/taskagent/internal/session"
	"github.com/vinayprograms/taskagent/internal/tools"
)

// step is one scripted model response.
type step struct {
	resp *llm.ChatResponse
	err  error
}

func textStep(content string) step {
	return step{resp: &llm.ChatResponse{Content: content, Model: "test-model", InputTokens: 10, OutputTokens: 5}}
}

func callStep(calls ...llm.ToolCall) step {
	return step{resp: &llm.ChatResponse{ToolCalls: calls, Model: "test-model"}}
}

func errStep(msg string) step {
	return step{err: errors.New(msg)}
}

// scriptedProvider replays a fixed sequence of responses and records
// every request. Running past the script is an error, so a test fails
// loudly when the loop makes more model calls than expected.
type scriptedProvider struct {
	script   []step
	requests []llm.ChatRequest
}

func (p *scriptedProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if len(p.script) == 0 {
		return nil, errors.New("script exhausted")
	}
	s := p.script[0]
	p.script = p.script[1:]
	return s.resp, s.err
}

func (p *scriptedProvider) Model() string { return "test-model" }

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{
		MaxToolRounds:       12,
		MaxRepeatSignatures: 3,
		SignatureWindow:     6,
		MaxMissingFiles:     3,
	}
}

func quietLogger() *logging.Logger {
	logger := logging.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestAgent builds an agent over a fresh sandboxed workdir. Zero
// fields in opts get defaults.
func newTestAgent(t *testing.T, p llm.Provider, opts Options) (*Agent, string) {
	t.Helper()
	dir := t.TempDir()
	res, err := sandbox.New(dir)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	if opts.Role == "" {
		opts.Role = RoleMain
	}
	if opts.Limits == (config.LimitsConfig{}) {
		opts.Limits = testLimits()
	}
	return New(p, tools.NewRegistry(res), nil, nil, quietLogger(), opts), dir
}

func listCall(id, path string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: "list_dir", Args: map[string]interface{}{"path": path}}
}

func readCall(id, path string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: "read_file", Args: map[string]interface{}{"path": path}}
}

func TestRun_PlainAnswer(t *testing.T) {
	p := &scriptedProvider{script: []step{textStep("hello there")}}
	a, _ := newTestAgent(t, p, Options{})

	answer, err := a.Run(context.Background(), "say hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "hello there" {
		t.Errorf("answer = %q, want %q", answer, "hello there")
	}
	if len(p.requests) != 1 {
		t.Fatalf("model calls = %d, want 1", len(p.requests))
	}

	req := p.requests[0]
	if len(req.Tools) == 0 {
		t.Error("first request carried no tool definitions")
	}
	if len(req.Messages) != 2 {
		t.Fatalf("messages = %d, want system + user", len(req.Messages))
	}
	if req.Messages[0].Role != llm.RoleSystem || !strings.Contains(req.Messages[0].Content, "MAIN AGENT") {
		t.Errorf("first message is not the main system prompt: %+v", req.Messages[0])
	}
	if req.Messages[1].Role != llm.RoleUser || req.Messages[1].Content != "say hello" {
		t.Errorf("second message is not the instruction: %+v", req.Messages[1])
	}
}

func TestRun_ToolRoundTrip(t *testing.T) {
	p := &scriptedProvider{script: []step{
		callStep(listCall("c1", ".")),
		textStep("the directory is empty"),
	}}
	a, _ := newTestAgent(t, p, Options{})

	answer, err := a.Run(context.Background(), "what is in the workdir?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "the directory is empty" {
		t.Errorf("answer = %q", answer)
	}
	if len(p.requests) != 2 {
		t.Fatalf("model calls = %d, want 2", len(p.requests))
	}

	msgs := p.requests[1].Messages
	last := msgs[len(msgs)-1]
	if last.Role != llm.RoleTool || last.ToolCallID != "c1" {
		t.Fatalf("last message is not the tool result: %+v", last)
	}
	if !strings.Contains(last.Content, "No entries found") {
		t.Errorf("tool result content = %q", last.Content)
	}
	assistant := msgs[len(msgs)-2]
	if assistant.Role != llm.RoleAssistant || len(assistant.ToolCalls) != 1 {
		t.Errorf("second to last message should carry the tool call: %+v", assistant)
	}
}

func TestRun_UnknownTool(t *testing.T) {
	p := &scriptedProvider{script: []step{
		callStep(llm.ToolCall{ID: "c1", Name: "bogus", Args: map[string]interface{}{}}),
		textStep("recovered"),
	}}
	a, _ := newTestAgent(t, p, Options{})

	answer, err := a.Run(context.Background(), "do something")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "recovered" {
		t.Errorf("answer = %q", answer)
	}

	msgs := p.requests[1].Messages
	last := msgs[len(msgs)-1]
	if last.Role != llm.RoleTool || last.Content != "Error: unknown tool: bogus" {
		t.Errorf("unknown tool result = %+v", last)
	}
	// Exactly one assistant and one tool message were added for the round.
	if got, want := len(msgs), len(p.requests[0].Messages)+2; got != want {
		t.Errorf("transcript length = %d, want %d", got, want)
	}
}

func TestRun_RepeatGuardTrips(t *testing.T) {
	same := listCall("c1", ".")
	p := &scriptedProvider{script: []step{
		callStep(same),
		callStep(listCall("c2", ".")),
		callStep(listCall("c3", ".")),
		textStep("stopping here"),
	}}
	a, _ := newTestAgent(t, p, Options{})

	var dispatched []string
	a.OnToolResult = func(name, content string, isError bool, _ time.Duration) {
		dispatched = append(dispatched, name)
	}

	answer, err := a.Run(context.Background(), "list forever")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "stopping here" {
		t.Errorf("answer = %q", answer)
	}
	if len(p.requests) != 4 {
		t.Fatalf("model calls = %d, want 3 rounds + finalize", len(p.requests))
	}

	// The third identical call must not have been dispatched.
	if len(dispatched) != 2 {
		t.Errorf("dispatched tools = %v, want 2 real executions", dispatched)
	}

	final := p.requests[3]
	if len(final.Tools) != 0 {
		t.Error("finalizing request still offered tools")
	}
	msgs := final.Messages
	guidance := msgs[len(msgs)-1]
	if guidance.Role != llm.RoleSystem || !strings.Contains(guidance.Content, "Finalize your response") {
		t.Errorf("finalize guidance missing, got %+v", guidance)
	}
	tripped := msgs[len(msgs)-2]
	if tripped.Role != llm.RoleTool || !strings.Contains(tripped.Content, "repeated action detected") {
		t.Errorf("tripping call result = %+v", tripped)
	}
}

func TestRun_RepeatGuardNeedsFullCount(t *testing.T) {
	same := listCall("c1", ".")
	p := &scriptedProvider{script: []step{
		callStep(same),
		callStep(listCall("c2", ".")),
		textStep("done"),
	}}
	a, _ := newTestAgent(t, p, Options{})

	answer, err := a.Run(context.Background(), "list twice")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "done" {
		t.Errorf("answer = %q", answer)
	}
	// The last request is a normal round, not a forced finalization.
	if len(p.requests[2].Tools) == 0 {
		t.Error("third request lost its tools; guard tripped one repeat early")
	}
}

func TestRun_RepeatGuardIgnoresDifferentArgs(t *testing.T) {
	p := &scriptedProvider{script: []step{
		callStep(listCall("c1", ".")),
		callStep(listCall("c2", "a")),
		callStep(listCall("c3", "b")),
		textStep("done"),
	}}
	a, dir := newTestAgent(t, p, Options{})
	for _, sub := range []string{"a", "b"} {
		if err := os.Mkdir(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	answer, err := a.Run(context.Background(), "walk around")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "done" {
		t.Errorf("answer = %q", answer)
	}
	if len(p.requests[3].Tools) == 0 {
		t.Error("guard tripped although every call had distinct arguments")
	}
}

func TestRun_RepeatGuardSkipsRemainingCalls(t *testing.T) {
	same := listCall("c1", ".")
	p := &scriptedProvider{script: []step{
		callStep(same),
		callStep(listCall("c2", ".")),
		callStep(
			llm.ToolCall{ID: "c3", Name: "count_words", Args: map[string]interface{}{"path": "x.txt"}},
			listCall("c4", "."),
			llm.ToolCall{ID: "c5", Name: "list_dir", Args: map[string]interface{}{"path": "sub"}},
		),
		textStep("wrapped up"),
	}}
	a, dir := newTestAgent(t, p, Options{})
	if err := os.WriteFile(filepath.Join(dir, "x.txt"), []byte("one two\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	answer, err := a.Run(context.Background(), "mixed round")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "wrapped up" {
		t.Errorf("answer = %q", answer)
	}

	msgs := p.requests[3].Messages
	// Tail: assistant(3 calls), tool c3, tool c4, tool c5, guidance.
	results := msgs[len(msgs)-4 : len(msgs)-1]
	if !strings.Contains(results[0].Content, "Stats for 'x.txt'") {
		t.Errorf("first call should have run normally, got %q", results[0].Content)
	}
	if !strings.Contains(results[1].Content, "repeated action detected") {
		t.Errorf("second call should have tripped the guard, got %q", results[1].Content)
	}
	if !strings.Contains(results[2].Content, "Skipped") {
		t.Errorf("third call should have been skipped, got %q", results[2].Content)
	}
	for i, r := range results {
		if r.Role != llm.RoleTool {
			t.Errorf("result %d role = %q, want tool", i, r.Role)
		}
	}
}

func TestRun_MissingFileGuardTrips(t *testing.T) {
	p := &scriptedProvider{script: []step{
		callStep(readCall("c1", "ghost1.txt")),
		callStep(readCall("c2", "ghost2.txt")),
		callStep(readCall("c3", "ghost3.txt")),
		textStep("those files do not exist"),
	}}
	a, _ := newTestAgent(t, p, Options{})

	answer, err := a.Run(context.Background(), "read the ghosts")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "those files do not exist" {
		t.Errorf("answer = %q", answer)
	}
	if len(p.requests) != 4 {
		t.Fatalf("model calls = %d, want 3 rounds + finalize", len(p.requests))
	}
	if len(p.requests[3].Tools) != 0 {
		t.Error("finalizing request still offered tools")
	}
}

func TestRun_MissingFileStreakResets(t *testing.T) {
	p := &scriptedProvider{script: []step{
		callStep(readCall("c1", "ghost1.txt")),
		callStep(readCall("c2", "ghost2.txt")),
		callStep(listCall("c3", ".")),
		callStep(readCall("c4", "ghost3.txt")),
		callStep(readCall("c5", "ghost4.txt")),
		textStep("done looking"),
	}}
	a, _ := newTestAgent(t, p, Options{})

	answer, err := a.Run(context.Background(), "poke around")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "done looking" {
		t.Errorf("answer = %q", answer)
	}
	// A successful call between misses resets the streak, so the final
	// request is a normal round.
	if len(p.requests[5].Tools) == 0 {
		t.Error("guard tripped although the miss streak was interrupted")
	}
}

func TestRun_RoundBudget(t *testing.T) {
	limits := testLimits()
	limits.MaxToolRounds = 2
	p := &scriptedProvider{script: []step{
		callStep(listCall("c1", ".")),
		callStep(listCall("c2", ".")),
	}}
	a, _ := newTestAgent(t, p, Options{Limits: limits})

	answer, err := a.Run(context.Background(), "loop")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(answer, "Stopped using tools") {
		t.Errorf("answer = %q, want the round limit notice", answer)
	}
	// The budget check happens before the model call, so no third
	// completion is requested.
	if len(p.requests) != 2 {
		t.Errorf("model calls = %d, want exactly the budget", len(p.requests))
	}
}

func TestRun_TransportError(t *testing.T) {
	p := &scriptedProvider{script: []step{errStep("connection refused")}}
	a, _ := newTestAgent(t, p, Options{})

	answer, err := a.Run(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "model call failed") || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("err = %v", err)
	}
	if answer != "" {
		t.Errorf("answer = %q, want empty", answer)
	}
}

func TestRun_FinalizeFallsBackOnError(t *testing.T) {
	same := listCall("c1", ".")
	p := &scriptedProvider{script: []step{
		callStep(same),
		callStep(listCall("c2", ".")),
		callStep(listCall("c3", ".")),
		errStep("connection reset"),
	}}
	a, _ := newTestAgent(t, p, Options{})

	answer, err := a.Run(context.Background(), "list forever")
	if err != nil {
		t.Fatalf("a failed finalize call must not fail the run: %v", err)
	}
	if !strings.Contains(answer, "Finalize your response") {
		t.Errorf("answer = %q, want the guidance fallback", answer)
	}
}

func TestRun_FinalizeFallsBackOnEmptyContent(t *testing.T) {
	same := listCall("c1", ".")
	p := &scriptedProvider{script: []step{
		callStep(same),
		callStep(listCall("c2", ".")),
		callStep(listCall("c3", ".")),
		textStep("   \n"),
	}}
	a, _ := newTestAgent(t, p, Options{})

	answer, err := a.Run(context.Background(), "list forever")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(answer, "Finalize your response") {
		t.Errorf("answer = %q, want the guidance fallback", answer)
	}
}

func TestRun_TranscriptPersistsAcrossRuns(t *testing.T) {
	p := &scriptedProvider{script: []step{textStep("first"), textStep("second")}}
	a, _ := newTestAgent(t, p, Options{})

	if _, err := a.Run(context.Background(), "one"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Run(context.Background(), "two"); err != nil {
		t.Fatal(err)
	}

	msgs := p.requests[1].Messages
	if len(msgs) != 4 {
		t.Fatalf("second request messages = %d, want system + user + assistant + user", len(msgs))
	}
	if msgs[2].Role != llm.RoleAssistant || msgs[2].Content != "first" {
		t.Errorf("history lost the first answer: %+v", msgs[2])
	}
	if msgs[3].Content != "two" {
		t.Errorf("second instruction = %+v", msgs[3])
	}
	if a.Rounds() != 2 {
		t.Errorf("Rounds() = %d, want 2", a.Rounds())
	}
}

func TestRun_RecordsSessionEvents(t *testing.T) {
	store, err := session.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	mgr := session.NewManager(store)
	sess, err := mgr.Create(RoleMain, "inspect")
	if err != nil {
		t.Fatal(err)
	}

	res, err := sandbox.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := &scriptedProvider{script: []step{
		callStep(listCall("c1", ".")),
		textStep("empty dir"),
	}}
	a := New(p, tools.NewRegistry(res), mgr, sess, quietLogger(), Options{Role: RoleMain, Limits: testLimits()})

	if _, err := a.Run(context.Background(), "inspect"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Finish(sess, session.StatusComplete, "empty dir", nil); err != nil {
		t.Fatal(err)
	}

	loaded, err := mgr.Get(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	var types []string
	for _, e := range loaded.Events {
		types = append(types, e.Type)
	}
	want := []string{
		session.EventSystem,
		session.EventUser,
		session.EventAssistant,
		session.EventToolCall,
		session.EventToolResult,
		session.EventAssistant,
	}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d = %q, want %q (all: %v)", i, types[i], want[i], types)
		}
	}

	// The tool call event keeps its arguments for replay.
	callEvent := loaded.Events[3]
	if callEvent.Tool != "list_dir" || callEvent.CallID != "c1" {
		t.Errorf("tool call event = %+v", callEvent)
	}
	if callEvent.Args["path"] != "." {
		t.Errorf("tool call args = %v", callEvent.Args)
	}
}

func TestRun_RecordsLimitEvent(t *testing.T) {
	store, err := session.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	mgr := session.NewManager(store)
	sess, err := mgr.Create(RoleMain, "loop")
	if err != nil {
		t.Fatal(err)
	}

	res, err := sandbox.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	same := listCall("c1", ".")
	p := &scriptedProvider{script: []step{
		callStep(same),
		callStep(listCall("c2", ".")),
		callStep(listCall("c3", ".")),
		textStep("stopped"),
	}}
	a := New(p, tools.NewRegistry(res), mgr, sess, quietLogger(), Options{Role: RoleMain, Limits: testLimits()})

	if _, err := a.Run(context.Background(), "loop"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Finish(sess, session.StatusComplete, "stopped", nil); err != nil {
		t.Fatal(err)
	}

	loaded, err := mgr.Get(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range loaded.Events {
		if e.Type == session.EventLimit && strings.Contains(e.Content, "repeated action") {
			found = true
		}
	}
	if !found {
		t.Errorf("no limit event recorded, events: %+v", loaded.Events)
	}
}

func TestSignatureFor(t *testing.T) {
	a := signatureFor(llm.ToolCall{Name: "read_file", Args: map[string]interface{}{"path": "a.txt"}})
	b := signatureFor(llm.ToolCall{Name: "read_file", Args: map[string]interface{}{"path": "a.txt"}})
	c := signatureFor(llm.ToolCall{Name: "read_file", Args: map[string]interface{}{"path": "b.txt"}})
	d := signatureFor(llm.ToolCall{Name: "list_dir", Args: map[string]interface{}{"path": "a.txt"}})

	if a != b {
		t.Errorf("identical calls produced different signatures: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different arguments produced the same signature")
	}
	if a == d {
		t.Error("different tools produced the same signature")
	}
}

func TestSignatureFor_NestedArgs(t *testing.T) {
	a := signatureFor(llm.ToolCall{Name: "t", Args: map[string]interface{}{
		"outer": map[string]interface{}{"x": 1.0, "y": 2.0},
	}})
	b := signatureFor(llm.ToolCall{Name: "t", Args: map[string]interface{}{
		"outer": map[string]interface{}{"y": 2.0, "x": 1.0},
	}})
	if a != b {
		t.Errorf("key order changed the signature: %q vs %q", a, b)
	}
}

func TestSignatureWindow_Slides(t *testing.T) {
	w := newSignatureWindow(2)
	if got := w.observe("a"); got != 1 {
		t.Errorf("first observe = %d, want 1", got)
	}
	if got := w.observe("a"); got != 2 {
		t.Errorf("second observe = %d, want 2", got)
	}
	if got := w.observe("b"); got != 1 {
		t.Errorf("observe b = %d, want 1", got)
	}
	// The early "a" entries slid out of the two-slot window.
	if got := w.observe("a"); got != 1 {
		t.Errorf("observe a after slide = %d, want 1", got)
	}
}

func TestSystemPrompt(t *testing.T) {
	mainSolo := systemPrompt(RoleMain, false, "")
	mainFull := systemPrompt(RoleMain, true, "")
	subSolo := systemPrompt(RoleSubAgent, false, "note: files live in docs/")
	subFull := systemPrompt(RoleSubAgent, true, "")

	for name, prompt := range map[string]string{
		"main":       mainSolo,
		"main+spawn": mainFull,
		"sub":        subSolo,
		"sub+spawn":  subFull,
	} {
		if !strings.Contains(prompt, "list_dir") {
			t.Errorf("%s prompt does not name list_dir", name)
		}
		if !strings.Contains(prompt, "Never invent or guess filenames") {
			t.Errorf("%s prompt lost the filename rule", name)
		}
	}

	if strings.Contains(mainSolo, "spawn_subagent") {
		t.Error("spawnless main prompt mentions spawn_subagent")
	}
	if !strings.Contains(mainFull, "spawn_subagent") {
		t.Error("spawning main prompt does not mention spawn_subagent")
	}
	if !strings.Contains(subSolo, "must not spawn") {
		t.Error("leaf sub-agent prompt does not forbid spawning")
	}
	if !strings.Contains(subSolo, "note: files live in docs/") {
		t.Error("sub-agent prompt does not embed the context snapshot")
	}
	if !strings.Contains(subFull, "one more level") {
		t.Error("spawning sub-agent prompt does not bound recursion")
	}
	if strings.Contains(mainFull, "Shared context") {
		t.Error("main prompt embeds a context snapshot")
	}
}

func TestMissingFileResult(t *testing.T) {
	cases := []struct {
		content string
		want    bool
	}{
		{"Error: file 'a.txt' not found in /tmp/w. Available files: no files available.", true},
		{"Error: File Not Found", true},
		{"Error: directory 'x' not found in /tmp/w", false},
		{"File 'a.txt' saved successfully in /tmp/w.", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := missingFileResult(tc.content); got != tc.want {
			t.Errorf("missingFileResult(%q) = %v, want %v", tc.content, got, tc.want)
		}
	}
}
