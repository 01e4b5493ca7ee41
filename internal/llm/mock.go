package llm

import (
	"context"
	"sync"
)

// MockProvider is a scripted Provider for tests. Queued responses are
// served in order; once the queue is exhausted the last response
// repeats, so a single tool-call script can drive a loop until a guard
// trips.
type MockProvider struct {
	mu        sync.Mutex
	responses []*ChatResponse
	next      int
	err       error
	requests  []ChatRequest
}

// NewMockProvider creates an empty mock. With no script, Chat answers
// with a plain "done" text response.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// SetResponse replaces the script with a single text response.
func (m *MockProvider) SetResponse(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = []*ChatResponse{{Content: content, StopReason: "stop", Model: "mock"}}
	m.next = 0
}

// QueueResponse appends a full response to the script.
func (m *MockProvider) QueueResponse(resp *ChatResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if resp.Model == "" {
		resp.Model = "mock"
	}
	m.responses = append(m.responses, resp)
}

// SetResponses appends text responses to the script, served in order.
func (m *MockProvider) SetResponses(contents ...string) {
	for _, c := range contents {
		m.QueueResponse(&ChatResponse{Content: c, StopReason: "stop"})
	}
}

// SetToolCalls appends a response requesting the given tool calls.
func (m *MockProvider) SetToolCalls(calls ...ToolCall) {
	m.QueueResponse(&ChatResponse{ToolCalls: calls, StopReason: "tool_calls"})
}

// SetError makes every Chat call fail with err.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Chat implements Provider.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &ChatResponse{Content: "done", StopReason: "stop", Model: "mock"}, nil
	}

	idx := m.next
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.next++

	resp := *m.responses[idx]
	return &resp, nil
}

// Model implements Provider.
func (m *MockProvider) Model() string {
	return "mock"
}

// LastRequest returns the most recent request, or a zero request when
// Chat has not been called.
func (m *MockProvider) LastRequest() ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ChatRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// Requests returns a copy of all requests seen so far.
func (m *MockProvider) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns the number of Chat invocations.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
