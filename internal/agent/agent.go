// Package agent implements the model-tool loop: it alternates chat
// completions with tool dispatch until the model answers in plain text
// or a loop guard forces finalization.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vinayprograms/taskagent/internal/config"
	"github.com/vinayprograms/taskagent/internal/llm"
	"github.com/vinayprograms/taskagent/internal/logging"
	"github.com/vinayprograms/taskagent/internal/session"
	"github.com/vinayprograms/taskagent/internal/tools"
)

// debugPreviewChars caps transcript previews in debug logs.
const debugPreviewChars = 300

// Guard result texts fed back into the transcript when loop protection
// fires mid-round. Every requested call still gets a tool message, so
// the transcript stays well formed for the finalizing model call.
const (
	repeatedActionResult = "Error: repeated action detected: the same tool call was attempted too many times without progress."
	skippedCallResult    = "Skipped: tool use was stopped for this round."
)

// Options configures an Agent.
type Options struct {
	Role     string              // RoleMain or RoleSubAgent
	CanSpawn bool                // whether spawn_subagent is offered
	Snapshot string              // context snapshot embedded in sub-agent prompts
	Limits   config.LimitsConfig // loop protection settings
	Debug    bool                // verbose transcript logging
}

// Agent drives one conversation with the model. The transcript persists
// across Run calls so interactive sessions keep their history; the loop
// guards reset on every call.
type Agent struct {
	provider llm.Provider
	registry *tools.Registry
	sessions *session.Manager
	sess     *session.Session
	logger   *logging.Logger
	opts     Options

	transcript  []llm.Message
	totalRounds int

	// OnToolCall and OnToolResult fire around every dispatched tool so
	// a UI can show progress. Either may be nil.
	OnToolCall   func(name string, args map[string]interface{})
	OnToolResult func(name string, content string, isError bool, duration time.Duration)
}

// New seeds the agent with the system prompt for its role. sessions and
// sess may be nil when no run record is wanted.
func New(provider llm.Provider, registry *tools.Registry, sessions *session.Manager, sess *session.Session, logger *logging.Logger, opts Options) *Agent {
	if logger == nil {
		logger = logging.New()
	}
	a := &Agent{
		provider: provider,
		registry: registry,
		sessions: sessions,
		sess:     sess,
		logger:   logger.WithComponent("agent"),
		opts:     opts,
	}
	prompt := systemPrompt(opts.Role, opts.CanSpawn, opts.Snapshot)
	a.transcript = append(a.transcript, llm.SystemMessage(prompt))
	a.record(session.Event{Type: session.EventSystem, Content: prompt})
	return a
}

// Rounds returns the number of model responses consumed across all Run
// calls, for run records.
func (a *Agent) Rounds() int { return a.totalRounds }

// Run executes one instruction to completion and returns the final
// answer. A transport failure is terminal for the call; guard trips
// still produce an answer.
func (a *Agent) Run(ctx context.Context, instruction string) (string, error) {
	ctx, span := startRunSpan(ctx, a.opts.Role, a.provider.Model())
	start := time.Now()
	a.logger.RunStart(a.opts.Role, a.provider.Model())

	a.transcript = append(a.transcript, llm.UserMessage(instruction))
	a.record(session.Event{Type: session.EventUser, Content: instruction})

	rounds := 0
	window := newSignatureWindow(a.opts.Limits.SignatureWindow)
	missingStreak := 0

	for {
		// The budget is checked before calling the model, so an
		// exhausted run answers without burning another completion.
		if rounds >= a.opts.Limits.MaxToolRounds {
			a.logger.LimitTripped("round_budget", map[string]interface{}{"rounds": rounds})
			a.record(session.Event{Type: session.EventLimit, Content: "round budget exhausted", Round: rounds})
			a.appendAssistant(roundLimitAnswer, rounds, nil)
			a.finishRun(span, "round_limit", rounds, start, nil)
			return roundLimitAnswer, nil
		}

		roundCtx, roundSpan := startRoundSpan(ctx, rounds+1)
		resp, err := a.provider.Chat(roundCtx, llm.ChatRequest{
			Messages: a.transcript,
			Tools:    a.registry.Definitions(),
		})
		if err != nil {
			roundSpan.End()
			err = fmt.Errorf("model call failed: %w", err)
			a.finishRun(span, "transport_error", rounds, start, err)
			return "", err
		}
		rounds++
		a.totalRounds++

		if a.opts.Debug {
			a.logger.Debug("model response", map[string]interface{}{
				"round":      rounds,
				"content":    preview(resp.Content, debugPreviewChars),
				"tool_calls": len(resp.ToolCalls),
			})
		}

		if len(resp.ToolCalls) == 0 {
			roundSpan.End()
			a.appendAssistant(resp.Content, rounds, resp)
			a.finishRun(span, "complete", rounds, start, nil)
			return resp.Content, nil
		}

		a.transcript = append(a.transcript, llm.AssistantMessage(resp.Content, resp.ToolCalls))
		a.record(session.Event{
			Type:      session.EventAssistant,
			Content:   resp.Content,
			Round:     rounds,
			Model:     resp.Model,
			TokensIn:  resp.InputTokens,
			TokensOut: resp.OutputTokens,
		})

		guard := ""
		for _, call := range resp.ToolCalls {
			if guard != "" {
				a.appendToolResult(call, llm.ToolResult{CallID: call.ID, Content: skippedCallResult, IsError: true}, 0)
				continue
			}

			if window.observe(signatureFor(call)) >= a.opts.Limits.MaxRepeatSignatures {
				guard = "repeat_guard"
				a.logger.LimitTripped("repeat_signature", map[string]interface{}{"tool": call.Name, "round": rounds})
				a.record(session.Event{Type: session.EventLimit, Content: "repeated action detected", Tool: call.Name, Round: rounds})
				a.appendToolResult(call, llm.ToolResult{CallID: call.ID, Content: repeatedActionResult, IsError: true}, 0)
				continue
			}

			result, duration := a.dispatch(roundCtx, call, rounds)
			a.appendToolResult(call, result, duration)

			if missingFileResult(result.Content) {
				missingStreak++
			} else {
				missingStreak = 0
			}
			if missingStreak >= a.opts.Limits.MaxMissingFiles {
				guard = "missing_file_guard"
				a.logger.LimitTripped("missing_files", map[string]interface{}{"streak": missingStreak, "round": rounds})
				a.record(session.Event{Type: session.EventLimit, Content: "repeated missing-file errors", Round: rounds})
			}
		}
		roundSpan.End()

		if guard != "" {
			answer := a.finalizeWithoutTools(ctx)
			a.finishRun(span, guard, rounds, start, nil)
			return answer, nil
		}
	}
}

// dispatch runs one tool call through the registry with logging,
// tracing and UI callbacks around it.
func (a *Agent) dispatch(ctx context.Context, call llm.ToolCall, round int) (llm.ToolResult, time.Duration) {
	ctx, span := startToolSpan(ctx, call.Name, round)
	start := time.Now()

	a.logger.ToolCall(call.Name)
	a.record(session.Event{Type: session.EventToolCall, Tool: call.Name, CallID: call.ID, Args: call.Args, Round: round})
	if a.OnToolCall != nil {
		a.OnToolCall(call.Name, call.Args)
	}
	if a.opts.Debug {
		args, _ := json.Marshal(call.Args)
		a.logger.Debug("tool arguments", map[string]interface{}{"tool": call.Name, "args": string(args)})
	}

	result := a.registry.Dispatch(ctx, call)
	duration := time.Since(start)

	var resultErr error
	if result.IsError {
		resultErr = errors.New(result.Content)
	}
	a.logger.ToolResult(call.Name, duration, resultErr)
	endToolSpan(span, result.IsError, resultErr)
	if a.OnToolResult != nil {
		a.OnToolResult(call.Name, result.Content, result.IsError, duration)
	}
	if a.opts.Debug {
		a.logger.Debug("tool result", map[string]interface{}{"tool": call.Name, "result": preview(result.Content, debugPreviewChars)})
	}
	return result, duration
}

// finalizeWithoutTools asks the model for a closing answer with no
// tools offered. The guidance text itself is the answer of last resort
// when that call fails or comes back empty.
func (a *Agent) finalizeWithoutTools(ctx context.Context) string {
	a.transcript = append(a.transcript, llm.SystemMessage(finalizeGuidance))
	a.record(session.Event{Type: session.EventSystem, Content: finalizeGuidance})

	answer := finalizeGuidance
	resp, err := a.provider.Chat(ctx, llm.ChatRequest{Messages: a.transcript})
	if err != nil {
		a.logger.Warn("finalize call failed", map[string]interface{}{"error": err.Error()})
	} else if strings.TrimSpace(resp.Content) != "" {
		answer = resp.Content
	}
	a.appendAssistant(answer, 0, resp)
	return answer
}

func (a *Agent) appendAssistant(content string, round int, resp *llm.ChatResponse) {
	a.transcript = append(a.transcript, llm.AssistantMessage(content, nil))
	event := session.Event{Type: session.EventAssistant, Content: content, Round: round}
	if resp != nil {
		event.Model = resp.Model
		event.TokensIn = resp.InputTokens
		event.TokensOut = resp.OutputTokens
	}
	a.record(event)
}

func (a *Agent) appendToolResult(call llm.ToolCall, result llm.ToolResult, duration time.Duration) {
	a.transcript = append(a.transcript, llm.ToolMessage(result))
	a.record(session.Event{
		Type:       session.EventToolResult,
		Tool:       call.Name,
		CallID:     result.CallID,
		Content:    result.Content,
		IsError:    result.IsError,
		DurationMs: duration.Milliseconds(),
	})
}

func (a *Agent) finishRun(span trace.Span, status string, rounds int, start time.Time, err error) {
	a.logger.RunComplete(a.opts.Role, rounds, time.Since(start), status)
	endRunSpan(span, status, rounds, err)
}

func (a *Agent) record(event session.Event) {
	if a.sessions == nil || a.sess == nil {
		return
	}
	event.Source = a.opts.Role
	if err := a.sessions.AddEvent(a.sess, event); err != nil {
		a.logger.Warn("session event dropped", map[string]interface{}{"error": err.Error()})
	}
}

// missingFileResult matches the file tools' not-found phrasing. The
// check runs on the result text because that text is all the model
// ever sees.
func missingFileResult(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "not found") && strings.Contains(lower, "file")
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
