// Package tools provides the tool registry and the built-in tools the
// model may call. Dispatch never lets a handler failure escape: every
// error, including panics, becomes an error ToolResult the model can
// read and react to.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/vinayprograms/taskagent/internal/llm"
	"github.com/vinayprograms/taskagent/internal/sandbox"
)

// Tool represents an executable tool.
type Tool interface {
	// Name returns the tool name.
	Name() string
	// Description returns a description for the LLM.
	Description() string
	// Parameters returns the JSON schema for parameters.
	Parameters() map[string]interface{}
	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// ArgumentError reports a missing or mistyped tool argument. The model
// is an unreliable caller, so these surface as error results naming the
// offending parameter rather than faults.
type ArgumentError struct {
	Tool   string
	Param  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: argument %q %s", e.Tool, e.Param, e.Reason)
}

// Registry holds all registered tools.
type Registry struct {
	tools    map[string]Tool
	resolver *sandbox.Resolver
}

// Option configures a Registry beyond the built-in tool set.
type Option func(*Registry)

// WithSpawner registers the spawn_subagent tool backed by the given
// spawner. Callers omit this option when the nesting depth budget is
// already spent, which removes the tool from the model's schema.
func WithSpawner(s Spawner) Option {
	return func(r *Registry) {
		r.Register(&spawnTool{spawner: s})
	}
}

// NewRegistry creates a registry with the built-in file tools, all
// confined to the resolver's working root.
func NewRegistry(res *sandbox.Resolver, opts ...Option) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool),
		resolver: res,
	}
	r.registerBuiltins()
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) registerBuiltins() {
	r.Register(&listDirTool{res: r.resolver})
	r.Register(&readFileTool{res: r.resolver})
	r.Register(&writeFileTool{res: r.resolver})
	r.Register(&appendFileTool{res: r.resolver})
	r.Register(&deleteFileTool{res: r.resolver})
	r.Register(&renameFileTool{res: r.resolver})
	r.Register(&searchFilesTool{res: r.resolver})
	r.Register(&countWordsTool{res: r.resolver})
	r.Register(&readChunkTool{res: r.resolver})
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	return r.tools[name]
}

// Definitions returns LLM-facing definitions for all registered tools,
// sorted by name so the schema is stable across requests.
func (r *Registry) Definitions() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Dispatch executes one tool call and converts every failure mode into
// an error ToolResult. Unknown tool names, bad arguments, sandbox
// escapes, and handler panics all come back as readable content.
func (r *Registry) Dispatch(ctx context.Context, call llm.ToolCall) (result llm.ToolResult) {
	result = llm.ToolResult{CallID: call.ID}

	defer func() {
		if rec := recover(); rec != nil {
			result.IsError = true
			result.Content = fmt.Sprintf("Error: tool %s panicked: %v", call.Name, rec)
		}
	}()

	tool := r.Get(call.Name)
	if tool == nil {
		result.IsError = true
		result.Content = fmt.Sprintf("Error: unknown tool: %s", call.Name)
		return result
	}

	out, err := tool.Execute(ctx, call.Args)
	if err != nil {
		result.IsError = true
		result.Content = fmt.Sprintf("Error: %v", err)
		return result
	}
	result.Content = out
	return result
}

// decodeArgs maps the raw argument object onto a tool's typed args
// struct. Type mismatches name the offending field.
func decodeArgs(tool string, args map[string]interface{}, dst interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return &ArgumentError{Tool: tool, Param: "arguments", Reason: "could not be read"}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return &ArgumentError{Tool: tool, Param: typeErr.Field, Reason: "has the wrong type"}
		}
		return &ArgumentError{Tool: tool, Param: "arguments", Reason: "could not be read"}
	}
	return nil
}
