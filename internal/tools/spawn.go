package tools

import (
	"context"
	"strings"
)

// conciseSuffix keeps sub-agent answers short enough to fold back into
// the parent transcript.
const conciseSuffix = "(Respond concisely: up to 120 words or 3-6 bullets.)"

// Spawner starts a sub-agent for an instruction and returns its final
// output. The subagent package provides the process-backed
// implementation.
type Spawner interface {
	Spawn(ctx context.Context, instruction string) (string, error)
}

type spawnTool struct {
	spawner Spawner
}

func (t *spawnTool) Name() string { return "spawn_subagent" }

func (t *spawnTool) Description() string {
	return "Create a dedicated subagent to solve a specific subtask, " +
		"calling this same program with --role=subagent and --once. " +
		"Use it to split complex tasks into well-defined subtasks."
}

func (t *spawnTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "Clear description of the subtask the subagent should execute.",
			},
		},
		"required": []string{"task"},
	}
}

func (t *spawnTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var a struct {
		Task string `json:"task"`
	}
	if err := decodeArgs(t.Name(), args, &a); err != nil {
		return "", err
	}
	task := strings.TrimSpace(a.Task)
	if task == "" {
		return "", &ArgumentError{Tool: t.Name(), Param: "task", Reason: "is required"}
	}

	return t.spawner.Spawn(ctx, task+" "+conciseSuffix)
}
