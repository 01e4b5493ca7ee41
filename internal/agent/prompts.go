package agent

import "strings"

// Agent roles. Sub-agents run in child processes with --role subagent.
const (
	RoleMain     = "main"
	RoleSubAgent = "subagent"
)

// finalizeGuidance is injected as a system message when a loop guard
// fires. It is also the fallback answer if the finalizing model call
// fails or returns nothing.
const finalizeGuidance = "Finalize your response to the user now, without calling tools. " +
	"Use only the context already available and the subagents' answers. Be concise."

// roundLimitAnswer is returned verbatim when the round budget runs out.
const roundLimitAnswer = "Stopped using tools: round limit reached. " +
	"Refine the instruction or raise the round budget if you need more iterations."

const toolCatalog = `You work inside a sandboxed working directory and have these file tools:
- list_dir: list the entries of a directory
- read_file / read_file_chunk: read a whole file or a line range
- write_file: create or overwrite a file
- append_to_file: append text to a file
- delete_file / rename_file: remove or rename a file
- search_in_files: find a term across all text files
- count_words: line, word and character counts for a file

CRITICAL RULE: only operate on files that appeared in a list_dir result or that you created yourself. Never invent or guess filenames. If a file you need does not exist, say so instead of retrying variations.`

const mainRole = `You are the MAIN AGENT of a task system. You receive instructions from the user, break them into steps and carry them out with your tools.`

const mainSpawn = `You also have spawn_subagent: it starts a dedicated subagent process for one well-defined subtask and returns its answer. Delegate subtasks that need several reads or a focused analysis, and keep coordination for yourself. Give each subagent a complete, self-contained instruction.`

const mainFinish = `When the work is done, answer the user directly in plain text and stop calling tools. Do not narrate tool usage; report results.`

const subRole = `You are a SUBAGENT. You were spawned to solve exactly one subtask and then terminate. Do only what the instruction asks.`

const subNoSpawn = `You must not spawn other subagents. Solve the subtask yourself with the file tools.`

const subSpawn = `You may spawn one more level of subagents with spawn_subagent, but only when a piece of the subtask is clearly separable. Nesting is limited, so prefer doing the work yourself.`

const subFinish = `Answer with your result only. Be concise: a short paragraph or a few bullets. Do not repeat the instruction back and do not describe your process.`

// systemPrompt assembles the system message for a role. The sub-agent
// variant embeds the shared context snapshot so a child process starts
// with everything earlier agents recorded.
func systemPrompt(role string, canSpawn bool, snapshot string) string {
	var parts []string
	if role == RoleSubAgent {
		parts = append(parts, subRole, toolCatalog)
		if canSpawn {
			parts = append(parts, subSpawn)
		} else {
			parts = append(parts, subNoSpawn)
		}
		parts = append(parts, subFinish)
		if snapshot != "" {
			parts = append(parts, "Shared context recorded so far:\n"+strings.TrimRight(snapshot, "\n"))
		}
		return strings.Join(parts, "\n\n")
	}

	parts = append(parts, mainRole, toolCatalog)
	if canSpawn {
		parts = append(parts, mainSpawn)
	}
	parts = append(parts, mainFinish)
	return strings.Join(parts, "\n\n")
}
