// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Run     RunCmd     `cmd:"" default:"withargs" help:"Run the agent on a task"`
	Setup   SetupCmd   `cmd:"" help:"Interactive setup wizard"`
	Replay  ReplayCmd  `cmd:"" help:"Replay a recorded session"`
	Models  ModelsCmd  `cmd:"" help:"List models from the catalog"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// RunCmd runs the agent loop, single-shot or interactive. The hidden
// role and depth flags are how spawned sub-agent processes identify
// themselves; spawn_subagent invokes this same command with
// --role=subagent --once.
type RunCmd struct {
	Instruction string `arg:"" optional:"" help:"Task instruction (omit to start interactive mode)"`
	Once        bool   `help:"Answer a single instruction and exit"`
	WorkDir     string `help:"Workspace directory (overrides config)"`
	Config      string `help:"Config file path"`
	Debug       bool   `help:"Enable debug logging"`

	Role  string `hidden:"" default:"main" enum:"main,subagent" help:"Agent role"`
	Depth int    `hidden:"" default:"0" help:"Nesting depth of this process"`
}

// SetupCmd runs the interactive setup wizard.
type SetupCmd struct{}

// ReplayCmd replays a recorded session for analysis.
type ReplayCmd struct {
	Session string `arg:"" optional:"" help:"Session ID, unique ID prefix, or path to a .jsonl file"`
	Verbose int    `short:"v" type:"counter" help:"Verbosity level (-v, -vv)"`
	List    bool   `help:"List recorded sessions"`
	Stats   bool   `help:"Show statistics instead of the timeline"`
	Follow  bool   `help:"Stream a session that is still running"`
	NoPager bool   `help:"Disable pager for output"`
	WorkDir string `help:"Workspace directory (overrides config)"`
	Config  string `help:"Config file path"`
}

// ModelsCmd lists models from the catwalk catalog.
type ModelsCmd struct {
	Provider string `help:"Provider ID (lists every provider when omitted)"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
