// Package main is the entry point for the taskagent CLI.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func init() {
	// Load .env so provider keys work without exporting them
	_ = godotenv.Load()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("taskagent"),
		kong.Description("LLM-driven task agent with sandboxed file tools and sub-agents."),
		kong.UsageOnError(),
		kongVars(),
	)

	switch ctx.Command() {
	case "run", "run <instruction>":
		runAgent(cli.Run)
	case "setup":
		runSetup()
	case "replay", "replay <session>":
		if err := runReplay(cli.Replay); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "models":
		if err := runModels(cli.Models); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("taskagent version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	default:
		_ = ctx.PrintUsage(false)
		os.Exit(1)
	}
}
