package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vinayprograms/taskagent/internal/agent"
	"github.com/vinayprograms/taskagent/internal/config"
	"github.com/vinayprograms/taskagent/internal/contextlog"
	"github.com/vinayprograms/taskagent/internal/llm"
	"github.com/vinayprograms/taskagent/internal/logging"
	"github.com/vinayprograms/taskagent/internal/sandbox"
	"github.com/vinayprograms/taskagent/internal/session"
	"github.com/vinayprograms/taskagent/internal/subagent"
	"github.com/vinayprograms/taskagent/internal/tools"
)

// sessionsDirName is the subdirectory of the state dir holding run
// records.
const sessionsDirName = "sessions"

// runAgent wires the agent together and executes the run command.
func runAgent(cmd RunCmd) {
	rt := &runtime{cmd: cmd}
	if err := rt.build(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	instruction := strings.TrimSpace(cmd.Instruction)
	switch {
	case instruction != "":
		if err := rt.runOnce(context.Background(), instruction); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case cmd.Once:
		fmt.Fprintln(os.Stderr, "error: --once requires an instruction")
		os.Exit(1)
	default:
		if err := rt.runInteractive(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// runtime holds everything a run needs once configuration is resolved.
// The session and agent are created lazily on the first instruction so
// interactive runs record the opening request in the session header.
type runtime struct {
	cmd RunCmd

	cfg      *config.Config
	workDir  string
	canSpawn bool

	logger   *logging.Logger
	store    *contextlog.Store
	provider llm.Provider
	registry *tools.Registry
	sessions *session.Manager

	ag   *agent.Agent
	sess *session.Session
}

// build loads config and constructs the sandbox, context log, session
// store, LLM provider and tool registry.
func (rt *runtime) build() error {
	if err := rt.loadConfig(); err != nil {
		return err
	}

	rt.logger = logging.New()
	if rt.cmd.Debug {
		rt.logger.SetLevel(logging.LevelDebug)
	}

	resolver, err := sandbox.New(rt.workDir)
	if err != nil {
		return fmt.Errorf("confine workspace: %w", err)
	}

	rt.store = contextlog.New(rt.workDir)
	if rt.cmd.Role == agent.RoleMain {
		// A new main run starts with an empty shared context. Sub-agents
		// join the run in flight and must never truncate it.
		if err := rt.store.Reset(); err != nil {
			return err
		}
	}

	fileStore, err := session.NewFileStore(filepath.Join(rt.workDir, contextlog.StateDirName, sessionsDirName))
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	rt.sessions = session.NewManager(fileStore)

	rt.provider, err = llm.NewProvider(llm.Options{
		Provider:   rt.cfg.LLM.Provider,
		Model:      rt.cfg.LLM.Model,
		BaseURL:    rt.cfg.LLM.BaseURL,
		APIKey:     rt.cfg.GetAPIKey(),
		MaxTokens:  rt.cfg.LLM.MaxTokens,
		MaxRetries: rt.cfg.LLM.MaxRetries,
		MaxBackoff: rt.cfg.RetryBackoffDuration(),
	})
	if err != nil {
		return fmt.Errorf("create LLM provider: %w", err)
	}

	rt.canSpawn = rt.cmd.Depth < rt.cfg.SubAgent.MaxDepth
	var opts []tools.Option
	if rt.canSpawn {
		runner, err := rt.buildSpawner()
		if err != nil {
			return err
		}
		opts = append(opts, tools.WithSpawner(runner))
	}
	rt.registry = tools.NewRegistry(resolver, opts...)
	return nil
}

// loadConfig resolves config from file, workspace overrides and flags,
// and pins the working root to an absolute path.
func (rt *runtime) loadConfig() error {
	cfg, err := config.Load(rt.cmd.Config)
	if err != nil {
		return err
	}
	if rt.cmd.WorkDir != "" {
		cfg.Agent.WorkDir = rt.cmd.WorkDir
	}

	workDir, err := filepath.Abs(cfg.Agent.WorkDir)
	if err != nil {
		return fmt.Errorf("resolve work dir: %w", err)
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	cfg.Agent.WorkDir = workDir

	if err := cfg.ApplyWorkspaceOverrides(workDir); err != nil {
		return err
	}

	rt.cfg = cfg
	rt.workDir = workDir
	return nil
}

// buildSpawner creates the sub-agent runner that re-invokes this binary
// for spawn_subagent calls.
func (rt *runtime) buildSpawner() (*subagent.Runner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable for sub-agents: %w", err)
	}

	runner := subagent.NewRunner(subagent.Options{
		Executable: exe,
		WorkDir:    rt.workDir,
		ConfigPath: rt.cmd.Config,
		Debug:      rt.cmd.Debug,
		Depth:      rt.cmd.Depth,
		MaxDepth:   rt.cfg.SubAgent.MaxDepth,
		Timeout:    time.Duration(rt.cfg.SubAgent.TimeoutSeconds) * time.Second,
	}, rt.store, rt.logger)
	runner.OnStart = rt.onSpawnStart
	runner.OnComplete = rt.onSpawnComplete
	runner.OnError = rt.onSpawnError
	return runner, nil
}

// start creates the session record and the agent for the first
// instruction of this process.
func (rt *runtime) start(instruction string) error {
	sess, err := rt.sessions.Create(rt.cmd.Role, instruction)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	rt.sess = sess
	rt.logger = rt.logger.WithRunID(sess.ID)

	snapshot := ""
	if rt.cmd.Role == agent.RoleSubAgent {
		snapshot, err = rt.store.Snapshot()
		if err != nil {
			return err
		}
	}

	rt.ag = agent.New(rt.provider, rt.registry, rt.sessions, sess, rt.logger, agent.Options{
		Role:     rt.cmd.Role,
		CanSpawn: rt.canSpawn,
		Snapshot: snapshot,
		Limits:   rt.cfg.Limits,
		Debug:    rt.cmd.Debug,
	})
	if rt.cmd.Role == agent.RoleMain {
		rt.ag.OnToolCall = func(name string, args map[string]interface{}) {
			fmt.Fprintf(os.Stderr, "  → %s\n", name)
		}
		rt.ag.OnToolResult = func(name, content string, isError bool, duration time.Duration) {
			if isError {
				fmt.Fprintf(os.Stderr, "  ✗ %s failed (%s)\n", name, duration.Round(time.Millisecond))
			}
		}
	}
	return nil
}

// finish closes the run record. A footer write failure only warns: the
// answer has already been delivered.
func (rt *runtime) finish(result string, runErr error) {
	if rt.sess == nil || rt.ag == nil {
		return
	}
	rt.sess.Rounds = rt.ag.Rounds()
	status := session.StatusComplete
	if runErr != nil {
		status = session.StatusFailed
	}
	if err := rt.sessions.Finish(rt.sess, status, result, runErr); err != nil {
		rt.logger.Warn("session footer dropped", map[string]interface{}{"error": err.Error()})
	}
}

// runOnce executes one instruction and prints the final answer to
// stdout. Stdout carries nothing else; parent processes capture it as
// the sub-agent's result.
func (rt *runtime) runOnce(ctx context.Context, instruction string) error {
	if err := rt.start(instruction); err != nil {
		return err
	}
	answer, err := rt.ag.Run(ctx, instruction)
	rt.finish(answer, err)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

// runInteractive reads instructions from stdin until EOF or an exit
// command. The transcript carries across instructions, so follow-ups
// see earlier answers.
func (rt *runtime) runInteractive(ctx context.Context) error {
	fmt.Printf("taskagent %s (model: %s). Type 'exit' or Ctrl-D to quit.\n\n", version, rt.provider.Model())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lastAnswer string
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if rt.ag == nil {
			if err := rt.start(line); err != nil {
				return err
			}
		}

		answer, err := rt.ag.Run(ctx, line)
		if err != nil {
			// A transport failure ends the instruction, not the session.
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		lastAnswer = answer
		fmt.Printf("\nAgent: %s\n\n", answer)
	}

	rt.finish(lastAnswer, scanner.Err())
	return scanner.Err()
}

func (rt *runtime) onSpawnStart(id int, instruction string) {
	rt.recordSpawn(session.Event{
		Type:    session.EventSubAgentStart,
		Source:  fmt.Sprintf("subagent-%d", id),
		Content: instruction,
	})
	if rt.cmd.Role == agent.RoleMain {
		fmt.Fprintf(os.Stderr, "  ⊕ Spawning sub-agent #%d\n", id)
	}
}

func (rt *runtime) onSpawnComplete(id int, output string) {
	rt.recordSpawn(session.Event{
		Type:    session.EventSubAgentEnd,
		Source:  fmt.Sprintf("subagent-%d", id),
		Content: output,
	})
	if rt.cmd.Role == agent.RoleMain {
		fmt.Fprintf(os.Stderr, "  ⊖ Sub-agent #%d complete\n", id)
	}
}

func (rt *runtime) onSpawnError(id int, err error) {
	rt.recordSpawn(session.Event{
		Type:    session.EventSubAgentEnd,
		Source:  fmt.Sprintf("subagent-%d", id),
		IsError: true,
		Error:   err.Error(),
	})
	if rt.cmd.Role == agent.RoleMain {
		fmt.Fprintf(os.Stderr, "  ✗ Sub-agent #%d failed: %v\n", id, err)
	}
}

// recordSpawn logs spawn lifecycle events into the session with their
// sub-agent source intact.
func (rt *runtime) recordSpawn(event session.Event) {
	if rt.sess == nil {
		return
	}
	if err := rt.sessions.AddEvent(rt.sess, event); err != nil {
		rt.logger.Warn("session event dropped", map[string]interface{}{"error": err.Error()})
	}
}
