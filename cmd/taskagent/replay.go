package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vinayprograms/taskagent/internal/config"
	"github.com/vinayprograms/taskagent/internal/contextlog"
	"github.com/vinayprograms/taskagent/internal/replay"
	"github.com/vinayprograms/taskagent/internal/session"
)

// runReplay shows a recorded session: a listing, statistics, a live
// follow, or the full timeline.
func runReplay(cmd ReplayCmd) error {
	store, err := openSessionStore(cmd.Config, cmd.WorkDir)
	if err != nil {
		return err
	}

	if cmd.List {
		return replay.ListSessions(os.Stdout, store)
	}
	if cmd.Session == "" {
		return fmt.Errorf("session ID or path required (use --list to see recorded sessions)")
	}

	path, err := resolveSessionPath(store, cmd.Session)
	if err != nil {
		return err
	}

	r := replay.New(os.Stdout, cmd.Verbose)
	switch {
	case cmd.Stats:
		return r.PrintStats(path)
	case cmd.Follow:
		return r.ReplayFileLive(path)
	case !cmd.NoPager && isTerminal(os.Stdout):
		return r.ReplayFileInteractive(path)
	default:
		return r.ReplayFile(path)
	}
}

// openSessionStore resolves the session directory the same way the run
// command does, so replay finds the records run wrote.
func openSessionStore(configPath, workDirFlag string) (*session.FileStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if workDirFlag != "" {
		cfg.Agent.WorkDir = workDirFlag
	}
	workDir, err := filepath.Abs(cfg.Agent.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolve work dir: %w", err)
	}
	return session.NewFileStore(filepath.Join(workDir, contextlog.StateDirName, sessionsDirName))
}

// resolveSessionPath accepts a direct path to a .jsonl file, a full
// session ID, or a unique ID prefix.
func resolveSessionPath(store *session.FileStore, arg string) (string, error) {
	if fi, err := os.Stat(arg); err == nil && !fi.IsDir() {
		return arg, nil
	}

	ids, err := store.ListIDs()
	if err != nil {
		return "", err
	}

	var matches []string
	for _, id := range ids {
		if id == arg {
			return filepath.Join(store.Dir(), id+".jsonl"), nil
		}
		if strings.HasPrefix(id, arg) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 1:
		return filepath.Join(store.Dir(), matches[0]+".jsonl"), nil
	case 0:
		return "", fmt.Errorf("session %q not found in %s", arg, store.Dir())
	default:
		return "", fmt.Errorf("session prefix %q matches %d sessions", arg, len(matches))
	}
}
