// Package subagent runs narrowed subtasks as child processes of the
// current executable. Each child is a full agent loop with its own
// transcript and its own round budget; the only state shared with the
// parent is the context log.
package subagent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vinayprograms/taskagent/internal/contextlog"
	"github.com/vinayprograms/taskagent/internal/logging"
)

var tracer = otel.Tracer("github.com/vinayprograms/taskagent/internal/subagent")

// maxDoneChars caps the summary line appended to the context log after
// a sub-agent completes.
const maxDoneChars = 600

// SpawnError reports a sub-agent process that exited non-zero, hit its
// wall-clock timeout, or produced no output.
type SpawnError struct {
	ID       int
	ExitCode int
	Stderr   string
	Timeout  bool
	NoOutput bool
}

func (e *SpawnError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("subagent #%d timed out", e.ID)
	case e.NoOutput:
		return fmt.Sprintf("subagent #%d produced no output", e.ID)
	case e.Stderr != "":
		return fmt.Sprintf("subagent #%d exited with code %d: %s", e.ID, e.ExitCode, e.Stderr)
	default:
		return fmt.Sprintf("subagent #%d exited with code %d", e.ID, e.ExitCode)
	}
}

// Options configures a Runner.
type Options struct {
	// Executable is the path to the current binary, usually from
	// os.Executable().
	Executable string
	// WorkDir is the working root passed to children via --work-dir.
	WorkDir string
	// ConfigPath forwards an explicit config file to children. Empty
	// means children resolve config the same way the parent did.
	ConfigPath string
	// Debug forwards --debug to children.
	Debug bool
	// Depth is the nesting depth of THIS process. The main agent runs
	// at depth 0.
	Depth int
	// MaxDepth bounds nesting. A child at Depth+1 > MaxDepth is never
	// started.
	MaxDepth int
	// Timeout is the wall-clock limit per child process. Zero disables
	// the limit.
	Timeout time.Duration
}

// Runner spawns sub-agent processes and folds their results into the
// shared context log.
type Runner struct {
	opts    Options
	store   *contextlog.Store
	logger  *logging.Logger
	counter int64

	// OnStart, OnComplete, and OnError observe the spawn lifecycle for
	// CLI progress output. All are optional.
	OnStart    func(id int, instruction string)
	OnComplete func(id int, output string)
	OnError    func(id int, err error)
}

// NewRunner creates a Runner. The store must be the same context log
// the children will read at startup.
func NewRunner(opts Options, store *contextlog.Store, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.New()
	}
	return &Runner{
		opts:   opts,
		store:  store,
		logger: logger.WithComponent("subagent"),
	}
}

// Spawn runs one sub-agent to completion and returns its output
// prefixed with a context snapshot. The spawn instruction is appended
// to the context log before the child starts, so the child's own
// snapshot includes it; the child's trimmed result is appended after
// it exits.
func (r *Runner) Spawn(ctx context.Context, instruction string) (string, error) {
	childDepth := r.opts.Depth + 1
	if childDepth > r.opts.MaxDepth {
		return "", fmt.Errorf("subagent nesting depth %d exceeds the maximum of %d", childDepth, r.opts.MaxDepth)
	}

	id := int(atomic.AddInt64(&r.counter, 1))

	ctx, span := tracer.Start(ctx, "subagent.spawn")
	span.SetAttributes(
		attribute.Int("subagent.id", id),
		attribute.Int("subagent.depth", childDepth),
	)
	defer span.End()

	if err := r.store.Append(fmt.Sprintf("spawn #%d", id), instruction); err != nil {
		return "", fmt.Errorf("record spawn in context log: %w", err)
	}

	r.logger.SubAgentStart(fmt.Sprintf("#%d", id), childDepth)
	if r.OnStart != nil {
		r.OnStart(id, instruction)
	}

	runCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	args := []string{
		"run",
		"--role", "subagent",
		"--depth", strconv.Itoa(childDepth),
		"--once",
		"--work-dir", r.opts.WorkDir,
	}
	if r.opts.ConfigPath != "" {
		args = append(args, "--config", r.opts.ConfigPath)
	}
	if r.opts.Debug {
		args = append(args, "--debug")
	}
	args = append(args, instruction)

	cmd := exec.CommandContext(runCtx, r.opts.Executable, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runErr != nil {
		spawnErr := &SpawnError{ID: id, Stderr: strings.TrimSpace(stderr.String())}
		var exitErr *exec.ExitError
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			spawnErr.Timeout = true
		case errors.As(runErr, &exitErr):
			spawnErr.ExitCode = exitErr.ExitCode()
		default:
			return "", r.fail(span, id, duration, fmt.Errorf("subagent #%d failed to start: %w", id, runErr))
		}
		return "", r.fail(span, id, duration, spawnErr)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", r.fail(span, id, duration, &SpawnError{
			ID:       id,
			NoOutput: true,
			Stderr:   strings.TrimSpace(stderr.String()),
		})
	}

	trimmed := strings.Join(strings.Fields(out), " ")
	if runes := []rune(trimmed); len(runes) > maxDoneChars {
		trimmed = string(runes[:maxDoneChars])
	}
	if err := r.store.Append(fmt.Sprintf("done #%d", id), trimmed); err != nil {
		return "", r.fail(span, id, duration, fmt.Errorf("record completion in context log: %w", err))
	}

	snapshot, err := r.store.Snapshot()
	if err != nil {
		return "", r.fail(span, id, duration, fmt.Errorf("read context snapshot: %w", err))
	}

	r.logger.SubAgentEnd(fmt.Sprintf("#%d", id), duration, nil)
	if r.OnComplete != nil {
		r.OnComplete(id, out)
	}

	return "[Context snapshot]\n" + strings.TrimRight(snapshot, "\n") + "\n\n" + out, nil
}

func (r *Runner) fail(span trace.Span, id int, duration time.Duration, err error) error {
	span.RecordError(err)
	r.logger.SubAgentEnd(fmt.Sprintf("#%d", id), duration, err)
	if r.OnError != nil {
		r.OnError(id, err)
	}
	return err
}
