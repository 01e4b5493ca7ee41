package replay

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/taskagent/internal/session"
)

// Replayer reads and formats session records.
type Replayer struct {
	output         io.Writer
	verbosity      int // 0=normal, 1=verbose (-v), 2=very verbose (-vv)
	maxContentSize int // cap per content field (0 = unlimited)
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithMaxContentSize limits content field size so huge tool outputs do
// not blow up memory when loading a session.
func WithMaxContentSize(size int) Option {
	return func(r *Replayer) {
		r.maxContentSize = size
	}
}

// New creates a Replayer writing to output.
// verbosity: 0=normal, 1=verbose (-v), 2=very verbose (-vv)
func New(output io.Writer, verbosity int, opts ...Option) *Replayer {
	r := &Replayer{
		output:         output,
		verbosity:      verbosity,
		maxContentSize: 50 * 1024,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReplayFile loads a session record and prints its timeline.
func (r *Replayer) ReplayFile(path string) error {
	sess, err := r.loadSession(path)
	if err != nil {
		return err
	}
	return r.Replay(sess)
}

// ReplayFileInteractive loads a session record into the pager.
func (r *Replayer) ReplayFileInteractive(path string) error {
	sess, err := r.loadSession(path)
	if err != nil {
		return err
	}

	var buf strings.Builder
	oldOutput := r.output
	r.output = &buf
	err = r.Replay(sess)
	r.output = oldOutput
	if err != nil {
		return err
	}

	p := newPager(fmt.Sprintf("Session: %s", sess.ID))
	return p.Run(buf.String())
}

// ReplayFileLive follows a session record that is still being written,
// re-rendering on every file change.
func (r *Replayer) ReplayFileLive(path string) error {
	render := func() (string, error) {
		sess, err := r.loadSession(path)
		if err != nil {
			return "", err
		}
		var buf strings.Builder
		oldOutput := r.output
		r.output = &buf
		err = r.Replay(sess)
		r.output = oldOutput
		if err != nil {
			return "", err
		}
		return buf.String(), nil
	}

	sess, err := r.loadSession(path)
	if err != nil {
		return err
	}

	p := newPager(fmt.Sprintf("Session: %s (LIVE)", sess.ID))
	return p.RunLive(path, render)
}

// Replay prints the formatted timeline of one session.
func (r *Replayer) Replay(sess *session.Session) error {
	fmt.Fprintln(r.output)
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("SESSION"), valueStyle.Render(sess.ID))
	fmt.Fprintln(r.output, divider)
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Role:       "), valueStyle.Render(sess.Role))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Status:     "), r.statusStyle(sess.Status).Render(sess.Status))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Created:    "), valueStyle.Render(sess.CreatedAt.Format(time.RFC3339)))
	if sess.Rounds > 0 {
		fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Rounds:     "), valueStyle.Render(fmt.Sprintf("%d", sess.Rounds)))
	}
	if sess.Instruction != "" {
		fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Instruction:"), valueStyle.Render(truncateLine(sess.Instruction, 100)))
	}
	fmt.Fprintln(r.output)

	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("TIMELINE"), dimStyle.Render(fmt.Sprintf("(%d events)", len(sess.Events))))
	fmt.Fprintln(r.output, divider)

	for i := range sess.Events {
		r.formatEvent(i+1, &sess.Events[i])
	}

	fmt.Fprintln(r.output)
	fmt.Fprintln(r.output, divider)
	switch sess.Status {
	case session.StatusComplete:
		fmt.Fprintln(r.output, successStyle.Render("COMPLETED"))
	case session.StatusFailed:
		fmt.Fprintf(r.output, "%s %s\n", errorStyle.Render("FAILED:"), valueStyle.Render(sess.Error))
	default:
		fmt.Fprintln(r.output, warnStyle.Render("RUNNING"))
	}
	fmt.Fprintln(r.output)

	return nil
}

func (r *Replayer) statusStyle(status string) lipgloss.Style {
	switch status {
	case session.StatusComplete:
		return successStyle
	case session.StatusFailed:
		return errorStyle
	default:
		return warnStyle
	}
}

// formatEvent prints one timeline row plus optional detail lines.
func (r *Replayer) formatEvent(seq int, event *session.Event) {
	ts := timeStyle.Render(event.Timestamp.Format("15:04:05"))
	seqNum := seqStyle.Render(fmt.Sprintf("%d", seq))

	switch event.Type {
	case session.EventSystem:
		fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, dimStyle.Render("SYSTEM"))
		if r.verbosity >= 1 && event.Content != "" {
			r.printContent(event.Content)
		}

	case session.EventUser:
		fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, flowStyle.Render("USER"))
		if event.Content != "" {
			r.printContent(event.Content)
		}

	case session.EventAssistant:
		meta := ""
		if event.Round > 0 {
			meta = dimStyle.Render(fmt.Sprintf(" (round %d)", event.Round))
		}
		fmt.Fprintf(r.output, "%s │ %s │ %s%s\n", seqNum, ts, flowStyle.Render("ASSISTANT"), meta)
		if r.verbosity >= 1 && event.Content != "" {
			r.printContent(event.Content)
		}
		if r.verbosity >= 2 && (event.TokensIn > 0 || event.TokensOut > 0) {
			fmt.Fprintf(r.output, "      │          │   %s %s  %s %d→%d\n",
				labelStyle.Render("model:"), valueStyle.Render(event.Model),
				labelStyle.Render("tokens:"), event.TokensIn, event.TokensOut)
		}

	case session.EventToolCall:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s%s\n", seqNum, ts,
			toolStyle.Render("TOOL CALL:"),
			valueStyle.Render(event.Tool),
			argsHint(event.Tool, event.Args))
		if r.verbosity >= 1 && len(event.Args) > 0 {
			r.printArgs(event.Args)
		}

	case session.EventToolResult:
		if event.IsError {
			fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seqNum, ts,
				toolStyle.Render("TOOL RESULT:"),
				errorStyle.Render(event.Tool+" FAILED"),
				dimStyle.Render(fmt.Sprintf("(%dms)", event.DurationMs)))
			r.printError(event.Content)
		} else {
			fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seqNum, ts,
				toolStyle.Render("TOOL RESULT:"),
				valueStyle.Render(event.Tool),
				dimStyle.Render(fmt.Sprintf("(%dms)", event.DurationMs)))
			if r.verbosity >= 1 && event.Content != "" {
				r.printContent(event.Content)
			}
		}

	case session.EventSubAgentStart:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
			subagentStyle.Render("SUBAGENT START:"),
			valueStyle.Render(event.Source))
		if event.Content != "" {
			fmt.Fprintf(r.output, "      │          │   %s %s\n",
				dimStyle.Render("task:"),
				dimStyle.Render(truncateLine(event.Content, 100)))
		}

	case session.EventSubAgentEnd:
		status := successStyle.Render("complete")
		if event.IsError || event.Error != "" {
			status = errorStyle.Render("failed")
		}
		fmt.Fprintf(r.output, "%s │ %s │ %s %s %s %s\n", seqNum, ts,
			subagentStyle.Render("SUBAGENT END:"),
			valueStyle.Render(event.Source),
			status,
			dimStyle.Render(fmt.Sprintf("(%dms)", event.DurationMs)))
		if event.Error != "" {
			r.printError(event.Error)
		} else if event.Content != "" {
			fmt.Fprintf(r.output, "      │          │   %s\n", subagentDimStyle.Render("output:"))
			r.printSubAgentOutput(event.Content)
		}

	case session.EventLimit:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
			limitStyle.Render("LIMIT:"),
			warnStyle.Render(event.Content))

	default:
		fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, dimStyle.Render(event.Type))
	}
}

// argsHint shows the one argument that identifies a call inline.
func argsHint(tool string, args map[string]interface{}) string {
	if args == nil {
		return ""
	}

	var hint string
	switch tool {
	case "read_file", "write_file", "append_to_file", "delete_file", "list_dir", "count_words", "read_file_chunk":
		if p, ok := args["path"].(string); ok {
			hint = truncateLine(p, 80)
		}
	case "rename_file":
		if p, ok := args["old_path"].(string); ok {
			hint = truncateLine(p, 80)
		}
	case "search_in_files":
		if term, ok := args["term"].(string); ok {
			hint = truncateLine(term, 60)
		}
	case "spawn_subagent":
		if task, ok := args["task"].(string); ok {
			hint = truncateLine(task, 60)
		}
	}

	if hint == "" {
		return ""
	}
	return dimStyle.Render(fmt.Sprintf(" [%s]", hint))
}

// printContent prints a content block indented under its timeline row.
func (r *Replayer) printContent(content string) {
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(r.output, "      │          │   %s\n", line)
	}
}

// printSubAgentOutput prints sub-agent output, first lines only unless
// verbose.
func (r *Replayer) printSubAgentOutput(content string) {
	lines := strings.Split(content, "\n")
	maxLines := 10
	if r.verbosity >= 1 {
		maxLines = 50
	}

	for i, line := range lines {
		if i >= maxLines {
			remaining := len(lines) - maxLines
			fmt.Fprintf(r.output, "      │          │     %s\n",
				subagentDimStyle.Render(fmt.Sprintf("... (%d more lines)", remaining)))
			break
		}
		fmt.Fprintf(r.output, "      │          │     %s\n", subagentDimStyle.Render(line))
	}
}

func (r *Replayer) printArgs(args map[string]interface{}) {
	for k, v := range args {
		fmt.Fprintf(r.output, "      │          │   %s: %v\n", labelStyle.Render(k), v)
	}
}

func (r *Replayer) printError(err string) {
	for _, line := range strings.Split(err, "\n") {
		fmt.Fprintf(r.output, "      │          │   %s\n", errorStyle.Render(line))
	}
}

// truncateLine flattens s to one line and cuts it at maxLen.
func truncateLine(s string, maxLen int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
