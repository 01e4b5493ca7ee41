package replay

import (
	"fmt"
	"io"
	"sort"

	"github.com/vinayprograms/taskagent/internal/session"
)

// Stats aggregates one session's timing and usage.
type Stats struct {
	Events      int
	WallClockMs int64

	ModelCalls int
	TokensIn   int
	TokensOut  int

	ToolCalls   int
	ToolErrors  int
	ToolTotalMs int64
	PerTool     map[string]*ToolStats

	SubAgents   int
	SubAgentMs  int64
	SubAgentErr int

	LimitTrips int
}

// ToolStats aggregates one tool's usage.
type ToolStats struct {
	Calls   int
	Errors  int
	TotalMs int64
}

// Collect computes aggregate statistics from a session's events.
func Collect(sess *session.Session) *Stats {
	s := &Stats{
		Events:  len(sess.Events),
		PerTool: make(map[string]*ToolStats),
	}

	for i := range sess.Events {
		e := &sess.Events[i]
		switch e.Type {
		case session.EventAssistant:
			s.ModelCalls++
			s.TokensIn += e.TokensIn
			s.TokensOut += e.TokensOut

		case session.EventToolResult:
			s.ToolCalls++
			s.ToolTotalMs += e.DurationMs
			ts := s.PerTool[e.Tool]
			if ts == nil {
				ts = &ToolStats{}
				s.PerTool[e.Tool] = ts
			}
			ts.Calls++
			ts.TotalMs += e.DurationMs
			if e.IsError {
				s.ToolErrors++
				ts.Errors++
			}

		case session.EventSubAgentEnd:
			s.SubAgents++
			s.SubAgentMs += e.DurationMs
			if e.IsError || e.Error != "" {
				s.SubAgentErr++
			}

		case session.EventLimit:
			s.LimitTrips++
		}
	}

	if n := len(sess.Events); n > 0 {
		first := sess.Events[0].Timestamp
		last := sess.Events[n-1].Timestamp
		if last.After(first) {
			s.WallClockMs = last.Sub(first).Milliseconds()
		}
	}

	return s
}

// PrintStats loads a session record and prints its aggregate view.
func (r *Replayer) PrintStats(path string) error {
	sess, err := r.loadSession(path)
	if err != nil {
		return err
	}
	return writeStats(r.output, sess, Collect(sess))
}

func writeStats(out io.Writer, sess *session.Session, s *Stats) error {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %s\n", titleStyle.Render("STATS"), valueStyle.Render(sess.ID))
	fmt.Fprintln(out, divider)

	fmt.Fprintf(out, "%s %d\n", labelStyle.Render("Events:      "), s.Events)
	fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Wall clock:  "), valueStyle.Render(fmt.Sprintf("%dms", s.WallClockMs)))
	if sess.Rounds > 0 {
		fmt.Fprintf(out, "%s %d\n", labelStyle.Render("Rounds:      "), sess.Rounds)
	}
	fmt.Fprintf(out, "%s %d  %s %d→%d\n",
		labelStyle.Render("Model calls: "), s.ModelCalls,
		labelStyle.Render("tokens:"), s.TokensIn, s.TokensOut)

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %d calls, %d failed, %dms total\n",
		toolStyle.Render("TOOLS:"), s.ToolCalls, s.ToolErrors, s.ToolTotalMs)

	names := make([]string, 0, len(s.PerTool))
	for name := range s.PerTool {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ts := s.PerTool[name]
		avg := int64(0)
		if ts.Calls > 0 {
			avg = ts.TotalMs / int64(ts.Calls)
		}
		line := fmt.Sprintf("  %-18s %3d calls  avg %4dms", name, ts.Calls, avg)
		if ts.Errors > 0 {
			line += errorStyle.Render(fmt.Sprintf("  %d failed", ts.Errors))
		}
		fmt.Fprintln(out, line)
	}

	if s.SubAgents > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s %d spawned, %d failed, %dms total\n",
			subagentStyle.Render("SUBAGENTS:"), s.SubAgents, s.SubAgentErr, s.SubAgentMs)
	}
	if s.LimitTrips > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s %d\n", limitStyle.Render("LIMIT TRIPS:"), s.LimitTrips)
	}
	fmt.Fprintln(out)

	return nil
}
