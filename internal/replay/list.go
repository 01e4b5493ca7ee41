package replay

import (
	"fmt"
	"io"

	"github.com/vinayprograms/taskagent/internal/session"
)

// ListSessions prints one line per recorded session, newest first, so
// a user can find the ID to replay.
func ListSessions(out io.Writer, store *session.FileStore) error {
	ids, err := store.ListIDs()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "No sessions recorded.")
		return nil
	}

	for _, id := range ids {
		sess, err := store.Load(id)
		if err != nil {
			fmt.Fprintf(out, "%s  %s\n", dimStyle.Render(id), errorStyle.Render(fmt.Sprintf("unreadable: %v", err)))
			continue
		}

		status := warnStyle
		switch sess.Status {
		case session.StatusComplete:
			status = successStyle
		case session.StatusFailed:
			status = errorStyle
		}

		fmt.Fprintf(out, "%s  %s  %-8s  %-9s  %s\n",
			valueStyle.Render(id),
			dimStyle.Render(sess.CreatedAt.Format("2006-01-02 15:04:05")),
			sess.Role,
			status.Render(sess.Status),
			truncateLine(sess.Instruction, 60))
	}
	return nil
}
