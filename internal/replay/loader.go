package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vinayprograms/taskagent/internal/session"
)

// loadSession reads one session record from an arbitrary path. Unlike
// the session store it does not need the file to live in the store
// directory, and it caps content fields so a huge tool output cannot
// exhaust memory. A record without a footer loads as a running session.
func (r *Replayer) loadSession(path string) (*session.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	defer f.Close()

	sess := &session.Session{
		Status: session.StatusRunning,
		Events: []session.Event{},
	}

	// bufio.Reader instead of Scanner: event lines have no length limit.
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				if len(bytes.TrimSpace(line)) > 0 {
					if parseErr := r.parseLine(line, sess); parseErr != nil {
						return nil, parseErr
					}
				}
				break
			}
			return nil, fmt.Errorf("failed to read session file: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if err := r.parseLine(line, sess); err != nil {
			return nil, err
		}
	}

	if sess.ID == "" {
		return nil, fmt.Errorf("%s is not a session record: no header line", path)
	}
	return sess, nil
}

func (r *Replayer) parseLine(line []byte, sess *session.Session) error {
	var record session.JSONLRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return fmt.Errorf("failed to parse session line: %w", err)
	}

	switch record.RecordType {
	case session.RecordTypeHeader:
		sess.ID = record.ID
		sess.Role = record.Role
		sess.Instruction = record.Instruction
		sess.CreatedAt = record.CreatedAt

	case session.RecordTypeEvent:
		if record.Event == nil {
			return nil
		}
		evt := *record.Event
		if r.maxContentSize > 0 && len(evt.Content) > r.maxContentSize {
			evt.Content = evt.Content[:r.maxContentSize] +
				fmt.Sprintf("\n... [truncated, %d bytes total]", len(record.Event.Content))
		}
		sess.Events = append(sess.Events, evt)

	case session.RecordTypeFooter:
		sess.Status = record.Status
		sess.Result = record.Result
		sess.Error = record.RunError
		sess.Rounds = record.Rounds
		sess.UpdatedAt = record.UpdatedAt
	}

	return nil
}
