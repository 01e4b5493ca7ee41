// Package contextlog implements the shared append-only context store
// that carries observations between rounds and across agent processes.
package contextlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// StateDirName is the hidden directory under the working root that
	// holds run state (context log, session records).
	StateDirName = ".taskagent"

	fileName   = "context.log"
	timeLayout = "2006-01-02T15:04:05Z"
)

// Entry is one context observation.
type Entry struct {
	Source    string
	Text      string
	Timestamp time.Time
}

// Store is the append-only context log. During a run it only grows;
// Reset is called once at main-agent startup, never mid-run.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a Store rooted at the working directory.
func New(workRoot string) *Store {
	return &Store{path: filepath.Join(workRoot, StateDirName, fileName)}
}

// Path returns the log file location.
func (s *Store) Path() string {
	return s.path
}

// Append adds one entry to the log. The text is flattened onto a single
// line and written with one O_APPEND write, so appends from concurrent
// agent processes cannot interleave partial entries.
func (s *Store) Append(source, text string) error {
	flat := strings.Join(strings.Fields(text), " ")
	line := fmt.Sprintf("%s [%s] %s\n", time.Now().UTC().Format(timeLayout), source, flat)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create context dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open context log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write([]byte(line)); err != nil {
		return fmt.Errorf("failed to append context entry: %w", err)
	}
	return nil
}

// Entries parses the full accumulated log in order. A missing log file
// reads as empty. Lines that predate the current format are kept with
// their raw text and no source attribution.
func (s *Store) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read context log: %w", err)
	}

	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, parseLine(line))
	}
	return entries, nil
}

// parseLine splits "TIMESTAMP [source] text", tolerating lines that
// miss either prefix.
func parseLine(line string) Entry {
	var e Entry
	rest := line

	if i := strings.IndexByte(rest, ' '); i > 0 {
		if ts, err := time.Parse(timeLayout, rest[:i]); err == nil {
			e.Timestamp = ts
			rest = rest[i+1:]
		}
	}
	if strings.HasPrefix(rest, "[") {
		if j := strings.IndexByte(rest, ']'); j > 0 {
			e.Source = rest[1:j]
			rest = strings.TrimPrefix(rest[j+1:], " ")
		}
	}
	e.Text = rest
	return e
}

// Snapshot returns the raw accumulated log text. A missing log reads
// as empty.
func (s *Store) Snapshot() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read context log: %w", err)
	}
	return string(data), nil
}

// Reset truncates the log, starting a fresh run.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create context dir: %w", err)
	}
	if err := os.WriteFile(s.path, nil, 0644); err != nil {
		return fmt.Errorf("failed to reset context log: %w", err)
	}
	return nil
}
