// Package session records each agent run as a JSONL event log.
package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status constants for sessions.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Event types for the session log.
const (
	EventSystem    = "system"    // System prompt seeded into the transcript
	EventUser      = "user"      // User instruction
	EventAssistant = "assistant" // Model response

	EventToolCall   = "tool_call"   // Tool invocation dispatched
	EventToolResult = "tool_result" // Tool completed

	EventSubAgentStart = "subagent_start" // Sub-agent process spawned
	EventSubAgentEnd   = "subagent_end"   // Sub-agent process finished

	EventLimit = "limit" // Loop protection guard fired
)

// Session is one agent run: main or sub-agent.
type Session struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"` // main or subagent
	Instruction string    `json:"instruction"`
	Status      string    `json:"status"`
	Result      string    `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	Rounds      int       `json:"rounds,omitempty"`
	Events      []Event   `json:"events"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal state (not persisted)
	seqCounter uint64
	mu         sync.Mutex
}

// Event is a single entry in the run record. Replay tooling reads
// these back, so every field that matters for reconstruction is here.
type Event struct {
	SeqID     uint64    `json:"seq"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Source  string                 `json:"source,omitempty"` // main or subagent-N
	Content string                 `json:"content,omitempty"`
	Tool    string                 `json:"tool,omitempty"`
	CallID  string                 `json:"call_id,omitempty"`
	Args    map[string]interface{} `json:"args,omitempty"`
	IsError bool                   `json:"is_error,omitempty"`
	Error   string                 `json:"error,omitempty"`

	DurationMs int64  `json:"duration_ms,omitempty"`
	Round      int    `json:"round,omitempty"`
	Model      string `json:"model,omitempty"`
	TokensIn   int    `json:"tokens_in,omitempty"`
	TokensOut  int    `json:"tokens_out,omitempty"`
}

// nextSeqID returns the next sequence ID for this session.
func (s *Session) nextSeqID() uint64 {
	return atomic.AddUint64(&s.seqCounter, 1)
}

// stamp sequences the event into the session and returns the stored copy.
func (s *Session) stamp(event Event) Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.SeqID = s.nextSeqID()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.Events = append(s.Events, event)
	s.UpdatedAt = time.Now()
	return event
}

// AddEvent appends an event with automatic sequencing and returns its
// sequence number.
func (s *Session) AddEvent(event Event) uint64 {
	return s.stamp(event).SeqID
}

// Store is the interface for session persistence. Create writes the
// header, AppendEvent streams one event line, Finish writes the footer.
// A record without a footer is a run that died mid-flight; Load
// tolerates that.
type Store interface {
	Create(sess *Session) error
	AppendEvent(id string, event Event) error
	Finish(sess *Session) error
	Load(id string) (*Session, error)
}

// Manager ties a Session to its Store so callers record events with
// one call.
type Manager struct {
	store Store
}

// NewManager creates a new session manager.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Create starts a new session record.
func (m *Manager) Create(role, instruction string) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:          uuid.NewString(),
		Role:        role,
		Instruction: instruction,
		Status:      StatusRunning,
		Events:      []Event{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.Create(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// AddEvent sequences the event into the session and streams it to disk.
func (m *Manager) AddEvent(sess *Session, event Event) error {
	return m.store.AppendEvent(sess.ID, sess.stamp(event))
}

// Finish closes the session record.
func (m *Manager) Finish(sess *Session, status, result string, runErr error) error {
	sess.Status = status
	sess.Result = result
	if runErr != nil {
		sess.Error = runErr.Error()
	}
	sess.UpdatedAt = time.Now()
	return m.store.Finish(sess)
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	return m.store.Load(id)
}

// JSONL record types for the streaming format.
const (
	RecordTypeHeader = "header" // Session metadata (first line)
	RecordTypeEvent  = "event"  // Individual event
	RecordTypeFooter = "footer" // Final state (last line, absent if the run died)
)

// JSONLRecord is a wrapper for JSONL lines with type discrimination.
// Footer fields carry distinct JSON names so they never collide with
// the embedded Event's fields.
type JSONLRecord struct {
	RecordType string `json:"_type"`

	// Header fields (when _type == "header")
	ID          string    `json:"id,omitempty"`
	Role        string    `json:"role,omitempty"`
	Instruction string    `json:"instruction,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`

	// Event fields (when _type == "event")
	*Event `json:",omitempty"`

	// Footer fields (when _type == "footer")
	Status    string    `json:"status,omitempty"`
	Result    string    `json:"result,omitempty"`
	RunError  string    `json:"run_error,omitempty"`
	Rounds    int       `json:"rounds,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// FileStore implements Store on a directory of <id>.jsonl files.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a new file-based store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store's directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".jsonl")
}

// Create writes the header line for a new session file.
func (s *FileStore) Create(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	f, err := os.Create(s.path(sess.ID))
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer f.Close()

	return writeLine(f, JSONLRecord{
		RecordType:  RecordTypeHeader,
		ID:          sess.ID,
		Role:        sess.Role,
		Instruction: sess.Instruction,
		CreatedAt:   sess.CreatedAt,
	})
}

// AppendEvent streams one event line onto the session file.
func (s *FileStore) AppendEvent(id string, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(id), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	return writeLine(f, JSONLRecord{
		RecordType: RecordTypeEvent,
		Event:      &event,
	})
}

// Finish appends the footer line.
func (s *FileStore) Finish(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(sess.ID), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	return writeLine(f, JSONLRecord{
		RecordType: RecordTypeFooter,
		Status:     sess.Status,
		Result:     sess.Result,
		RunError:   sess.Error,
		Rounds:     sess.Rounds,
		UpdatedAt:  sess.UpdatedAt,
	})
}

// writeLine writes a single JSONL record.
func writeLine(f *os.File, record JSONLRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	if _, err := f.WriteString("\n"); err != nil {
		return err
	}
	return nil
}

// Load reads a session record back.
func (s *FileStore) Load(id string) (*Session, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sess := &Session{
		Events: []Event{},
		// A record with no footer belongs to a run still in flight
		// or one that died; either way it never completed.
		Status: StatusRunning,
	}

	// bufio.Reader instead of Scanner - no line length limits
	reader := bufio.NewReader(f)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				if len(bytes.TrimSpace(line)) > 0 {
					if parseErr := parseJSONLLine(line, sess); parseErr != nil {
						return nil, parseErr
					}
				}
				break
			}
			return nil, fmt.Errorf("error reading session record: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		if err := parseJSONLLine(line, sess); err != nil {
			return nil, err
		}
	}

	// Restore sequence counter from last event
	if len(sess.Events) > 0 {
		sess.seqCounter = sess.Events[len(sess.Events)-1].SeqID
	}

	return sess, nil
}

// parseJSONLLine folds a single record into the session.
func parseJSONLLine(line []byte, sess *Session) error {
	var record JSONLRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return fmt.Errorf("failed to parse session line: %w", err)
	}

	switch record.RecordType {
	case RecordTypeHeader:
		sess.ID = record.ID
		sess.Role = record.Role
		sess.Instruction = record.Instruction
		sess.CreatedAt = record.CreatedAt

	case RecordTypeEvent:
		if record.Event != nil {
			sess.Events = append(sess.Events, *record.Event)
		}

	case RecordTypeFooter:
		sess.Status = record.Status
		sess.Result = record.Result
		sess.Error = record.RunError
		sess.Rounds = record.Rounds
		sess.UpdatedAt = record.UpdatedAt
	}

	return nil
}

// ListIDs returns session IDs sorted newest first.
func (s *FileStore) ListIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	type idTime struct {
		id  string
		mod time.Time
	}
	var found []idTime
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, idTime{
			id:  strings.TrimSuffix(e.Name(), ".jsonl"),
			mod: info.ModTime(),
		})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].mod.After(found[j].mod)
	})

	ids := make([]string, len(found))
	for i, f := range found {
		ids[i] = f.id
	}
	return ids, nil
}
