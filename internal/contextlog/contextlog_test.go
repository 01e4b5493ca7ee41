package contextlog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
)

func TestAppendAndEntries(t *testing.T) {
	store := New(t.TempDir())

	if err := store.Append("main", "[spawn #1] survey the workspace"); err != nil {
		t.Fatalf("append error: %v", err)
	}
	if err := store.Append("subagent-1", "found 3 files"); err != nil {
		t.Fatalf("append error: %v", err)
	}

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("entries error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0].Source != "main" {
		t.Errorf("expected source main, got %s", entries[0].Source)
	}
	if entries[0].Text != "[spawn #1] survey the workspace" {
		t.Errorf("unexpected text: %q", entries[0].Text)
	}
	if entries[1].Source != "subagent-1" {
		t.Errorf("expected source subagent-1, got %s", entries[1].Source)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("entry timestamp should be set")
	}
}

func TestAppend_FlattensNewlines(t *testing.T) {
	store := New(t.TempDir())

	if err := store.Append("main", "line one\nline two\n\n  line three"); err != nil {
		t.Fatalf("append error: %v", err)
	}

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("entries error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("multi-line text must stay one entry, got %d", len(entries))
	}
	if entries[0].Text != "line one line two line three" {
		t.Errorf("expected flattened text, got %q", entries[0].Text)
	}
}

func TestSnapshot(t *testing.T) {
	store := New(t.TempDir())

	snap, err := store.Snapshot()
	if err != nil {
		t.Fatalf("snapshot error: %v", err)
	}
	if snap != "" {
		t.Errorf("missing log should read empty, got %q", snap)
	}

	store.Append("main", "observation")
	snap, err = store.Snapshot()
	if err != nil {
		t.Fatalf("snapshot error: %v", err)
	}
	if !strings.Contains(snap, "[main] observation") {
		t.Errorf("snapshot should carry the raw line, got %q", snap)
	}
	if !strings.HasSuffix(snap, "\n") {
		t.Error("entries are newline-delimited")
	}
}

func TestReset(t *testing.T) {
	store := New(t.TempDir())

	store.Append("main", "stale observation")
	if err := store.Reset(); err != nil {
		t.Fatalf("reset error: %v", err)
	}

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("entries error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty log after reset, got %d entries", len(entries))
	}
}

func TestEntries_MissingFile(t *testing.T) {
	store := New(t.TempDir())

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("missing log should not error: %v", err)
	}
	if entries != nil {
		t.Errorf("expected no entries, got %v", entries)
	}
}

func TestEntries_ToleratesForeignLines(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	if err := store.Append("main", "good entry"); err != nil {
		t.Fatalf("append error: %v", err)
	}

	f, err := os.OpenFile(store.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.WriteString("a line without any framing\n")
	f.Close()

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("entries error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Text != "a line without any framing" {
		t.Errorf("foreign line should be kept as text, got %q", entries[1].Text)
	}
	if entries[1].Source != "" {
		t.Errorf("foreign line has no source, got %q", entries[1].Source)
	}
}

func TestAppend_Concurrent(t *testing.T) {
	store := New(t.TempDir())

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				source := fmt.Sprintf("subagent-%d", g)
				if err := store.Append(source, fmt.Sprintf("step %d", i)); err != nil {
					t.Errorf("append error: %v", err)
				}
			}
		}(g)
	}
	wg.Wait()

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("entries error: %v", err)
	}
	if len(entries) != 100 {
		t.Fatalf("expected 100 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Source, "subagent-") {
			t.Errorf("interleaved entry detected: %+v", e)
		}
		if !strings.HasPrefix(e.Text, "step ") {
			t.Errorf("interleaved entry detected: %+v", e)
		}
	}
}

func TestPath_UnderHiddenDir(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	if !strings.Contains(store.Path(), StateDirName) {
		t.Errorf("context log should live under %s, got %s", StateDirName, store.Path())
	}
	if !strings.HasPrefix(store.Path(), root) {
		t.Errorf("context log should live under the working root, got %s", store.Path())
	}
}
