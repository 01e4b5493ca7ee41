package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	// Info should pass
	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("info message should be logged")
	}

	line := buf.String()
	if !strings.HasPrefix(line, "INFO ") {
		t.Errorf("expected line to start with INFO, got %q", line)
	}
	if !strings.Contains(line, "info message") {
		t.Errorf("expected message in line, got %q", line)
	}
}

func TestLogger_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelDebug)

	logger.Debug("verbose detail")
	if !strings.Contains(buf.String(), "verbose detail") {
		t.Error("debug message should be logged at DEBUG level")
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("agent")
	logger.SetOutput(&buf)

	logger.Info("test message")

	if !strings.Contains(buf.String(), "[agent]") {
		t.Errorf("expected component tag in line, got %q", buf.String())
	}
}

func TestLogger_WithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithRunID("run-123")
	logger.SetOutput(&buf)

	logger.Info("test message")

	if !strings.Contains(buf.String(), "run=run-123") {
		t.Errorf("expected run ID in line, got %q", buf.String())
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Info("tool_call", map[string]interface{}{
		"tool": "read_file",
	})

	if !strings.Contains(buf.String(), "tool=read_file") {
		t.Errorf("expected field in line, got %q", buf.String())
	}
}

func TestLogger_ToolResult(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.ToolResult("write_file", 5*time.Millisecond, errors.New("permission denied"))

	line := buf.String()
	if !strings.HasPrefix(line, "ERROR") {
		t.Errorf("tool error should log at ERROR level, got %q", line)
	}
	if !strings.Contains(line, "error=permission denied") {
		t.Errorf("expected error field in line, got %q", line)
	}
}

func TestLogger_LimitTripped(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.LimitTripped("round_budget", map[string]interface{}{"rounds": 12})

	line := buf.String()
	if !strings.HasPrefix(line, "WARN") {
		t.Errorf("limit guard should log at WARN level, got %q", line)
	}
	if !strings.Contains(line, "guard=round_budget") {
		t.Errorf("expected guard field in line, got %q", line)
	}
}
