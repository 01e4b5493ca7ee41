package main

// The wizard itself is tested in internal/setup; driving the bubbletea
// program end to end needs a TTY.

import "testing"

func TestRunSetup_Integration(t *testing.T) {
	t.Skip("setup is tested in internal/setup package")
}
