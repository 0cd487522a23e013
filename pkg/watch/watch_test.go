package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestTableWatcher_DetectsSave(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping watch test in short mode")
	}

	tmpDir := t.TempDir()
	tablePath := filepath.Join(tmpDir, "edits.csv")
	otherPath := filepath.Join(tmpDir, "other.csv")
	if err := os.WriteFile(tablePath, []byte("subject;where;delete;insert\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var calls int32
	changed := make(chan string, 4)
	tableWatcher := NewTableWatcher(tablePath, 50*time.Millisecond, func(path string) {
		atomic.AddInt32(&calls, 1)
		changed <- path
	})

	if err := tableWatcher.Watch(); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer tableWatcher.Stop()

	// Give the watcher time to initialize
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(otherPath, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(tablePath, []byte("subject;where;delete;insert\nex:a;;;\n"), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	select {
	case path := <-changed:
		if path != tablePath {
			t.Errorf("onChange path = %q, want %q", path, tablePath)
		}
	case <-time.After(3 * time.Second):
		// File watching can be flaky in CI environments, so we just log
		t.Log("Watch() did not detect file change within timeout (may be CI environment)")
		return
	}

	time.Sleep(200 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("onChange called %d times, want 1 for a burst of writes", got)
	}
}

func TestTableWatcher_MissingDirectory(t *testing.T) {
	tableWatcher := NewTableWatcher(filepath.Join(t.TempDir(), "absent", "edits.csv"), 0, func(string) {})
	if err := tableWatcher.Watch(); err == nil {
		tableWatcher.Stop()
		t.Error("Watch() of a missing directory should return error")
	}
}

func TestTableWatcher_NoPath(t *testing.T) {
	if err := NewTableWatcher("", 0, func(string) {}).Watch(); err == nil {
		t.Error("Watch() without a path should return error")
	}
}

func TestTableWatcher_RunStopsOnCancel(t *testing.T) {
	tablePath := filepath.Join(t.TempDir(), "edits.csv")
	if err := os.WriteFile(tablePath, nil, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	tableWatcher := NewTableWatcher(tablePath, 0, func(string) {})

	finished := make(chan error, 1)
	go func() { finished <- tableWatcher.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-finished:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	tableWatcher.Stop()
}
