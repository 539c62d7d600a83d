package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/wolverine5550/clausecheck/internal/domain/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFSNotifyWatcher_Creation(t *testing.T) {
	watcher, err := NewFSNotifyWatcher([]string{".txt", ".pdf"}, 0, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()
}

func TestFSNotifyWatcher_DefaultExtensions(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	if len(watcher.extensions) != len(DefaultExtensions) {
		t.Errorf("expected %d default extensions, got %d", len(DefaultExtensions), len(watcher.extensions))
	}
	if !watcher.isWatchedExtension("/inbox/MSA.DOCX") {
		t.Error("extension match should ignore case")
	}
}

func waitEvent(t *testing.T, events <-chan ports.FileEvent, timeout time.Duration) (ports.FileEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-events:
		return ev, ok
	case <-time.After(timeout):
		return ports.FileEvent{}, false
	}
}

func TestFSNotifyWatcher_WatchDirectory(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFSNotifyWatcher([]string{".txt"}, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	path := filepath.Join(dir, "nda.txt")
	if err := os.WriteFile(path, []byte("1. Term."), 0o644); err != nil {
		t.Fatal(err)
	}

	ev, ok := waitEvent(t, events, 2*time.Second)
	if !ok {
		t.Fatal("timeout waiting for event")
	}
	if ev.Operation != ports.FileCreated {
		t.Errorf("expected create event, got %v", ev.Operation)
	}
	if ev.Path != path {
		t.Errorf("unexpected path %s", ev.Path)
	}
}

func TestFSNotifyWatcher_SettleCoalescesWrites(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFSNotifyWatcher([]string{".txt"}, 150*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "msa.txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		f.WriteString("1. Clause.\n")
		f.Sync()
		time.Sleep(20 * time.Millisecond)
	}
	f.Close()

	ev, ok := waitEvent(t, events, 2*time.Second)
	if !ok {
		t.Fatal("timeout waiting for event")
	}
	if ev.Operation != ports.FileCreated {
		t.Errorf("expected coalesced create, got %v", ev.Operation)
	}

	if extra, ok := waitEvent(t, events, 400*time.Millisecond); ok {
		t.Errorf("expected a single event, also got %v for %s", extra.Operation, extra.Path)
	}
}

func TestFSNotifyWatcher_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFSNotifyWatcher([]string{".txt"}, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}

	os.WriteFile(filepath.Join(dir, "test.json"), []byte("{}"), 0o644)

	if ev, ok := waitEvent(t, events, 300*time.Millisecond); ok {
		t.Errorf("should not receive event for .json, got %v", ev)
	}
}

func TestFSNotifyWatcher_Remove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	watcher, err := NewFSNotifyWatcher([]string{".txt"}, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	ev, ok := waitEvent(t, events, 2*time.Second)
	if !ok {
		t.Fatal("timeout waiting for delete event")
	}
	if ev.Operation != ports.FileDeleted {
		t.Errorf("expected delete event, got %v", ev.Operation)
	}
}

func TestFSNotifyWatcher_StopClosesEvents(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}

	events, err := watcher.Watch(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := watcher.Stop(); err != nil {
		t.Errorf("stop failed: %v", err)
	}
	if err := watcher.Stop(); err != nil {
		t.Errorf("second stop failed: %v", err)
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Error("events channel not closed after Stop")
	}
}

func TestFSNotifyWatcher_WatchMissingDir(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	if _, err := watcher.Watch(context.Background(), "/nonexistent/inbox"); err == nil {
		t.Error("should fail for a missing directory")
	}
}
