package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReportsModifiedAndRemoved(t *testing.T) {
	dir := t.TempDir()
	shaderPath := filepath.Join(dir, "unlit.shadercfg")
	if err := os.WriteFile(shaderPath, []byte("initial"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	type event struct {
		path string
		kind ChangeKind
	}
	events := make(chan event, 8)

	w, err := NewWatcher([]string{".shadercfg"}, func(path string, kind ChangeKind) {
		events <- event{path, kind}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := os.WriteFile(shaderPath, []byte("changed"), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	select {
	case ev := <-events:
		if ev.kind != ChangeModified {
			t.Fatalf("expected ChangeModified, got %v", ev.kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for modification event")
	}

	if err := os.Remove(shaderPath); err != nil {
		t.Fatalf("remove file: %v", err)
	}

	select {
	case ev := <-events:
		if ev.kind != ChangeRemoved {
			t.Fatalf("expected ChangeRemoved, got %v", ev.kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for removal event")
	}
}

func TestWatcherIgnoresNonMatchingExtensions(t *testing.T) {
	dir := t.TempDir()
	events := make(chan string, 8)

	w, err := NewWatcher([]string{".shadercfg"}, func(path string, kind ChangeKind) {
		events <- path
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	select {
	case p := <-events:
		t.Fatalf("unexpected event for non-matching extension: %s", p)
	case <-time.After(300 * time.Millisecond):
	}
}
