package prompts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManagerBuiltinPrompt(t *testing.T) {
	m, err := NewManager("", nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	sys := m.System()
	if !strings.Contains(sys, "Kunde") || !strings.Contains(sys, "```json") {
		t.Errorf("built-in prompt missing answer conventions")
	}
	if !strings.Contains(sys, "Tags:") {
		t.Errorf("built-in prompt missing tags convention")
	}
}

func TestManagerFileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system.md")
	if err := os.WriteFile(path, []byte("Du bist ein Testassistent.\n"), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}

	m, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if got := m.System(); got != "Du bist ein Testassistent." {
		t.Errorf("System() = %q, want file content", got)
	}
}

func TestManagerEmptyFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system.md")
	if err := os.WriteFile(path, []byte("   \n"), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}

	m, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if !strings.Contains(m.System(), "support team") {
		t.Errorf("expected built-in fallback for empty file")
	}
}

func TestManagerMissingFile(t *testing.T) {
	if _, err := NewManager(filepath.Join(t.TempDir(), "missing.md"), nil); err == nil {
		t.Fatal("expected error for missing prompt file")
	}
}

func TestManagerWatchPicksUpEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system.md")
	if err := os.WriteFile(path, []byte("erste Fassung"), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}

	m, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Watch(ctx); err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer m.Close()

	if err := os.WriteFile(path, []byte("zweite Fassung"), 0o644); err != nil {
		t.Fatalf("rewrite prompt: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if m.System() == "zweite Fassung" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("prompt not reloaded, still %q", m.System())
}
