package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/cardweb/internal/checksum"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("---\nid: c-1\n---\nBody\n")
	if err := s.Write(CardPath("c-1"), content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("c-1.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if !s.Exists("c-1.md") {
		t.Error("Exists = false after write")
	}
	if s.Exists("c-2.md") {
		t.Error("Exists = true for missing card")
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("physics/gravity.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("physics/gravity.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDeleteAndMove(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("old.md", []byte("data"))
	if err := s.Move("old.md", "sub/new.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := s.Read("old.md"); err == nil {
		t.Error("old path should not exist")
	}
	if err := s.Delete("sub/new.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists("sub/new.md") {
		t.Error("expected card to be gone after delete")
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("sub/b.md", []byte("b"))
	_ = s.Write("readme.txt", []byte("not a card"))
	_ = s.Write(".trash/c.md", []byte("hidden"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Path == "a.md" && it.Checksum != checksum.Sum([]byte("a")) {
			t.Errorf("checksum of a.md = %q", it.Checksum)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
		if s.Exists(p) {
			t.Errorf("Exists(%q) = true outside the vault", p)
		}
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("atomic.md", []byte("original content"))
	if err := s.Write("atomic.md", []byte("updated content")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != "updated content" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".cardweb-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_InvalidRoot(t *testing.T) {
	if _, err := NewFS("/tmp/cardweb-does-not-exist-" + t.Name()); err == nil {
		t.Error("expected error for non-existent dir")
	}
	f, _ := os.CreateTemp("", "cardweb-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestCardPathRoundTrip(t *testing.T) {
	if got := IDFromPath("sub/" + CardPath("c-42")); got != "c-42" {
		t.Errorf("IDFromPath = %q, want %q", got, "c-42")
	}
}
