package client

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session")
	if err := SaveToken(path, "the-token"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := LoadToken(path); got != "the-token" {
		t.Fatalf("expected the-token, got %q", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", perm)
	}
}

func TestSaveTokenOverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	if err := SaveToken(path, "first"); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := SaveToken(path, "second"); err != nil {
		t.Fatalf("save second: %v", err)
	}
	if got := LoadToken(path); got != "second" {
		t.Fatalf("expected second, got %q", got)
	}

	// No temp files may linger after the rename.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the session file, found %d entries", len(entries))
	}
}

func TestLoadTokenMissingFile(t *testing.T) {
	if got := LoadToken(filepath.Join(t.TempDir(), "absent")); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}

func TestLoadTokenRejectsMalformedContent(t *testing.T) {
	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "session")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		return path
	}

	if got := LoadToken(write(t, "")); got != "" {
		t.Fatalf("empty file: expected no token, got %q", got)
	}
	if got := LoadToken(write(t, "\n\n")); got != "" {
		t.Fatalf("blank lines: expected no token, got %q", got)
	}
	if got := LoadToken(write(t, "tok\x00en\n")); got != "" {
		t.Fatalf("control characters: expected no token, got %q", got)
	}
	if got := LoadToken(write(t, "two tokens\n")); got != "" {
		t.Fatalf("embedded whitespace: expected no token, got %q", got)
	}
	// Trailing junk after the first line does not poison the token itself.
	if got := LoadToken(write(t, "the-token\nleftover garbage\n")); got != "the-token" {
		t.Fatalf("expected first-line token, got %q", got)
	}
}

func TestDeleteTokenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	if err := SaveToken(path, "tok"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := DeleteToken(path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := DeleteToken(path); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestSessionFilePathOverride(t *testing.T) {
	t.Setenv("PERCH_SESSION_FILE", "/tmp/custom-session")
	path, err := SessionFilePath()
	if err != nil {
		t.Fatalf("session file path: %v", err)
	}
	if path != "/tmp/custom-session" {
		t.Fatalf("expected override path, got %q", path)
	}
}
