package glycin

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoaderOpenSourceFromFileRewinds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")
	content := strings.Repeat("a", sniffHeadBytes) + "REST-OF-FILE"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	l := NewLoaderFromFile(nil, path)
	full, head, baseDir, cleanup, err := l.openSource()
	if err != nil {
		t.Fatalf("openSource: %v", err)
	}
	defer cleanup()

	if len(head) != sniffHeadBytes {
		t.Fatalf("expected %d head bytes, got %d", sniffHeadBytes, len(head))
	}
	if baseDir != dir {
		t.Errorf("baseDir = %q, want %q", baseDir, dir)
	}

	gotFull, err := io.ReadAll(full)
	if err != nil {
		t.Fatalf("reading full stream: %v", err)
	}
	if string(gotFull) != content {
		t.Errorf("full stream did not rewind cleanly: got %d bytes, want %d", len(gotFull), len(content))
	}
}

func TestLoaderOpenSourceFromReaderPreservesHead(t *testing.T) {
	content := strings.Repeat("b", sniffHeadBytes/2) + "TAIL-DATA"
	l := NewLoaderFromReader(nil, strings.NewReader(content))

	full, head, baseDir, cleanup, err := l.openSource()
	if err != nil {
		t.Fatalf("openSource: %v", err)
	}
	defer cleanup()

	if baseDir != "" {
		t.Errorf("expected empty baseDir for reader-sourced loader, got %q", baseDir)
	}
	if !bytes.Equal(head, []byte(content)) {
		t.Errorf("head = %q, want %q (shorter than sniffHeadBytes, ReadFull still returns what's available)", head, content)
	}

	gotFull, err := io.ReadAll(full)
	if err != nil {
		t.Fatalf("reading full stream: %v", err)
	}
	if string(gotFull) != content {
		t.Errorf("reconstructed full stream = %q, want %q", gotFull, content)
	}
}

func TestLoaderUsedTwice(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	l := NewLoaderFromFile(nil, path)
	l.mu.Lock()
	l.used = true
	l.mu.Unlock()

	if _, err := l.Load(nil); err == nil {
		t.Fatal("expected an error calling Load on an already-used Loader")
	}
}
