package editor

import (
	"errors"
	"os"
	"testing"

	"github.com/glycin-project/glycin/internal/wiretypes"
)

func TestApplyToSparsePatch(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "editor-apply-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	path := f.Name()
	if _, err := f.Write([]byte{0x00, 0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f.Close()

	out := NewSparsePatch([]ByteChange{{Offset: 1, Value: 6}}, true)
	if !out.IsSparse() {
		t.Fatal("expected sparse output")
	}
	if err := ApplyTo(path, out); err != nil {
		t.Fatalf("ApplyTo: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := []byte{0x00, 0x06, 0x02, 0x03}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %x want %x", i, got[i], want[i])
		}
	}
}

func TestApplyToOutOfBounds(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "editor-apply-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	path := f.Name()
	f.Write([]byte{0x00})
	f.Close()

	out := NewSparsePatch([]ByteChange{{Offset: 5, Value: 1}}, true)
	if err := ApplyTo(path, out); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
}

func TestApplyToRejectsCompleteOutput(t *testing.T) {
	complete := NewSparseComplete(wiretypes.BinaryData{}, true)
	if complete.IsSparse() {
		t.Fatal("expected a non-sparse output")
	}
	err := ApplyTo("/nonexistent/path/should/not/be/opened", complete)
	if !errors.Is(err, ErrUnchanged) {
		t.Fatalf("expected ErrUnchanged, got %v", err)
	}
}
