package memfd

import (
	"bytes"
	"testing"
)

func TestSealThenReadOnlyMapping(t *testing.T) {
	seg, err := Create("glycin-test", 16)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer seg.Close()

	w, err := seg.MapWritable()
	if err != nil {
		t.Fatalf("MapWritable: %v", err)
	}
	copy(w.Bytes(), []byte("hello, glycin!!!"))
	if err := w.Close(); err != nil {
		t.Fatalf("closing write mapping: %v", err)
	}

	if err := seg.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := seg.MapWritable(); err == nil {
		t.Fatal("expected MapWritable to fail after Seal")
	}

	r, err := seg.MapReadOnly()
	if err != nil {
		t.Fatalf("MapReadOnly: %v", err)
	}
	defer r.Close()

	if !bytes.Equal(r.Bytes(), []byte("hello, glycin!!!")) {
		t.Fatalf("unexpected contents: %q", r.Bytes())
	}
}

func TestFromFDRecoversSize(t *testing.T) {
	seg, err := Create("glycin-test-size", 64)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer seg.Close()

	recovered, err := FromFD(seg.FD())
	if err != nil {
		t.Fatalf("FromFD: %v", err)
	}
	if recovered.Size() != 64 {
		t.Fatalf("Size: got %d, want 64", recovered.Size())
	}
}
