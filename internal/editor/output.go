// Package editor implements the editor output model (C9): the two
// shapes a codec helper's edit can take — a handful of byte-level
// patches applicable in place, or a fully re-encoded buffer — and how a
// caller applies either one to a target file.
//
// Grounded on the reference implementation's glycin-utils/src/editing.rs
// for the concept; the concrete split into ByteChanges +
// EditorOutputInfo{Lossless} is this spec's resolution of the upstream
// draft's inconsistent editor-API shapes (see DESIGN.md).
package editor

import (
	"fmt"
	"os"

	"github.com/glycin-project/glycin/internal/wiretypes"
)

// ByteChange is a single (offset, replacement byte) pair.
type ByteChange struct {
	Offset uint64
	Value  byte
}

// EditorOutputInfo rides alongside either output shape.
type EditorOutputInfo struct {
	Lossless bool
}

// SparseEditorOutput is a discriminated union: exactly one of
// ByteChanges or Data is populated, enforced by the two constructors
// below rather than by a naked struct literal.
type SparseEditorOutput struct {
	ByteChanges []ByteChange
	Data        *wiretypes.BinaryData
	Info        EditorOutputInfo
}

// NewSparsePatch builds a byte-patch SparseEditorOutput.
func NewSparsePatch(changes []ByteChange, lossless bool) SparseEditorOutput {
	return SparseEditorOutput{ByteChanges: changes, Info: EditorOutputInfo{Lossless: lossless}}
}

// NewSparseComplete builds a SparseEditorOutput that actually carries a
// complete re-encoded buffer (a helper may decide mid-edit that no sparse
// patch is possible even though ApplySparse was requested).
func NewSparseComplete(data wiretypes.BinaryData, lossless bool) SparseEditorOutput {
	return SparseEditorOutput{Data: &data, Info: EditorOutputInfo{Lossless: lossless}}
}

// IsSparse reports whether this output is a byte-patch list.
func (o SparseEditorOutput) IsSparse() bool { return o.Data == nil }

// CompleteEditorOutput is a full re-encoded image buffer.
type CompleteEditorOutput struct {
	Data wiretypes.BinaryData
	Info EditorOutputInfo
}

// ApplyTo applies a sparse output's byte changes to path in place. It is
// an error to call this on an output that is not sparse: the caller must
// write the returned bytes itself in that case, per spec (ApplyTo
// reports Unchanged for complete outputs).
func ApplyTo(path string, out SparseEditorOutput) error {
	if !out.IsSparse() {
		return ErrUnchanged
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("editor: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("editor: stat %s: %w", path, err)
	}
	size := uint64(info.Size())

	for _, change := range out.ByteChanges {
		if change.Offset >= size {
			return fmt.Errorf("editor: byte change offset %d out of bounds (file size %d)", change.Offset, size)
		}
		if _, err := f.WriteAt([]byte{change.Value}, int64(change.Offset)); err != nil {
			return fmt.Errorf("editor: writing byte at offset %d: %w", change.Offset, err)
		}
	}
	return nil
}

// ErrUnchanged is returned by ApplyTo when the output it was given is a
// complete rewrite rather than a sparse patch: there is nothing to apply
// in place, and the caller must write the returned bytes itself.
var ErrUnchanged = fmt.Errorf("editor: output is a complete rewrite; caller must write the returned bytes")
