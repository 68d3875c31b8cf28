package glycin

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/glycin-project/glycin/internal/editor"
	"github.com/glycin-project/glycin/internal/glyerr"
	"github.com/glycin-project/glycin/internal/hostproxy"
	"github.com/glycin-project/glycin/internal/mime"
	"github.com/glycin-project/glycin/internal/pool"
	"github.com/glycin-project/glycin/internal/wire"
	"github.com/glycin-project/glycin/internal/wiretypes"
)

// Editor rewrites a single image source. Like Loader, an Editor is
// single-use: the underlying helper handshake (init, then apply) only
// makes sense once per source.
type Editor struct {
	rt   *Runtime
	path string

	mu   sync.Mutex
	used bool
}

// NewEditor creates an Editor for the file at path.
func NewEditor(rt *Runtime, path string) *Editor {
	return &Editor{rt: rt, path: path}
}

func (e *Editor) acquire(ctx context.Context) (*pool.Lease, *hostproxy.RemoteProcess, string, error) {
	e.mu.Lock()
	if e.used {
		e.mu.Unlock()
		return nil, nil, "", glyerr.New(glyerr.KindLoaderUsedTwice, fmt.Errorf("glycin: Editor used twice on the same source"))
	}
	e.used = true
	e.mu.Unlock()

	head, filename, baseDir, err := sniffFile(e.path)
	if err != nil {
		return nil, nil, "", err
	}
	mimeType, err := mime.Detect(head, filename)
	if err != nil {
		return nil, nil, "", glyerr.Wrap(glyerr.KindUnknownContentType, err)
	}

	entry, err := e.rt.lookup(pool.KindEditor, mimeType)
	if err != nil {
		return nil, nil, "", err
	}

	mechanism := sandboxMechanism(e.rt.cfg.Sandbox.Mechanism)
	lease, err := e.rt.pool.Acquire(ctx, pool.KindEditor, entry.Hash(baseDir, true, mechanism.String()),
		e.rt.cfg.Pool.MaxParallelOperations, e.rt.spawnerFor(entry, baseDir, true))
	if err != nil {
		return nil, nil, "", err
	}
	return lease, lease.Handle().(*hostproxy.RemoteProcess), mimeType, nil
}

func (e *Editor) editRequest(mimeType string, ops wiretypes.Operations) ([]byte, error) {
	encoded, err := wiretypes.EncodeOperations(ops)
	if err != nil {
		return nil, fmt.Errorf("glycin: encoding edit operations: %w", err)
	}
	return wire.Marshal(struct {
		MIMEType   string `msgpack:"mime_type"`
		Operations []byte `msgpack:"operations"`
	}{MIMEType: mimeType, Operations: encoded})
}

// Apply sends operations to the editor helper and requests a sparse
// (byte-patch) result where possible.
func (e *Editor) Apply(ctx context.Context, ops wiretypes.Operations) (editor.SparseEditorOutput, error) {
	lease, rp, mimeType, err := e.acquire(ctx)
	if err != nil {
		return editor.SparseEditorOutput{}, err
	}
	defer lease.Release()

	payload, err := e.editRequest(mimeType, ops)
	if err != nil {
		return editor.SparseEditorOutput{}, err
	}

	reply, err := rp.Call(ctx, "editor.apply", payload)
	if err != nil {
		return editor.SparseEditorOutput{}, err
	}

	// As with a loaded frame's texture, a complete-rewrite result's
	// pixel/encoded buffer travels as an ancillary FD, not inline in
	// this msgpack body; see the same documented gap noted in
	// image.go's NextFrame.
	var out struct {
		ByteChanges []editor.ByteChange   `msgpack:"byte_changes,omitempty"`
		Data        *wiretypes.BinaryData `msgpack:"data,omitempty"`
		Lossless    bool                  `msgpack:"lossless"`
	}
	if err := wire.Unmarshal(reply, &out); err != nil {
		return editor.SparseEditorOutput{}, fmt.Errorf("glycin: decoding edit reply: %w", err)
	}
	if out.Data != nil {
		return editor.NewSparseComplete(*out.Data, out.Lossless), nil
	}
	return editor.NewSparsePatch(out.ByteChanges, out.Lossless), nil
}

// ApplyComplete sends operations to the editor helper and requests a
// complete re-encoded result.
func (e *Editor) ApplyComplete(ctx context.Context, ops wiretypes.Operations) (editor.CompleteEditorOutput, error) {
	lease, rp, mimeType, err := e.acquire(ctx)
	if err != nil {
		return editor.CompleteEditorOutput{}, err
	}
	defer lease.Release()

	payload, err := e.editRequest(mimeType, ops)
	if err != nil {
		return editor.CompleteEditorOutput{}, err
	}

	reply, err := rp.Call(ctx, "editor.apply_complete", payload)
	if err != nil {
		return editor.CompleteEditorOutput{}, err
	}

	var out struct {
		Data     wiretypes.BinaryData `msgpack:"data"`
		Lossless bool                 `msgpack:"lossless"`
	}
	if err := wire.Unmarshal(reply, &out); err != nil {
		return editor.CompleteEditorOutput{}, fmt.Errorf("glycin: decoding edit reply: %w", err)
	}
	return editor.CompleteEditorOutput{Data: out.Data, Info: editor.EditorOutputInfo{Lossless: out.Lossless}}, nil
}

// ApplyToFile runs Apply and, if the result is a sparse patch, applies
// it in place to the source file. A complete rewrite is returned
// unapplied: the caller must write it out itself (editor.ErrUnchanged).
func (e *Editor) ApplyToFile(ctx context.Context, ops wiretypes.Operations) (editor.SparseEditorOutput, error) {
	out, err := e.Apply(ctx, ops)
	if err != nil {
		return out, err
	}
	if err := editor.ApplyTo(e.path, out); err != nil {
		return out, err
	}
	return out, nil
}

// CreateImage asks an editor helper registered for mimeType to encode a
// brand new image from newImage's frames, per the Editor.create
// operation. Unlike Apply/ApplyComplete it has no source file to read,
// so it acquires its own helper directly from rt rather than through an
// Editor value.
func CreateImage(ctx context.Context, rt *Runtime, mimeType string, newImage wiretypes.NewImage, opts wiretypes.EncodingOptions) (wiretypes.EncodedImage, error) {
	entry, err := rt.lookup(pool.KindEditor, mimeType)
	if err != nil {
		return wiretypes.EncodedImage{}, err
	}

	mechanism := sandboxMechanism(rt.cfg.Sandbox.Mechanism)
	lease, err := rt.pool.Acquire(ctx, pool.KindEditor, entry.Hash("", false, mechanism.String()), rt.cfg.Pool.MaxParallelOperations, rt.spawnerFor(entry, "", false))
	if err != nil {
		return wiretypes.EncodedImage{}, err
	}
	defer lease.Release()
	rp := lease.Handle().(*hostproxy.RemoteProcess)

	payload, err := wire.Marshal(struct {
		MIMEType string                    `msgpack:"mime_type"`
		NewImage wiretypes.NewImage        `msgpack:"new_image"`
		Options  wiretypes.EncodingOptions `msgpack:"encoding_options"`
	}{MIMEType: mimeType, NewImage: newImage, Options: opts})
	if err != nil {
		return wiretypes.EncodedImage{}, fmt.Errorf("glycin: encoding create request: %w", err)
	}

	reply, err := rp.Call(ctx, "editor.create", payload)
	if err != nil {
		return wiretypes.EncodedImage{}, err
	}

	var out wiretypes.EncodedImage
	if err := wire.Unmarshal(reply, &out); err != nil {
		return wiretypes.EncodedImage{}, fmt.Errorf("glycin: decoding create reply: %w", err)
	}
	return out, nil
}

func sniffFile(path string) (head []byte, filename, baseDir string, err error) {
	f, err := openHead(path, sniffHeadBytes)
	if err != nil {
		return nil, "", "", err
	}
	return f, filepath.Base(path), filepath.Dir(path), nil
}
