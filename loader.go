package glycin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/glycin-project/glycin/internal/glyerr"
	"github.com/glycin-project/glycin/internal/hostproxy"
	"github.com/glycin-project/glycin/internal/mime"
	"github.com/glycin-project/glycin/internal/pool"
	"github.com/glycin-project/glycin/internal/wire"
	"github.com/glycin-project/glycin/internal/wiretypes"
)

const sniffHeadBytes = 512

// Loader decodes a single image source. A Loader may be used to load
// exactly once; calling Load twice on the same Loader returns
// KindLoaderUsedTwice, mirroring the upstream library's single-use
// loader handle.
type Loader struct {
	rt   *Runtime
	path string
	r    io.Reader

	allowBaseDir bool

	mu   sync.Mutex
	used bool
}

// NewLoaderFromFile creates a Loader for the file at path. The file's
// parent directory is eligible to be exposed read-only to the helper
// (subject to the codec's ExposeBaseDir registration and the
// AllowBaseDir option) so that formats like SVG can resolve external
// references relative to it.
func NewLoaderFromFile(rt *Runtime, path string) *Loader {
	return &Loader{rt: rt, path: path}
}

// NewLoaderFromReader creates a Loader for an already-open stream. No
// base directory is ever exposed for stream-sourced loads: there is no
// file on disk to bind.
func NewLoaderFromReader(rt *Runtime, r io.Reader) *Loader {
	return &Loader{rt: rt, r: r}
}

// AllowBaseDir opts a file-sourced Loader into exposing its source
// file's parent directory to the helper, for codecs that declare
// ExposeBaseDir. It has no effect on a reader-sourced Loader.
func (l *Loader) AllowBaseDir(allow bool) *Loader {
	l.allowBaseDir = allow
	return l
}

// Load detects the source's MIME type, acquires a pooled loader
// helper for it, and runs the init handshake, returning an Image handle
// for requesting frames.
func (l *Loader) Load(ctx context.Context) (*Image, error) {
	l.mu.Lock()
	if l.used {
		l.mu.Unlock()
		return nil, glyerr.New(glyerr.KindLoaderUsedTwice, fmt.Errorf("glycin: Load called twice on the same Loader"))
	}
	l.used = true
	l.mu.Unlock()

	full, head, baseDir, cleanup, err := l.openSource()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	filename := ""
	if l.path != "" {
		filename = filepath.Base(l.path)
	}
	mimeType, err := mime.Detect(head, filename)
	if err != nil {
		return nil, glyerr.Wrap(glyerr.KindUnknownContentType, err)
	}

	entry, err := l.rt.lookup(pool.KindLoader, mimeType)
	if err != nil {
		return nil, err
	}

	mechanism := sandboxMechanism(l.rt.cfg.Sandbox.Mechanism)
	lease, err := l.rt.pool.Acquire(ctx, pool.KindLoader, entry.Hash(baseDir, l.allowBaseDir, mechanism.String()),
		l.rt.cfg.Pool.MaxParallelOperations, l.rt.spawnerFor(entry, baseDir, l.allowBaseDir))
	if err != nil {
		return nil, err
	}

	rp := lease.Handle().(*hostproxy.RemoteProcess)

	// StreamInput hands back the read end of a pipe fed from the
	// source. internal/wire carries no ancillary FDs (see
	// internal/hostproxy's documented gap), so the read end is not sent
	// to the helper with the init call below; it is closed here.
	pipeRead, _, err := rp.StreamInput(full)
	if err != nil {
		lease.Release()
		return nil, err
	}
	pipeRead.Close()

	initReq := wiretypes.InitRequest{MIMEType: mimeType}
	if baseDir != "" && l.allowBaseDir {
		initReq.Details.BaseDir = baseDir
	}
	payload, err := wire.Marshal(initReq)
	if err != nil {
		lease.Release()
		return nil, fmt.Errorf("glycin: encoding init request: %w", err)
	}

	reply, err := rp.Call(ctx, "loader.init", payload)
	if err != nil {
		lease.Release()
		return nil, err
	}

	var remote wiretypes.RemoteImage
	if err := wire.Unmarshal(reply, &remote); err != nil {
		lease.Release()
		return nil, fmt.Errorf("glycin: decoding init reply: %w", err)
	}

	return &Image{rt: l.rt, lease: lease, rp: rp, remote: remote}, nil
}

// openSource returns a full re-readable stream of the source (from the
// beginning, head bytes included), up to sniffHeadBytes of its start for
// MIME sniffing, its base directory (empty for stream-sourced loaders),
// and a cleanup func the caller must defer.
func (l *Loader) openSource() (full io.Reader, head []byte, baseDir string, cleanup func(), err error) {
	if l.path != "" {
		f, err := os.Open(l.path)
		if err != nil {
			return nil, nil, "", func() {}, fmt.Errorf("glycin: opening %s: %w", l.path, err)
		}
		buf := make([]byte, sniffHeadBytes)
		n, _ := io.ReadFull(f, buf)
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, nil, "", func() {}, fmt.Errorf("glycin: seeking %s: %w", l.path, err)
		}
		return f, buf[:n], filepath.Dir(l.path), func() { f.Close() }, nil
	}

	buf := make([]byte, sniffHeadBytes)
	n, _ := io.ReadFull(l.r, buf)
	return io.MultiReader(bytes.NewReader(buf[:n]), l.r), buf[:n], "", func() {}, nil
}
