// Package hostproxy implements the host proxy (C6): the host-side half
// of one sandboxed helper's bus connection — spawning it, correlating
// request/response frames, capturing its stderr/stdout, and tearing it
// down on cancellation.
//
// The RPC frame plumbing (request/response correlation, a per-call
// channel keyed by call id) is a direct generalization of the teacher's
// internal/pool/worker.go Exec/ExecStream/ReadFrame methods and
// internal/protocol/{wire,request,response,stream}.go, retargeted from
// "write a PHP request frame to stdin, read a PHP response frame from
// stdout" to "call Loader.init/Loader.frame/Editor.apply/... over a
// socketpair and read a correlated reply", with method name and call id
// carried in internal/wire's frame header instead of the teacher's
// single-purpose TypeRequest/TypeResponse/TypeStreamData split.
package hostproxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/glycin-project/glycin/internal/glyerr"
	"github.com/glycin-project/glycin/internal/sandbox"
	"github.com/glycin-project/glycin/internal/wire"
)

const (
	headBufferSize  = 4096
	stderrCapBytes  = 64 * 1024
	stdoutCapBytes  = 16 * 1024
	pendingCapacity = 64
)

// RemoteProcess is one live, sandboxed codec helper and its bus. It
// implements internal/pool.Handle.
type RemoteProcess struct {
	cmd  *exec.Cmd
	bus  net.Conn
	exec string

	mu         sync.Mutex
	pending    map[uint32]chan *wire.Frame
	nextCallID atomic.Uint32

	stderr *ringBuffer
	stdout *ringBuffer

	disconnected atomic.Bool
	readErr      atomic.Value // error

	ready     chan struct{} // closed by readLoop on the first TypeReady frame
	readyOnce sync.Once
	done      chan struct{} // closed by readLoop when the bus is no longer readable
	doneOnce  sync.Once
	closeOnce sync.Once
}

// Spawn creates a socketpair, spawns the helper under the given sandbox
// options (with BusFD pointed at the helper-side descriptor), and
// blocks until the helper reports ready or ctx is done.
func Spawn(ctx context.Context, opts sandbox.Options) (*RemoteProcess, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, glyerr.New(glyerr.KindSpawnError, fmt.Errorf("socketpair: %w", err))
	}
	hostFD, helperFD := fds[0], fds[1]

	hostFile := os.NewFile(uintptr(hostFD), "glycin-bus-host")
	hostConn, err := net.FileConn(hostFile)
	hostFile.Close()
	if err != nil {
		unix.Close(hostFD)
		unix.Close(helperFD)
		return nil, glyerr.New(glyerr.KindSpawnError, fmt.Errorf("wrapping host bus fd: %w", err))
	}

	opts.BusFD = helperFD
	cmd, err := sandbox.Build(ctx, opts)
	if err != nil {
		hostConn.Close()
		unix.Close(helperFD)
		return nil, err
	}

	rp := &RemoteProcess{
		cmd:     cmd,
		bus:     hostConn,
		exec:    opts.Entry.Exec,
		pending: make(map[uint32]chan *wire.Frame, pendingCapacity),
		stderr:  newRingBuffer(stderrCapBytes),
		stdout:  newRingBuffer(stdoutCapBytes),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	cmd.Stderr = rp.stderr
	cmd.Stdout = rp.stdout

	if err := cmd.Start(); err != nil {
		hostConn.Close()
		unix.Close(helperFD)
		return nil, glyerr.WithContext(glyerr.KindSpawnError, err, rp)
	}
	unix.Close(helperFD)

	go rp.readLoop()

	select {
	case <-rp.ready:
	case <-rp.done:
		err, _ := rp.readErr.Load().(error)
		if err == nil {
			err = fmt.Errorf("hostproxy: %s exited before reporting ready", opts.Entry.Exec)
		}
		rp.Close()
		return nil, glyerr.WithContext(glyerr.KindPrematureExit, err, rp)
	case <-ctx.Done():
		rp.Close()
		return nil, glyerr.New(glyerr.KindCanceled, ctx.Err())
	}

	return rp, nil
}

// CapturedStderr implements glyerr.ProcessContext.
func (rp *RemoteProcess) CapturedStderr() string { return rp.stderr.String() }

// CapturedStdout implements glyerr.ProcessContext.
func (rp *RemoteProcess) CapturedStdout() string { return rp.stdout.String() }

// CommandLine implements glyerr.ProcessContext.
func (rp *RemoteProcess) CommandLine() string { return rp.exec }

// Disconnected implements pool.Handle.
func (rp *RemoteProcess) Disconnected() bool { return rp.disconnected.Load() }

// Close implements pool.Handle: it closes the bus (which causes the
// sandboxed helper to observe EOF and, via its pdeathsig/die-with-parent
// setup, exit) and waits for the process to be reaped. Close is
// idempotent: calling it after the bus has already failed on its own
// (Disconnected() already true) still reaps the process exactly once.
func (rp *RemoteProcess) Close() error {
	rp.disconnected.Store(true)
	var closeErr error
	rp.closeOnce.Do(func() { closeErr = rp.closeOnceBody() })
	return closeErr
}

func (rp *RemoteProcess) closeOnceBody() error {
	_ = wire.Write(rp.bus, wire.NewShutdown())
	rp.bus.Close()
	if rp.cmd.Process != nil {
		waited := make(chan error, 1)
		go func() { waited <- rp.cmd.Wait() }()
		select {
		case <-waited:
		case <-time.After(5 * time.Second):
			_ = rp.cmd.Process.Kill()
			<-waited
		}
	}
	rp.markDone()
	return nil
}

// readLoop demultiplexes incoming frames to the pending call waiting on
// each call id, and to rp.ready on the first TypeReady frame. It exits
// (marking the process disconnected) the moment the bus read fails,
// which is the host's signal that the helper died or the bus faulted.
func (rp *RemoteProcess) readLoop() {
	for {
		f, err := wire.Read(rp.bus)
		if err != nil {
			rp.readErr.Store(err)
			rp.disconnected.Store(true)
			rp.failAllPending(err)
			rp.markDone()
			return
		}
		switch f.Type {
		case wire.TypeReady:
			rp.readyOnce.Do(func() { close(rp.ready) })
		case wire.TypeShutdown:
			rp.disconnected.Store(true)
			rp.failAllPending(io.EOF)
			rp.markDone()
			return
		default:
			rp.mu.Lock()
			ch, ok := rp.pending[f.CallID]
			if ok {
				delete(rp.pending, f.CallID)
			}
			rp.mu.Unlock()
			if ok {
				ch <- f
			}
		}
	}
}

func (rp *RemoteProcess) markDone() {
	rp.doneOnce.Do(func() { close(rp.done) })
}

func (rp *RemoteProcess) failAllPending(err error) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	for id, ch := range rp.pending {
		close(ch)
		delete(rp.pending, id)
	}
	_ = err
}

// Call issues method with payload and blocks for a correlated reply or
// error frame, or until ctx is canceled.
func (rp *RemoteProcess) Call(ctx context.Context, method string, payload []byte) ([]byte, error) {
	if rp.disconnected.Load() {
		return nil, glyerr.WithContext(glyerr.KindUnexpectedDisconnect,
			fmt.Errorf("hostproxy: process already disconnected"), rp)
	}

	id := rp.nextCallID.Add(1)
	ch := make(chan *wire.Frame, 1)
	rp.mu.Lock()
	rp.pending[id] = ch
	rp.mu.Unlock()

	frame := wire.NewCall(id, method, payload, false)
	if err := wire.Write(rp.bus, frame); err != nil {
		rp.mu.Lock()
		delete(rp.pending, id)
		rp.mu.Unlock()
		return nil, glyerr.WithContext(glyerr.KindBusFault, err, rp)
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, glyerr.WithContext(glyerr.KindUnexpectedDisconnect,
				fmt.Errorf("hostproxy: bus closed while awaiting reply to %s", method), rp)
		}
		if reply.Type == wire.TypeError {
			return nil, glyerr.WithContext(glyerr.KindInternalLoaderError,
				fmt.Errorf("hostproxy: %s: %s", method, string(reply.Payload)), rp)
		}
		return reply.Payload, nil
	case <-ctx.Done():
		rp.mu.Lock()
		delete(rp.pending, id)
		rp.mu.Unlock()
		return nil, glyerr.New(glyerr.KindCanceled, ctx.Err())
	}
}

// StreamInput copies src into a freshly created pipe and returns (a) the
// pipe's read end, whose FD the caller sends to the helper over the bus
// as part of the first init call (via a future SCM_RIGHTS-carrying
// write on rp.bus — the bus transport for ancillary FDs is the one part
// of C6 this translation leaves as a documented gap, see DESIGN.md), and
// (b) a headBuffer's captured head bytes once the copy has progressed
// far enough, for MIME sniffing without rewinding src. The caller owns
// the returned *os.File and must close it once the FD has been
// transmitted (or immediately, on any path that fails before sending).
func (rp *RemoteProcess) StreamInput(src io.Reader) (pipeRead *os.File, head func() []byte, err error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, glyerr.New(glyerr.KindSpawnError, fmt.Errorf("hostproxy: creating stream pipe: %w", err))
	}
	hb := newHeadBuffer(src, headBufferSize)
	go func() {
		defer w.Close()
		io.Copy(w, hb)
	}()
	return r, hb.Head, nil
}
