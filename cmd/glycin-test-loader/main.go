// Command glycin-test-loader is a synthetic codec helper speaking the
// real host<->helper bus protocol (internal/wire). It answers every
// loader and editor operation SPEC_FULL.md's bus interface names with
// small, fixed, valid-shaped replies instead of actually decoding or
// encoding anything, so internal/pool and internal/hostproxy can be
// exercised end-to-end (spawn, handshake, RPC, teardown) without a real
// image codec on hand.
//
// Grounded on C3's helper skeleton in SPEC_FULL.md §4.3: parse
// --bus-fd, call sandbox.ApplySelf before touching any input, signal
// readiness, then serve calls until the bus closes or a shutdown frame
// arrives.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/glycin-project/glycin/internal/editor"
	"github.com/glycin-project/glycin/internal/sandbox"
	"github.com/glycin-project/glycin/internal/wire"
	"github.com/glycin-project/glycin/internal/wiretypes"
)

func main() {
	busFD := flag.Int("bus-fd", -1, "inherited bus socket file descriptor")
	flag.Parse()

	if *busFD < 0 {
		fmt.Fprintln(os.Stderr, "glycin-test-loader: --bus-fd is required")
		os.Exit(2)
	}

	if err := sandbox.ApplySelf(false, sandbox.ActionTrap); err != nil {
		fmt.Fprintf(os.Stderr, "glycin-test-loader: applying sandbox self-setup: %v\n", err)
		os.Exit(1)
	}

	f := os.NewFile(uintptr(*busFD), "glycin-bus-helper")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "glycin-test-loader: wrapping bus fd: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := wire.Write(conn, wire.NewReady()); err != nil {
		fmt.Fprintf(os.Stderr, "glycin-test-loader: signaling ready: %v\n", err)
		os.Exit(1)
	}

	serve(conn)
}

// serve reads calls off conn until it observes a shutdown frame or the
// bus fails, dispatching each by method name.
func serve(conn net.Conn) {
	for {
		f, err := wire.Read(conn)
		if err != nil {
			return
		}
		switch f.Type {
		case wire.TypeShutdown:
			return
		case wire.TypeCall:
			handleCall(conn, f)
		}
	}
}

func handleCall(conn net.Conn, f *wire.Frame) {
	method := string(f.Method)
	var (
		payload []byte
		err     error
	)
	switch method {
	case "loader.init":
		payload, err = handleInit(f.Payload)
	case "loader.frame":
		payload, err = handleFrame(f.Payload)
	case "loader.done":
		payload = nil
	case "editor.apply":
		payload, err = handleEditorApply(f.Payload)
	case "editor.apply_complete":
		payload, err = handleEditorApplyComplete(f.Payload)
	case "editor.create":
		payload, err = handleEditorCreate(f.Payload)
	default:
		err = fmt.Errorf("glycin-test-loader: unknown method %q", method)
	}

	if err != nil {
		errPayload, mErr := wire.Marshal(err.Error())
		if mErr != nil {
			errPayload = []byte(err.Error())
		}
		wire.Write(conn, wire.NewError(f.CallID, errPayload))
		return
	}
	wire.Write(conn, wire.NewReply(f.CallID, payload, false))
}

const (
	testWidth  = 4
	testHeight = 4
)

func handleInit(payload []byte) ([]byte, error) {
	var req wiretypes.InitRequest
	if err := wire.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decoding init request: %w", err)
	}

	remote := wiretypes.RemoteImage{
		FrameRequestID: "test-frame-request",
		Details: wiretypes.ImageDetails{
			Width:          testWidth,
			Height:         testHeight,
			InfoFormatName: "glycin-test-loader synthetic image",
		},
	}
	return wire.Marshal(remote)
}

func handleFrame(payload []byte) ([]byte, error) {
	var req wiretypes.FrameRequest
	if err := wire.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decoding frame request: %w", err)
	}

	width, height := uint32(testWidth), uint32(testHeight)
	if req.Scale != nil {
		width, height = req.Scale.W, req.Scale.H
	}

	// The frame's actual pixel bytes would ride as an ancillary FD over
	// the bus (see internal/hostproxy's documented SCM_RIGHTS gap); this
	// synthetic helper has no real texture to offer, so Texture is left
	// as the zero-value BinaryData (nil segment) on every reply.
	frame := struct {
		Width        uint32                 `msgpack:"width"`
		Height       uint32                 `msgpack:"height"`
		Stride       uint32                 `msgpack:"stride"`
		MemoryFormat int32                  `msgpack:"memory_format"`
		Details      wiretypes.FrameDetails `msgpack:"details"`
	}{
		Width:  width,
		Height: height,
		Stride: width * 4,
	}
	return wire.Marshal(frame)
}

func handleEditorApply(payload []byte) ([]byte, error) {
	var req struct {
		MIMEType   string `msgpack:"mime_type"`
		Operations []byte `msgpack:"operations"`
	}
	if err := wire.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decoding edit request: %w", err)
	}
	if _, err := wiretypes.DecodeOperations(req.Operations); err != nil {
		return nil, fmt.Errorf("decoding operations: %w", err)
	}

	out := struct {
		ByteChanges []editor.ByteChange `msgpack:"byte_changes,omitempty"`
		Lossless    bool                `msgpack:"lossless"`
	}{
		ByteChanges: []editor.ByteChange{{Offset: 0, Value: 0}},
		Lossless:    true,
	}
	return wire.Marshal(out)
}

func handleEditorApplyComplete(payload []byte) ([]byte, error) {
	var req struct {
		MIMEType   string `msgpack:"mime_type"`
		Operations []byte `msgpack:"operations"`
	}
	if err := wire.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decoding edit request: %w", err)
	}
	if _, err := wiretypes.DecodeOperations(req.Operations); err != nil {
		return nil, fmt.Errorf("decoding operations: %w", err)
	}

	out := struct {
		Lossless bool `msgpack:"lossless"`
	}{Lossless: false}
	return wire.Marshal(out)
}

func handleEditorCreate(payload []byte) ([]byte, error) {
	var req struct {
		MIMEType string                    `msgpack:"mime_type"`
		NewImage wiretypes.NewImage        `msgpack:"new_image"`
		Options  wiretypes.EncodingOptions `msgpack:"encoding_options"`
	}
	if err := wire.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decoding create request: %w", err)
	}

	out := struct {
		Data struct{} `msgpack:"data"`
	}{}
	return wire.Marshal(out)
}
