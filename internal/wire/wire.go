// Package wire implements the length-prefixed binary frame format that
// carries host<->helper RPCs over the private peer-to-peer bus (a
// socketpair, not D-Bus). Every frame carries a msgpack-encoded body.
// FlagHasFD marks a frame that an out-of-band file descriptor
// accompanies; neither this package nor internal/hostproxy sends or
// receives descriptors (SCM_RIGHTS) over the socket.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// Magic identifies a glycin-bus frame.
var Magic = [2]byte{0x47, 0x42} // "GB": Glycin Bus

// Version is the current frame format version.
const Version uint8 = 0x01

// HeaderSize is the fixed size, in bytes, of a frame header.
const HeaderSize = 16

// Frame types.
const (
	TypeCall     uint8 = 0x01 // host -> helper: method call
	TypeReply    uint8 = 0x02 // helper -> host: successful reply
	TypeError    uint8 = 0x03 // helper -> host: error reply
	TypeReady    uint8 = 0x04 // helper -> host: helper finished startup
	TypeShutdown uint8 = 0x05 // host -> helper: graceful stop
	TypePing     uint8 = 0x06 // host -> helper: liveness probe
	TypePong     uint8 = 0x07 // helper -> host: liveness response
)

// Flags modify frame handling.
const (
	FlagHasFD uint8 = 1 << 0 // an FD accompanies this frame out-of-band
)

// Frame is a single message exchanged over the bus.
type Frame struct {
	Type     uint8
	Flags    uint8
	CallID   uint32 // correlates TypeCall with its TypeReply/TypeError
	Method   []byte // method name, e.g. "Loader.init"; empty on replies
	Payload  []byte // msgpack-encoded body
}

var writeBufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 256)
		return &b
	},
}

// Write encodes and writes f to w as a single coalesced write, following
// the teacher's pooled-buffer pattern to keep per-call frame encoding
// allocation-free for the common small-message case.
func Write(w io.Writer, f *Frame) error {
	total := HeaderSize + len(f.Method) + len(f.Payload)

	bp := writeBufPool.Get().(*[]byte)
	buf := (*bp)[:0]
	if cap(buf) < total {
		buf = make([]byte, 0, total)
	}
	buf = buf[:HeaderSize]

	buf[0] = Magic[0]
	buf[1] = Magic[1]
	buf[2] = Version
	buf[3] = f.Type
	buf[4] = f.Flags
	buf[5] = 0 // reserved
	binary.BigEndian.PutUint32(buf[6:10], f.CallID)
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(f.Method)))
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(f.Payload)))

	buf = append(buf, f.Method...)
	buf = append(buf, f.Payload...)

	_, err := w.Write(buf)

	*bp = buf
	writeBufPool.Put(bp)

	if err != nil {
		return fmt.Errorf("wire: writing frame: %w", err)
	}
	return nil
}

var readHdrPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, HeaderSize)
		return &b
	},
}

// Read reads and decodes one frame from r.
func Read(r io.Reader) (*Frame, error) {
	bp := readHdrPool.Get().(*[]byte)
	header := *bp
	defer readHdrPool.Put(bp)

	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("wire: reading frame header: %w", err)
	}

	if header[0] != Magic[0] || header[1] != Magic[1] {
		return nil, fmt.Errorf("wire: invalid magic bytes: 0x%02x%02x", header[0], header[1])
	}
	if header[2] != Version {
		return nil, fmt.Errorf("wire: unsupported frame version: %d", header[2])
	}

	f := &Frame{
		Type:   header[3],
		Flags:  header[4],
		CallID: binary.BigEndian.Uint32(header[6:10]),
	}

	methodLen := int(binary.BigEndian.Uint16(header[10:12]))
	payloadLen := int(binary.BigEndian.Uint32(header[12:16]))

	total := methodLen + payloadLen
	if total > 0 {
		data := make([]byte, total)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("wire: reading frame body (%d bytes): %w", total, err)
		}
		if methodLen > 0 {
			f.Method = data[:methodLen]
		}
		if payloadLen > 0 {
			f.Payload = data[methodLen:]
		}
	}

	return f, nil
}

// NewCall builds a method-call frame.
func NewCall(callID uint32, method string, payload []byte, hasFD bool) *Frame {
	f := &Frame{Type: TypeCall, CallID: callID, Method: []byte(method), Payload: payload}
	if hasFD {
		f.Flags |= FlagHasFD
	}
	return f
}

// NewReply builds a successful-reply frame.
func NewReply(callID uint32, payload []byte, hasFD bool) *Frame {
	f := &Frame{Type: TypeReply, CallID: callID, Payload: payload}
	if hasFD {
		f.Flags |= FlagHasFD
	}
	return f
}

// NewError builds an error-reply frame; payload is the msgpack-encoded
// error envelope (see internal/wiretypes.RemoteError).
func NewError(callID uint32, payload []byte) *Frame {
	return &Frame{Type: TypeError, CallID: callID, Payload: payload}
}

// NewReady builds the helper's startup-complete signal.
func NewReady() *Frame { return &Frame{Type: TypeReady} }

// NewShutdown builds a graceful-stop request.
func NewShutdown() *Frame { return &Frame{Type: TypeShutdown} }

// NewPing builds a liveness probe.
func NewPing(callID uint32) *Frame { return &Frame{Type: TypePing, CallID: callID} }

// NewPong builds a liveness response.
func NewPong(callID uint32) *Frame { return &Frame{Type: TypePong, CallID: callID} }
