package wire

import (
	"bytes"
	"testing"
)

func TestWriteReadFrameRoundtrip(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
	}{
		{
			name:  "call frame",
			frame: NewCall(1, "Loader.init", []byte("payload"), true),
		},
		{
			name:  "reply frame",
			frame: NewReply(1, []byte("reply payload"), false),
		},
		{
			name:  "error frame",
			frame: NewError(2, []byte("error payload")),
		},
		{
			name:  "ready",
			frame: NewReady(),
		},
		{
			name:  "shutdown",
			frame: NewShutdown(),
		},
		{
			name:  "ping",
			frame: NewPing(9),
		},
		{
			name:  "pong",
			frame: NewPong(9),
		},
		{
			name: "empty method and payload",
			frame: &Frame{
				Type:   TypeReady,
				CallID: 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, tt.frame); err != nil {
				t.Fatalf("Write: %v", err)
			}

			got, err := Read(&buf)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}

			if got.Type != tt.frame.Type {
				t.Errorf("Type: got %d, want %d", got.Type, tt.frame.Type)
			}
			if got.Flags != tt.frame.Flags {
				t.Errorf("Flags: got %d, want %d", got.Flags, tt.frame.Flags)
			}
			if got.CallID != tt.frame.CallID {
				t.Errorf("CallID: got %d, want %d", got.CallID, tt.frame.CallID)
			}
			if !bytes.Equal(got.Method, tt.frame.Method) {
				t.Errorf("Method: got %q, want %q", got.Method, tt.frame.Method)
			}
			if !bytes.Equal(got.Payload, tt.frame.Payload) {
				t.Errorf("Payload: got %q, want %q", got.Payload, tt.frame.Payload)
			}
		})
	}
}

func TestInvalidMagicBytes(t *testing.T) {
	data := make([]byte, HeaderSize)
	data[0] = 0xFF
	data[1] = 0xFF
	data[2] = Version

	if _, err := Read(bytes.NewReader(data)); err == nil {
		t.Error("expected error for invalid magic bytes")
	}
}

func TestInvalidVersion(t *testing.T) {
	data := make([]byte, HeaderSize)
	data[0] = Magic[0]
	data[1] = Magic[1]
	data[2] = 0xFF

	if _, err := Read(bytes.NewReader(data)); err == nil {
		t.Error("expected error for invalid version")
	}
}

func TestLargePayload(t *testing.T) {
	payload := make([]byte, 1024*1024)
	for i := range payload {
		payload[i] = byte(i % 256)
	}

	frame := NewReply(5, payload, false)

	var buf bytes.Buffer
	if err := Write(&buf, frame); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Error("payload mismatch for large payload")
	}
}

func TestMsgpackRoundtrip(t *testing.T) {
	type thing struct {
		Name string `msgpack:"name"`
		N    int    `msgpack:"n"`
	}

	data, err := Marshal(&thing{Name: "frame", N: 7})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got thing
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Name != "frame" || got.N != 7 {
		t.Errorf("got %+v", got)
	}
}
