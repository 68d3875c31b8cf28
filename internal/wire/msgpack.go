package wire

import "github.com/vmihailenco/msgpack/v5"

// Marshal encodes v as msgpack, the body format for every Frame.Payload.
func Marshal(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Unmarshal decodes msgpack-encoded data into v.
func Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

// RawMessage carries an undecoded msgpack value, used to preserve
// forward-compatible dictionary fields and unknown enum variants instead
// of rejecting them outright.
type RawMessage = msgpack.RawMessage
