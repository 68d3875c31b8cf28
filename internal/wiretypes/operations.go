package wiretypes

import (
	"fmt"

	"github.com/glycin-project/glycin/internal/wire"
)

// OperationID names an edit primitive's kind without its arguments.
type OperationID string

const (
	OpClip               OperationID = "Clip"
	OpMirrorHorizontally OperationID = "MirrorHorizontally"
	OpMirrorVertically   OperationID = "MirrorVertically"
	OpRotate             OperationID = "Rotate"
)

// Operation is one edit primitive. Exactly one of the typed fields is
// meaningful, selected by ID; this mirrors the reference implementation's
// tagged enum without requiring Go interface-based polymorphism for a
// closed, tiny set of variants.
type Operation struct {
	ID      OperationID `msgpack:"op"`
	Clip    *ClipRequest `msgpack:"clip,omitempty"`
	Degrees uint16       `msgpack:"degrees,omitempty"` // Rotate: 90, 180, or 270
}

// Operations is an ordered list of edit primitives, decoded
// forward-compatibly: elements whose "op" tag is not one of the known
// OperationIDs are preserved verbatim (as their raw op string) in
// UnknownOperations rather than rejected, following the original
// implementation's MaybeOperation fallback.
type Operations struct {
	operations         []Operation
	unknownOperations  []string
}

// NewOperations builds an Operations list with no unknown entries.
func NewOperations(ops []Operation) Operations {
	return Operations{operations: ops}
}

// List returns the known, successfully decoded operations in order.
func (o Operations) List() []Operation { return o.operations }

// UnknownOperations returns the raw "op" tags of any elements that did
// not match a known OperationID when decoding.
func (o Operations) UnknownOperations() []string { return o.unknownOperations }

// rawOperation is the on-wire shape of a single operation element, used
// to probe the "op" tag before committing to strict decoding.
type rawOperation struct {
	Op      string       `msgpack:"op"`
	Clip    *ClipRequest `msgpack:"clip,omitempty"`
	Degrees uint16       `msgpack:"degrees,omitempty"`
}

// DecodeOperations decodes a msgpack-encoded operation list, routing
// unrecognized "op" values into UnknownOperations instead of failing the
// whole decode.
func DecodeOperations(data []byte) (Operations, error) {
	var raws []rawOperation
	if err := wire.Unmarshal(data, &raws); err != nil {
		return Operations{}, fmt.Errorf("wiretypes: decoding operations: %w", err)
	}

	out := Operations{}
	for _, r := range raws {
		switch OperationID(r.Op) {
		case OpClip, OpMirrorHorizontally, OpMirrorVertically, OpRotate:
			out.operations = append(out.operations, Operation{
				ID:      OperationID(r.Op),
				Clip:    r.Clip,
				Degrees: r.Degrees,
			})
		default:
			out.unknownOperations = append(out.unknownOperations, r.Op)
		}
	}
	return out, nil
}

// EncodeOperations serializes the known operations (unknown operations,
// if any were round-tripped in from elsewhere, are never re-emitted: a
// decoder only ever produces them, it never needs to write them back).
func EncodeOperations(ops Operations) ([]byte, error) {
	raws := make([]rawOperation, 0, len(ops.operations))
	for _, op := range ops.operations {
		raws = append(raws, rawOperation{Op: string(op.ID), Clip: op.Clip, Degrees: op.Degrees})
	}
	return wire.Marshal(raws)
}
