package glycin

import (
	"testing"

	"github.com/glycin-project/glycin/internal/wire"
	"github.com/glycin-project/glycin/internal/wiretypes"
)

func TestEditRequestEncodesOperations(t *testing.T) {
	e := &Editor{}
	ops := wiretypes.NewOperations([]wiretypes.Operation{
		{ID: wiretypes.OpMirrorHorizontally},
		{ID: wiretypes.OpRotate, Degrees: 90},
	})

	payload, err := e.editRequest("image/png", ops)
	if err != nil {
		t.Fatalf("editRequest: %v", err)
	}

	var decoded struct {
		MIMEType   string `msgpack:"mime_type"`
		Operations []byte `msgpack:"operations"`
	}
	if err := wire.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decoding request envelope: %v", err)
	}
	if decoded.MIMEType != "image/png" {
		t.Errorf("mime_type = %q, want image/png", decoded.MIMEType)
	}

	gotOps, err := wiretypes.DecodeOperations(decoded.Operations)
	if err != nil {
		t.Fatalf("DecodeOperations: %v", err)
	}
	list := gotOps.List()
	if len(list) != 2 || list[0].ID != wiretypes.OpMirrorHorizontally || list[1].ID != wiretypes.OpRotate || list[1].Degrees != 90 {
		t.Errorf("round-tripped operations = %+v, want mirror-horizontally then rotate(90)", list)
	}
}

func TestEditorUsedTwice(t *testing.T) {
	e := NewEditor(nil, "/nonexistent/path.png")
	e.mu.Lock()
	e.used = true
	e.mu.Unlock()

	if _, _, _, err := e.acquire(nil); err == nil {
		t.Fatal("expected an error acquiring an already-used Editor")
	}
}
