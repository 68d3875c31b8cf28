package hostproxy

import (
	"fmt"

	"github.com/glycin-project/glycin/internal/glyerr"
	"github.com/glycin-project/glycin/internal/wiretypes"
)

// MaxTextureSize bounds the total byte size of any single texture the
// host will accept from a helper, independent of the per-helper memory
// rlimit: it protects the host process itself from a helper that lies
// about dimensions while the underlying memfd happens to be large
// enough to back them.
const MaxTextureSize = 4 << 30 // 4 GiB

// ValidateFrame checks a frame's declared geometry against its backing
// texture before any of it is exposed to the caller, per C6's "texture
// safety" behavior.
func ValidateFrame(frame wiretypes.Frame) error {
	bpp := uint64(frame.MemoryFormat.BytesPerPixel())
	minStride := uint64(frame.Width) * bpp
	if uint64(frame.Stride) < minStride {
		return glyerr.New(glyerr.KindStrideTooSmall,
			fmt.Errorf("stride %d is smaller than width*bytes_per_pixel %d", frame.Stride, minStride))
	}

	nBytes, ok := frame.NBytes()
	if !ok {
		return glyerr.New(glyerr.KindTextureTooLarge, fmt.Errorf("stride*height overflows"))
	}
	if nBytes > MaxTextureSize {
		return glyerr.New(glyerr.KindTextureTooLarge,
			fmt.Errorf("texture size %d exceeds maximum %d", nBytes, MaxTextureSize))
	}

	segSize := uint64(frame.Texture.Segment().Size())
	if segSize < nBytes {
		return glyerr.New(glyerr.KindTextureTooSmall,
			fmt.Errorf("backing segment is %d bytes, frame declares %d", segSize, nBytes))
	}
	return nil
}
