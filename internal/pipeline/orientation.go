package pipeline

import (
	"context"
	"fmt"

	"github.com/glycin-project/glycin/internal/memfd"
	"github.com/glycin-project/glycin/internal/wiretypes"
)

// OrientationStep rotates/mirrors a frame's raw pixel bytes to undo the
// capture-time orientation recorded in its source EXIF data. The
// orientation value itself is resolved by the caller (typically via
// ReadEXIFOrientation against the image's metadata_exif blob) and handed
// in as Hint, mirroring image_details.transformation_ignore_exif's role
// of letting a caller opt the whole image out of this step.
type OrientationStep struct {
	IgnoreEXIF bool
	Hint       *uint16
}

func (s *OrientationStep) Name() string { return "orientation" }

func (s *OrientationStep) Execute(ctx context.Context, frame wiretypes.Frame) (wiretypes.Frame, error) {
	if s.IgnoreEXIF || s.Hint == nil || *s.Hint == 0 || *s.Hint == 1 {
		return frame, nil
	}

	bpp := frame.MemoryFormat.BytesPerPixel()
	if bpp == 0 {
		return wiretypes.Frame{}, fmt.Errorf("orientation: unknown memory format %s", frame.MemoryFormat)
	}

	seg := frame.Texture.Segment()
	if seg == nil {
		return wiretypes.Frame{}, fmt.Errorf("orientation: frame has no backing texture segment")
	}
	ref, err := seg.MapReadOnly()
	if err != nil {
		return wiretypes.Frame{}, fmt.Errorf("orientation: mapping source texture: %w", err)
	}
	defer ref.Close()

	src := rasterBuf{
		data:   ref.Bytes(),
		width:  int(frame.Width),
		height: int(frame.Height),
		stride: int(frame.Stride),
		bpp:    bpp,
	}
	// applyEXIFOrientation mutates src.data in place for the 2/3/4 cases
	// (same dimensions), so copy first: src.data is a read-only,
	// copy-on-write mapping of a sealed segment and must not be written
	// through directly.
	owned := make([]byte, len(src.data))
	copy(owned, src.data)
	src.data = owned

	out, err := applyEXIFOrientation(src, *s.Hint)
	if err != nil {
		return wiretypes.Frame{}, fmt.Errorf("orientation: %w", err)
	}

	newSeg, err := memfd.Create("glycin-frame-oriented", int64(len(out.data)))
	if err != nil {
		return wiretypes.Frame{}, fmt.Errorf("orientation: allocating output segment: %w", err)
	}
	w, err := newSeg.MapWritable()
	if err != nil {
		return wiretypes.Frame{}, fmt.Errorf("orientation: mapping output segment: %w", err)
	}
	copy(w.Bytes(), out.data)
	if err := w.Close(); err != nil {
		return wiretypes.Frame{}, fmt.Errorf("orientation: unmapping output segment: %w", err)
	}
	if err := newSeg.Seal(); err != nil {
		return wiretypes.Frame{}, fmt.Errorf("orientation: sealing output segment: %w", err)
	}

	result := frame
	result.Width = uint32(out.width)
	result.Height = uint32(out.height)
	result.Stride = uint32(out.stride)
	result.Texture = wiretypes.NewBinaryData(newSeg)
	return result, nil
}
