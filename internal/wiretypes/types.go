// Package wiretypes defines the dictionary-structured messages exchanged
// between host and helper: loader/editor requests and responses, frame
// metadata, and edit operations. Every struct here is intentionally
// "non-exhaustive" in spirit — optional fields use pointers or
// `msgpack:",omitempty"` so a helper built against an older minor
// protocol revision still round-trips cleanly, and unknown fields are
// simply dropped rather than rejected by the msgpack decoder.
//
// Shapes are grounded on the reference implementation's
// glycin-utils/src/dbus_types.rs, operations.rs and editing.rs.
package wiretypes

import (
	"fmt"
	"time"

	"github.com/glycin-project/glycin/internal/glyerr"
	"github.com/glycin-project/glycin/internal/memfd"
	"github.com/glycin-project/glycin/internal/memoryformat"
)

// InitRequest is the first message sent to a freshly spawned loader
// helper. The source stream is not part of this msgpack body, and the
// bus transport carries no file descriptors (see internal/wire).
type InitRequest struct {
	MIMEType string                `msgpack:"mime_type"`
	Details  InitializationDetails `msgpack:"details"`
}

// InitializationDetails carries optional per-call context for init.
type InitializationDetails struct {
	BaseDir string `msgpack:"base_dir,omitempty"`
}

// FrameRequest asks a loader helper to render a frame. Helpers may
// ignore fields they do not support.
type FrameRequest struct {
	Scale *ScaleRequest `msgpack:"scale,omitempty"`
	Clip  *ClipRequest  `msgpack:"clip,omitempty"`
}

// ScaleRequest asks the helper to scale the decoded image to (W, H).
type ScaleRequest struct {
	W uint32 `msgpack:"w"`
	H uint32 `msgpack:"h"`
}

// ClipRequest asks the helper to decode only a sub-rectangle.
type ClipRequest struct {
	X uint32 `msgpack:"x"`
	Y uint32 `msgpack:"y"`
	W uint32 `msgpack:"w"`
	H uint32 `msgpack:"h"`
}

// RemoteImage is returned from init: a handle the host uses to issue
// further frame requests, plus the image's early metadata.
type RemoteImage struct {
	FrameRequestID string       `msgpack:"frame_request"`
	Details        ImageDetails `msgpack:"details"`
}

// ImageDetails carries per-image metadata from init. Only Width/Height
// are guaranteed present; everything else is best-effort.
type ImageDetails struct {
	Width                   uint32            `msgpack:"width"`
	Height                  uint32            `msgpack:"height"`
	DimensionsInch          *[2]float64       `msgpack:"dimensions_inch,omitempty"`
	InfoFormatName          string            `msgpack:"info_format_name,omitempty"`
	InfoDimensionsText      string            `msgpack:"info_dimensions_text,omitempty"`
	MetadataEXIF            *BinaryData       `msgpack:"metadata_exif,omitempty"`
	MetadataXMP             *BinaryData       `msgpack:"metadata_xmp,omitempty"`
	MetadataKeyValue        map[string]string `msgpack:"metadata_key_value,omitempty"`
	TransformationIgnoreExif bool             `msgpack:"transformation_ignore_exif"`
}

// Frame is a fully decoded image frame. Texture is the shared-memory
// handle carrying the raw pixel bytes; stride/height bound its size.
type Frame struct {
	Width        uint32                  `msgpack:"width"`
	Height       uint32                  `msgpack:"height"`
	Stride       uint32                  `msgpack:"stride"`
	MemoryFormat memoryformat.Format     `msgpack:"memory_format"`
	Texture      BinaryData              `msgpack:"texture"`
	Delay        *time.Duration          `msgpack:"delay,omitempty"`
	Details      FrameDetails            `msgpack:"details"`
}

// NBytes returns stride*height, the exact number of pixel bytes the
// texture must contain, checked for overflow.
func (f Frame) NBytes() (uint64, bool) {
	n := uint64(f.Stride) * uint64(f.Height)
	if f.Stride != 0 && n/uint64(f.Stride) != uint64(f.Height) {
		return 0, false
	}
	return n, true
}

// NewFrame builds a Frame with stride derived from width and the memory
// format's byte width, mirroring the reference implementation's
// Frame::new overflow-checked stride computation.
func NewFrame(width, height uint32, format memoryformat.Format, texture BinaryData) (Frame, bool) {
	bpp := uint64(format.BytesPerPixel())
	stride := uint64(width) * bpp
	if bpp != 0 && stride/bpp != uint64(width) {
		return Frame{}, false
	}
	if stride > 0xFFFFFFFF {
		return Frame{}, false
	}
	return Frame{
		Width:        width,
		Height:       height,
		Stride:       uint32(stride),
		MemoryFormat: format,
		Texture:      texture,
	}, true
}

// ColorState tags how a frame's pixel data relates to a standard color
// space after the host-side pipeline has run.
type ColorState int

const (
	ColorStateUnknown ColorState = iota
	ColorStateSRGB
	ColorStateCICP
)

// FrameDetails carries optional per-frame metadata.
type FrameDetails struct {
	ColorICCP      *BinaryData `msgpack:"color_iccp,omitempty"`
	ColorCICP      []byte      `msgpack:"color_cicp,omitempty"`
	InfoBitDepth   *uint8      `msgpack:"info_bit_depth,omitempty"`
	InfoAlpha      *bool       `msgpack:"info_alpha_channel,omitempty"`
	InfoGrayscale  *bool       `msgpack:"info_grayscale,omitempty"`
	NFrame         *uint64     `msgpack:"n_frame,omitempty"`
	ColorState     ColorState  `msgpack:"color_state"`
}

// NewImage is the payload for Editor.create: a fresh image description
// plus its constituent frames (used to build e.g. an animation).
type NewImage struct {
	ImageInfo ImageDetails `msgpack:"image_info"`
	Frames    []Frame      `msgpack:"frames"`
}

// EncodingOptions tunes Editor.create's output encoder.
type EncodingOptions struct {
	Quality     *uint8 `msgpack:"quality,omitempty"`
	Compression *uint8 `msgpack:"compression,omitempty"`
}

// EncodedImage is the result of Editor.create.
type EncodedImage struct {
	Data BinaryData `msgpack:"data"`
}

// BinaryData is the wire representation of a shared-memory handle: on
// the wire it carries nothing but a marker that an FD accompanies this
// frame out-of-band (see internal/wire.FlagHasFD and internal/memfd).
// The in-process side binds that FD to an actual *memfd.Segment.
type BinaryData struct {
	segment *memfd.Segment
}

// NewBinaryData wraps a sealed memfd segment as wire-transmittable data.
func NewBinaryData(seg *memfd.Segment) BinaryData {
	return BinaryData{segment: seg}
}

// Segment returns the underlying shared-memory segment.
func (b BinaryData) Segment() *memfd.Segment { return b.segment }

// GetFull reads the entire payload into a freshly allocated slice.
func (b BinaryData) GetFull() ([]byte, error) {
	if b.segment == nil {
		return nil, glyerr.New(glyerr.KindInternalLoaderError, fmt.Errorf("glycin: BinaryData has no backing segment"))
	}
	ref, err := b.segment.MapReadOnly()
	if err != nil {
		return nil, err
	}
	defer ref.Close()
	out := make([]byte, len(ref.Bytes()))
	copy(out, ref.Bytes())
	return out, nil
}
