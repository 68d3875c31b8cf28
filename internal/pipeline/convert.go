package pipeline

import (
	"context"
	"fmt"

	"github.com/glycin-project/glycin/internal/memfd"
	"github.com/glycin-project/glycin/internal/memoryformat"
	"github.com/glycin-project/glycin/internal/wiretypes"
)

// MemoryFormatConstraint names one memory format a caller is willing to
// accept for a decoded frame (the texture consumer's supported layouts,
// e.g. what a GPU upload path or an image widget can use directly).
type MemoryFormatConstraint = memoryformat.Format

// MemoryFormatStep converts a frame's pixel layout into one of Acceptable
// if its current format is not already in that list. An empty Acceptable
// list means "no constraint": every format passes through unchanged.
type MemoryFormatStep struct {
	Acceptable []MemoryFormatConstraint
}

func (s *MemoryFormatStep) Name() string { return "memory-format" }

func (s *MemoryFormatStep) Execute(ctx context.Context, frame wiretypes.Frame) (wiretypes.Frame, error) {
	if len(s.Acceptable) == 0 || formatAccepted(frame.MemoryFormat, s.Acceptable) {
		return frame, nil
	}

	target := s.Acceptable[0]
	converted, err := convertFrameFormat(frame, target)
	if err != nil {
		return wiretypes.Frame{}, fmt.Errorf("memory-format: %w", err)
	}
	return converted, nil
}

func formatAccepted(f memoryformat.Format, list []MemoryFormatConstraint) bool {
	for _, c := range list {
		if c == f {
			return true
		}
	}
	return false
}

// channelLayout8 describes the byte order of an 8-bit-per-channel
// format's pixel: each entry is an index into [R, G, B, A] (A ignored
// when the format has no alpha), in the order the bytes appear.
type channelLayout8 struct {
	order         []int // indices into {0:R, 1:G, 2:B, 3:A}, len == bytesPerPixel
	gray          bool  // true for G8/G8a8*: order indexes {0:G, 1:A}
	premultiplied bool
}

const (
	chanR = 0
	chanG = 1
	chanB = 2
	chanA = 3
)

var layouts8 = map[memoryformat.Format]channelLayout8{
	memoryformat.B8g8r8a8Premultiplied: {order: []int{chanB, chanG, chanR, chanA}, premultiplied: true},
	memoryformat.A8r8g8b8Premultiplied: {order: []int{chanA, chanR, chanG, chanB}, premultiplied: true},
	memoryformat.R8g8b8a8Premultiplied: {order: []int{chanR, chanG, chanB, chanA}, premultiplied: true},
	memoryformat.B8g8r8a8:              {order: []int{chanB, chanG, chanR, chanA}},
	memoryformat.A8r8g8b8:              {order: []int{chanA, chanR, chanG, chanB}},
	memoryformat.R8g8b8a8:              {order: []int{chanR, chanG, chanB, chanA}},
	memoryformat.A8b8g8r8:              {order: []int{chanA, chanB, chanG, chanR}},
	memoryformat.R8g8b8:                {order: []int{chanR, chanG, chanB}},
	memoryformat.B8g8r8:                {order: []int{chanB, chanG, chanR}},
	memoryformat.G8a8Premultiplied:     {order: []int{0, 1}, gray: true, premultiplied: true},
	memoryformat.G8a8:                  {order: []int{0, 1}, gray: true},
	memoryformat.G8:                    {order: []int{0}, gray: true},
}

// convertFrameFormat converts src's pixel buffer from its current
// 8-bit-per-channel format to dst, allocating a fresh sealed segment for
// the result. Only the 8-bit RGB(A)/gray(alpha) family in layouts8 is
// supported; 16-bit, float, and HDR formats return an error rather than
// silently producing wrong pixels, matching the same conservative
// degradation already applied by ColorStateStep for non-8-bit channels.
func convertFrameFormat(frame wiretypes.Frame, dst memoryformat.Format) (wiretypes.Frame, error) {
	srcLayout, ok := layouts8[frame.MemoryFormat]
	if !ok {
		return wiretypes.Frame{}, fmt.Errorf("conversion from %s is not supported", frame.MemoryFormat)
	}
	dstLayout, ok := layouts8[dst]
	if !ok {
		return wiretypes.Frame{}, fmt.Errorf("conversion to %s is not supported", dst)
	}

	seg := frame.Texture.Segment()
	if seg == nil {
		return wiretypes.Frame{}, fmt.Errorf("memory-format: frame has no backing texture segment")
	}
	ref, err := seg.MapReadOnly()
	if err != nil {
		return wiretypes.Frame{}, fmt.Errorf("mapping source texture: %w", err)
	}
	defer ref.Close()

	srcBpp := frame.MemoryFormat.BytesPerPixel()
	dstBpp := dst.BytesPerPixel()
	width, height := int(frame.Width), int(frame.Height)
	srcStride := int(frame.Stride)
	dstStride := width * dstBpp

	out := make([]byte, dstStride*height)
	src := ref.Bytes()

	for y := 0; y < height; y++ {
		srcRow := src[y*srcStride : y*srcStride+width*srcBpp]
		dstRow := out[y*dstStride : y*dstStride+width*dstBpp]
		for x := 0; x < width; x++ {
			sp := srcRow[x*srcBpp : x*srcBpp+srcBpp]
			dp := dstRow[x*dstBpp : x*dstBpp+dstBpp]
			r, g, b, a := unpackPixel(sp, srcLayout)
			if srcLayout.premultiplied && !dstLayout.premultiplied && a != 0 {
				r, g, b = unpremultiply(r, a), unpremultiply(g, a), unpremultiply(b, a)
			} else if !srcLayout.premultiplied && dstLayout.premultiplied {
				r, g, b = premultiply(r, a), premultiply(g, a), premultiply(b, a)
			}
			packPixel(dp, dstLayout, r, g, b, a)
		}
	}

	newSeg, err := memfd.Create("glycin-frame-converted", int64(len(out)))
	if err != nil {
		return wiretypes.Frame{}, fmt.Errorf("allocating output segment: %w", err)
	}
	w, err := newSeg.MapWritable()
	if err != nil {
		return wiretypes.Frame{}, fmt.Errorf("mapping output segment: %w", err)
	}
	copy(w.Bytes(), out)
	if err := w.Close(); err != nil {
		return wiretypes.Frame{}, fmt.Errorf("unmapping output segment: %w", err)
	}
	if err := newSeg.Seal(); err != nil {
		return wiretypes.Frame{}, fmt.Errorf("sealing output segment: %w", err)
	}

	result := frame
	result.MemoryFormat = dst
	result.Stride = uint32(dstStride)
	result.Texture = wiretypes.NewBinaryData(newSeg)
	return result, nil
}

func unpackPixel(p []byte, layout channelLayout8) (r, g, b, a byte) {
	a = 255
	if layout.gray {
		g = p[layout.order[0]]
		r, b = g, g
		if len(layout.order) > 1 {
			a = p[layout.order[1]]
		}
		return
	}
	for i, ch := range layout.order {
		switch ch {
		case chanR:
			r = p[i]
		case chanG:
			g = p[i]
		case chanB:
			b = p[i]
		case chanA:
			a = p[i]
		}
	}
	return
}

func packPixel(p []byte, layout channelLayout8, r, g, b, a byte) {
	if layout.gray {
		p[layout.order[0]] = luminance(r, g, b)
		if len(layout.order) > 1 {
			p[layout.order[1]] = a
		}
		return
	}
	for i, ch := range layout.order {
		switch ch {
		case chanR:
			p[i] = r
		case chanG:
			p[i] = g
		case chanB:
			p[i] = b
		case chanA:
			p[i] = a
		}
	}
}

// luminance uses the Rec. 601 coefficients, matching what the rest of
// the pipeline's sRGB-targeted math assumes.
func luminance(r, g, b byte) byte {
	return byte((299*int(r) + 587*int(g) + 114*int(b)) / 1000)
}

func premultiply(c, a byte) byte {
	return byte(int(c) * int(a) / 255)
}

func unpremultiply(c, a byte) byte {
	v := int(c) * 255 / int(a)
	if v > 255 {
		return 255
	}
	return byte(v)
}
