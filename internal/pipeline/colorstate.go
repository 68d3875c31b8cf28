package pipeline

import (
	"context"
	"fmt"

	"github.com/glycin-project/glycin/internal/memfd"
	"github.com/glycin-project/glycin/internal/wiretypes"
)

// ColorTarget names the destination color space ColorStateStep converts
// into, for the color (3+ channel) formats; gray/gray-alpha formats are
// always forced to sRGB per C7.
type ColorTarget int

const (
	ColorTargetSRGB ColorTarget = iota
	ColorTargetRec2020Linear
)

// ColorStateStep transforms a frame's pixel data from its attached ICC
// profile's color space into Target (sRGB, or Rec2020-linear for wide
// gamut color formats), recording the result on FrameDetails.ColorState.
// A frame with no ICC profile, or a profile this package cannot parse as
// matrix/TRC, passes through unchanged other than being marked
// ColorStateUnknown — matching C7's graceful-degradation policy rather
// than failing the whole frame.
type ColorStateStep struct {
	Target ColorTarget
	Apply  bool
}

func (s *ColorStateStep) Name() string { return "color-state" }

func (s *ColorStateStep) Execute(ctx context.Context, frame wiretypes.Frame) (wiretypes.Frame, error) {
	if !s.Apply || frame.Details.ColorICCP == nil {
		return frame, nil
	}
	if frame.Texture.Segment() == nil {
		// No backing segment yet (see internal/hostproxy's documented
		// ancillary-FD gap): nothing to transform, so degrade the same
		// way an unparseable profile does rather than dereference a nil
		// segment later.
		result := frame
		result.Details.ColorState = wiretypes.ColorStateUnknown
		return result, nil
	}

	iccBytes, err := frame.Details.ColorICCP.GetFull()
	if err != nil {
		return wiretypes.Frame{}, fmt.Errorf("color-state: reading ICC profile: %w", err)
	}

	prof, ok, err := parseICCMatrixProfile(iccBytes)
	if err != nil || !ok {
		result := frame
		result.Details.ColorState = wiretypes.ColorStateUnknown
		return result, nil
	}

	grayscale := frame.MemoryFormat.Channels()-boolToInt(frame.MemoryFormat.HasAlpha()) <= 1
	target := s.Target
	if grayscale {
		target = ColorTargetSRGB
	}

	destMatrix := xyzToSRGB
	if target == ColorTargetRec2020Linear {
		destMatrix = xyzToRec2020
	}
	fullMatrix := mat3Mul(destMatrix, mat3Mul(bradfordD50ToD65, prof.toPCS))

	bpp := frame.MemoryFormat.BytesPerPixel()
	channels := frame.MemoryFormat.Channels()
	if bpp == 0 || channels == 0 || bpp%channels != 0 {
		result := frame
		result.Details.ColorState = wiretypes.ColorStateUnknown
		return result, nil
	}
	channelBytes := bpp / channels
	if channelBytes != 1 {
		// 16-bit and floating-point formats are left untouched: the
		// matrix/TRC math below assumes 8-bit-normalized samples.
		// Widening it to every memoryformat variant is tracked as a
		// follow-up, not silently claimed as done.
		result := frame
		result.Details.ColorState = wiretypes.ColorStateUnknown
		return result, nil
	}

	seg := frame.Texture.Segment()
	ref, err := seg.MapReadOnly()
	if err != nil {
		return wiretypes.Frame{}, fmt.Errorf("color-state: mapping source texture: %w", err)
	}
	defer ref.Close()

	out := make([]byte, len(ref.Bytes()))
	copy(out, ref.Bytes())

	hasAlpha := frame.MemoryFormat.HasAlpha()
	colorChannels := channels
	if hasAlpha {
		colorChannels = channels - 1
	}
	stride := int(frame.Stride)
	width := int(frame.Width)
	height := int(frame.Height)

	if colorChannels >= 3 && !grayscale {
		for y := 0; y < height; y++ {
			rowOff := y * stride
			for x := 0; x < width; x++ {
				pxOff := rowOff + x*bpp
				device := [3]float64{
					float64(out[pxOff]) / 255.0,
					float64(out[pxOff+1]) / 255.0,
					float64(out[pxOff+2]) / 255.0,
				}
				linear := [3]float64{
					prof.rCurve.toLinear(device[0]),
					prof.gCurve.toLinear(device[1]),
					prof.bCurve.toLinear(device[2]),
				}
				pcsLinear := matVecMul(fullMatrix, linear)

				var r, g, b float64
				if target == ColorTargetSRGB {
					r, g, b = srgbEncode(pcsLinear[0]), srgbEncode(pcsLinear[1]), srgbEncode(pcsLinear[2])
				} else {
					r, g, b = pcsLinear[0], pcsLinear[1], pcsLinear[2]
				}
				out[pxOff] = clampByte(r)
				out[pxOff+1] = clampByte(g)
				out[pxOff+2] = clampByte(b)
			}
		}
	}

	newSeg, err := memfd.Create("glycin-frame-colorstate", int64(len(out)))
	if err != nil {
		return wiretypes.Frame{}, fmt.Errorf("color-state: allocating output segment: %w", err)
	}
	w, err := newSeg.MapWritable()
	if err != nil {
		return wiretypes.Frame{}, fmt.Errorf("color-state: mapping output segment: %w", err)
	}
	copy(w.Bytes(), out)
	if err := w.Close(); err != nil {
		return wiretypes.Frame{}, fmt.Errorf("color-state: unmapping output segment: %w", err)
	}
	if err := newSeg.Seal(); err != nil {
		return wiretypes.Frame{}, fmt.Errorf("color-state: sealing output segment: %w", err)
	}

	result := frame
	result.Texture = wiretypes.NewBinaryData(newSeg)
	if target == ColorTargetSRGB {
		result.Details.ColorState = wiretypes.ColorStateSRGB
	} else {
		result.Details.ColorState = wiretypes.ColorStateCICP
	}
	return result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func clampByte(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255.0 + 0.5)
}
