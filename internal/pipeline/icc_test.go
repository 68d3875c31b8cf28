package pipeline

import (
	"encoding/binary"
	"testing"
)

func TestS15Fixed16(t *testing.T) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(int32(1*65536+32768))) // 1.5
	got := s15Fixed16(b)
	if got != 1.5 {
		t.Fatalf("s15Fixed16: got %v want 1.5", got)
	}
}

func TestReadCurveSingleGamma(t *testing.T) {
	data := make([]byte, 14)
	copy(data[0:4], "curv")
	binary.BigEndian.PutUint32(data[8:12], 1)
	binary.BigEndian.PutUint16(data[12:14], 2*256) // gamma 2.0, as u8Fixed8Number
	c := readCurve(data, 0)
	if c.gamma != 2.0 {
		t.Fatalf("readCurve gamma: got %v want 2.0", c.gamma)
	}
	if got := c.toLinear(0.5); got <= 0 || got >= 0.5 {
		t.Fatalf("toLinear(0.5) with gamma 2.0 should be < input, got %v", got)
	}
}

func TestReadCurveIdentityWhenZeroEntries(t *testing.T) {
	data := make([]byte, 12)
	copy(data[0:4], "curv")
	binary.BigEndian.PutUint32(data[8:12], 0)
	c := readCurve(data, 0)
	if got := c.toLinear(0.42); got != 0.42 {
		t.Fatalf("identity curve: got %v want 0.42", got)
	}
}

func TestMat3MulIdentity(t *testing.T) {
	identity := [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	got := mat3Mul(identity, xyzToSRGB)
	if got != xyzToSRGB {
		t.Fatalf("mat3Mul with identity changed the matrix: got %v want %v", got, xyzToSRGB)
	}
}

func TestMatVecMul(t *testing.T) {
	m := [3][3]float64{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}}
	got := matVecMul(m, [3]float64{1, 2, 3})
	want := [3]float64{2, 4, 6}
	if got != want {
		t.Fatalf("matVecMul: got %v want %v", got, want)
	}
}

func TestSRGBEncodeEndpoints(t *testing.T) {
	if got := srgbEncode(0); got != 0 {
		t.Fatalf("srgbEncode(0) = %v, want 0", got)
	}
	if got := srgbEncode(1); got < 0.99 || got > 1.0 {
		t.Fatalf("srgbEncode(1) = %v, want ~1.0", got)
	}
}

func TestParseICCMatrixProfileMissingColorants(t *testing.T) {
	header := make([]byte, 132)
	binary.BigEndian.PutUint32(header[128:132], 0) // no tags
	_, ok, err := parseICCMatrixProfile(header)
	if err != nil {
		t.Fatalf("parseICCMatrixProfile: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a profile with no colorant tags")
	}
}

func TestParseICCMatrixProfileTooShort(t *testing.T) {
	if _, _, err := parseICCMatrixProfile([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for a too-short profile")
	}
}
