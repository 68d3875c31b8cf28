package pipeline

import "testing"

// make2x2 builds a 2x2, tightly-packed, 1-byte-per-pixel raster with
// values 1,2 / 3,4 (row-major) so every transform's effect is legible
// from its output values alone.
func make2x2() rasterBuf {
	return rasterBuf{
		data:   []byte{1, 2, 3, 4},
		width:  2,
		height: 2,
		stride: 2,
		bpp:    1,
	}
}

func TestMirrorHorizontal(t *testing.T) {
	r := make2x2()
	mirrorHorizontal(r)
	want := []byte{2, 1, 4, 3}
	if string(r.data) != string(want) {
		t.Fatalf("got %v want %v", r.data, want)
	}
}

func TestMirrorVertical(t *testing.T) {
	r := make2x2()
	mirrorVertical(r)
	want := []byte{3, 4, 1, 2}
	if string(r.data) != string(want) {
		t.Fatalf("got %v want %v", r.data, want)
	}
}

func TestRotate180(t *testing.T) {
	r := make2x2()
	rotate180(r)
	want := []byte{4, 3, 2, 1}
	if string(r.data) != string(want) {
		t.Fatalf("got %v want %v", r.data, want)
	}
}

func TestRotateCW(t *testing.T) {
	// 1 2      3 1
	// 3 4  ->  4 2
	r := make2x2()
	out := rotateCW(r)
	want := []byte{3, 1, 4, 2}
	if string(out.data) != string(want) {
		t.Fatalf("got %v want %v", out.data, want)
	}
}

func TestRotateCCW(t *testing.T) {
	// 1 2      2 4
	// 3 4  ->  1 3
	r := make2x2()
	out := rotateCCW(r)
	want := []byte{2, 4, 1, 3}
	if string(out.data) != string(want) {
		t.Fatalf("got %v want %v", out.data, want)
	}
}

func TestApplyEXIFOrientationIdentity(t *testing.T) {
	r := make2x2()
	orig := append([]byte(nil), r.data...)
	out, err := applyEXIFOrientation(r, 1)
	if err != nil {
		t.Fatalf("applyEXIFOrientation: %v", err)
	}
	if string(out.data) != string(orig) {
		t.Fatalf("orientation 1 must be a no-op, got %v", out.data)
	}
}

func TestApplyEXIFOrientationSwapsDimensionsFor6(t *testing.T) {
	r := rasterBuf{data: make([]byte, 6), width: 3, height: 2, stride: 3, bpp: 1}
	out, err := applyEXIFOrientation(r, 6)
	if err != nil {
		t.Fatalf("applyEXIFOrientation: %v", err)
	}
	if out.width != 2 || out.height != 3 {
		t.Fatalf("got %dx%d, want 2x3", out.width, out.height)
	}
}

func TestApplyEXIFOrientationRejectsOutOfRange(t *testing.T) {
	r := make2x2()
	if _, err := applyEXIFOrientation(r, 9); err == nil {
		t.Fatal("expected an error for orientation value 9")
	}
}
