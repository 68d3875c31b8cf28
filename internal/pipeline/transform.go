package pipeline

import "fmt"

// rasterBuf is an unpacked view of a frame's pixel data used by the
// orientation and format-conversion steps: stride may exceed
// width*bytesPerPixel (row padding), so every transform below walks rows
// explicitly rather than assuming a packed buffer.
type rasterBuf struct {
	data   []byte
	width  int
	height int
	stride int
	bpp    int
}

func (r rasterBuf) row(y int) []byte {
	off := y * r.stride
	return r.data[off : off+r.width*r.bpp]
}

func (r rasterBuf) pixel(row []byte, x int) []byte {
	off := x * r.bpp
	return row[off : off+r.bpp]
}

// mirrorHorizontal reverses each row's pixel order, in place, preserving
// dimensions and stride.
func mirrorHorizontal(r rasterBuf) {
	for y := 0; y < r.height; y++ {
		row := r.row(y)
		for x := 0; x < r.width/2; x++ {
			a := r.pixel(row, x)
			b := r.pixel(row, r.width-1-x)
			for i := 0; i < r.bpp; i++ {
				a[i], b[i] = b[i], a[i]
			}
		}
	}
}

// mirrorVertical reverses row order, in place.
func mirrorVertical(r rasterBuf) {
	for y := 0; y < r.height/2; y++ {
		top := r.row(y)
		bottom := r.row(r.height - 1 - y)
		for i := 0; i < r.width*r.bpp; i++ {
			top[i], bottom[i] = bottom[i], top[i]
		}
	}
}

// rotate180 reverses both row and pixel order, in place.
func rotate180(r rasterBuf) {
	mirrorHorizontal(r)
	mirrorVertical(r)
}

// rotateCW builds a new, tightly packed (stride == width*bpp) buffer
// holding src rotated 90 degrees clockwise; width and height swap.
func rotateCW(r rasterBuf) rasterBuf {
	newWidth, newHeight := r.height, r.width
	newStride := newWidth * r.bpp
	out := make([]byte, newStride*newHeight)
	dst := rasterBuf{data: out, width: newWidth, height: newHeight, stride: newStride, bpp: r.bpp}
	for y := 0; y < r.height; y++ {
		srcRow := r.row(y)
		dstX := r.height - 1 - y
		for x := 0; x < r.width; x++ {
			dstRow := dst.row(x)
			copy(dst.pixel(dstRow, dstX), r.pixel(srcRow, x))
		}
	}
	return dst
}

// rotateCCW is rotateCW applied three times, expressed directly instead
// of by composition to avoid three full-buffer passes.
func rotateCCW(r rasterBuf) rasterBuf {
	newWidth, newHeight := r.height, r.width
	newStride := newWidth * r.bpp
	out := make([]byte, newStride*newHeight)
	dst := rasterBuf{data: out, width: newWidth, height: newHeight, stride: newStride, bpp: r.bpp}
	for y := 0; y < r.height; y++ {
		srcRow := r.row(y)
		dstX := y
		for x := 0; x < r.width; x++ {
			dstY := r.width - 1 - x
			dstRow := dst.row(dstY)
			copy(dst.pixel(dstRow, dstX), r.pixel(srcRow, x))
		}
	}
	return dst
}

// applyEXIFOrientation applies the transform implied by orientation
// (the standard EXIF 1-8 values) to r, returning the resulting buffer
// (which may have swapped dimensions for 5-8).
func applyEXIFOrientation(r rasterBuf, orientation uint16) (rasterBuf, error) {
	switch orientation {
	case 1, 0:
		return r, nil
	case 2:
		mirrorHorizontal(r)
		return r, nil
	case 3:
		rotate180(r)
		return r, nil
	case 4:
		mirrorVertical(r)
		return r, nil
	case 5: // transpose: mirror horizontal, then rotate 270 CW
		mirrorHorizontal(r)
		return rotateCCW(r), nil
	case 6: // rotate 90 CW
		return rotateCW(r), nil
	case 7: // transverse: mirror horizontal, then rotate 90 CW
		mirrorHorizontal(r)
		return rotateCW(r), nil
	case 8: // rotate 270 CW (90 CCW)
		return rotateCCW(r), nil
	default:
		return r, fmt.Errorf("pipeline: orientation value %d out of range 0-8", orientation)
	}
}
