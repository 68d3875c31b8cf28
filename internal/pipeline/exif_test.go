package pipeline

import "testing"

func buildMinimalEXIF(littleEndian bool, orientation uint16, includeTag bool) []byte {
	var order []byte
	var put16 func([]byte, uint16)
	var put32 func([]byte, uint32)
	if littleEndian {
		order = []byte{'I', 'I'}
		put16 = func(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
		put32 = func(b []byte, v uint32) { b[0] = byte(v); b[1] = byte(v >> 8); b[2] = byte(v >> 16); b[3] = byte(v >> 24) }
	} else {
		order = []byte{'M', 'M'}
		put16 = func(b []byte, v uint16) { b[0] = byte(v >> 8); b[1] = byte(v) }
		put32 = func(b []byte, v uint32) { b[0] = byte(v >> 24); b[1] = byte(v >> 16); b[2] = byte(v >> 8); b[3] = byte(v) }
	}

	buf := make([]byte, 8)
	copy(buf[0:2], order)
	put16(buf[2:4], 42)
	put32(buf[4:8], 8) // IFD0 starts right after the header

	if !includeTag {
		buf = append(buf, make([]byte, 2)...)
		put16(buf[8:10], 0) // zero entries
		return buf
	}

	entryCount := uint16(1)
	buf = append(buf, make([]byte, 2+12)...)
	put16(buf[8:10], entryCount)
	entry := buf[10:22]
	put16(entry[0:2], orientationTag)
	put16(entry[2:4], 3) // SHORT
	put32(entry[4:8], 1) // count
	put16(entry[8:10], orientation)
	return buf
}

func TestReadEXIFOrientationLittleEndian(t *testing.T) {
	data := buildMinimalEXIF(true, 6, true)
	got, err := ReadEXIFOrientation(data)
	if err != nil {
		t.Fatalf("ReadEXIFOrientation: %v", err)
	}
	if got != 6 {
		t.Fatalf("got orientation %d, want 6", got)
	}
}

func TestReadEXIFOrientationBigEndian(t *testing.T) {
	data := buildMinimalEXIF(false, 3, true)
	got, err := ReadEXIFOrientation(data)
	if err != nil {
		t.Fatalf("ReadEXIFOrientation: %v", err)
	}
	if got != 3 {
		t.Fatalf("got orientation %d, want 3", got)
	}
}

func TestReadEXIFOrientationAbsentTagDefaultsToNormal(t *testing.T) {
	data := buildMinimalEXIF(true, 0, false)
	got, err := ReadEXIFOrientation(data)
	if err != nil {
		t.Fatalf("ReadEXIFOrientation: %v", err)
	}
	if got != 1 {
		t.Fatalf("got orientation %d, want 1 (absent tag default)", got)
	}
}

func TestReadEXIFOrientationTooShortIsNormal(t *testing.T) {
	got, err := ReadEXIFOrientation([]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("ReadEXIFOrientation: %v", err)
	}
	if got != 1 {
		t.Fatalf("got orientation %d, want 1", got)
	}
}

func TestReadEXIFOrientationBadMarker(t *testing.T) {
	if _, err := ReadEXIFOrientation([]byte("XXnotexif")); err == nil {
		t.Fatal("expected an error for an unrecognized byte-order marker")
	}
}
