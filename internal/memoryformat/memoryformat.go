// Package memoryformat defines the closed set of pixel layouts a frame's
// texture can be stored in. The enum and its per-variant metadata mirror
// the reference implementation exactly (same discriminants, same
// byte-width/channel-count/alpha/premultiplied table) so on-wire integers
// and host-side conversion logic stay correct.
package memoryformat

import "fmt"

// Format is a fixed pixel layout. Values match the reference
// implementation's discriminants 0-22 so the integer never needs
// translation across the wire.
type Format int32

const (
	B8g8r8a8Premultiplied          Format = 0
	A8r8g8b8Premultiplied          Format = 1
	R8g8b8a8Premultiplied          Format = 2
	B8g8r8a8                       Format = 3
	A8r8g8b8                       Format = 4
	R8g8b8a8                       Format = 5
	A8b8g8r8                       Format = 6
	R8g8b8                         Format = 7
	B8g8r8                         Format = 8
	R16g16b16                      Format = 9
	R16g16b16a16Premultiplied      Format = 10
	R16g16b16a16                   Format = 11
	R16g16b16Float                 Format = 12
	R16g16b16a16Float              Format = 13
	R32g32b32Float                 Format = 14
	R32g32b32a32FloatPremultiplied Format = 15
	R32g32b32a32Float              Format = 16
	G8a8Premultiplied              Format = 17
	G8a8                           Format = 18
	G8                             Format = 19
	G16a16Premultiplied            Format = 20
	G16a16                         Format = 21
	G16                            Format = 22
)

type info struct {
	name          string
	bytesPerPixel int
	channels      int
	hasAlpha      bool
	premultiplied bool
}

var table = map[Format]info{
	B8g8r8a8Premultiplied:          {"B8g8r8a8Premultiplied", 4, 4, true, true},
	A8r8g8b8Premultiplied:          {"A8r8g8b8Premultiplied", 4, 4, true, true},
	R8g8b8a8Premultiplied:          {"R8g8b8a8Premultiplied", 4, 4, true, true},
	B8g8r8a8:                       {"B8g8r8a8", 4, 4, true, false},
	A8r8g8b8:                       {"A8r8g8b8", 4, 4, true, false},
	R8g8b8a8:                       {"R8g8b8a8", 4, 4, true, false},
	A8b8g8r8:                       {"A8b8g8r8", 4, 4, true, false},
	R8g8b8:                         {"R8g8b8", 3, 3, false, false},
	B8g8r8:                         {"B8g8r8", 3, 3, false, false},
	R16g16b16:                      {"R16g16b16", 6, 3, false, false},
	R16g16b16a16Premultiplied:      {"R16g16b16a16Premultiplied", 8, 4, true, true},
	R16g16b16a16:                   {"R16g16b16a16", 8, 4, true, false},
	R16g16b16Float:                 {"R16g16b16Float", 6, 3, false, false},
	R16g16b16a16Float:              {"R16g16b16a16Float", 8, 4, true, false},
	R32g32b32Float:                 {"R32g32b32Float", 12, 3, false, false},
	R32g32b32a32FloatPremultiplied: {"R32g32b32a32FloatPremultiplied", 16, 4, true, true},
	R32g32b32a32Float:              {"R32g32b32a32Float", 16, 4, true, false},
	G8a8Premultiplied:              {"G8a8Premultiplied", 2, 2, true, true},
	G8a8:                           {"G8a8", 2, 2, true, false},
	G8:                             {"G8", 1, 1, false, false},
	G16a16Premultiplied:            {"G16a16Premultiplied", 4, 2, true, true},
	G16a16:                         {"G16a16", 4, 2, true, false},
	G16:                            {"G16", 2, 1, false, false},
}

// BytesPerPixel returns the size, in bytes, of one pixel in f.
func (f Format) BytesPerPixel() int { return table[f].bytesPerPixel }

// Channels returns the number of color/alpha channels f carries.
func (f Format) Channels() int { return table[f].channels }

// HasAlpha reports whether f carries an alpha channel.
func (f Format) HasAlpha() bool { return table[f].hasAlpha }

// IsPremultiplied reports whether f's alpha channel is premultiplied into
// the color channels.
func (f Format) IsPremultiplied() bool { return table[f].premultiplied }

// Valid reports whether f is one of the 23 known variants.
func (f Format) Valid() bool {
	_, ok := table[f]
	return ok
}

func (f Format) String() string {
	if in, ok := table[f]; ok {
		return in.name
	}
	return fmt.Sprintf("MemoryFormat(%d)", int32(f))
}
