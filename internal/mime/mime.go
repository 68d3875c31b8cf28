// Package mime implements C8's content-type detection: sniff the first
// bytes of an image, then fall back to the caller-provided filename when
// the sniff result is unsure or a format known to be ambiguous by magic
// bytes alone.
//
// Grounded on Skryldev-image-processor/utils/helpers.go's DetectFormat:
// a handful of hardcoded magic-byte checks for formats net/http's
// sniffer table doesn't cover, falling back to http.DetectContentType
// for everything else. glycin decodes several formats DetectFormat's
// teacher never needed to (AVIF, HEIF, JPEG XL), so those magic checks
// are added here in the same style.
package mime

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/glycin-project/glycin/internal/glyerr"
)

// unsureContentType is what http.DetectContentType returns when no
// sniffing rule matches.
const unsureContentType = "application/octet-stream"

// ambiguousByMagic is the set of sniff results C8 calls out as
// ambiguous by magic bytes alone: TIFF's "II*\x00"/"MM\x00*" header is
// shared by most camera raw formats, generic XML can't be told apart
// from SVG without a filename, and gzip can wrap almost anything
// (including gzipped SVG, ".svgz").
var ambiguousByMagic = map[string]bool{
	"image/tiff":              true,
	"text/xml; charset=utf-8": true,
	"application/x-gzip":      true,
}

// extensionHints maps a lowercased file extension to the MIME type it
// implies, used only to disambiguate an unsure or ambiguous sniff — a
// sniff that confidently resolves to something else is trusted over
// the filename, since extensions lie more often than magic bytes do.
var extensionHints = map[string]string{
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".cr2":  "image/x-canon-cr2",
	".nef":  "image/x-nikon-nef",
	".dng":  "image/x-adobe-dng",
	".svg":  "image/svg+xml",
	".svgz": "image/svg+xml",
	".xml":  "text/xml",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",
	".jxl":  "image/jxl",
}

// magicSniffers are checked, in order, before falling back to
// http.DetectContentType, for formats its built-in sniffer table
// doesn't recognize.
var magicSniffers = []struct {
	mime  string
	match func([]byte) bool
}{
	{"image/avif", matchISOBMFFBrand("avif", "avis")},
	{"image/heic", matchISOBMFFBrand("heic", "heix", "hevc", "heim", "heis")},
	{"image/heif", matchISOBMFFBrand("mif1", "msf1")},
	{"image/jxl", matchJPEGXL},
}

// matchISOBMFFBrand reports a reader func matching an ISO base media
// file format ("ftyp"-boxed) blob whose major brand is one of brands —
// the container AVIF/HEIF/HEIC share with MP4, distinguished only by
// the 4-byte brand string at offset 8.
func matchISOBMFFBrand(brands ...string) func([]byte) bool {
	return func(data []byte) bool {
		if len(data) < 12 {
			return false
		}
		if string(data[4:8]) != "ftyp" {
			return false
		}
		brand := string(data[8:12])
		for _, b := range brands {
			if brand == b {
				return true
			}
		}
		return false
	}
}

// matchJPEGXL recognizes both the bare JPEG XL codestream signature and
// the ISOBMFF-boxed container signature.
func matchJPEGXL(data []byte) bool {
	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0x0A {
		return true
	}
	const boxed = "\x00\x00\x00\x0cJXL \x0d\x0a\x87\x0a"
	return len(data) >= len(boxed) && string(data[:len(boxed)]) == boxed
}

// Detect determines head's content type, using filename as a
// disambiguating hint when the magic-byte sniff is unsure or belongs to
// ambiguousByMagic. head should be at least a few hundred bytes when
// available (http.DetectContentType itself only ever looks at the first
// 512); a shorter slice is still accepted, just less reliable.
func Detect(head []byte, filename string) (string, error) {
	for _, sniffer := range magicSniffers {
		if sniffer.match(head) {
			return sniffer.mime, nil
		}
	}

	guess := unsureContentType
	if len(head) > 0 {
		guess = http.DetectContentType(head)
	}
	if guess == unsureContentType && (strings.HasPrefix(string(head), "II*\x00") || strings.HasPrefix(string(head), "MM\x00*")) {
		// net/http's sniffer table has no TIFF rule.
		guess = "image/tiff"
	}
	if guess != unsureContentType && !ambiguousByMagic[guess] {
		return guess, nil
	}

	if hint, ok := extensionHints[strings.ToLower(filepath.Ext(filename))]; ok {
		return hint, nil
	}

	if guess != unsureContentType {
		// Ambiguous by magic, but no extension hint available: trust
		// the sniff over returning nothing.
		return guess, nil
	}

	return "", glyerr.New(glyerr.KindUnknownContentType,
		fmt.Errorf("mime: could not determine content type for %q", filename))
}
