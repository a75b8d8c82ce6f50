package mobi

import (
	"bytes"
)

// Cover returns the cover image. Strategies are tried in priority order:
//  1. EXTH 201 cover offset, relative to the first resource record
//  2. EXTH 202 thumbnail offset, relative to the first resource record
//
// Returns ErrNoCover if neither resolves to a recognised image record.
func (d *Document) Cover() (CoverImage, error) {
	for _, tag := range []ExthTag{ExthCoverOffset, ExthThumbOffset} {
		if img, ok := d.imageFromOffset(tag); ok {
			return img, nil
		}
	}
	return CoverImage{}, ErrNoCover
}

// imageFromOffset resolves an EXTH resource offset to an image record.
func (d *Document) imageFromOffset(tag ExthTag) (CoverImage, bool) {
	off, ok := d.exth.number(tag)
	if !ok || off == notSet || d.h.FirstResource == notSet {
		return CoverImage{}, false
	}
	idx := int64(d.h.FirstResource) + int64(off)
	if idx <= 0 || idx >= int64(len(d.c.records)) {
		return CoverImage{}, false
	}

	data := d.c.record(int(idx))
	mediaType := imageMediaType(data)
	if mediaType == "" {
		return CoverImage{}, false
	}
	return CoverImage{
		Record:    int(idx),
		MediaType: mediaType,
		Data:      bytes.Clone(data),
	}, true
}

// Image signatures recognised in resource records.
var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	gifMagic  = []byte("GIF8")
	bmpMagic  = []byte("BM")
)

// imageMediaType detects the MIME type from the image signature.
// It returns an empty string for unrecognised data.
func imageMediaType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return "image/jpeg"
	case bytes.HasPrefix(data, pngMagic):
		return "image/png"
	case bytes.HasPrefix(data, gifMagic):
		return "image/gif"
	case len(data) >= 4 && bytes.HasPrefix(data, bmpMagic):
		return "image/bmp"
	default:
		return ""
	}
}
