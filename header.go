package mobi

import (
	"encoding/binary"
	"fmt"
)

// Compression types declared in the PalmDOC header.
const (
	CompressionNone     = 1
	CompressionPalmDOC  = 2
	CompressionHuffCDIC = 17480
)

// Text encodings declared in the MOBI header.
const (
	EncodingCP1252 = 1252
	EncodingUTF8   = 65001
)

const (
	palmDOCHeaderSize = 16
	mobiMagicOffset   = 16
	exthFlagPresent   = 0x40

	// notSet marks an absent record index in the MOBI header.
	notSet = 0xFFFFFFFF

	// extraFlagsMinHeaderLen is the smallest MOBI header length that
	// carries the extra record data flags.
	extraFlagsMinHeaderLen = 0xE4
)

// mobiHeader holds the fields of record 0 used by the package.
// Offsets noted in comments are relative to the start of record 0.
type mobiHeader struct {
	// PalmDOC header.
	Compression     uint16 // 0
	TextLength      uint32 // 4
	TextRecordCount uint16 // 8
	RecordSize      uint16 // 10
	Encryption      uint16 // 12

	// MOBI header, only set when HasMOBI is true.
	HasMOBI         bool
	HeaderLength    uint32 // 20
	Type            uint32 // 24
	Encoding        uint32 // 28
	UID             uint32 // 32
	Version         uint32 // 36
	FullNameOffset  uint32 // 84
	FullNameLength  uint32 // 88
	Locale          uint32 // 92
	FirstResource   uint32 // 108
	HuffRecord      uint32 // 112
	HuffRecordCount uint32 // 116
	EXTHFlags       uint32 // 128
	DRMOffset       uint32 // 168
	DRMCount        uint32 // 172
	DRMSize         uint32 // 176
	DRMFlags        uint32 // 180
	FirstContent    uint16 // 192
	LastContent     uint16 // 194
	ExtraFlags      uint16 // 242

	FullName string
}

// headerReader reads big-endian fields from record 0, limited to the end of
// the MOBI header. Fields past the limit read as their zero default.
type headerReader struct {
	b   []byte
	end int
}

func (r headerReader) u32(off int, def uint32) uint32 {
	if off+4 > r.end {
		return def
	}
	return binary.BigEndian.Uint32(r.b[off:])
}

func (r headerReader) u16(off int, def uint16) uint16 {
	if off+2 > r.end {
		return def
	}
	return binary.BigEndian.Uint16(r.b[off:])
}

// parseHeader interprets record 0 as a PalmDOC header optionally followed by
// a MOBI header. It fails only when the declared structure is truncated.
func parseHeader(rec0 []byte) (*mobiHeader, error) {
	if len(rec0) < palmDOCHeaderSize {
		return nil, fmt.Errorf("%w: record 0 is %d bytes, need %d", ErrMalformedHeader, len(rec0), palmDOCHeaderSize)
	}

	h := &mobiHeader{
		Compression:     binary.BigEndian.Uint16(rec0[0:]),
		TextLength:      binary.BigEndian.Uint32(rec0[4:]),
		TextRecordCount: binary.BigEndian.Uint16(rec0[8:]),
		RecordSize:      binary.BigEndian.Uint16(rec0[10:]),
		Encryption:      binary.BigEndian.Uint16(rec0[12:]),
		Encoding:        EncodingCP1252,
		FirstResource:   notSet,
		HuffRecord:      notSet,
		DRMOffset:       notSet,
	}

	if len(rec0) < mobiMagicOffset+8 || string(rec0[mobiMagicOffset:mobiMagicOffset+4]) != "MOBI" {
		// Plain PalmDOC: no MOBI header, no EXTH.
		return h, nil
	}

	h.HasMOBI = true
	h.HeaderLength = binary.BigEndian.Uint32(rec0[20:])
	end := int64(mobiMagicOffset) + int64(h.HeaderLength)
	if h.HeaderLength < 8 || end > int64(len(rec0)) {
		return nil, fmt.Errorf("%w: MOBI header length %d exceeds record 0 (%d bytes)", ErrMalformedHeader, h.HeaderLength, len(rec0))
	}

	r := headerReader{b: rec0, end: int(end)}
	h.Type = r.u32(24, 0)
	h.Encoding = r.u32(28, EncodingCP1252)
	h.UID = r.u32(32, 0)
	h.Version = r.u32(36, 0)
	h.FullNameOffset = r.u32(84, notSet)
	h.FullNameLength = r.u32(88, 0)
	h.Locale = r.u32(92, 0)
	h.FirstResource = r.u32(108, notSet)
	h.HuffRecord = r.u32(112, notSet)
	h.HuffRecordCount = r.u32(116, 0)
	h.EXTHFlags = r.u32(128, 0)
	h.DRMOffset = r.u32(168, notSet)
	h.DRMCount = r.u32(172, 0)
	h.DRMSize = r.u32(176, 0)
	h.DRMFlags = r.u32(180, 0)
	h.FirstContent = r.u16(192, 1)
	h.LastContent = r.u16(194, 0)
	if h.HeaderLength >= extraFlagsMinHeaderLen {
		h.ExtraFlags = r.u16(242, 0)
	}

	// The full name lives anywhere in record 0, usually after EXTH.
	if h.FullNameOffset != notSet && h.FullNameLength > 0 {
		start := int64(h.FullNameOffset)
		stop := start + int64(h.FullNameLength)
		if stop <= int64(len(rec0)) {
			h.FullName = string(rec0[start:stop])
		}
	}

	return h, nil
}

// hasEXTH reports whether the header declares an EXTH block.
func (h *mobiHeader) hasEXTH() bool {
	return h.HasMOBI && h.EXTHFlags&exthFlagPresent != 0
}

// exthOffset returns the position of the EXTH block within record 0.
func (h *mobiHeader) exthOffset() int {
	return mobiMagicOffset + int(h.HeaderLength)
}
