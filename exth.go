package mobi

import (
	"encoding/binary"
	"fmt"
)

// ExthTag identifies an EXTH metadata record.
type ExthTag uint32

// EXTH tags recognised by the package. Other tags are skipped.
const (
	ExthAuthor       ExthTag = 100
	ExthPublisher    ExthTag = 101
	ExthImprint      ExthTag = 102
	ExthDescription  ExthTag = 103
	ExthISBN         ExthTag = 104
	ExthSubject      ExthTag = 105
	ExthPublishDate  ExthTag = 106
	ExthReview       ExthTag = 107
	ExthContributor  ExthTag = 108
	ExthRights       ExthTag = 109
	ExthSource       ExthTag = 112
	ExthASIN         ExthTag = 113
	ExthKF8Boundary  ExthTag = 121
	ExthCoverOffset  ExthTag = 201
	ExthThumbOffset  ExthTag = 202
	ExthUpdatedTitle ExthTag = 503
	ExthLanguage     ExthTag = 524
)

// stringTags are decoded as text in the book's encoding.
var stringTags = map[ExthTag]bool{
	ExthAuthor:       true,
	ExthPublisher:    true,
	ExthImprint:      true,
	ExthDescription:  true,
	ExthISBN:         true,
	ExthSubject:      true,
	ExthPublishDate:  true,
	ExthReview:       true,
	ExthContributor:  true,
	ExthRights:       true,
	ExthSource:       true,
	ExthASIN:         true,
	ExthUpdatedTitle: true,
	ExthLanguage:     true,
}

// numericTags are decoded as big-endian unsigned integers.
var numericTags = map[ExthTag]bool{
	ExthKF8Boundary: true,
	ExthCoverOffset: true,
	ExthThumbOffset: true,
}

const (
	exthHeaderSize      = 12
	exthEntryHeaderSize = 8
)

// exthMap holds the recognised EXTH values. Repeated tags keep every value
// in file order; the first is the primary one.
type exthMap struct {
	strings  map[ExthTag][]string
	numbers  map[ExthTag]uint32
	rawCount int // entries declared by the block, recognised or not
}

func newExthMap() *exthMap {
	return &exthMap{
		strings: make(map[ExthTag][]string),
		numbers: make(map[ExthTag]uint32),
	}
}

// first returns the primary value of a string tag.
func (m *exthMap) first(tag ExthTag) (string, bool) {
	v := m.strings[tag]
	if len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// all returns a copy of every value recorded for tag.
func (m *exthMap) all(tag ExthTag) []string {
	return append([]string(nil), m.strings[tag]...)
}

// number returns the value of a numeric tag.
func (m *exthMap) number(tag ExthTag) (uint32, bool) {
	v, ok := m.numbers[tag]
	return v, ok
}

// parseEXTH parses the EXTH block found in b (which starts at the "EXTH"
// magic). decode converts raw string values to UTF-8.
//
// Only truncation is an error; unknown tags are skipped via their length
// prefix. found is false when the block does not start with the magic.
func parseEXTH(b []byte, decode func([]byte) string) (m *exthMap, found bool, err error) {
	m = newExthMap()
	if len(b) < exthHeaderSize || string(b[:4]) != "EXTH" {
		return m, false, nil
	}

	count := binary.BigEndian.Uint32(b[8:])
	m.rawCount = int(count)

	pos := exthHeaderSize
	for i := uint32(0); i < count; i++ {
		if pos+exthEntryHeaderSize > len(b) {
			return nil, true, fmt.Errorf("%w: EXTH entry %d header truncated at offset %d", ErrMalformedHeader, i, pos)
		}
		tag := ExthTag(binary.BigEndian.Uint32(b[pos:]))
		size := binary.BigEndian.Uint32(b[pos+4:])
		if size < exthEntryHeaderSize {
			return nil, true, fmt.Errorf("%w: EXTH entry %d (tag %d) declares length %d", ErrMalformedHeader, i, tag, size)
		}
		if int64(pos)+int64(size) > int64(len(b)) {
			return nil, true, fmt.Errorf("%w: EXTH entry %d (tag %d) length %d exceeds remaining %d bytes", ErrMalformedHeader, i, tag, size, len(b)-pos)
		}
		value := b[pos+exthEntryHeaderSize : pos+int(size)]
		pos += int(size)

		switch {
		case stringTags[tag]:
			m.strings[tag] = append(m.strings[tag], decode(value))
		case numericTags[tag]:
			if _, seen := m.numbers[tag]; !seen && len(value) > 0 {
				m.numbers[tag] = decodeEXTHNumber(value)
			}
		}
	}

	return m, true, nil
}

// decodeEXTHNumber decodes a big-endian value of up to four bytes.
// Longer values keep their last four bytes.
func decodeEXTHNumber(b []byte) uint32 {
	if len(b) > 4 {
		b = b[len(b)-4:]
	}
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}
