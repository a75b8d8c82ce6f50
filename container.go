package mobi

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PDB header layout.
const (
	pdbHeaderSize     = 78
	pdbNameSize       = 32
	pdbTypeOffset     = 60
	pdbCountOffset    = 76
	pdbRecordInfoSize = 8
)

// Accepted type/creator signatures at offset 60.
var pdbSignatures = [][]byte{
	[]byte("BOOKMOBI"),
	[]byte("TEXtREAd"),
}

// record describes one entry of the PDB record list.
type record struct {
	Offset     uint32
	Length     uint32
	Attributes uint8
	UID        uint32
}

// container is the parsed PDB envelope. data is borrowed from the caller.
type container struct {
	data    []byte
	name    string
	kind    string // type+creator, e.g. "BOOKMOBI"
	records []record
}

// parseContainer validates the PDB header and builds the record table.
//
// Offsets must lie within data and must not decrease; each record extends to
// the next record's offset and the last one to the end of data.
func parseContainer(data []byte) (*container, error) {
	if len(data) < pdbHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrContainerTooShort, len(data), pdbHeaderSize)
	}

	sig := data[pdbTypeOffset : pdbTypeOffset+8]
	if !isKnownSignature(sig) {
		return nil, fmt.Errorf("%w: unknown type/creator %q", ErrMalformedContainer, sig)
	}

	count := int(binary.BigEndian.Uint16(data[pdbCountOffset:]))
	if count == 0 {
		return nil, fmt.Errorf("%w: no records", ErrMalformedContainer)
	}
	tableEnd := pdbHeaderSize + count*pdbRecordInfoSize
	if tableEnd > len(data) {
		return nil, fmt.Errorf("%w: record list of %d entries exceeds file size %d", ErrMalformedContainer, count, len(data))
	}

	c := &container{
		data:    data,
		name:    pdbName(data[:pdbNameSize]),
		kind:    string(sig),
		records: make([]record, count),
	}

	for i := range c.records {
		p := data[pdbHeaderSize+i*pdbRecordInfoSize:]
		off := binary.BigEndian.Uint32(p)
		if int64(off) > int64(len(data)) {
			return nil, fmt.Errorf("%w: record %d offset %d exceeds file size %d", ErrMalformedContainer, i, off, len(data))
		}
		if off < uint32(tableEnd) {
			return nil, fmt.Errorf("%w: record %d offset %d overlaps record list", ErrMalformedContainer, i, off)
		}
		if i > 0 && off < c.records[i-1].Offset {
			return nil, fmt.Errorf("%w: record %d offset %d precedes record %d", ErrMalformedContainer, i, off, i-1)
		}
		c.records[i] = record{
			Offset:     off,
			Attributes: p[4],
			UID:        uint32(p[5])<<16 | uint32(p[6])<<8 | uint32(p[7]),
		}
	}

	for i := range c.records {
		end := uint32(len(data))
		if i+1 < len(c.records) {
			end = c.records[i+1].Offset
		}
		c.records[i].Length = end - c.records[i].Offset
	}

	return c, nil
}

// isKnownSignature reports whether sig is an accepted PDB type/creator pair.
func isKnownSignature(sig []byte) bool {
	for _, s := range pdbSignatures {
		if bytes.Equal(sig, s) {
			return true
		}
	}
	return false
}

// pdbName returns the NUL-terminated database name.
func pdbName(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// record returns the payload of record i, or nil if i is out of range.
// The returned slice aliases the input buffer.
func (c *container) record(i int) []byte {
	if i < 0 || i >= len(c.records) {
		return nil
	}
	r := c.records[i]
	return c.data[r.Offset : r.Offset+r.Length]
}

// isMOBI reports whether the container carries a MOBI book rather than a
// plain PalmDOC text.
func (c *container) isMOBI() bool {
	return c.kind == "BOOKMOBI"
}
