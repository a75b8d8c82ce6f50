// Package mobitest builds synthetic MOBI and PalmDOC files for tests.
package mobitest

import (
	"encoding/binary"
)

// Compression types written to the PalmDOC header.
const (
	CompressionNone     = 1
	CompressionPalmDOC  = 2
	CompressionHuffCDIC = 17480
)

// Trailing entry flags understood by Book.
const (
	FlagMultibyte = 0x1
	FlagIndexing  = 0x2
)

const (
	defaultRecordSize = 4096
	mobiHeaderLength  = 0xE8
	notSet            = 0xFFFFFFFF
)

// XMLDeclaration opens the text of Rust.
const XMLDeclaration = `<?xml version="1.0" encoding="UTF-8"?>`

// EXTH is one metadata record.
type EXTH struct {
	Tag   uint32
	Value []byte
}

// String returns a text EXTH record.
func String(tag uint32, s string) EXTH {
	return EXTH{Tag: tag, Value: []byte(s)}
}

// Number returns a four-byte numeric EXTH record.
func Number(tag, n uint32) EXTH {
	return EXTH{Tag: tag, Value: binary.BigEndian.AppendUint32(nil, n)}
}

// Book describes a file to build. The zero value plus Text yields an
// uncompressed UTF-8 BOOKMOBI file.
type Book struct {
	Name        string // PDB database name
	Kind        string // type+creator, default "BOOKMOBI"
	NoMOBI      bool   // write only the PalmDOC header
	Text        []byte
	Compression uint16 // default CompressionNone
	RecordSize  int    // uncompressed bytes per text record, default 4096
	Encoding    uint32 // default 65001
	Locale      uint32
	Version     uint32 // default 6
	FullName    string
	EXTH        []EXTH
	ExtraFlags  uint16 // FlagMultibyte and FlagIndexing add trailing entries
	Encryption  uint16

	// TextLength overrides the declared text length when non-zero.
	TextLength uint32

	// Resources are appended after the text records; FirstResource points
	// at the first of them.
	Resources [][]byte

	// HuffWords seeds the HUFF/CDIC dictionary.
	HuffWords []string
}

// Chunks splits Text into uncompressed record payloads.
func (b *Book) Chunks() [][]byte {
	size := b.RecordSize
	if size <= 0 {
		size = defaultRecordSize
	}
	var chunks [][]byte
	for i := 0; i < len(b.Text); i += size {
		chunks = append(chunks, b.Text[i:min(i+size, len(b.Text))])
	}
	return chunks
}

// Records returns every PDB record of the book, record 0 first.
func (b *Book) Records() [][]byte {
	chunks := b.Chunks()

	var huff *HuffEncoder
	if b.compression() == CompressionHuffCDIC {
		huff = NewHuffEncoder(b.HuffWords...)
	}

	text := make([][]byte, len(chunks))
	for i, c := range chunks {
		var rec []byte
		switch b.compression() {
		case CompressionPalmDOC:
			rec = CompressPalmDOC(c)
		case CompressionHuffCDIC:
			rec = huff.Encode(c)
		default:
			rec = append([]byte(nil), c...)
		}
		text[i] = b.appendTrailing(rec)
	}

	recs := [][]byte{nil}
	recs = append(recs, text...)

	huffRecord, huffCount := uint32(notSet), uint32(0)
	if huff != nil {
		hr := huff.Records()
		huffRecord, huffCount = uint32(len(recs)), uint32(len(hr))
		recs = append(recs, hr...)
	}

	firstResource := uint32(notSet)
	if len(b.Resources) > 0 {
		firstResource = uint32(len(recs))
		recs = append(recs, b.Resources...)
	}

	recs[0] = b.record0(len(text), huffRecord, huffCount, firstResource)
	return recs
}

// Bytes returns the complete file.
func (b *Book) Bytes() []byte {
	kind := b.Kind
	if kind == "" {
		kind = "BOOKMOBI"
	}
	return PDB(b.Name, kind, b.Records())
}

func (b *Book) compression() uint16 {
	if b.Compression == 0 {
		return CompressionNone
	}
	return b.Compression
}

// appendTrailing adds one multibyte overlap byte and a three-byte entry
// per declared flag.
func (b *Book) appendTrailing(rec []byte) []byte {
	if b.ExtraFlags&FlagMultibyte != 0 {
		rec = append(rec, 0x00) // overlap of one byte, itself
	}
	for bit := 15; bit >= 1; bit-- {
		if b.ExtraFlags&(1<<uint(bit)) != 0 {
			rec = append(rec, 0xEE, 0xEE, 0x83)
		}
	}
	return rec
}

func (b *Book) record0(textRecords int, huffRecord, huffCount, firstResource uint32) []byte {
	textLength := b.TextLength
	if textLength == 0 {
		textLength = uint32(len(b.Text))
	}
	size := b.RecordSize
	if size <= 0 {
		size = defaultRecordSize
	}

	rec := make([]byte, 16)
	binary.BigEndian.PutUint16(rec[0:], b.compression())
	binary.BigEndian.PutUint32(rec[4:], textLength)
	binary.BigEndian.PutUint16(rec[8:], uint16(textRecords))
	binary.BigEndian.PutUint16(rec[10:], uint16(size))
	binary.BigEndian.PutUint16(rec[12:], b.Encryption)
	if b.NoMOBI {
		return rec
	}

	encoding := b.Encoding
	if encoding == 0 {
		encoding = 65001
	}
	version := b.Version
	if version == 0 {
		version = 6
	}

	hdr := make([]byte, mobiHeaderLength)
	put := func(off int, v uint32) { binary.BigEndian.PutUint32(hdr[off-16:], v) }
	copy(hdr, "MOBI")
	put(20, mobiHeaderLength)
	put(24, 2)
	put(28, encoding)
	put(32, 0x5EED)
	put(36, version)
	put(92, b.Locale)
	put(108, firstResource)
	put(112, huffRecord)
	put(116, huffCount)
	put(168, notSet)
	binary.BigEndian.PutUint16(hdr[192-16:], 1)
	binary.BigEndian.PutUint16(hdr[194-16:], uint16(textRecords))
	binary.BigEndian.PutUint16(hdr[242-16:], b.ExtraFlags)

	var exth []byte
	if len(b.EXTH) > 0 {
		put(128, 0x40)
		exth = buildEXTH(b.EXTH)
	}
	rec = append(rec, hdr...)
	rec = append(rec, exth...)

	if b.FullName != "" {
		binary.BigEndian.PutUint32(rec[84:], uint32(len(rec)))
		binary.BigEndian.PutUint32(rec[88:], uint32(len(b.FullName)))
		rec = append(rec, b.FullName...)
		rec = append(rec, 0, 0)
	} else {
		binary.BigEndian.PutUint32(rec[84:], notSet)
	}
	return rec
}

func buildEXTH(entries []EXTH) []byte {
	body := []byte{}
	for _, e := range entries {
		body = binary.BigEndian.AppendUint32(body, e.Tag)
		body = binary.BigEndian.AppendUint32(body, uint32(len(e.Value)+8))
		body = append(body, e.Value...)
	}
	out := []byte("EXTH")
	out = binary.BigEndian.AppendUint32(out, uint32(len(body)+12))
	out = binary.BigEndian.AppendUint32(out, uint32(len(entries)))
	out = append(out, body...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

// PDB frames records in a Palm database.
func PDB(name, kind string, records [][]byte) []byte {
	hdr := make([]byte, 78)
	copy(hdr[:31], name)
	copy(hdr[60:68], kind)
	binary.BigEndian.PutUint16(hdr[76:], uint16(len(records)))

	offset := 78 + 8*len(records) + 2
	table := make([]byte, 0, 8*len(records)+2)
	for i, r := range records {
		table = binary.BigEndian.AppendUint32(table, uint32(offset))
		table = binary.BigEndian.AppendUint32(table, uint32(2*i)) // attributes 0, uid 2i
		offset += len(r)
	}
	table = append(table, 0, 0)

	out := append(hdr, table...)
	for _, r := range records {
		out = append(out, r...)
	}
	return out
}
