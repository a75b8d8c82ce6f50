package mobitest

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// The encoder uses a complete two-length canonical code: 64 short codes of
// 7 bits resolved by the HUFF cache alone, and 2048 long codes of 12 bits
// that need the min/max code tables. Every bit pattern decodes, so the zero
// padding at the end of a record never forms a short code.
const (
	huffShortLen   = 7
	huffShortCount = 64
	huffLongLen    = 12
	huffLongCount  = 2048
	huffSymbols    = huffShortCount + huffLongCount

	// cdicBits splits the dictionary over two CDIC records.
	cdicBits = 11
)

// huffCodes maps a dictionary index to its code value and length.
type huffCodes struct {
	value  [huffSymbols]uint32
	length [huffSymbols]int
	hi     [33]uint32 // value of maxCode per length
	lo     [33]uint32 // smallest code per length
}

func newHuffCodes() *huffCodes {
	c := &huffCodes{}
	// Canonical codes with shorter codes numerically larger: complement
	// the usual canonical assignment.
	code := uint32(0)
	r := 0
	for _, l := range []struct{ n, count int }{{huffShortLen, huffShortCount}, {huffLongLen, huffLongCount}} {
		code <<= uint(l.n - lengthBefore(l.n))
		for k := 0; k < l.count; k++ {
			c.value[r] = (1<<uint(l.n) - 1) - code
			c.length[r] = l.n
			r++
			code++
		}
	}
	for n := 1; n <= 32; n++ {
		c.lo[n] = sentinel(n)
	}
	first := 0
	for _, l := range []struct{ n, count int }{{huffShortLen, huffShortCount}, {huffLongLen, huffLongCount}} {
		last := first + l.count - 1
		c.lo[l.n] = c.value[last]
		c.hi[l.n] = c.value[first] + uint32(first)
		first += l.count
	}
	return c
}

// lengthBefore returns the code length preceding n in the canonical order.
func lengthBefore(n int) int {
	if n == huffLongLen {
		return huffShortLen
	}
	return n
}

// sentinel is a min code no window can reach, so the decoder skips the
// length.
func sentinel(n int) uint32 {
	if n >= 32 {
		return 0xFFFFFFFF
	}
	return 1 << uint(n)
}

// huffRecord serialises the HUFF record: the 256-entry cache table followed
// by the min/max code tables.
func (c *huffCodes) huffRecord() []byte {
	const off1, off2 = 24, 24 + 256*4
	rec := make([]byte, off2+64*4)
	copy(rec, "HUFF")
	binary.BigEndian.PutUint32(rec[4:], 24)
	binary.BigEndian.PutUint32(rec[8:], off1)
	binary.BigEndian.PutUint32(rec[12:], off2)

	for i := 0; i < 256; i++ {
		prefix := uint32(i) >> (8 - huffShortLen)
		var v uint32
		if prefix >= c.lo[huffShortLen] {
			v = c.hi[huffShortLen]<<8 | 0x80 | huffShortLen
		} else {
			v = 9 // long code, resolved through the tables
		}
		binary.BigEndian.PutUint32(rec[off1+i*4:], v)
	}
	for n := 1; n <= 32; n++ {
		binary.BigEndian.PutUint32(rec[off2+(n-1)*8:], c.lo[n])
		binary.BigEndian.PutUint32(rec[off2+(n-1)*8+4:], c.hi[n])
	}
	return rec
}

// bitWriter packs codes MSB first.
type bitWriter struct {
	buf  []byte
	acc  uint64
	bits int
}

func (w *bitWriter) write(v uint32, n int) {
	w.acc = w.acc<<uint(n) | uint64(v)
	w.bits += n
	for w.bits >= 8 {
		w.bits -= 8
		w.buf = append(w.buf, byte(w.acc>>uint(w.bits)))
	}
}

func (w *bitWriter) bytes() []byte {
	if w.bits > 0 {
		w.buf = append(w.buf, byte(w.acc<<uint(8-w.bits)))
		w.bits = 0
	}
	return w.buf
}

// phrase is a CDIC entry; compound entries are stored Huffman coded.
type phrase struct {
	data     []byte
	expanded bool
}

// HuffEncoder compresses text records with HUFF/CDIC. Dictionary index 0
// is a compound phrase stored Huffman coded, so decoding exercises phrase
// expansion.
type HuffEncoder struct {
	codes   *huffCodes
	dict    []phrase
	literal map[string]int // literal phrase -> index, longest tried first
	words   []string
}

// NewHuffEncoder builds a dictionary from words (most frequent first) plus
// every single byte.
func NewHuffEncoder(words ...string) *HuffEncoder {
	e := &HuffEncoder{
		codes:   newHuffCodes(),
		dict:    make([]phrase, huffSymbols),
		literal: make(map[string]int),
	}

	next := 1
	add := func(s string) {
		if _, ok := e.literal[s]; ok || next >= huffSymbols || s == "" {
			return
		}
		e.dict[next] = phrase{data: []byte(s), expanded: true}
		e.literal[s] = next
		next++
	}
	for _, w := range words {
		add(w)
	}
	for b := 0; b < 256; b++ {
		add(string([]byte{byte(b)}))
	}
	for ; next < huffSymbols; next++ {
		e.dict[next] = phrase{expanded: true}
	}

	// Index 0 expands to "</p>" built from single-byte phrases.
	var w bitWriter
	for _, b := range []byte("</p>") {
		r := e.literal[string([]byte{b})]
		w.write(e.codes.value[r], e.codes.length[r])
	}
	e.dict[0] = phrase{data: w.bytes()}

	for s := range e.literal {
		if len(s) > 1 {
			e.words = append(e.words, s)
		}
	}
	sort.Slice(e.words, func(i, j int) bool {
		if len(e.words[i]) != len(e.words[j]) {
			return len(e.words[i]) > len(e.words[j])
		}
		return e.words[i] < e.words[j]
	})
	return e
}

// Encode compresses one text record.
func (e *HuffEncoder) Encode(data []byte) []byte {
	var w bitWriter
	for i := 0; i < len(data); {
		r, n := e.match(data[i:])
		w.write(e.codes.value[r], e.codes.length[r])
		i += n
	}
	return w.bytes()
}

func (e *HuffEncoder) match(data []byte) (index, n int) {
	if bytes.HasPrefix(data, []byte("</p>")) {
		return 0, 4
	}
	for _, s := range e.words {
		if bytes.HasPrefix(data, []byte(s)) {
			return e.literal[s], len(s)
		}
	}
	return e.literal[string(data[:1])], 1
}

// Records returns the HUFF record followed by its CDIC records.
func (e *HuffEncoder) Records() [][]byte {
	recs := [][]byte{e.codes.huffRecord()}
	per := 1 << cdicBits
	for start := 0; start < len(e.dict); start += per {
		recs = append(recs, e.cdicRecord(e.dict[start:min(start+per, len(e.dict))]))
	}
	return recs
}

func (e *HuffEncoder) cdicRecord(entries []phrase) []byte {
	hdr := make([]byte, 16)
	copy(hdr, "CDIC")
	binary.BigEndian.PutUint32(hdr[4:], 16)
	binary.BigEndian.PutUint32(hdr[8:], uint32(len(e.dict)))
	binary.BigEndian.PutUint32(hdr[12:], cdicBits)

	offsets := make([]byte, 2*len(entries))
	var body []byte
	for i, p := range entries {
		binary.BigEndian.PutUint16(offsets[2*i:], uint16(len(offsets)+len(body)))
		blen := uint16(len(p.data))
		if p.expanded {
			blen |= 0x8000
		}
		body = binary.BigEndian.AppendUint16(body, blen)
		body = append(body, p.data...)
	}
	return append(append(hdr, offsets...), body...)
}
