package mobi

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	huffHeaderSize = 24
	cdicHeaderSize = 16

	// huffMaxDepth bounds recursive expansion of dictionary phrases.
	huffMaxDepth = 20
)

var errHuffTooDeep = errors.New("huffman dictionary recursion too deep")

// huffCacheEntry is one entry of the 256-slot table indexed by the top
// eight bits of the next code.
type huffCacheEntry struct {
	codeLen  int
	terminal bool
	maxCode  uint64
}

// huffPhrase is a CDIC dictionary entry. Unexpanded phrases are themselves
// Huffman coded and must be decoded before use.
type huffPhrase struct {
	data     []byte
	expanded bool
}

// huffDecoder decodes HUFF/CDIC compressed text records. It carries the
// expansion cache for a single extraction and must not be shared.
type huffDecoder struct {
	cache   [256]huffCacheEntry
	minCode [33]uint64
	maxCode [33]uint64
	dict    []huffPhrase

	// state per phrase: 0 pending, 1 expanding, 2 expanded.
	state    []uint8
	expanded [][]byte

	limit int // remaining output budget
}

// newHuffDecoder builds the decode tables from the HUFF record and the
// dictionaries from the CDIC records that follow it.
func newHuffDecoder(huff []byte, cdics [][]byte, limit int) (*huffDecoder, error) {
	d := &huffDecoder{limit: limit}
	if err := d.loadHuff(huff); err != nil {
		return nil, err
	}
	for i, c := range cdics {
		if err := d.loadCDIC(c); err != nil {
			return nil, fmt.Errorf("CDIC record %d: %w", i, err)
		}
	}
	d.state = make([]uint8, len(d.dict))
	d.expanded = make([][]byte, len(d.dict))
	return d, nil
}

func (d *huffDecoder) loadHuff(huff []byte) error {
	if len(huff) < huffHeaderSize || string(huff[:4]) != "HUFF" {
		return errors.New("missing HUFF record")
	}
	off1 := int64(binary.BigEndian.Uint32(huff[8:]))
	off2 := int64(binary.BigEndian.Uint32(huff[12:]))
	if off1+256*4 > int64(len(huff)) || off2+64*4 > int64(len(huff)) {
		return errors.New("HUFF tables exceed record")
	}

	for i := range d.cache {
		v := binary.BigEndian.Uint32(huff[off1+int64(i)*4:])
		e := huffCacheEntry{
			codeLen:  int(v & 0x1F),
			terminal: v&0x80 != 0,
		}
		if e.codeLen == 0 {
			return fmt.Errorf("HUFF cache entry %d has zero code length", i)
		}
		if e.codeLen <= 8 && !e.terminal {
			return fmt.Errorf("HUFF cache entry %d: short code is not terminal", i)
		}
		e.maxCode = ((uint64(v>>8) + 1) << (32 - e.codeLen)) - 1
		d.cache[i] = e
	}

	d.minCode[0] = 0
	d.maxCode[0] = 1<<32 - 1
	for n := 1; n <= 32; n++ {
		lo := binary.BigEndian.Uint32(huff[off2+int64(n-1)*8:])
		hi := binary.BigEndian.Uint32(huff[off2+int64(n-1)*8+4:])
		d.minCode[n] = uint64(lo) << (32 - n)
		d.maxCode[n] = ((uint64(hi) + 1) << (32 - n)) - 1
	}
	return nil
}

func (d *huffDecoder) loadCDIC(cdic []byte) error {
	if len(cdic) < cdicHeaderSize || string(cdic[:4]) != "CDIC" {
		return errors.New("missing CDIC magic")
	}
	phrases := int64(binary.BigEndian.Uint32(cdic[8:]))
	bits := binary.BigEndian.Uint32(cdic[12:])
	if bits > 31 {
		return fmt.Errorf("invalid code bits %d", bits)
	}

	n := min(int64(1)<<bits, phrases-int64(len(d.dict)))
	if n <= 0 {
		return nil
	}
	if cdicHeaderSize+n*2 > int64(len(cdic)) {
		return errors.New("phrase offsets exceed record")
	}

	for i := int64(0); i < n; i++ {
		off := int64(binary.BigEndian.Uint16(cdic[cdicHeaderSize+i*2:]))
		pos := cdicHeaderSize + off
		if pos+2 > int64(len(cdic)) {
			return fmt.Errorf("phrase %d offset out of range", i)
		}
		blen := binary.BigEndian.Uint16(cdic[pos:])
		size := int64(blen & 0x7FFF)
		if pos+2+size > int64(len(cdic)) {
			return fmt.Errorf("phrase %d exceeds record", i)
		}
		d.dict = append(d.dict, huffPhrase{
			data:     cdic[pos+2 : pos+2+size],
			expanded: blen&0x8000 != 0,
		})
	}
	return nil
}

// decode appends the decoded form of one compressed text record to out.
func (d *huffDecoder) decode(out, in []byte) ([]byte, error) {
	return d.unpack(out, in, 0)
}

func (d *huffDecoder) unpack(out, in []byte, depth int) ([]byte, error) {
	if depth > huffMaxDepth {
		return nil, errHuffTooDeep
	}

	bitsLeft := len(in) * 8
	buf := make([]byte, len(in)+12)
	copy(buf, in)

	pos := 0
	x := binary.BigEndian.Uint64(buf[pos:])
	n := 32
	for {
		if n <= 0 {
			pos += 4
			if pos+8 > len(buf) {
				break
			}
			x = binary.BigEndian.Uint64(buf[pos:])
			n += 32
		}
		code := (x >> uint(n)) & 0xFFFFFFFF

		e := d.cache[code>>24]
		codeLen, maxCode := e.codeLen, e.maxCode
		if !e.terminal {
			for codeLen <= 32 && code < d.minCode[codeLen] {
				codeLen++
			}
			if codeLen > 32 {
				return nil, fmt.Errorf("invalid huffman code %#x", code)
			}
			maxCode = d.maxCode[codeLen]
		}

		n -= codeLen
		bitsLeft -= codeLen
		if bitsLeft < 0 {
			break
		}

		if maxCode < code {
			return nil, fmt.Errorf("invalid huffman code %#x", code)
		}
		r := int((maxCode - code) >> (32 - uint(codeLen)))
		if r >= len(d.dict) {
			return nil, fmt.Errorf("dictionary index %d out of range (%d phrases)", r, len(d.dict))
		}

		phrase, err := d.phrase(r, depth)
		if err != nil {
			return nil, err
		}
		if len(phrase) > d.limit {
			return nil, errors.New("decoded text exceeds size limit")
		}
		d.limit -= len(phrase)
		out = append(out, phrase...)
	}
	return out, nil
}

// phrase returns the literal bytes of dictionary entry r, expanding and
// caching it on first use.
func (d *huffDecoder) phrase(r, depth int) ([]byte, error) {
	p := d.dict[r]
	if p.expanded {
		return p.data, nil
	}
	switch d.state[r] {
	case 2:
		return d.expanded[r], nil
	case 1:
		return nil, fmt.Errorf("dictionary phrase %d refers to itself", r)
	}

	d.state[r] = 1
	saved := d.limit
	b, err := d.unpack(nil, p.data, depth+1)
	if err != nil {
		return nil, err
	}
	// Expansion output is charged when the phrase is emitted, not here.
	d.limit = saved
	d.state[r] = 2
	d.expanded[r] = b
	return b, nil
}
