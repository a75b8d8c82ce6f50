package mobi

// trailingSize returns the number of trailing bytes appended to a text
// record, as declared by the MOBI extra record data flags.
//
// Bits 1..15 each add one entry whose size is stored as a backward-encoded
// varint at the current end of the record (the size includes the varint).
// Bit 0 marks multibyte overlap: the low two bits of the byte before the
// other entries give the overlap length minus one.
func trailingSize(data []byte, flags uint16) int {
	size := 0
	for f := flags >> 1; f != 0; f >>= 1 {
		if f&1 != 0 {
			size += trailingEntrySize(data[:max(len(data)-size, 0)])
		}
	}
	if flags&1 != 0 {
		if n := len(data) - size; n > 0 {
			size += int(data[n-1]&0x3) + 1
		}
	}
	return size
}

// trailingEntrySize decodes the backward varint that ends data. The last
// byte holds the least significant seven bits; the first byte of the varint
// has its high bit set.
func trailingEntrySize(data []byte) int {
	result, shift := 0, 0
	for n := len(data); n > 0; {
		v := data[n-1]
		result |= int(v&0x7F) << shift
		shift += 7
		n--
		if v&0x80 != 0 || shift >= 28 {
			break
		}
	}
	return result
}

// stripTrailing returns data without its trailing entries. A declared
// trailer larger than the record yields an empty payload.
func stripTrailing(data []byte, flags uint16) []byte {
	if flags == 0 {
		return data
	}
	n := trailingSize(data, flags)
	if n >= len(data) {
		return data[:0]
	}
	return data[:len(data)-n]
}
