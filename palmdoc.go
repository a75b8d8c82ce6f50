package mobi

import "fmt"

// PalmDOC back-reference limits.
const (
	palmDOCMaxDistance = 0x7FF
	palmDOCMinLength   = 3
	palmDOCMaxLength   = 10
)

// decompressPalmDOC appends the decompressed form of one PalmDOC record to
// out and returns the extended slice. limit caps the total length of out.
//
// Byte classes:
//
//	0x00, 0x09-0x7F  literal byte
//	0x01-0x08        copy the next N bytes verbatim
//	0x80-0xBF        with the next byte, an 11-bit distance and 3-bit length-3
//	0xC0-0xFF        a space followed by (b ^ 0x80)
func decompressPalmDOC(out, in []byte, limit int) ([]byte, error) {
	start := len(out)
	for i := 0; i < len(in); {
		if len(out) > limit {
			return nil, fmt.Errorf("output exceeds %d bytes", limit)
		}
		b := in[i]
		i++

		switch {
		case b == 0x00 || (b >= 0x09 && b <= 0x7F):
			out = append(out, b)

		case b <= 0x08:
			n := int(b)
			if i+n > len(in) {
				return nil, fmt.Errorf("literal run of %d bytes at offset %d overflows record", n, i-1)
			}
			out = append(out, in[i:i+n]...)
			i += n

		case b <= 0xBF:
			if i >= len(in) {
				return nil, fmt.Errorf("back reference at offset %d missing second byte", i-1)
			}
			pair := int(b)<<8 | int(in[i])
			i++
			dist := (pair >> 3) & palmDOCMaxDistance
			length := pair&7 + palmDOCMinLength
			// Back references never reach into a previous record.
			if dist == 0 || dist > len(out)-start {
				return nil, fmt.Errorf("back reference distance %d at offset %d exceeds %d decoded bytes", dist, i-2, len(out)-start)
			}
			from := len(out) - dist
			for j := 0; j < length; j++ {
				out = append(out, out[from+j])
			}

		default:
			out = append(out, ' ', b^0x80)
		}
	}
	if len(out) > limit {
		return nil, fmt.Errorf("output exceeds %d bytes", limit)
	}
	return out, nil
}
