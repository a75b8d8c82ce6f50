package mobitest

// PalmDOC back-reference window.
const (
	palmDOCMaxDistance = 2047
	palmDOCMinLength   = 3
	palmDOCMaxLength   = 10
)

// CompressPalmDOC compresses one text record with PalmDOC LZ77. Back
// references never reach before the start of data.
func CompressPalmDOC(data []byte) []byte {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		if n, dist := findMatch(data, i); n >= palmDOCMinLength {
			pair := dist<<3 | (n - palmDOCMinLength)
			out = append(out, byte(0x80|pair>>8), byte(pair))
			i += n
			continue
		}

		if data[i] == ' ' && i+1 < len(data) && data[i+1] >= 0x40 && data[i+1] <= 0x7F {
			out = append(out, data[i+1]^0x80)
			i += 2
			continue
		}

		if b := data[i]; isPalmDOCLiteral(b) {
			out = append(out, b)
			i++
			continue
		}

		// Bytes 0x01-0x08 and 0x80-0xFF travel in a literal run of up to 8.
		start := i
		for i < len(data) && i-start < 8 && !isPalmDOCLiteral(data[i]) {
			i++
		}
		out = append(out, byte(i-start))
		out = append(out, data[start:i]...)
	}
	return out
}

func isPalmDOCLiteral(b byte) bool {
	return b == 0x00 || (b >= 0x09 && b <= 0x7F)
}

// findMatch returns the longest earlier match for data[pos:] and its distance.
func findMatch(data []byte, pos int) (length, dist int) {
	maxLen := min(palmDOCMaxLength, len(data)-pos)
	if maxLen < palmDOCMinLength {
		return 0, 0
	}
	for d := 1; d <= min(pos, palmDOCMaxDistance); d++ {
		n := 0
		for n < maxLen && data[pos-d+n] == data[pos+n] {
			n++
		}
		if n > length {
			length, dist = n, d
			if n == maxLen {
				break
			}
		}
	}
	return length, dist
}
