package mobi

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decoderFor returns a function converting raw bytes in the given MOBI text
// encoding to a UTF-8 string. Unknown encodings are treated as UTF-8.
// Invalid sequences are replaced with U+FFFD.
func decoderFor(encoding uint32) func([]byte) string {
	if encoding == EncodingCP1252 {
		return decodeCP1252
	}
	return decodeUTF8
}

func decodeUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}

func decodeCP1252(b []byte) string {
	if isASCII(b) {
		return string(b)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return decodeUTF8(b)
	}
	return string(out)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// stripBOM removes a leading UTF-8 BOM (0xEF 0xBB 0xBF) from data, if present.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
