package mobi

import (
	"fmt"
)

// maxTextSize is the largest decompressed text accepted by default.
// It guards against crafted files declaring huge outputs. Defaults to 256 MB.
const maxTextSize int64 = 256 * 1024 * 1024

// Largest output per input byte. A PalmDOC pair of two bytes expands to at
// most ten. HUFF/CDIC output is bounded against the whole file, whose CDIC
// records hold every phrase the text can refer to.
const (
	palmDOCMaxExpansion = 5
	huffMaxExpansion    = 8
)

// textResult is the outcome of text extraction, computed once at
// construction time.
type textResult struct {
	data       []byte
	incomplete bool
	err        error
}

// extractText decompresses the text records of c according to h.
// On success the result is truncated to the declared text length; a shorter
// result is flagged incomplete rather than failed.
func extractText(c *container, h *mobiHeader, limit int64) textResult {
	if h.encrypted() {
		return textResult{err: drmError(h)}
	}

	last := int(h.TextRecordCount)
	if last > len(c.records)-1 {
		last = len(c.records) - 1
	}

	bound := textBound(c, h, last, limit)

	var (
		out []byte
		err error
	)
	switch h.Compression {
	case CompressionNone:
		out, err = concatRecords(c, h, last, bound)
	case CompressionPalmDOC:
		out, err = decodePalmDOCRecords(c, h, last, bound)
	case CompressionHuffCDIC:
		out, err = decodeHuffRecords(c, h, last, bound)
	default:
		return textResult{err: fmt.Errorf("%w: type %d", ErrUnsupportedCompression, h.Compression)}
	}
	if err != nil {
		return textResult{err: err}
	}

	res := textResult{data: out}
	switch declared := int(h.TextLength); {
	case len(out) > declared:
		res.data = out[:declared]
	case len(out) < declared:
		res.incomplete = true
	}
	return res
}

// textBound returns the output budget for text extraction: limit, narrowed
// to the declared length plus one record of slack (the excess is trimmed),
// and to what the input can expand to.
func textBound(c *container, h *mobiHeader, last int, limit int64) int64 {
	bound := limit
	if declared := int64(h.TextLength); declared > 0 && declared < bound {
		bound = declared + int64(max(h.RecordSize, 4096))
	}

	input := int64(textInputSize(c, h, last))
	switch h.Compression {
	case CompressionNone:
		bound = min(bound, input)
	case CompressionPalmDOC:
		bound = min(bound, palmDOCMaxExpansion*input)
	case CompressionHuffCDIC:
		bound = min(bound, huffMaxExpansion*int64(len(c.data)))
	}
	return bound
}

// outputBuffer returns an empty buffer sized for the expected output. The
// declared length is only a hint; the capacity never exceeds what input
// bytes can expand to.
func outputBuffer(h *mobiHeader, input int, expansion, bound int64) []byte {
	return make([]byte, 0, min(int64(h.TextLength), bound, int64(input)*expansion))
}

// textRecord returns the payload of text record i with trailing entries
// removed.
func textRecord(c *container, h *mobiHeader, i int) []byte {
	return stripTrailing(c.record(i), h.ExtraFlags)
}

// textInputSize is the number of payload bytes in text records 1..last.
func textInputSize(c *container, h *mobiHeader, last int) int {
	n := 0
	for i := 1; i <= last; i++ {
		n += len(textRecord(c, h, i))
	}
	return n
}

func concatRecords(c *container, h *mobiHeader, last int, limit int64) ([]byte, error) {
	out := outputBuffer(h, textInputSize(c, h, last), 1, limit)
	for i := 1; i <= last; i++ {
		rec := textRecord(c, h, i)
		if int64(len(out)+len(rec)) > limit {
			return nil, &DecompressionError{Record: i, Err: fmt.Errorf("output exceeds %d bytes", limit)}
		}
		out = append(out, rec...)
	}
	return out, nil
}

func decodePalmDOCRecords(c *container, h *mobiHeader, last int, limit int64) ([]byte, error) {
	out := outputBuffer(h, textInputSize(c, h, last), palmDOCMaxExpansion, limit)
	for i := 1; i <= last; i++ {
		var err error
		out, err = decompressPalmDOC(out, textRecord(c, h, i), int(limit))
		if err != nil {
			return nil, &DecompressionError{Record: i, Err: err}
		}
	}
	return out, nil
}

func decodeHuffRecords(c *container, h *mobiHeader, last int, limit int64) ([]byte, error) {
	if h.HuffRecord == notSet || h.HuffRecordCount == 0 {
		return nil, &DecompressionError{Record: 0, Err: fmt.Errorf("header declares no HUFF record")}
	}
	first := int(h.HuffRecord)
	count := int(h.HuffRecordCount)
	if first < 1 || first+count > len(c.records) {
		return nil, &DecompressionError{Record: first, Err: fmt.Errorf("HUFF records %d..%d out of range", first, first+count-1)}
	}

	cdics := make([][]byte, 0, count-1)
	for i := first + 1; i < first+count; i++ {
		cdics = append(cdics, c.record(i))
	}
	dec, err := newHuffDecoder(c.record(first), cdics, int(limit))
	if err != nil {
		return nil, &DecompressionError{Record: first, Err: err}
	}

	out := outputBuffer(h, textInputSize(c, h, last), huffMaxExpansion, limit)
	for i := 1; i <= last; i++ {
		out, err = dec.decode(out, textRecord(c, h, i))
		if err != nil {
			return nil, &DecompressionError{Record: i, Err: err}
		}
	}
	return out, nil
}
