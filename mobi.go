package mobi

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// maxFileSize is the largest input Open and NewReader accept. Defaults to 512 MB.
const maxFileSize int64 = 512 * 1024 * 1024

// Document is a parsed MOBI (or PalmDOC) book.
// Use Open, NewReader or Parse to create a Document instance.
//
// A Document is immutable after construction and safe for concurrent use
// by multiple goroutines. It holds no OS resources and needs no Close.
type Document struct {
	c        *container
	h        *mobiHeader
	exth     *exthMap
	decode   func([]byte) string
	text     textResult
	warnings []string
}

// Option configures document construction.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	maxTextSize int64
}

// WithLogger sets the logger that receives non-fatal parse warnings.
// The default discards them; they remain available through Warnings.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxTextSize caps the decompressed text size. Larger texts fail
// extraction with ErrDecompression. Non-positive values keep the default.
func WithMaxTextSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTextSize = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:      zap.NewNop(),
		maxTextSize: maxTextSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open reads and parses the MOBI file at path. The file is closed before
// Open returns.
func Open(path string, opts ...Option) (*Document, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	d, err := initDocument(data, buildOptions(opts))
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	return d, nil
}

// NewReader reads size bytes from r and parses them as a MOBI file.
// The caller keeps ownership of r.
func NewReader(r io.ReaderAt, size int64, opts ...Option) (*Document, error) {
	if size < 0 || size > maxFileSize {
		return nil, &OpenError{Err: fmt.Errorf("%w: size %d out of range (max %d)", ErrMalformedContainer, size, maxFileSize)}
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(r, 0, size), data); err != nil {
		return nil, &OpenError{Err: fmt.Errorf("read: %w", err)}
	}
	return Parse(data, opts...)
}

// Parse parses an in-memory MOBI file. The Document borrows data; the caller
// must not modify it while the Document is in use.
func Parse(data []byte, opts ...Option) (*Document, error) {
	d, err := initDocument(data, buildOptions(opts))
	if err != nil {
		return nil, &OpenError{Err: err}
	}
	return d, nil
}

// readFile reads the whole file, enforcing maxFileSize.
func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrFileNotFound, err)
		}
		return nil, err
	}
	defer f.Close()

	// Read up to limit+1 to detect oversize input whose stat size is unreliable.
	data, err := io.ReadAll(io.LimitReader(f, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > maxFileSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrMalformedContainer, maxFileSize)
	}
	return data, nil
}

// initDocument performs the full parse: container, header, EXTH and text.
// Container and header errors abort; text errors are kept for Text.
func initDocument(data []byte, o options) (*Document, error) {
	c, err := parseContainer(data)
	if err != nil {
		return nil, err
	}

	h, err := parseHeader(c.record(0))
	if err != nil {
		return nil, err
	}

	d := &Document{
		c:      c,
		h:      h,
		exth:   newExthMap(),
		decode: decoderFor(h.Encoding),
	}

	if !c.isMOBI() && h.HasMOBI {
		d.warn("PalmDOC container carries a MOBI header")
	}
	if c.isMOBI() && !h.HasMOBI {
		d.warn("BOOKMOBI container without MOBI header")
	}
	if h.Encoding != EncodingCP1252 && h.Encoding != EncodingUTF8 {
		d.warn(fmt.Sprintf("unknown text encoding %d; decoding as UTF-8", h.Encoding))
	}

	if h.hasEXTH() {
		rec0 := c.record(0)
		m, found, err := parseEXTH(rec0[h.exthOffset():], d.decode)
		if err != nil {
			return nil, err
		}
		if !found {
			d.warn("EXTH flag set but no EXTH block found")
		}
		d.exth = m
	}

	if !h.encrypted() && h.hasDRMVoucher() {
		d.warn("DRM voucher present but text is not encrypted")
	}
	if int(h.TextRecordCount) > len(c.records)-1 {
		d.warn(fmt.Sprintf("header declares %d text records, container has %d", h.TextRecordCount, len(c.records)-1))
	}

	d.text = extractText(c, h, o.maxTextSize)
	switch {
	case d.text.err != nil:
		d.warn(fmt.Sprintf("text unavailable: %v", d.text.err))
	case d.text.incomplete:
		d.warn(fmt.Sprintf("text incomplete: %d of %d bytes", len(d.text.data), h.TextLength))
	}

	for _, w := range d.warnings {
		o.logger.Warn("mobi: parse warning", zap.String("warning", w))
	}
	return d, nil
}

func (d *Document) warn(msg string) {
	d.warnings = append(d.warnings, msg)
}

// Warnings returns the list of non-fatal warnings accumulated during parsing.
func (d *Document) Warnings() []string {
	return append([]string(nil), d.warnings...)
}

// Compression returns the compression type declared in the header
// (CompressionNone, CompressionPalmDOC or CompressionHuffCDIC).
func (d *Document) Compression() int {
	return int(d.h.Compression)
}

// Encrypted reports whether the text records are DRM protected.
func (d *Document) Encrypted() bool {
	return d.h.encrypted()
}

// RecordCount returns the number of records in the PDB container.
func (d *Document) RecordCount() int {
	return len(d.c.records)
}

// TextLength returns the uncompressed text length declared in the header.
func (d *Document) TextLength() int {
	return int(d.h.TextLength)
}

// Incomplete reports whether the decompressed text is shorter than the
// header-declared length. Text still returns what was decoded.
func (d *Document) Incomplete() bool {
	return d.text.incomplete
}

// RawText returns a copy of the decompressed markup in the book's own
// encoding. Its length equals TextLength unless Incomplete reports true.
func (d *Document) RawText() ([]byte, error) {
	if d.text.err != nil {
		return nil, d.text.err
	}
	return append([]byte(nil), d.text.data...), nil
}

// Text returns the decompressed markup converted to UTF-8.
// Extraction failures (ErrDecompression, ErrUnsupportedCompression,
// ErrDRMProtected) do not affect metadata accessors.
func (d *Document) Text() (string, error) {
	if d.text.err != nil {
		return "", d.text.err
	}
	return d.decode(d.text.data), nil
}
