package mobi

import (
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/simp-lee/mobi/internal/mobitest"
)

func TestText_Fixture(t *testing.T) {
	d := parseBook(t, rustBook())

	text, err := d.Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.HasPrefix(text, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Errorf("text starts with %q, want the XML declaration", text[:min(len(text), 40)])
	}
	if len(text) != d.TextLength() {
		t.Errorf("len(text) = %d, want declared length %d", len(text), d.TextLength())
	}
	if d.Incomplete() {
		t.Error("Incomplete() = true for intact fixture")
	}
	if w := d.Warnings(); len(w) != 0 {
		t.Errorf("Warnings() = %v, want none", w)
	}
}

func TestText_Uncompressed(t *testing.T) {
	b := &mobitest.Book{
		Text:       []byte(strings.Repeat("0123456789", 1000)),
		RecordSize: 1000,
		ExtraFlags: mobitest.FlagIndexing,
	}
	d := parseBook(t, b)
	raw, err := d.RawText()
	if err != nil {
		t.Fatalf("RawText: %v", err)
	}
	if string(raw) != string(b.Text) {
		t.Error("uncompressed text differs from source")
	}
	if d.Compression() != CompressionNone {
		t.Errorf("Compression() = %d, want %d", d.Compression(), CompressionNone)
	}
}

func TestText_RawTextReturnsCopy(t *testing.T) {
	d := parseBook(t, &mobitest.Book{Text: []byte("immutable")})
	raw, _ := d.RawText()
	raw[0] = 'X'
	again, _ := d.RawText()
	if string(again) != "immutable" {
		t.Errorf("RawText() = %q after caller mutation", again)
	}
}

func TestText_LongerThanDeclared(t *testing.T) {
	b := &mobitest.Book{Text: []byte("0123456789"), TextLength: 4}
	d := parseBook(t, b)
	text, err := d.Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != "0123" {
		t.Errorf("Text() = %q, want %q", text, "0123")
	}
	if d.Incomplete() {
		t.Error("Incomplete() = true after truncation")
	}
}

func TestText_ShorterThanDeclared(t *testing.T) {
	b := &mobitest.Book{Text: []byte("short"), TextLength: 50}
	d := parseBook(t, b)
	text, err := d.Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != "short" {
		t.Errorf("Text() = %q, want %q", text, "short")
	}
	if !d.Incomplete() {
		t.Error("Incomplete() = false, want true")
	}
	if !hasWarning(d, "text incomplete") {
		t.Errorf("Warnings() = %v, want an incomplete-text warning", d.Warnings())
	}
}

func TestText_UnsupportedCompression(t *testing.T) {
	b := rustBook()
	b.Compression = 99
	d := parseBook(t, b)

	_, err := d.Text()
	if !errors.Is(err, ErrUnsupportedCompression) {
		t.Fatalf("Text error = %v, want ErrUnsupportedCompression", err)
	}
	if title, err := d.Title(); err != nil || title != rustTitle {
		t.Errorf("Title() = %q, %v; metadata should survive text failure", title, err)
	}
}

func TestText_Encrypted(t *testing.T) {
	b := rustBook()
	b.Encryption = 2
	d := parseBook(t, b)

	if !d.Encrypted() {
		t.Error("Encrypted() = false, want true")
	}
	if _, err := d.Text(); !errors.Is(err, ErrDRMProtected) {
		t.Fatalf("Text error = %v, want ErrDRMProtected", err)
	}
	if _, err := d.PlainText(); !errors.Is(err, ErrDRMProtected) {
		t.Fatalf("PlainText error = %v, want ErrDRMProtected", err)
	}
	if author, err := d.Author(); err != nil || author != rustAuthor {
		t.Errorf("Author() = %q, %v; metadata should stay readable", author, err)
	}
}

func TestText_CorruptRecord(t *testing.T) {
	b := rustBook()
	b.ExtraFlags = 0
	recs := b.Records()
	recs[2] = []byte{'a', 0x80} // back reference missing its second byte
	d, err := Parse(mobitest.PDB("corrupt", "BOOKMOBI", recs))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	_, err = d.Text()
	if !errors.Is(err, ErrDecompression) {
		t.Fatalf("Text error = %v, want ErrDecompression", err)
	}
	var de *DecompressionError
	if !errors.As(err, &de) {
		t.Fatalf("Text error %T is not *DecompressionError", err)
	}
	if de.Record != 2 {
		t.Errorf("DecompressionError.Record = %d, want 2", de.Record)
	}
	if _, err := d.Title(); err != nil {
		t.Errorf("Title() error = %v after text failure", err)
	}
}

func TestText_MissingHuffRecord(t *testing.T) {
	b := &mobitest.Book{Text: []byte("abc"), Compression: mobitest.CompressionHuffCDIC}
	recs := b.Records()
	// Drop the HUFF/CDIC records but keep the header pointing at them.
	d, err := Parse(mobitest.PDB("x", "BOOKMOBI", recs[:2]))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := d.Text(); !errors.Is(err, ErrDecompression) {
		t.Fatalf("Text error = %v, want ErrDecompression", err)
	}
}

func TestText_RecordCountClamped(t *testing.T) {
	b := &mobitest.Book{Text: []byte("abcdef"), RecordSize: 3}
	recs := b.Records()
	d, err := Parse(mobitest.PDB("x", "BOOKMOBI", recs[:2]))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	text, err := d.Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != "abc" {
		t.Errorf("Text() = %q, want %q", text, "abc")
	}
	if !hasWarning(d, "text records") {
		t.Errorf("Warnings() = %v, want a record count warning", d.Warnings())
	}
}

func TestText_MaxTextSize(t *testing.T) {
	d := parseBook(t, rustBook(), WithMaxTextSize(100))
	if _, err := d.Text(); !errors.Is(err, ErrDecompression) {
		t.Fatalf("Text error = %v, want ErrDecompression", err)
	}
}

func TestText_HugeDeclaredLengthStaysBounded(t *testing.T) {
	for _, compression := range []uint16{mobitest.CompressionNone, mobitest.CompressionPalmDOC} {
		data := (&mobitest.Book{Text: []byte("abc"), Compression: compression, TextLength: 0xFFFFFFF0}).Bytes()

		var before, after runtime.MemStats
		runtime.GC()
		runtime.ReadMemStats(&before)
		d, err := Parse(data)
		runtime.ReadMemStats(&after)
		if err != nil {
			t.Fatalf("compression %d: Parse: %v", compression, err)
		}

		if got := after.TotalAlloc - before.TotalAlloc; got > 1<<20 {
			t.Errorf("compression %d: Parse of %d bytes allocated %d bytes", compression, len(data), got)
		}
		text, err := d.Text()
		if err != nil {
			t.Fatalf("compression %d: Text: %v", compression, err)
		}
		if text != "abc" || !d.Incomplete() {
			t.Errorf("compression %d: Text() = %q, Incomplete() = %v; want %q, true", compression, text, d.Incomplete(), "abc")
		}
	}
}

func TestTextBound(t *testing.T) {
	tests := []struct {
		name       string
		book       *mobitest.Book
		limit      int64
		wantAtMost func(fileSize, input int64) int64
	}{
		{
			name:       "none is bounded by input",
			book:       &mobitest.Book{Text: []byte("hello"), TextLength: 0xFFFFFFF0},
			limit:      maxTextSize,
			wantAtMost: func(_, input int64) int64 { return input },
		},
		{
			name:       "palmdoc is bounded by expansion",
			book:       &mobitest.Book{Text: []byte("hello hello hello"), Compression: mobitest.CompressionPalmDOC, TextLength: 0xFFFFFFF0},
			limit:      maxTextSize,
			wantAtMost: func(_, input int64) int64 { return palmDOCMaxExpansion * input },
		},
		{
			name:       "huffcdic is bounded by file size",
			book:       &mobitest.Book{Text: []byte("hello"), Compression: mobitest.CompressionHuffCDIC, TextLength: 0xFFFFFFF0},
			limit:      maxTextSize,
			wantAtMost: func(fileSize, _ int64) int64 { return huffMaxExpansion * fileSize },
		},
		{
			name:       "limit wins",
			book:       &mobitest.Book{Text: []byte(strings.Repeat("x", 500))},
			limit:      100,
			wantAtMost: func(_, _ int64) int64 { return 100 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.book.Bytes()
			c, err := parseContainer(data)
			if err != nil {
				t.Fatalf("parseContainer: %v", err)
			}
			h, err := parseHeader(c.record(0))
			if err != nil {
				t.Fatalf("parseHeader: %v", err)
			}
			last := int(h.TextRecordCount)
			input := int64(textInputSize(c, h, last))

			got := textBound(c, h, last, tt.limit)
			if want := tt.wantAtMost(int64(len(data)), input); got > want {
				t.Errorf("textBound() = %d, want <= %d", got, want)
			}
			if got <= 0 {
				t.Errorf("textBound() = %d, want > 0", got)
			}
		})
	}
}

func hasWarning(d *Document, substr string) bool {
	for _, w := range d.Warnings() {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
