package mobi

import (
	"bytes"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/simp-lee/mobi/internal/mobitest"
)

func TestOpen_Valid(t *testing.T) {
	fp := writeBookFile(t, rustBook().Bytes())

	d, err := Open(fp)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if title, _ := d.Title(); title != rustTitle {
		t.Errorf("Title() = %q, want %q", title, rustTitle)
	}
	if author, _ := d.Author(); author != rustAuthor {
		t.Errorf("Author() = %q, want %q", author, rustAuthor)
	}
	if len(d.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", d.Warnings())
	}
}

func TestOpen_FileNotFound(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "missing.mobi")

	_, err := Open(fp)
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("Open() error = %v, want ErrFileNotFound", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open() error = %v, want fs.ErrNotExist", err)
	}
	var oe *OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("Open() error %T is not *OpenError", err)
	}
	if oe.Path != fp {
		t.Errorf("OpenError.Path = %q, want %q", oe.Path, fp)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("Open(\"\") error = %v, want ErrFileNotFound", err)
	}
}

func TestOpen_EmptyFile(t *testing.T) {
	fp := writeBookFile(t, nil)
	_, err := Open(fp)
	if !errors.Is(err, ErrContainerTooShort) {
		t.Fatalf("Open() error = %v, want ErrContainerTooShort", err)
	}
	if !errors.Is(err, ErrMalformedContainer) {
		t.Errorf("Open() error = %v, want ErrMalformedContainer", err)
	}
}

func TestParse_EmptyBuffer(t *testing.T) {
	_, err := Parse(nil)
	var oe *OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("Parse(nil) error %T is not *OpenError", err)
	}
	if !errors.Is(err, ErrContainerTooShort) {
		t.Errorf("Parse(nil) error = %v, want ErrContainerTooShort", err)
	}
	if oe.Path != "" {
		t.Errorf("OpenError.Path = %q, want empty", oe.Path)
	}
}

func TestParse_MalformedHeader(t *testing.T) {
	data := mobitest.PDB("x", "BOOKMOBI", [][]byte{[]byte("tiny")})
	if _, err := Parse(data); !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("Parse() error = %v, want ErrMalformedHeader", err)
	}
}

func TestParse_MalformedEXTH(t *testing.T) {
	b := rustBook()
	recs := b.Records()
	// Corrupt the first EXTH entry length.
	exth := recs[0][16+0xE8:]
	exth[16], exth[17], exth[18], exth[19] = 0x7F, 0, 0, 0
	if _, err := Parse(mobitest.PDB("x", "BOOKMOBI", recs)); !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("Parse() error = %v, want ErrMalformedHeader", err)
	}
}

func TestNewReader_Valid(t *testing.T) {
	data := rustBook().Bytes()
	d, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	if d.RecordCount() < 2 {
		t.Errorf("RecordCount() = %d", d.RecordCount())
	}
}

func TestNewReader_ShortRead(t *testing.T) {
	data := rustBook().Bytes()
	_, err := NewReader(bytes.NewReader(data[:100]), int64(len(data)))
	var oe *OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("NewReader() error = %v, want *OpenError", err)
	}
}

func TestNewReader_SizeOutOfRange(t *testing.T) {
	for _, size := range []int64{-1, maxFileSize + 1} {
		if _, err := NewReader(bytes.NewReader(nil), size); !errors.Is(err, ErrMalformedContainer) {
			t.Errorf("NewReader(size=%d) error = %v, want ErrMalformedContainer", size, err)
		}
	}
}

func TestOpenError_Message(t *testing.T) {
	tests := []struct {
		err  *OpenError
		want string
	}{
		{&OpenError{Path: "a.mobi", Err: ErrMalformedHeader}, "mobi: open a.mobi: mobi: malformed header"},
		{&OpenError{Err: ErrMalformedHeader}, "mobi: open: mobi: malformed header"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestWarnings_DefensiveCopy(t *testing.T) {
	d := &Document{warnings: []string{"warning-a", "warning-b"}}

	got := d.Warnings()
	got[0] = "mutated"

	if again := d.Warnings(); again[0] != "warning-a" {
		t.Fatalf("Warnings() exposed internal slice; got %q, want %q", again[0], "warning-a")
	}
}

func TestWarnings_ContainerMismatch(t *testing.T) {
	b := rustBook()
	b.Kind = "TEXtREAd"
	d := parseBook(t, b)
	if !hasWarning(d, "PalmDOC container carries a MOBI header") {
		t.Errorf("Warnings() = %v", d.Warnings())
	}

	b = &mobitest.Book{Text: []byte("plain"), NoMOBI: true}
	d = parseBook(t, b)
	if !hasWarning(d, "BOOKMOBI container without MOBI header") {
		t.Errorf("Warnings() = %v", d.Warnings())
	}
}

func TestWarnings_UnknownEncoding(t *testing.T) {
	b := rustBook()
	b.Encoding = 1200
	d := parseBook(t, b)
	if !hasWarning(d, "unknown text encoding 1200") {
		t.Errorf("Warnings() = %v", d.Warnings())
	}
}

func TestWarnings_EXTHFlagWithoutBlock(t *testing.T) {
	b := &mobitest.Book{Text: []byte("abc")}
	recs := b.Records()
	recs[0][128+3] = 0x40
	d, err := Parse(mobitest.PDB("x", "BOOKMOBI", recs))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !hasWarning(d, "EXTH flag set") {
		t.Errorf("Warnings() = %v", d.Warnings())
	}
	if _, err := d.Author(); !errors.Is(err, ErrFieldAbsent) {
		t.Errorf("Author() error = %v, want ErrFieldAbsent", err)
	}
}

func TestWithLogger_ReceivesWarnings(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	b := &mobitest.Book{Text: []byte("short"), TextLength: 50}

	parseBook(t, b, WithLogger(zap.New(core)))

	entries := logs.FilterMessage("mobi: parse warning").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d warnings, want 1", len(entries))
	}
	if w := entries[0].ContextMap()["warning"]; !strings.Contains(w.(string), "text incomplete") {
		t.Errorf("warning field = %v", w)
	}
}

func TestWithLogger_Nil(t *testing.T) {
	o := buildOptions([]Option{WithLogger(nil), WithMaxTextSize(0)})
	if o.logger == nil {
		t.Error("WithLogger(nil) replaced the default logger with nil")
	}
	if o.maxTextSize != maxTextSize {
		t.Errorf("maxTextSize = %d, want default %d", o.maxTextSize, maxTextSize)
	}
}

func TestDocument_ConcurrentAccess(t *testing.T) {
	d := parseBook(t, rustBook())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if title, err := d.Title(); err != nil || title != rustTitle {
				t.Errorf("Title() = %q, %v", title, err)
			}
			if _, err := d.Text(); err != nil {
				t.Errorf("Text() error = %v", err)
			}
			d.Metadata()
		}()
	}
	wg.Wait()
}
