package mobi

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/simp-lee/mobi/internal/mobitest"
)

const (
	rustTitle  = "The Rust Programming Language"
	rustAuthor = "The Rust Team"
)

// rustText returns the markup of the reference fixture. It spans several
// text records.
func rustText() string {
	var b strings.Builder
	b.WriteString(mobitest.XMLDeclaration)
	b.WriteString("\n<html><head><title>The Rust Programming Language</title>")
	b.WriteString("<style>p { margin: 0 }</style></head><body>\n")
	b.WriteString("<h1>Foreword</h1>\n")
	for ch := 1; ch <= 6; ch++ {
		fmt.Fprintf(&b, "<h2>Chapter %d</h2>\n", ch)
		for p := 1; p <= 8; p++ {
			fmt.Fprintf(&b, "<p>Section %d.%d: Rust empowers everyone to build reliable and efficient software. "+
				"Ownership, borrowing and lifetimes let the compiler check memory safety.</p>\n", ch, p)
		}
		b.WriteString("<mbp:pagebreak/>\n")
	}
	b.WriteString("</body></html>")
	return b.String()
}

// rustBook returns the reference fixture: a PalmDOC compressed UTF-8 book
// titled "The Rust Programming Language" by "The Rust Team".
func rustBook() *mobitest.Book {
	return &mobitest.Book{
		Name:        "The_Rust_Programming_Language",
		Text:        []byte(rustText()),
		Compression: mobitest.CompressionPalmDOC,
		Locale:      0x0409, // en-us
		FullName:    rustTitle,
		ExtraFlags:  mobitest.FlagMultibyte | mobitest.FlagIndexing,
		EXTH: []mobitest.EXTH{
			mobitest.String(100, rustAuthor),
			mobitest.String(101, "No Starch Press"),
			mobitest.String(103, "The official book on the Rust programming language."),
			mobitest.String(104, "9781718503106"),
			mobitest.String(105, "Programming"),
			mobitest.String(105, "Rust"),
			mobitest.String(106, "2023-02-28"),
			mobitest.String(108, "Steve Klabnik"),
			mobitest.String(109, "MIT OR Apache-2.0"),
			mobitest.String(503, rustTitle),
			mobitest.String(524, "en"),
		},
	}
}

// parseBook builds b and parses it, failing the test on error.
func parseBook(t testing.TB, b *mobitest.Book, opts ...Option) *Document {
	t.Helper()
	d, err := Parse(b.Bytes(), opts...)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return d
}

// writeBookFile writes data to a temporary .mobi file and returns its path.
func writeBookFile(t *testing.T, data []byte) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), "test.mobi")
	if err := os.WriteFile(fp, data, 0644); err != nil {
		t.Fatalf("writeBookFile: %v", err)
	}
	return fp
}
