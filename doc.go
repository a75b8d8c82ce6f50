// Package mobi provides a pure-Go library for reading Mobipocket (MOBI, AZW)
// and PalmDOC e-books.
//
// It parses the Palm Database (PDB) container, the MOBI header and its EXTH
// metadata block, and reconstructs the book's markup by decompressing the
// text records (no compression, PalmDOC LZ77, or HUFF/CDIC Huffman coding).
// Files are read-only; DRM-protected text is detected and rejected with
// [ErrDRMProtected] while metadata stays available.
//
// # Opening a Book
//
// Use [Open] to open a file by path, [NewReader] to read from an
// [io.ReaderAt], or [Parse] for a byte slice already in memory:
//
//	doc, err := mobi.Open("book.mobi")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Construction errors are returned as [*OpenError]. A missing file matches
// [ErrFileNotFound]; structural corruption matches [ErrMalformedContainer]
// or [ErrMalformedHeader].
//
// # Metadata
//
// Each EXTH field has its own accessor returning [ErrFieldAbsent] when the
// book does not carry it:
//
//	title, _ := doc.Title()
//	if author, err := doc.Author(); err == nil {
//	    fmt.Println(title, "by", author)
//	}
//
// [Document.Metadata] returns every field at once.
//
// # Text
//
// [Document.Text] returns the decompressed markup as UTF-8,
// [Document.RawText] the bytes in the book's own encoding, and
// [Document.PlainText] the text with markup removed. Decompression failures
// are reported as [*DecompressionError] and only affect these methods.
//
// # Cover Image
//
// [Document.Cover] resolves the EXTH cover offset to an image record:
//
//	cover, err := doc.Cover()
//	if err == nil {
//	    os.WriteFile("cover.jpg", cover.Data, 0644)
//	}
package mobi
