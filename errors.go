package mobi

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the mobi package.
var (
	// ErrFileNotFound indicates the input path does not exist.
	// Errors carrying it also match fs.ErrNotExist.
	ErrFileNotFound = errors.New("mobi: file not found")

	// ErrContainerTooShort indicates the input is smaller than a PDB header.
	// It is a special case of ErrMalformedContainer.
	ErrContainerTooShort = fmt.Errorf("%w: container too short", ErrMalformedContainer)

	// ErrMalformedContainer indicates the PDB framing is invalid
	// (bad signature, truncated record list, out-of-range record offsets).
	ErrMalformedContainer = errors.New("mobi: malformed container")

	// ErrMalformedHeader indicates record 0 (PalmDOC/MOBI header or EXTH block)
	// is truncated.
	ErrMalformedHeader = errors.New("mobi: malformed header")

	// ErrDecompression indicates a text record could not be decompressed.
	ErrDecompression = errors.New("mobi: decompression failed")

	// ErrUnsupportedCompression indicates the header declares a compression
	// type the package does not know.
	ErrUnsupportedCompression = errors.New("mobi: unsupported compression")

	// ErrDRMProtected indicates the text records are encrypted.
	// Metadata remains readable; only text extraction fails.
	ErrDRMProtected = errors.New("mobi: file is DRM protected")

	// ErrFieldAbsent indicates the requested metadata field is not present.
	// It is an expected outcome, not a parse failure.
	ErrFieldAbsent = errors.New("mobi: field absent")

	// ErrNoCover indicates no cover image record could be located.
	ErrNoCover = errors.New("mobi: no cover image found")
)

// OpenError is returned by Open, NewReader and Parse when a Document cannot
// be constructed. Use errors.Is against the sentinel errors to classify it.
type OpenError struct {
	// Path is the file path, or empty for in-memory input.
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	if e.Path == "" {
		return "mobi: open: " + e.Err.Error()
	}
	return fmt.Sprintf("mobi: open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// DecompressionError reports the text record that failed to decode.
// It matches ErrDecompression with errors.Is.
type DecompressionError struct {
	// Record is the PDB record index of the failing text record.
	Record int
	Err    error
}

func (e *DecompressionError) Error() string {
	return fmt.Sprintf("mobi: decompress record %d: %v", e.Record, e.Err)
}

func (e *DecompressionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDecompression.
func (e *DecompressionError) Is(target error) bool {
	return target == ErrDecompression
}
