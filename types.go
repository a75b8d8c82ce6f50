package mobi

// Metadata holds every metadata field the package extracts from the MOBI
// header and EXTH block. Absent fields are empty.
type Metadata struct {
	// Title is the updated title (EXTH 503), the header full name, or the
	// PDB database name, in that order of preference.
	Title string

	// Authors contains all EXTH 100 values. The first entry is the primary author.
	Authors []string

	Publisher   string
	Imprint     string
	Description string
	ISBN        string

	// Subjects contains all EXTH 105 values.
	Subjects []string

	// PublishDate is the raw EXTH 106 value (no date parsing is applied).
	PublishDate string

	Review      string
	Contributor string
	Copyright   string
	Source      string
	ASIN        string

	// Language is the EXTH 524 value, or the language tag derived from the
	// header locale.
	Language string

	// Encoding is the text encoding code page (EncodingCP1252 or EncodingUTF8).
	Encoding int

	// Version is the MOBI file format version (e.g. 6, or 8 for KF8 files).
	Version int

	// Type is the MOBI document type (2 for a Mobipocket book).
	Type int
}

// CoverImage holds the cover image data.
type CoverImage struct {
	// Record is the PDB record index holding the image.
	Record int

	// MediaType is the MIME type detected from the image signature
	// (e.g., "image/jpeg").
	MediaType string

	// Data is a copy of the raw image bytes.
	Data []byte
}
