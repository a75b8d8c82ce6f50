package mobi

import "fmt"

// Encryption types declared in the PalmDOC header.
const (
	encryptionNone          = 0
	encryptionOldMobipocket = 1
	encryptionMobipocket    = 2
)

// encryptionNames maps known encryption types to a readable scheme name.
var encryptionNames = map[uint16]string{
	encryptionOldMobipocket: "old Mobipocket",
	encryptionMobipocket:    "Mobipocket",
}

// encrypted reports whether the text records are DRM protected.
//
// The encryption type is authoritative. A DRM voucher block alone
// (DRMOffset set with a non-zero count) without an encryption type is
// treated as unprotected, since such files decode normally.
func (h *mobiHeader) encrypted() bool {
	return h.Encryption != encryptionNone
}

// hasDRMVoucher reports whether the header points at a DRM voucher block.
func (h *mobiHeader) hasDRMVoucher() bool {
	return h.DRMOffset != notSet && h.DRMCount > 0
}

// drmError describes the DRM scheme that blocks text extraction.
func drmError(h *mobiHeader) error {
	name, ok := encryptionNames[h.Encryption]
	if !ok {
		name = fmt.Sprintf("unknown scheme %d", h.Encryption)
	}
	return fmt.Errorf("%w: %s encryption", ErrDRMProtected, name)
}
