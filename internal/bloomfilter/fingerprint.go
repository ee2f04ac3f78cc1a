package bloomfilter

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentFingerprint derives a fixed-width hex digest for a descriptor's
// text fields, used exclusively for bloom insertion.
func ContentFingerprint(title, description, diff string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(description))
	h.Write([]byte{0})
	h.Write([]byte(diff))
	return hex.EncodeToString(h.Sum(nil))
}
