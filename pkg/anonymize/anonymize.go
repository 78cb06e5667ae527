// Package anonymize derives pseudonymous patient identifiers.
package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// IDLength is the number of hex characters kept from the digest
const IDLength = 20

// StripPunctuation removes the 32 ASCII punctuation characters
// !"#$%&'()*+,-./:;<=>?@[\]^_`{|}~ from s. Whitespace and non-ASCII runes are
// kept.
func StripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsPunct(r) || unicode.IsSymbol(r)) {
			return -1
		}
		return r
	}, s)
}

// PatientID hashes name and birth date into a fixed-length lowercase hex ID.
// Punctuation in birth is ignored so "01.01.1980" and "01011980" agree.
func PatientID(name, birth string) string {
	sum := sha256.Sum256([]byte(name + StripPunctuation(birth)))
	return hex.EncodeToString(sum[:])[:IDLength]
}
