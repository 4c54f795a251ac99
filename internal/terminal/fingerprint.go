package terminal

import (
	"strconv"
	"unicode/utf16"

	"github.com/ashureev/claude-relay/internal/domain"
)

// Fingerprint returns the change-detection digest of a pane snapshot.
//
// The digest is the 31-multiplier rolling hash over UTF-16 code units with
// wrapping 32-bit arithmetic, printed as signed lowercase hex. Browser
// clients compute the same value, so the two sides can compare fingerprints
// directly.
func Fingerprint(text string) domain.Fingerprint {
	var h int32
	for _, unit := range utf16.Encode([]rune(text)) {
		h = h*31 + int32(unit)
	}
	return domain.Fingerprint(strconv.FormatInt(int64(h), 16))
}
