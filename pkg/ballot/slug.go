package ballot

import (
	"strings"
	"unicode"
)

// Slugify lowercases s, turns every run of non-alphanumeric runes into a
// single '-', and trims leading and trailing dashes.
//
//	Slugify("Should we ship v2?") == "should-we-ship-v2"
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
