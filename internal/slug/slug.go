// Package slug builds the "<id>-<slug>" path segments the reading portal
// uses for authors and poems.
package slug

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	FallbackAuthor = "author"
	FallbackPoem   = "poem"
)

// Make lowercases value, strips accents, and joins runs of anything outside
// [a-z0-9] with single hyphens. It returns fallback when nothing is left,
// which is the case for Cyrillic titles.
func Make(value, fallback string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		folded = value
	}
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

func WithID(id int64, value, fallback string) string {
	return fmt.Sprintf("%d-%s", id, Make(value, fallback))
}

// ParseID extracts the id from "12", "12-bahor" or "poem:12".
func ParseID(segment string) (int64, error) {
	s := strings.TrimSpace(segment)
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = s[:i]
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", segment)
	}
	return id, nil
}
