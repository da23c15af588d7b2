package utils

import (
	"encoding/base64"
	"strings"

	"github.com/gosimple/slug"
	"golang.org/x/text/unicode/norm"
)

func init() {
	slug.Lowercase = false
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Slugify turns a namespace or event name into a URL path segment.
// Non-ASCII text is transliterated, any other run of unsafe characters
// becomes a single dash and case is kept. "/" yields an empty string.
// A name with nothing left to transliterate falls back to its unpadded
// URL-safe base64 form.
func Slugify(s string) string {
	s = norm.NFC.String(s)
	if out := slug.Make(s); out != "" {
		return out
	}
	trimmed := strings.TrimSpace(strings.Trim(s, "/"))
	if trimmed == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(trimmed))
}
