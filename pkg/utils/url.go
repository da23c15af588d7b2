package utils

import (
	"regexp"
	"strings"
)

var absoluteURL = regexp.MustCompile(`^([a-zA-Z][a-zA-Z\d+\-.]*:)?//`)

// IsAbsoluteURL reports whether u carries a scheme or is protocol-relative
func IsAbsoluteURL(u string) bool {
	return absoluteURL.MatchString(u)
}

// JoinURL appends a relative path to base with exactly one slash between them.
// An absolute path is returned as is.
func JoinURL(base, path string) string {
	if base == "" || IsAbsoluteURL(path) {
		return path
	}
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
