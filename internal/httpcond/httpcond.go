// Package httpcond applies the conditional-request comparison rules
// from RFC 9110 section 8.8.3.2 to client-supplied validators.
package httpcond

import (
	"crypto/subtle"
	"regexp"
	"strings"
)

var weakPattern = regexp.MustCompile(`^W/"(.*)"$`)

// normalize strips the weak-validator prefix and surrounding quotes so
// that W/"abc", "abc" and abc all compare equal.
func normalize(tag string) string {
	if m := weakPattern.FindStringSubmatch(tag); m != nil {
		return m[1]
	}
	return strings.Trim(tag, `"`)
}

// Match reports whether a client's If-None-Match validator matches the
// stored etag under weak comparison. Comparison is constant-time.
func Match(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" || etag == "" {
		return false
	}
	a := normalize(ifNoneMatch)
	b := normalize(etag)
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
