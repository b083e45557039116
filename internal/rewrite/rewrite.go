// Package rewrite transforms upstream response bodies so that every
// URL inside them points back at this relay instead of the remote
// hosts.
package rewrite

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

const (
	apiPrefix   = "/api"
	mediaPrefix = "/api/media/?f="
)

// Rewriter rewrites one upstream host pair. The media pattern is
// compiled once per host configuration.
type Rewriter struct {
	host    string
	pattern *regexp.Regexp
}

// New builds a Rewriter that replaces host with the relative API prefix
// and tokenizes quoted media URLs under mediaHost.
func New(host, mediaHost string) *Rewriter {
	return &Rewriter{
		host:    host,
		pattern: regexp.MustCompile(`"` + regexp.QuoteMeta(mediaHost) + `(.+?\.[a-zA-Z]+)"`),
	}
}

// Rewrite strips the data host from body and encodes media URLs into
// opaque tokens served by the media endpoint. The host strip runs
// first: the media pattern matches the raw media host, which must still
// be present in the body. Re-running Rewrite on its own output is a
// no-op since neither host appears anymore.
func (rw *Rewriter) Rewrite(body string) string {
	body = strings.ReplaceAll(body, rw.host, apiPrefix)
	return rw.pattern.ReplaceAllStringFunc(body, func(match string) string {
		path := rw.pattern.FindStringSubmatch(match)[1]
		return `"` + mediaPrefix + EncodeMediaToken(path) + `"`
	})
}

// EncodeMediaToken turns a media path into the reversible token used in
// rewritten bodies.
func EncodeMediaToken(path string) string {
	return base64.URLEncoding.EncodeToString([]byte(path))
}

// DecodeMediaToken reverses EncodeMediaToken, yielding the original
// media path.
func DecodeMediaToken(token string) (string, error) {
	path, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("decode media token: %w", err)
	}
	return string(path), nil
}
