// Package fingerprint derives fixed-length cache identities from
// endpoint names and query parameters, and holds the base64 codec used
// for bodies at rest.
package fingerprint

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Digest sizes in bytes. Cache keys get the longer digest; etags only
// need to be unique per body revision.
const (
	KeySize  = 16
	EtagSize = 10
)

// Query holds GET-query parameters. A nil value marks a parameter the
// caller left unset; the outbound transport cannot encode those, so
// they are dropped during canonicalization.
type Query map[string]*int

// Canonical returns a stable string form of the query. A nil map, an
// empty map and a map holding only nil values all canonicalize to the
// empty string.
func (q Query) Canonical() string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k, v := range q {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, *q[k]))
	}
	return strings.Join(parts, "&")
}

// Hash fingerprints data plus an optional query, returning size bytes
// of blake2b as lowercase hex. Pure function: equal inputs produce
// equal output regardless of map insertion order.
func Hash(data string, size int, query Query) string {
	if c := query.Canonical(); c != "" {
		data = data + "?" + c
	}
	h, err := blake2b.New(size, nil)
	if err != nil {
		// Only reachable with a digest size outside [1,64].
		panic(fmt.Sprintf("fingerprint: bad digest size %d: %v", size, err))
	}
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// Encode converts text to its base64 at-rest form. Used for storage
// only, never for identity.
func Encode(text string) []byte {
	buf := make([]byte, base64.StdEncoding.EncodedLen(len(text)))
	base64.StdEncoding.Encode(buf, []byte(text))
	return buf
}

// Decode reverses Encode.
func Decode(data []byte) (string, error) {
	buf := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(buf, data)
	if err != nil {
		return "", fmt.Errorf("decode stored body: %w", err)
	}
	return string(buf[:n]), nil
}
