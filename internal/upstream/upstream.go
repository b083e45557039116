// Package upstream talks to the remote API. It exposes the fetch and
// HEAD primitives the cache layer builds on, with an in-process
// response cache that reports whether a payload came off the wire.
package upstream

import (
	"fmt"
	"net/url"

	"github.com/umnovI/poke-project/internal/fingerprint"
)

// Hosts bundles the remote hosts the relay fronts.
type Hosts struct {
	Data  string
	Media string
}

// RemoteError carries a non-2xx upstream status back to the caller. It
// is surfaced with the same status code, never as a generic fault.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Request describes one upstream call. The fingerprint is computed at
// construction; Request values are immutable afterwards.
type Request struct {
	URL         string
	Query       fingerprint.Query
	Fingerprint string
}

func NewRequest(rawurl string, query fingerprint.Query) Request {
	return Request{
		URL:         rawurl,
		Query:       query,
		Fingerprint: fingerprint.Hash(rawurl, fingerprint.KeySize, query),
	}
}

// SourceURL is the provenance form of the request: the URL with its
// canonical query attached.
func (r Request) SourceURL() string {
	if c := r.Query.Canonical(); c != "" {
		return r.URL + "?" + c
	}
	return r.URL
}

// Response is one upstream payload plus the headers the relay forwards
// to its own clients.
type Response struct {
	Status    int
	Body      string
	Headers   map[string]string
	FromCache bool
}

// Headers is the outcome of a HEAD probe.
type Headers struct {
	Status  int
	Success bool // 2xx
	Etag    string
}

// Media is a fetched media file.
type Media struct {
	Body        []byte
	ContentType string
	Etag        string
	FromCache   bool
}

func queryValues(q fingerprint.Query) url.Values {
	vals := url.Values{}
	for k, v := range q {
		if v == nil {
			continue
		}
		vals.Set(k, fmt.Sprint(*v))
	}
	return vals
}
