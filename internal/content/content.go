// Package content is the regeneration coordinator: it decides whether
// a cached entry may be served as-is, serializes regeneration per cache
// key, and persists producer output while tolerating partially deleted
// row pairs.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/umnovI/poke-project/internal/fingerprint"
)

// ErrBusy signals that a no-cache request found a regeneration of the
// same cache key already in flight. Bypass callers fail fast instead of
// queuing so cache-busting latency stays bounded.
var ErrBusy = errors.New("content: regeneration in progress")

// UnknownProducerError means a logical endpoint name has no registered
// producer. That is a wiring mistake, not a runtime condition.
type UnknownProducerError struct {
	Name string
}

func (e *UnknownProducerError) Error() string {
	return fmt.Sprintf("no producer registered for %q", e.Name)
}

// Output is a producer's result: the assembled, rewritten body plus the
// remote URLs it was built from. The etag is fixed when the output is
// assembled and never recomputed.
type Output struct {
	Content string
	Source  []string
	Etag    string
}

func NewOutput(content string, source []string) Output {
	return Output{
		Content: content,
		Source:  source,
		Etag:    fingerprint.Hash(content, fingerprint.EtagSize, nil),
	}
}

func (o Output) joinedSource() string {
	return strings.Join(o.Source, ", ")
}

// Producer builds fresh content for one logical endpoint, issuing as
// many remote sub-requests as it needs. Any failure aborts the whole
// regeneration.
type Producer func(ctx context.Context, url string, query fingerprint.Query) (Output, error)

// Result is what the coordinator hands back to the HTTP surface.
type Result struct {
	Body      string
	Headers   map[string]string
	FromCache bool
}

// StalenessChecker reports whether content derived from a tracked
// remote URL needs refetching.
type StalenessChecker interface {
	IsStale(ctx context.Context, url, fp string, query fingerprint.Query) (bool, error)
}

// PartialWriter persists rewritten pass-through bodies, possibly out of
// band.
type PartialWriter interface {
	WritePartial(ctx context.Context, id, body, source string) error
}
