// Package store persists the relay's cache tables: generated content,
// its etag validators, remote-URL freshness records and the
// pass-through partial cache. All rows are keyed by hex fingerprints.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by point lookups when no row exists for the
// given fingerprint.
var ErrNotFound = errors.New("store: not found")

// Content is the cached, rewritten body for one logical endpoint
// fingerprint.
type Content struct {
	ID             string
	Body           []byte // base64-encoded rewritten payload
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	ReferencePoint string // freshness fingerprint this entry is checked against
	Source         string // remote URLs the body was built from
}

// Etag is the validator row paired with a Content row. It is a separate
// row on purpose: either side can be removed by hand without breaking a
// foreign key on the other.
type Etag struct {
	ID   string
	Etag string
}

// Freshness tracks one remote URL the relay sends conditional HEAD
// requests to.
type Freshness struct {
	ID            string
	URL           string
	LastCheckedAt time.Time
	Etag          string
}

// Partial is a pass-through cache row: a body rewritten on the way out
// with no freshness tracking attached.
type Partial struct {
	ID        string
	Body      []byte
	CreatedAt time.Time
	UpdatedAt *time.Time
	Source    string
}

// Store is the persistence contract. Implementations must make every
// mutation an atomic commit and take an exclusive row lock on the
// update-in-place paths so concurrent writers cannot interleave.
type Store interface {
	GetContent(ctx context.Context, id string) (*Content, error)
	GetEtag(ctx context.Context, id string) (*Etag, error)
	GetPartial(ctx context.Context, id string) (*Partial, error)
	GetFreshness(ctx context.Context, id string) (*Freshness, error)

	// UpdateContent rewrites an existing content/etag pair in place,
	// bumping UpdatedAt. Both rows must exist; the implementation locks
	// them for the duration of the transaction.
	UpdateContent(ctx context.Context, id string, body []byte, etag, source string) error

	// SaveContent upserts the content row and, when withEtag is set,
	// inserts a fresh etag row. Callers decide withEtag by checking for
	// an orphaned etag row first, so a partial manual deletion never
	// turns into a duplicate-key insert.
	SaveContent(ctx context.Context, rec Content, etag string, withEtag bool) error

	InsertFreshness(ctx context.Context, rec Freshness) error
	// TouchFreshness bumps LastCheckedAt only (remote replied
	// not-modified).
	TouchFreshness(ctx context.Context, id string, checkedAt time.Time) error
	// RefreshFreshness stores a new remote etag along with the check
	// time (remote content changed).
	RefreshFreshness(ctx context.Context, id, etag string, checkedAt time.Time) error

	UpsertPartial(ctx context.Context, rec Partial) error

	DeleteContent(ctx context.Context, id string) error
	DeleteEtag(ctx context.Context, id string) error
}
