// Package freshness decides whether cached content derived from a
// remote URL may still be served without refetching it. It keeps one
// record per tracked URL holding the remote etag and the time of the
// last conditional check.
package freshness

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/umnovI/poke-project/internal/fingerprint"
	"github.com/umnovI/poke-project/internal/keylock"
	"github.com/umnovI/poke-project/internal/store"
	"github.com/umnovI/poke-project/internal/upstream"
)

// DefaultTTL is how long a freshness record is trusted before the next
// conditional probe: eleven days.
const DefaultTTL = 950400 * time.Second

// Prober is the transport HEAD primitive the tracker drives.
type Prober interface {
	Head(ctx context.Context, rawurl string, query fingerprint.Query, headers map[string]string) (*upstream.Headers, error)
}

// Tracker implements the two-tier staleness model: a local TTL gate
// that avoids the network entirely, and a conditional HEAD exchange
// once the gate expires.
type Tracker struct {
	store store.Store
	probe Prober
	ttl   time.Duration
	locks *keylock.Map
	log   zerolog.Logger
}

func NewTracker(st store.Store, probe Prober, ttl time.Duration, log zerolog.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		store: st,
		probe: probe,
		ttl:   ttl,
		locks: keylock.New(),
		log:   log,
	}
}

// IsStale reports whether content derived from url must be refetched.
// A URL never seen before is always stale: the seeding HEAD that
// creates its record doubles as the first change confirmation. Within
// the TTL window no remote call is made at all. Ambiguous remote
// outcomes are errors, never silently treated as fresh or stale.
func (t *Tracker) IsStale(ctx context.Context, url, fp string, query fingerprint.Query) (bool, error) {
	rec, err := t.store.GetFreshness(ctx, fp)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if rec != nil && time.Since(rec.LastCheckedAt) < t.ttl {
		return false, nil
	}
	return t.sourceModified(ctx, url, fp, query)
}

// sourceModified asks the remote whether the tracked URL changed,
// creating the freshness record on first contact. The whole exchange is
// serialized per fingerprint so concurrent first requests cannot race a
// duplicate seed insert.
func (t *Tracker) sourceModified(ctx context.Context, url, fp string, query fingerprint.Query) (bool, error) {
	t.locks.Lock(fp)
	defer t.locks.Unlock(fp)

	// Re-read under the lock: a waiter arriving behind the seeding call
	// finds the record and goes down the conditional path.
	rec, err := t.store.GetFreshness(ctx, fp)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	if rec == nil {
		return t.seed(ctx, url, fp, query)
	}

	resp, err := t.probe.Head(ctx, url, query, map[string]string{"If-None-Match": rec.Etag})
	if err != nil {
		return false, err
	}
	switch {
	case resp.Status == http.StatusNotModified:
		if err := t.store.TouchFreshness(ctx, fp, time.Now()); err != nil {
			return false, err
		}
		t.log.Debug().Str("url", url).Msg("remote confirmed unchanged")
		return false, nil
	case resp.Success:
		if resp.Etag == "" {
			return false, fmt.Errorf("remote response for %s carries no etag", url)
		}
		if err := t.store.RefreshFreshness(ctx, fp, resp.Etag, time.Now()); err != nil {
			return false, err
		}
		t.log.Debug().Str("url", url).Str("etag", resp.Etag).Msg("remote content changed")
		return true, nil
	default:
		return false, fmt.Errorf("remote returned unexpected status %d for %s", resp.Status, url)
	}
}

func (t *Tracker) seed(ctx context.Context, url, fp string, query fingerprint.Query) (bool, error) {
	resp, err := t.probe.Head(ctx, url, query, nil)
	if err != nil {
		return false, err
	}
	if !resp.Success {
		return false, fmt.Errorf("remote returned unexpected status %d while seeding %s", resp.Status, url)
	}
	if resp.Etag == "" {
		return false, fmt.Errorf("remote response for %s carries no etag", url)
	}

	rec := store.Freshness{
		ID:            fp,
		URL:           sourceURL(url, query),
		LastCheckedAt: time.Now(),
		Etag:          resp.Etag,
	}
	if err := t.store.InsertFreshness(ctx, rec); err != nil {
		return false, err
	}
	t.log.Debug().Str("url", rec.URL).Msg("seeded freshness record")
	return true, nil
}

func sourceURL(url string, query fingerprint.Query) string {
	if c := query.Canonical(); c != "" {
		return url + "?" + c
	}
	return url
}
