package content

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/umnovI/poke-project/internal/fingerprint"
	"github.com/umnovI/poke-project/internal/keylock"
	"github.com/umnovI/poke-project/internal/rewrite"
	"github.com/umnovI/poke-project/internal/store"
	"github.com/umnovI/poke-project/internal/upstream"
)

// Service coordinates cache reads and regenerations for the logical
// endpoints, and relays pass-through requests with body rewriting.
type Service struct {
	store     store.Store
	fresh     StalenessChecker
	client    *upstream.Client
	rewriter  *rewrite.Rewriter
	hosts     upstream.Hosts
	partial   PartialWriter
	producers map[string]Producer
	locks     *keylock.Map
	log       zerolog.Logger
}

// ServiceOptions wires a Service. Producers is the static registry of
// logical endpoint names; it is fixed at construction.
type ServiceOptions struct {
	Store     store.Store
	Freshness StalenessChecker
	Client    *upstream.Client
	Rewriter  *rewrite.Rewriter
	Hosts     upstream.Hosts
	Partial   PartialWriter // nil means write through synchronously
	Producers map[string]Producer
	Log       zerolog.Logger
}

func NewService(opts ServiceOptions) *Service {
	s := &Service{
		store:     opts.Store,
		fresh:     opts.Freshness,
		client:    opts.Client,
		rewriter:  opts.Rewriter,
		hosts:     opts.Hosts,
		partial:   opts.Partial,
		producers: opts.Producers,
		locks:     keylock.New(),
		log:       opts.Log,
	}
	if s.partial == nil {
		s.partial = syncPartialWriter{store: opts.Store}
	}
	if s.producers == nil {
		s.producers = map[string]Producer{}
	}
	return s
}

// Has reports whether a producer is registered for name. The HTTP
// surface checks its routes against this at construction so an unknown
// name fails at startup, not at request time.
func (s *Service) Has(name string) bool {
	_, ok := s.producers[name]
	return ok
}

// Get returns the cached body for (name, req), regenerating it first
// when the cache misses, the tracked remote URL went stale, or the
// caller asked to bypass the cache. noCache still writes the fresh
// result through.
func (s *Service) Get(ctx context.Context, name string, req upstream.Request, noCache bool) (Result, error) {
	produce, ok := s.producers[name]
	if !ok {
		return Result{}, &UnknownProducerError{Name: name}
	}
	// One producer can serve many URLs, so the cache key covers both.
	fp := fingerprint.Hash(name+req.URL, fingerprint.KeySize, req.Query)

	stale, err := s.fresh.IsStale(ctx, req.URL, req.Fingerprint, req.Query)
	if err != nil {
		return Result{}, err
	}

	// Fast path: fresh content served straight from the store, no
	// regeneration lock involved.
	if !noCache && !stale {
		res, err := s.readCached(ctx, fp)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return Result{}, err
		}
	}

	if noCache {
		if !s.locks.TryLock(fp) {
			return Result{}, ErrBusy
		}
	} else {
		s.locks.Lock(fp)
	}
	defer s.locks.Unlock(fp)

	regenID := uuid.NewString()
	s.log.Debug().Str("endpoint", name).Str("regen_id", regenID).Bool("stale", stale).Bool("no_cache", noCache).
		Msg("regenerating content")

	out, err := produce(ctx, req.URL, req.Query)
	if err != nil {
		// Abort the whole regeneration: nothing is persisted.
		return Result{}, err
	}
	if err := s.persist(ctx, fp, req.Fingerprint, out); err != nil {
		return Result{}, err
	}

	s.log.Debug().Str("endpoint", name).Str("regen_id", regenID).Str("etag", out.Etag).Msg("content regenerated")
	return Result{
		Body:      out.Content,
		Headers:   map[string]string{"etag": out.Etag},
		FromCache: false,
	}, nil
}

// readCached serves the fast path. A content row whose etag row was
// removed by hand counts as a miss so the next regeneration restores
// the pair.
func (s *Service) readCached(ctx context.Context, fp string) (Result, error) {
	rec, err := s.store.GetContent(ctx, fp)
	if err != nil {
		return Result{}, err
	}
	et, err := s.store.GetEtag(ctx, fp)
	if err != nil {
		return Result{}, err
	}
	body, err := fingerprint.Decode(rec.Body)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Body:      body,
		Headers:   map[string]string{"etag": et.Etag},
		FromCache: true,
	}, nil
}

// persist writes producer output while preserving the content/etag pair
// invariants. Either row may have been deleted by hand; neither case
// may turn into a duplicate-key insert.
func (s *Service) persist(ctx context.Context, fp, refPoint string, out Output) error {
	cnt, err := s.store.GetContent(ctx, fp)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	et, err := s.store.GetEtag(ctx, fp)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if cnt != nil && et != nil {
		return s.store.UpdateContent(ctx, fp, fingerprint.Encode(out.Content), out.Etag, out.joinedSource())
	}

	rec := store.Content{
		ID:             fp,
		Body:           fingerprint.Encode(out.Content),
		CreatedAt:      time.Now(),
		ReferencePoint: refPoint,
		Source:         out.joinedSource(),
	}
	// Attach a fresh etag row only when none survived.
	return s.store.SaveContent(ctx, rec, out.Etag, et == nil)
}

// syncPartialWriter is the fallback partial writer: a direct store
// upsert in the request path.
type syncPartialWriter struct {
	store store.Store
}

func (w syncPartialWriter) WritePartial(ctx context.Context, id, body, source string) error {
	return w.store.UpsertPartial(ctx, store.Partial{
		ID:        id,
		Body:      fingerprint.Encode(body),
		CreatedAt: time.Now(),
		Source:    source,
	})
}
