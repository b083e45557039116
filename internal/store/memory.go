package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Store. A single RWMutex stands in for row
// locks: every mutation is an atomic commit and readers never observe a
// half-written pair.
type Memory struct {
	mu        sync.RWMutex
	content   map[string]Content
	etags     map[string]Etag
	freshness map[string]Freshness
	partial   map[string]Partial
}

func NewMemory() *Memory {
	return &Memory{
		content:   make(map[string]Content),
		etags:     make(map[string]Etag),
		freshness: make(map[string]Freshness),
		partial:   make(map[string]Partial),
	}
}

func (s *Memory) GetContent(_ context.Context, id string) (*Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.content[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *Memory) GetEtag(_ context.Context, id string) (*Etag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.etags[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *Memory) GetPartial(_ context.Context, id string) (*Partial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.partial[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *Memory) GetFreshness(_ context.Context, id string) (*Freshness, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.freshness[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *Memory) UpdateContent(_ context.Context, id string, body []byte, etag, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.content[id]
	if !ok {
		return ErrNotFound
	}
	et, ok := s.etags[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	rec.Body = body
	rec.UpdatedAt = &now
	rec.Source = source
	et.Etag = etag
	s.content[id] = rec
	s.etags[id] = et
	return nil
}

func (s *Memory) SaveContent(_ context.Context, rec Content, etag string, withEtag bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.content[rec.ID]; ok {
		now := time.Now()
		prev.Body = rec.Body
		prev.UpdatedAt = &now
		prev.ReferencePoint = rec.ReferencePoint
		prev.Source = rec.Source
		s.content[rec.ID] = prev
	} else {
		s.content[rec.ID] = rec
	}
	if withEtag {
		if _, ok := s.etags[rec.ID]; ok {
			return fmt.Errorf("save etag %s: duplicate key", rec.ID)
		}
		s.etags[rec.ID] = Etag{ID: rec.ID, Etag: etag}
	}
	return nil
}

func (s *Memory) InsertFreshness(_ context.Context, rec Freshness) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.freshness[rec.ID]; ok {
		return fmt.Errorf("insert freshness %s: duplicate key", rec.ID)
	}
	s.freshness[rec.ID] = rec
	return nil
}

func (s *Memory) TouchFreshness(_ context.Context, id string, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.freshness[id]
	if !ok {
		return ErrNotFound
	}
	rec.LastCheckedAt = checkedAt
	s.freshness[id] = rec
	return nil
}

func (s *Memory) RefreshFreshness(_ context.Context, id, etag string, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.freshness[id]
	if !ok {
		return ErrNotFound
	}
	rec.Etag = etag
	rec.LastCheckedAt = checkedAt
	s.freshness[id] = rec
	return nil
}

func (s *Memory) UpsertPartial(_ context.Context, rec Partial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.partial[rec.ID]; ok {
		now := time.Now()
		prev.Body = rec.Body
		prev.UpdatedAt = &now
		prev.Source = rec.Source
		s.partial[rec.ID] = prev
	} else {
		s.partial[rec.ID] = rec
	}
	return nil
}

func (s *Memory) DeleteContent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.content, id)
	return nil
}

func (s *Memory) DeleteEtag(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.etags, id)
	return nil
}
