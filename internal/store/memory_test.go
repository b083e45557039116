package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.GetContent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetEtag(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetFreshness(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetPartial(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySaveContentWithEtag(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	rec := Content{
		ID:             "fp1",
		Body:           []byte(`{"a":1}`),
		ReferencePoint: "pokemon-detailed",
		Source:         "https://pokeapi.co/api/v2/pokemon/",
	}
	require.NoError(t, s.SaveContent(ctx, rec, "deadbeef", true))

	got, err := s.GetContent(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, rec.Body, got.Body)
	assert.Nil(t, got.UpdatedAt)

	et, err := s.GetEtag(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", et.Etag)
}

func TestMemorySaveContentDuplicateEtag(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	rec := Content{ID: "fp1", Body: []byte("one")}
	require.NoError(t, s.SaveContent(ctx, rec, "e1", true))
	err := s.SaveContent(ctx, rec, "e2", true)
	assert.Error(t, err)
}

func TestMemorySaveContentUpsertsWithoutEtag(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	// Etag row survives from an earlier write; the content row was lost.
	require.NoError(t, s.SaveContent(ctx, Content{ID: "fp1", Body: []byte("one")}, "e1", true))
	require.NoError(t, s.DeleteContent(ctx, "fp1"))

	require.NoError(t, s.SaveContent(ctx, Content{ID: "fp1", Body: []byte("two")}, "", false))

	got, err := s.GetContent(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got.Body)

	// The surviving etag row is untouched.
	et, err := s.GetEtag(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, "e1", et.Etag)
}

func TestMemoryUpdateContent(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.SaveContent(ctx, Content{ID: "fp1", Body: []byte("one"), Source: "src1"}, "e1", true))
	require.NoError(t, s.UpdateContent(ctx, "fp1", []byte("two"), "e2", "src2"))

	got, err := s.GetContent(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got.Body)
	assert.Equal(t, "src2", got.Source)
	require.NotNil(t, got.UpdatedAt)

	et, err := s.GetEtag(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, "e2", et.Etag)
}

func TestMemoryUpdateContentRequiresBothRows(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	// Content present, etag missing.
	require.NoError(t, s.SaveContent(ctx, Content{ID: "fp1", Body: []byte("one")}, "", false))
	err := s.UpdateContent(ctx, "fp1", []byte("two"), "e2", "src")
	assert.ErrorIs(t, err, ErrNotFound)

	// Etag present, content missing.
	require.NoError(t, s.SaveContent(ctx, Content{ID: "fp2", Body: []byte("one")}, "e1", true))
	require.NoError(t, s.DeleteContent(ctx, "fp2"))
	err = s.UpdateContent(ctx, "fp2", []byte("two"), "e2", "src")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryFreshness(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	t0 := time.Now().Add(-time.Hour)

	rec := Freshness{ID: "fp1", URL: "https://pokeapi.co/api/v2/berry/", LastCheckedAt: t0, Etag: "e1"}
	require.NoError(t, s.InsertFreshness(ctx, rec))
	assert.Error(t, s.InsertFreshness(ctx, rec))

	t1 := time.Now()
	require.NoError(t, s.TouchFreshness(ctx, "fp1", t1))
	got, err := s.GetFreshness(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, t1, got.LastCheckedAt)
	assert.Equal(t, "e1", got.Etag)

	t2 := time.Now()
	require.NoError(t, s.RefreshFreshness(ctx, "fp1", "e2", t2))
	got, err = s.GetFreshness(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, t2, got.LastCheckedAt)
	assert.Equal(t, "e2", got.Etag)

	assert.ErrorIs(t, s.TouchFreshness(ctx, "missing", t1), ErrNotFound)
	assert.ErrorIs(t, s.RefreshFreshness(ctx, "missing", "e", t1), ErrNotFound)
}

func TestMemoryUpsertPartial(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.UpsertPartial(ctx, Partial{ID: "fp1", Body: []byte("one"), CreatedAt: time.Now(), Source: "src1"}))
	first, err := s.GetPartial(ctx, "fp1")
	require.NoError(t, err)
	assert.Nil(t, first.UpdatedAt)

	require.NoError(t, s.UpsertPartial(ctx, Partial{ID: "fp1", Body: []byte("two"), Source: "src2"}))
	second, err := s.GetPartial(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), second.Body)
	assert.Equal(t, "src2", second.Source)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	require.NotNil(t, second.UpdatedAt)
}
