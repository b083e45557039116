package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG is the Postgres-backed Store. Row locks for the update paths are
// taken with SELECT ... FOR UPDATE inside a single transaction per
// mutation.
type PG struct {
	pool *pgxpool.Pool
}

func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// CreateTables creates the cache tables when they do not exist yet.
// The content and etag tables deliberately carry no foreign key between
// them: either row may be deleted by hand without touching the other.
func (s *PG) CreateTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS content (
			id CHAR(32) PRIMARY KEY,
			body BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ,
			reference_point CHAR(32),
			source TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS content_etag (
			id CHAR(32) PRIMARY KEY,
			etag TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS freshness (
			id CHAR(32) PRIMARY KEY,
			url TEXT NOT NULL,
			last_checked_at TIMESTAMPTZ NOT NULL,
			etag TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS partial_content (
			id CHAR(32) PRIMARY KEY,
			body BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ,
			source TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

func (s *PG) GetContent(ctx context.Context, id string) (*Content, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, body, created_at, updated_at, reference_point, source FROM content WHERE id = $1`, id)
	return scanContent(row)
}

func scanContent(row pgx.Row) (*Content, error) {
	var (
		rec     Content
		updated pgtype.Timestamptz
		ref     pgtype.Text
	)
	err := row.Scan(&rec.ID, &rec.Body, &rec.CreatedAt, &updated, &ref, &rec.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	if updated.Valid {
		t := updated.Time
		rec.UpdatedAt = &t
	}
	rec.ReferencePoint = ref.String
	return &rec, nil
}

func (s *PG) GetEtag(ctx context.Context, id string) (*Etag, error) {
	var rec Etag
	err := s.pool.QueryRow(ctx, `SELECT id, etag FROM content_etag WHERE id = $1`, id).
		Scan(&rec.ID, &rec.Etag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get etag: %w", err)
	}
	return &rec, nil
}

func (s *PG) GetPartial(ctx context.Context, id string) (*Partial, error) {
	var (
		rec     Partial
		updated pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, body, created_at, updated_at, source FROM partial_content WHERE id = $1`, id).
		Scan(&rec.ID, &rec.Body, &rec.CreatedAt, &updated, &rec.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get partial: %w", err)
	}
	if updated.Valid {
		t := updated.Time
		rec.UpdatedAt = &t
	}
	return &rec, nil
}

func (s *PG) GetFreshness(ctx context.Context, id string) (*Freshness, error) {
	var rec Freshness
	err := s.pool.QueryRow(ctx,
		`SELECT id, url, last_checked_at, etag FROM freshness WHERE id = $1`, id).
		Scan(&rec.ID, &rec.URL, &rec.LastCheckedAt, &rec.Etag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get freshness: %w", err)
	}
	return &rec, nil
}

func (s *PG) UpdateContent(ctx context.Context, id string, body []byte, etag, source string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("update content: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	// Exclusive read so a concurrent regeneration cannot interleave its
	// writes with ours.
	if _, err := scanContent(tx.QueryRow(ctx,
		`SELECT id, body, created_at, updated_at, reference_point, source FROM content WHERE id = $1 FOR UPDATE`,
		id)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE content SET body = $2, updated_at = $3, source = $4 WHERE id = $1`,
		id, body, time.Now(), source); err != nil {
		return fmt.Errorf("update content: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE content_etag SET etag = $2 WHERE id = $1`, id, etag); err != nil {
		return fmt.Errorf("update etag: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("update content: commit: %w", err)
	}
	return nil
}

func (s *PG) SaveContent(ctx context.Context, rec Content, etag string, withEtag bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save content: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	ref := pgtype.Text{String: rec.ReferencePoint, Valid: rec.ReferencePoint != ""}
	if _, err := tx.Exec(ctx,
		`INSERT INTO content (id, body, created_at, reference_point, source)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET body = $2, updated_at = now(), reference_point = $4, source = $5`,
		rec.ID, rec.Body, rec.CreatedAt, ref, rec.Source); err != nil {
		return fmt.Errorf("save content: %w", err)
	}
	if withEtag {
		if _, err := tx.Exec(ctx,
			`INSERT INTO content_etag (id, etag) VALUES ($1, $2)`, rec.ID, etag); err != nil {
			return fmt.Errorf("save etag: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("save content: commit: %w", err)
	}
	return nil
}

func (s *PG) InsertFreshness(ctx context.Context, rec Freshness) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO freshness (id, url, last_checked_at, etag) VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.URL, rec.LastCheckedAt, rec.Etag); err != nil {
		return fmt.Errorf("insert freshness: %w", err)
	}
	return nil
}

func (s *PG) TouchFreshness(ctx context.Context, id string, checkedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("touch freshness: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lockFreshnessRow(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE freshness SET last_checked_at = $2 WHERE id = $1`, id, checkedAt); err != nil {
		return fmt.Errorf("touch freshness: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("touch freshness: commit: %w", err)
	}
	return nil
}

func (s *PG) RefreshFreshness(ctx context.Context, id, etag string, checkedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("refresh freshness: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lockFreshnessRow(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE freshness SET etag = $2, last_checked_at = $3 WHERE id = $1`,
		id, etag, checkedAt); err != nil {
		return fmt.Errorf("refresh freshness: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("refresh freshness: commit: %w", err)
	}
	return nil
}

func lockFreshnessRow(ctx context.Context, tx pgx.Tx, id string) error {
	var got string
	err := tx.QueryRow(ctx, `SELECT id FROM freshness WHERE id = $1 FOR UPDATE`, id).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock freshness: %w", err)
	}
	return nil
}

func (s *PG) UpsertPartial(ctx context.Context, rec Partial) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO partial_content (id, body, created_at, source)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET body = $2, updated_at = now(), source = $4`,
		rec.ID, rec.Body, rec.CreatedAt, rec.Source); err != nil {
		return fmt.Errorf("upsert partial: %w", err)
	}
	return nil
}

func (s *PG) DeleteContent(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM content WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	return nil
}

func (s *PG) DeleteEtag(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM content_etag WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete etag: %w", err)
	}
	return nil
}
