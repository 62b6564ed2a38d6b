package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/model"
	"github.com/okian/brandmatch/pkg/metrics"
)

const brandsSchema = `
CREATE TABLE IF NOT EXISTS brands (
    name_key   TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    attributes TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// SQLiteStore is a BrandStore persisted with the pure-Go SQLite driver.
type SQLiteStore struct {
	db   *sql.DB
	opts storeOptions
}

// OpenSQLite opens dsn and ensures the brands table exists. For an in-memory
// database pass ":memory:".
func OpenSQLite(ctx context.Context, dsn string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", ErrStorage, err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, brandsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: schema: %w", ErrStorage, err)
	}
	s := &SQLiteStore{db: db, opts: o}
	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateBrandsTotal(n)
	}
	return s, nil
}

func (s *SQLiteStore) Get(ctx context.Context, name string) (model.Brand, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, attributes, updated_at FROM brands WHERE name_key = ?`, nameKey(name))
	b, err := scanBrand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Brand{}, ErrNotFound
	}
	if err != nil {
		return model.Brand{}, fmt.Errorf("%w: get %q: %w", ErrStorage, name, err)
	}
	return b, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, b model.Brand) (model.Brand, error) {
	if err := validate(b); err != nil {
		return model.Brand{}, err
	}
	b = copyBrand(b)
	b.Name = strings.TrimSpace(b.Name)
	b.UpdatedAt = s.opts.now()

	attrs, err := json.Marshal(b.Attributes.Wire())
	if err != nil {
		return model.Brand{}, fmt.Errorf("%w: encode: %w", ErrStorage, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO brands (name_key, name, attributes, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(name_key) DO UPDATE SET
    name = excluded.name,
    attributes = excluded.attributes,
    updated_at = excluded.updated_at`,
		nameKey(b.Name), b.Name, string(attrs), b.UpdatedAt.UnixNano())
	if err != nil {
		return model.Brand{}, fmt.Errorf("%w: upsert %q: %w", ErrStorage, b.Name, err)
	}

	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateBrandsTotal(n)
	}
	return b, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.Brand, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, attributes, updated_at FROM brands ORDER BY name_key`)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrStorage, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: list: %w", ErrStorage, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrStorage, err)
	}
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM brands`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrStorage, err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanBrand(sc scanner) (model.Brand, error) {
	var (
		name, attrs string
		updated     int64
	)
	if err := sc.Scan(&name, &attrs, &updated); err != nil {
		return model.Brand{}, err
	}
	var wire map[string]string
	if err := json.Unmarshal([]byte(attrs), &wire); err != nil {
		return model.Brand{}, err
	}
	texts := make(attribute.Texts, len(wire))
	for k, v := range wire {
		// Unknown keys written by older versions are skipped.
		if key, err := attribute.Parse(k); err == nil {
			texts[key] = v
		}
	}
	return model.Brand{Name: name, Attributes: texts, UpdatedAt: time.Unix(0, updated).UTC()}, nil
}
