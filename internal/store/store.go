package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Store provides catalog persistence backed by Postgres.
type Store struct {
	db *sql.DB
}

// New sets up a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// CountCatalog returns the number of rows per catalog table.
func (s *Store) CountCatalog(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(catalogTables))
	for _, t := range catalogTables {
		var n int
		stmt, args, err := psql.Select("COUNT(*)").From(t.table).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build count: %w", err)
		}
		if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", t.table, err)
		}
		counts[t.table] = n
	}
	return counts, nil
}
