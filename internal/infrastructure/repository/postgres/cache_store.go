package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CacheStore keeps one cache table as rows of cache_entries so every worker
// shares the same memo.
type CacheStore struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

func NewCacheStore(db *sql.DB, table string, logger *slog.Logger) *CacheStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheStore{db: db, table: table, logger: logger}
}

// Get treats read failures as misses; the caller recomputes the value.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `
SELECT value FROM cache_entries WHERE table_name = $1 AND key = $2
`, s.table, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("cache_read_failed", "table", s.table, "error", err)
		return nil, false
	}
	return value, true
}

func (s *CacheStore) Put(ctx context.Context, key string, value []byte) error {
	return s.PutMany(ctx, map[string][]byte{key: value})
}

func (s *CacheStore) PutMany(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for key, value := range entries {
		_, err := tx.ExecContext(ctx, `
INSERT INTO cache_entries (table_name, key, value, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (table_name, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
`, s.table, key, value, now)
		if err != nil {
			return fmt.Errorf("upsert cache entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache tx: %w", err)
	}
	return nil
}

func (s *CacheStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE table_name = $1`, s.table); err != nil {
		return fmt.Errorf("reset cache table %s: %w", s.table, err)
	}
	return nil
}
