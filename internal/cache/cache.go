// Package cache persists whole-collection snapshots of the inventory so the
// UI keeps working when the remote backend is unreachable. Each collection is
// one JSON blob in the snapshots table; every save replaces the blob, and
// there is no transaction spanning the two collections.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/omirall/mobilitat/internal/domain"
)

// Collection keys inside the snapshots table.
const (
	CollectionAssets  = "assets"
	CollectionReports = "reports"
)

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// LoadAssets returns the cached asset snapshot. A missing, unreadable, or
// corrupt snapshot yields an empty slice; corruption is logged, never
// surfaced — the cache is a convenience copy, not a source of truth.
func (s *Store) LoadAssets(ctx context.Context) []domain.Asset {
	var assets []domain.Asset
	s.load(ctx, CollectionAssets, &assets)
	return assets
}

// LoadReports returns the cached report snapshot, empty on any failure.
func (s *Store) LoadReports(ctx context.Context) []domain.Report {
	var reports []domain.Report
	s.load(ctx, CollectionReports, &reports)
	return reports
}

// SaveAssets replaces the asset snapshot with a stripped copy (primary image
// payloads cleared, thumbnails kept) to respect storage quota. The returned
// error is informational: callers degrade, they do not fail.
func (s *Store) SaveAssets(ctx context.Context, assets []domain.Asset) error {
	return s.save(ctx, CollectionAssets, domain.StripImages(assets))
}

// SaveReports replaces the report snapshot.
func (s *Store) SaveReports(ctx context.Context, reports []domain.Report) error {
	return s.save(ctx, CollectionReports, reports)
}

// Clear drops one collection's snapshot. Used by force-resync before the
// remote re-fetch so no stale entry can survive.
func (s *Store) Clear(ctx context.Context, collection string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("failed to clear %s snapshot: %w", collection, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, collection string, dst any) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM snapshots WHERE collection = ?
	`, collection).Scan(&payload)
	if err == sql.ErrNoRows {
		return
	}
	if err != nil {
		s.logger.Warn("cache read failed", "collection", collection, "error", err)
		return
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		s.logger.Warn("cache snapshot corrupt, serving empty", "collection", collection, "error", err)
	}
}

func (s *Store) save(ctx context.Context, collection string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s snapshot: %w", collection, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (collection, payload, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (collection) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP
	`, collection, string(payload))
	if err != nil {
		return fmt.Errorf("failed to write %s snapshot: %w", collection, err)
	}
	return nil
}
