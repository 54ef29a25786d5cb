// Package sync presents one coherent read/write API over the local cache and
// the remote backend, regardless of backend health.
//
// Policy: reads never fail (worst case stale or empty data); writes never
// lose the local change even when the remote half fails. Only the asset
// write path surfaces a remote error, so the UI can tell the user the change
// is saved locally and will sync later.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/omirall/mobilitat/internal/auth"
	"github.com/omirall/mobilitat/internal/cache"
	"github.com/omirall/mobilitat/internal/domain"
	"github.com/omirall/mobilitat/internal/obs"
	"github.com/omirall/mobilitat/internal/remote"
)

// CacheStore is the subset of cache.Store the synchronizer requires.
type CacheStore interface {
	LoadAssets(ctx context.Context) []domain.Asset
	SaveAssets(ctx context.Context, assets []domain.Asset) error
	LoadReports(ctx context.Context) []domain.Report
	SaveReports(ctx context.Context, reports []domain.Report) error
	Clear(ctx context.Context, collection string) error
}

type Service struct {
	cache    CacheStore
	remote   remote.Store
	offline  bool
	identity auth.Identity
	logger   *slog.Logger
}

// New builds the synchronizer. The offline flag is fixed for the process
// lifetime: when set, no method ever touches the remote store, not even to
// fail fast.
func New(cacheStore CacheStore, remoteStore remote.Store, offline bool, identity auth.Identity, logger *slog.Logger) *Service {
	if identity == nil {
		identity = auth.Anonymous
	}
	return &Service{
		cache:    cacheStore,
		remote:   remoteStore,
		offline:  offline,
		identity: identity,
		logger:   logger,
	}
}

// GetAll returns every asset, newest first. It never fails: a remote error
// or an empty remote result falls back to the cached snapshot, while a
// successful remote fetch replaces the cache wholesale — remote wins over
// cache, record for record, with no field-level merge.
func (s *Service) GetAll(ctx context.Context) []domain.Asset {
	cached := s.cache.LoadAssets(ctx)

	if s.offline {
		domain.SortAssetsByCreatedDesc(cached)
		return cached
	}

	assets, err := s.remote.FetchAssets(ctx)
	obs.RemoteCall("fetch_assets", err)
	if err != nil {
		s.logger.Warn("remote fetch failed, serving cached assets", "cached", len(cached), "error", err)
		domain.SortAssetsByCreatedDesc(cached)
		return cached
	}
	if len(assets) == 0 && len(cached) > 0 {
		// An empty remote is untrustworthy, not an instruction to forget
		// everything.
		s.logger.Warn("remote returned no assets, keeping cached snapshot", "cached", len(cached))
		domain.SortAssetsByCreatedDesc(cached)
		return cached
	}

	if err := s.cache.SaveAssets(ctx, assets); err != nil {
		obs.CacheDegraded(cache.CollectionAssets)
		s.logger.Warn("cache write failed, continuing with remote result", "error", err)
	}

	domain.SortAssetsByCreatedDesc(assets)
	return assets
}

// Save upserts the asset locally first — the caller may treat the write as
// complete the moment this returns, and a subsequent GetAll sees it — then
// attempts the remote upsert. A remote failure is returned so the UI can
// report "saved locally, will sync later"; the cache entry is never rolled
// back.
func (s *Service) Save(ctx context.Context, a domain.Asset) error {
	now := time.Now().UnixMilli()
	if a.CreatedAt == 0 {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.UpdatedAt < a.CreatedAt {
		a.UpdatedAt = a.CreatedAt
	}
	if userID := s.identity.CurrentUserID(); userID != "" {
		if a.CreatedBy == "" {
			a.CreatedBy = userID
		}
		a.UpdatedBy = userID
	}

	assets := s.cache.LoadAssets(ctx)
	merged := make([]domain.Asset, 0, len(assets)+1)
	merged = append(merged, a)
	for _, existing := range assets {
		if existing.ID != a.ID {
			merged = append(merged, existing)
		}
	}
	if err := s.cache.SaveAssets(ctx, merged); err != nil {
		obs.CacheDegraded(cache.CollectionAssets)
		s.logger.Warn("local save degraded", "id", a.ID, "error", err)
	}

	if s.offline {
		return nil
	}

	err := s.remote.UpsertAsset(ctx, a)
	obs.RemoteCall("upsert_asset", err)
	if err != nil {
		s.logger.Warn("remote save failed, change kept locally", "id", a.ID, "error", err)
		return err
	}
	return nil
}

// DeleteMany removes the assets locally, then best-effort remotely. Delete
// is local-authoritative once issued: a remote failure is logged, never
// surfaced, and never restores the removed entries.
func (s *Service) DeleteMany(ctx context.Context, ids []string) {
	s.removeCachedAssets(ctx, ids)

	if s.offline || len(ids) == 0 {
		return
	}
	err := s.remote.DeleteAssets(ctx, ids)
	obs.RemoteCall("delete_assets", err)
	if err != nil {
		s.logger.Warn("remote delete failed, local removal stands", "count", len(ids), "error", err)
	}
}

// GetReports mirrors the GetAll read policy for the report collection.
func (s *Service) GetReports(ctx context.Context) []domain.Report {
	cached := s.cache.LoadReports(ctx)

	if s.offline {
		domain.SortReportsByCreatedDesc(cached)
		return cached
	}

	reports, err := s.remote.FetchReports(ctx)
	obs.RemoteCall("fetch_reports", err)
	if err != nil {
		s.logger.Warn("remote fetch failed, serving cached reports", "cached", len(cached), "error", err)
		domain.SortReportsByCreatedDesc(cached)
		return cached
	}
	if len(reports) == 0 && len(cached) > 0 {
		domain.SortReportsByCreatedDesc(cached)
		return cached
	}

	if err := s.cache.SaveReports(ctx, reports); err != nil {
		obs.CacheDegraded(cache.CollectionReports)
		s.logger.Warn("cache write failed, continuing with remote result", "error", err)
	}

	domain.SortReportsByCreatedDesc(reports)
	return reports
}

// SaveReport persists the report locally first, then best-effort remotely.
// Unlike the asset path, report remote failures are never surfaced.
func (s *Service) SaveReport(ctx context.Context, r domain.Report) {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	if r.CreatedBy == "" {
		r.CreatedBy = s.identity.CurrentUserID()
	}

	reports := s.cache.LoadReports(ctx)
	merged := make([]domain.Report, 0, len(reports)+1)
	merged = append(merged, r)
	for _, existing := range reports {
		if existing.ID != r.ID {
			merged = append(merged, existing)
		}
	}
	if err := s.cache.SaveReports(ctx, merged); err != nil {
		obs.CacheDegraded(cache.CollectionReports)
		s.logger.Warn("local report save degraded", "id", r.ID, "error", err)
	}

	if s.offline {
		return
	}
	err := s.remote.UpsertReport(ctx, r)
	obs.RemoteCall("upsert_report", err)
	if err != nil {
		s.logger.Warn("remote report save failed, kept locally", "id", r.ID, "error", err)
	}
}

// DeleteReport removes one report; the referenced assets are untouched.
func (s *Service) DeleteReport(ctx context.Context, id string) {
	s.DeleteReports(ctx, []string{id})
}

// DeleteReports removes reports locally, then best-effort remotely.
func (s *Service) DeleteReports(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	reports := s.cache.LoadReports(ctx)
	kept := reports[:0]
	for _, r := range reports {
		if _, gone := drop[r.ID]; !gone {
			kept = append(kept, r)
		}
	}
	if err := s.cache.SaveReports(ctx, kept); err != nil {
		obs.CacheDegraded(cache.CollectionReports)
		s.logger.Warn("local report delete degraded", "error", err)
	}

	if s.offline {
		return
	}
	err := s.remote.DeleteReports(ctx, ids)
	obs.RemoteCall("delete_reports", err)
	if err != nil {
		s.logger.Warn("remote report delete failed, local removal stands", "count", len(ids), "error", err)
	}
}

// UpdatePDFURL attaches a rendered PDF artifact to an existing report, the
// only mutation a report allows after creation. Follows the report-path
// policy: cache first, remote best-effort.
func (s *Service) UpdatePDFURL(ctx context.Context, id, url string) {
	reports := s.cache.LoadReports(ctx)
	var updated *domain.Report
	for i := range reports {
		if reports[i].ID == id {
			reports[i].PDFURL = url
			updated = &reports[i]
			break
		}
	}
	if updated == nil {
		s.logger.Warn("pdf url update for unknown report", "id", id)
		return
	}
	if err := s.cache.SaveReports(ctx, reports); err != nil {
		obs.CacheDegraded(cache.CollectionReports)
		s.logger.Warn("local pdf url update degraded", "id", id, "error", err)
	}

	if s.offline {
		return
	}
	err := s.remote.UpsertReport(ctx, *updated)
	obs.RemoteCall("upsert_report", err)
	if err != nil {
		s.logger.Warn("remote pdf url update failed, kept locally", "id", id, "error", err)
	}
}

// Result is the outcome of a manual force sync, shown to the user verbatim.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ForceSync wipes both cache collections, then refetches them from the
// remote. Clearing first guarantees no stale entry survives a manual resync;
// the price is an empty cache until the next good read if the remote call
// fails mid-operation.
func (s *Service) ForceSync(ctx context.Context) Result {
	if s.offline {
		return Result{Success: false, Message: "offline mode is enabled; remote sync is disabled"}
	}

	for _, collection := range []string{cache.CollectionAssets, cache.CollectionReports} {
		if err := s.cache.Clear(ctx, collection); err != nil {
			s.logger.Warn("cache clear failed during force sync", "collection", collection, "error", err)
		}
	}

	assets, err := s.remote.FetchAssets(ctx)
	obs.RemoteCall("fetch_assets", err)
	if err != nil {
		s.logger.Error("force sync failed fetching assets", "error", err)
		return Result{Success: false, Message: fmt.Sprintf("sync failed: %v", err)}
	}
	reports, err := s.remote.FetchReports(ctx)
	obs.RemoteCall("fetch_reports", err)
	if err != nil {
		s.logger.Error("force sync failed fetching reports", "error", err)
		return Result{Success: false, Message: fmt.Sprintf("sync failed: %v", err)}
	}

	if err := s.cache.SaveAssets(ctx, assets); err != nil {
		obs.CacheDegraded(cache.CollectionAssets)
		s.logger.Warn("cache write failed after force sync", "error", err)
	}
	if err := s.cache.SaveReports(ctx, reports); err != nil {
		obs.CacheDegraded(cache.CollectionReports)
		s.logger.Warn("cache write failed after force sync", "error", err)
	}

	s.logger.Info("force sync complete", "assets", len(assets), "reports", len(reports))
	return Result{
		Success: true,
		Message: fmt.Sprintf("synchronized %d assets and %d reports", len(assets), len(reports)),
	}
}

func (s *Service) removeCachedAssets(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	assets := s.cache.LoadAssets(ctx)
	kept := assets[:0]
	for _, a := range assets {
		if _, gone := drop[a.ID]; !gone {
			kept = append(kept, a)
		}
	}
	if err := s.cache.SaveAssets(ctx, kept); err != nil {
		obs.CacheDegraded(cache.CollectionAssets)
		s.logger.Warn("local delete degraded", "error", err)
	}
}
