// Package pg is the SQL-table backend driver, talking to a Postgres-style
// provider through database/sql with the pgx stdlib driver. It translates
// between snake_case columns and the in-memory entity shape.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/omirall/mobilitat/internal/domain"
	"github.com/omirall/mobilitat/internal/remote"
)

const backend = "pg"

type Store struct {
	db       *sql.DB
	defaults remote.Defaults
}

var _ remote.Store = (*Store)(nil)

// Open connects to the backend. Pool limits are modest: this service is a
// single-user field tool, not a fleet API.
func Open(dsn string, defaults remote.Defaults) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open pg backend: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(15 * time.Minute)
	return &Store{db: db, defaults: defaults}, nil
}

// NewWithDB wraps an existing handle; used by tests.
func NewWithDB(db *sql.DB, defaults remote.Defaults) *Store {
	return &Store{db: db, defaults: defaults}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) FetchAssets(ctx context.Context) ([]domain.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_type, asset_sub_type, image, image_thumb, location,
		       state, last_painted_date, last_inspected_date, paint_type, notes,
		       created_at, updated_at, created_by, updated_by, alert_dismissed,
		       access_groups
		FROM crossings ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, &remote.Error{Backend: backend, Op: "fetch assets", Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var assets []domain.Asset
	for rows.Next() {
		var (
			a                                    domain.Asset
			subType, image, thumb                sql.NullString
			state, assetType                     sql.NullString
			painted, inspected, paintType, notes sql.NullString
			createdBy, updatedBy                 sql.NullString
			location, accessGroups               []byte
			createdAt, updatedAt                 sql.NullTime
			dismissed                            sql.NullBool
		)
		if err := rows.Scan(&a.ID, &assetType, &subType, &image, &thumb, &location,
			&state, &painted, &inspected, &paintType, &notes,
			&createdAt, &updatedAt, &createdBy, &updatedBy, &dismissed,
			&accessGroups); err != nil {
			return nil, &remote.Error{Backend: backend, Op: "scan asset", Err: err}
		}

		a.AssetType = domain.AssetType(assetType.String)
		a.AssetSubType = subType.String
		a.Image = image.String
		a.ImageThumb = thumb.String
		a.Location = remote.DecodeLocation(location, s.defaults)
		a.State = domain.State(state.String)
		a.LastPaintedDate = painted.String
		a.LastInspectedDate = inspected.String
		a.PaintType = paintType.String
		a.Notes = notes.String
		if createdAt.Valid {
			a.CreatedAt = createdAt.Time.UnixMilli()
		}
		if updatedAt.Valid {
			a.UpdatedAt = updatedAt.Time.UnixMilli()
		}
		a.CreatedBy = createdBy.String
		a.UpdatedBy = updatedBy.String
		a.AlertDismissed = dismissed.Bool
		if len(accessGroups) > 0 {
			// Stored as a JSON array; a broken value just means no tags.
			_ = json.Unmarshal(accessGroups, &a.AccessGroups)
		}

		assets = append(assets, remote.NormalizeAsset(a, s.defaults))
	}
	if err := rows.Err(); err != nil {
		return nil, &remote.Error{Backend: backend, Op: "iterate assets", Err: err}
	}
	return assets, nil
}

func (s *Store) UpsertAsset(ctx context.Context, a domain.Asset) error {
	location, err := json.Marshal(a.Location)
	if err != nil {
		return &remote.Error{Backend: backend, Op: "encode location", Err: err}
	}
	groups, err := json.Marshal(a.AccessGroups)
	if err != nil {
		return &remote.Error{Backend: backend, Op: "encode access groups", Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO crossings (
			id, asset_type, asset_sub_type, image, image_thumb, location,
			state, last_painted_date, last_inspected_date, paint_type, notes,
			created_at, updated_at, created_by, updated_by, alert_dismissed,
			access_groups
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			asset_type = excluded.asset_type,
			asset_sub_type = excluded.asset_sub_type,
			image = excluded.image,
			image_thumb = excluded.image_thumb,
			location = excluded.location,
			state = excluded.state,
			last_painted_date = excluded.last_painted_date,
			last_inspected_date = excluded.last_inspected_date,
			paint_type = excluded.paint_type,
			notes = excluded.notes,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by,
			alert_dismissed = excluded.alert_dismissed,
			access_groups = excluded.access_groups
	`, a.ID, string(a.AssetType), a.AssetSubType, a.Image, a.ImageThumb, location,
		string(a.State), a.LastPaintedDate, a.LastInspectedDate, a.PaintType, a.Notes,
		time.UnixMilli(a.CreatedAt).UTC(), time.UnixMilli(a.UpdatedAt).UTC(),
		a.CreatedBy, a.UpdatedBy, a.AlertDismissed, groups)
	if err != nil {
		return &remote.Error{Backend: backend, Op: "upsert asset", Err: err}
	}
	return nil
}

func (s *Store) DeleteAssets(ctx context.Context, ids []string) error {
	return s.deleteByID(ctx, "crossings", "delete assets", ids)
}

func (s *Store) FetchReports(ctx context.Context) ([]domain.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, date, type, crossing_ids, ai_analysis, created_at,
		       created_by, pdf_url
		FROM reports ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, &remote.Error{Backend: backend, Op: "fetch reports", Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var reports []domain.Report
	for rows.Next() {
		var (
			r                           domain.Report
			title, date, typ            sql.NullString
			analysis, createdBy, pdfURL sql.NullString
			assetIDs                    []byte
			createdAt                   sql.NullTime
		)
		if err := rows.Scan(&r.ID, &title, &date, &typ, &assetIDs, &analysis,
			&createdAt, &createdBy, &pdfURL); err != nil {
			return nil, &remote.Error{Backend: backend, Op: "scan report", Err: err}
		}
		r.Title = title.String
		r.Date = date.String
		r.Type = domain.ReportType(typ.String)
		if len(assetIDs) > 0 {
			_ = json.Unmarshal(assetIDs, &r.AssetIDs)
		}
		r.AIAnalysis = analysis.String
		if createdAt.Valid {
			r.CreatedAt = createdAt.Time.UnixMilli()
		}
		r.CreatedBy = createdBy.String
		r.PDFURL = pdfURL.String
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &remote.Error{Backend: backend, Op: "iterate reports", Err: err}
	}
	return reports, nil
}

func (s *Store) UpsertReport(ctx context.Context, r domain.Report) error {
	assetIDs, err := json.Marshal(r.AssetIDs)
	if err != nil {
		return &remote.Error{Backend: backend, Op: "encode report ids", Err: err}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, title, date, type, crossing_ids, ai_analysis,
			created_at, created_by, pdf_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			date = excluded.date,
			type = excluded.type,
			crossing_ids = excluded.crossing_ids,
			ai_analysis = excluded.ai_analysis,
			pdf_url = excluded.pdf_url
	`, r.ID, r.Title, r.Date, string(r.Type), assetIDs, r.AIAnalysis,
		time.UnixMilli(r.CreatedAt).UTC(), r.CreatedBy, r.PDFURL)
	if err != nil {
		return &remote.Error{Backend: backend, Op: "upsert report", Err: err}
	}
	return nil
}

func (s *Store) DeleteReports(ctx context.Context, ids []string) error {
	return s.deleteByID(ctx, "reports", "delete reports", ids)
}

func (s *Store) deleteByID(ctx context.Context, table, op string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	marks := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`, table, strings.Join(marks, ","))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return &remote.Error{Backend: backend, Op: op, Err: err}
	}
	return nil
}
