// Package docstore is the document-API backend driver. It speaks a plain
// HTTP/JSON collection protocol with an api-key header, and hides the
// provider's batch-write limits from callers.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/omirall/mobilitat/internal/domain"
	"github.com/omirall/mobilitat/internal/remote"
)

const backend = "docstore"

// maxDeleteBatch is the provider's hard limit on documents per batch write.
const maxDeleteBatch = 400

const (
	assetCollection  = "crossings"
	reportCollection = "reports"
)

type Client struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	defaults remote.Defaults
}

var _ remote.Store = (*Client)(nil)

func New(baseURL, apiKey string, defaults remote.Defaults) *Client {
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		client:   &http.Client{},
		defaults: defaults,
	}
}

// assetDoc mirrors the document schema, which keeps the snake_case field
// names of the original tables. Location may arrive as an object or as a
// serialized string; timestamps as millis or RFC 3339 text.
type assetDoc struct {
	ID                string          `json:"id"`
	AssetType         string          `json:"asset_type"`
	AssetSubType      string          `json:"asset_sub_type,omitempty"`
	Image             string          `json:"image,omitempty"`
	ImageThumb        string          `json:"image_thumb,omitempty"`
	Location          json.RawMessage `json:"location,omitempty"`
	State             string          `json:"state"`
	LastPaintedDate   string          `json:"last_painted_date,omitempty"`
	LastInspectedDate string          `json:"last_inspected_date,omitempty"`
	PaintType         string          `json:"paint_type,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         json.RawMessage `json:"created_at,omitempty"`
	UpdatedAt         json.RawMessage `json:"updated_at,omitempty"`
	CreatedBy         string          `json:"created_by,omitempty"`
	UpdatedBy         string          `json:"updated_by,omitempty"`
	AlertDismissed    bool            `json:"alert_dismissed,omitempty"`
	AccessGroups      []string        `json:"access_groups,omitempty"`
}

type reportDoc struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Date        string          `json:"date,omitempty"`
	Type        string          `json:"type"`
	CrossingIDs []string        `json:"crossing_ids,omitempty"`
	AIAnalysis  string          `json:"ai_analysis,omitempty"`
	CreatedAt   json.RawMessage `json:"created_at,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
	PDFURL      string          `json:"pdf_url,omitempty"`
}

func (c *Client) FetchAssets(ctx context.Context) ([]domain.Asset, error) {
	var payload struct {
		Documents []assetDoc `json:"documents"`
	}
	if err := c.get(ctx, assetCollection, &payload); err != nil {
		return nil, &remote.Error{Backend: backend, Op: "fetch assets", Err: err}
	}

	assets := make([]domain.Asset, 0, len(payload.Documents))
	for _, doc := range payload.Documents {
		assets = append(assets, remote.NormalizeAsset(domain.Asset{
			ID:                doc.ID,
			AssetType:         domain.AssetType(doc.AssetType),
			AssetSubType:      doc.AssetSubType,
			Image:             doc.Image,
			ImageThumb:        doc.ImageThumb,
			Location:          remote.DecodeLocation(doc.Location, c.defaults),
			State:             domain.State(doc.State),
			LastPaintedDate:   doc.LastPaintedDate,
			LastInspectedDate: doc.LastInspectedDate,
			PaintType:         doc.PaintType,
			Notes:             doc.Notes,
			CreatedAt:         remote.ParseEpochMillis(doc.CreatedAt),
			UpdatedAt:         remote.ParseEpochMillis(doc.UpdatedAt),
			CreatedBy:         doc.CreatedBy,
			UpdatedBy:         doc.UpdatedBy,
			AlertDismissed:    doc.AlertDismissed,
			AccessGroups:      doc.AccessGroups,
		}, c.defaults))
	}
	domain.SortAssetsByCreatedDesc(assets)
	return assets, nil
}

func (c *Client) UpsertAsset(ctx context.Context, a domain.Asset) error {
	location, err := json.Marshal(a.Location)
	if err != nil {
		return &remote.Error{Backend: backend, Op: "encode location", Err: err}
	}
	doc := assetDoc{
		ID:                a.ID,
		AssetType:         string(a.AssetType),
		AssetSubType:      a.AssetSubType,
		Image:             a.Image,
		ImageThumb:        a.ImageThumb,
		Location:          location,
		State:             string(a.State),
		LastPaintedDate:   a.LastPaintedDate,
		LastInspectedDate: a.LastInspectedDate,
		PaintType:         a.PaintType,
		Notes:             a.Notes,
		CreatedAt:         epochMillis(a.CreatedAt),
		UpdatedAt:         epochMillis(a.UpdatedAt),
		CreatedBy:         a.CreatedBy,
		UpdatedBy:         a.UpdatedBy,
		AlertDismissed:    a.AlertDismissed,
		AccessGroups:      a.AccessGroups,
	}
	if err := c.post(ctx, c.documentsURL(assetCollection), doc); err != nil {
		return &remote.Error{Backend: backend, Op: "upsert asset", Err: err}
	}
	return nil
}

func (c *Client) DeleteAssets(ctx context.Context, ids []string) error {
	return c.deleteMany(ctx, assetCollection, "delete assets", ids)
}

func (c *Client) FetchReports(ctx context.Context) ([]domain.Report, error) {
	var payload struct {
		Documents []reportDoc `json:"documents"`
	}
	if err := c.get(ctx, reportCollection, &payload); err != nil {
		return nil, &remote.Error{Backend: backend, Op: "fetch reports", Err: err}
	}

	reports := make([]domain.Report, 0, len(payload.Documents))
	for _, doc := range payload.Documents {
		reports = append(reports, domain.Report{
			ID:         doc.ID,
			Title:      doc.Title,
			Date:       doc.Date,
			Type:       domain.ReportType(doc.Type),
			AssetIDs:   doc.CrossingIDs,
			AIAnalysis: doc.AIAnalysis,
			CreatedAt:  remote.ParseEpochMillis(doc.CreatedAt),
			CreatedBy:  doc.CreatedBy,
			PDFURL:     doc.PDFURL,
		})
	}
	domain.SortReportsByCreatedDesc(reports)
	return reports, nil
}

func (c *Client) UpsertReport(ctx context.Context, r domain.Report) error {
	doc := reportDoc{
		ID:          r.ID,
		Title:       r.Title,
		Date:        r.Date,
		Type:        string(r.Type),
		CrossingIDs: r.AssetIDs,
		AIAnalysis:  r.AIAnalysis,
		CreatedAt:   epochMillis(r.CreatedAt),
		CreatedBy:   r.CreatedBy,
		PDFURL:      r.PDFURL,
	}
	if err := c.post(ctx, c.documentsURL(reportCollection), doc); err != nil {
		return &remote.Error{Backend: backend, Op: "upsert report", Err: err}
	}
	return nil
}

func (c *Client) DeleteReports(ctx context.Context, ids []string) error {
	return c.deleteMany(ctx, reportCollection, "delete reports", ids)
}

// deleteMany issues batch deletes in chunks the provider accepts. Callers
// see one logical operation.
func (c *Client) deleteMany(ctx context.Context, collection, op string, ids []string) error {
	for len(ids) > 0 {
		chunk := ids
		if len(chunk) > maxDeleteBatch {
			chunk = chunk[:maxDeleteBatch]
		}
		ids = ids[len(chunk):]

		body := struct {
			IDs []string `json:"ids"`
		}{IDs: chunk}
		if err := c.post(ctx, c.documentsURL(collection)+":batchDelete", body); err != nil {
			return &remote.Error{Backend: backend, Op: op, Err: err}
		}
	}
	return nil
}

func (c *Client) documentsURL(collection string) string {
	return fmt.Sprintf("%s/v1/collections/%s/documents", c.baseURL, collection)
}

func (c *Client) get(ctx context.Context, collection string, dst any) error {
	url := c.documentsURL(collection) + "?order=created_at.desc"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call docstore: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close docstore response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("docstore returned status %d: %s", resp.StatusCode, errBody)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call docstore: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close docstore response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		errBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("docstore returned status %d: %s", resp.StatusCode, errBody)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}

func epochMillis(ms int64) json.RawMessage {
	if ms == 0 {
		return nil
	}
	return json.RawMessage(fmt.Sprintf("%d", ms))
}
