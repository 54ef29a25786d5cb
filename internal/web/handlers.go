package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/omirall/mobilitat/internal/domain"
	"github.com/omirall/mobilitat/internal/ids"
	"github.com/omirall/mobilitat/internal/remote"
)

// handleListAssets returns every asset, newest first, optionally narrowed by
// filter query parameters. Reads never fail: backend trouble degrades to the
// cached snapshot inside the synchronizer.
func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets := s.sync.GetAll(r.Context())

	f := filterFromQuery(r)
	assets = domain.FilterAssets(assets, f)

	s.writeJSON(w, http.StatusOK, assets)
}

func filterFromQuery(r *http.Request) domain.FilterOptions {
	q := r.URL.Query()
	f := domain.FilterOptions{
		City:         q.Get("city"),
		Query:        q.Get("q"),
		DateFrom:     q.Get("from"),
		DateTo:       q.Get("to"),
		MappableOnly: q.Get("mappable") == "true",
	}
	for _, v := range q["state"] {
		f.States = append(f.States, domain.State(v))
	}
	for _, v := range q["type"] {
		f.AssetTypes = append(f.AssetTypes, domain.AssetType(v))
	}
	f.Neighborhoods = q["neighborhood"]
	return f
}

// handleSaveAsset upserts an asset. The local write always succeeds; when
// the remote half fails the asset is still accepted, and the response tells
// the client the change is saved locally and will sync later.
func (s *Server) handleSaveAsset(w http.ResponseWriter, r *http.Request) {
	var a domain.Asset
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid asset payload")
		return
	}
	if a.ID == "" {
		a.ID = ids.NewAssetID()
	}

	if err := s.sync.Save(r.Context(), a); err != nil {
		var re *remote.Error
		if errors.As(err, &re) {
			s.writeJSON(w, http.StatusAccepted, map[string]any{
				"id":           a.ID,
				"savedLocally": true,
				"message":      "saved locally; will sync when the backend is reachable",
			})
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to save asset")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"id": a.ID, "savedLocally": false})
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleDeleteAssets(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "ids required")
		return
	}

	s.sync.DeleteMany(r.Context(), req.IDs)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sync.GetReports(r.Context()))
}

type createReportRequest struct {
	Title             string            `json:"title"`
	Date              string            `json:"date"`
	Type              domain.ReportType `json:"type"`
	AssetIDs          []string          `json:"assetIds"`
	GenerateNarrative bool              `json:"generateNarrative"`
}

// handleCreateReport builds a report snapshot over the referenced assets,
// optionally asking the narrative generator for an AI summary. Narrative
// failures degrade to an empty text; report persistence never fails the
// request.
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid report payload")
		return
	}
	if req.Title == "" || len(req.AssetIDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "title and assetIds required")
		return
	}
	switch req.Type {
	case domain.ReportMaintenance, domain.ReportTechnical, domain.ReportStatistical:
	default:
		s.writeError(w, http.StatusBadRequest, "unknown report type")
		return
	}

	now := time.Now()
	report := domain.Report{
		ID:        ids.NewReportCode(now),
		Title:     req.Title,
		Date:      req.Date,
		Type:      req.Type,
		AssetIDs:  req.AssetIDs,
		CreatedAt: now.UnixMilli(),
	}

	if req.GenerateNarrative {
		selected := selectAssets(s.sync.GetAll(r.Context()), req.AssetIDs)
		text, err := s.narrative.Summarize(r.Context(), selected, req.Type)
		if err != nil {
			s.logger.Warn("narrative generation failed", "report", report.ID, "error", err)
		}
		report.AIAnalysis = text
	}

	s.sync.SaveReport(r.Context(), report)
	s.writeJSON(w, http.StatusCreated, report)
}

func selectAssets(assets []domain.Asset, ids []string) []domain.Asset {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]domain.Asset, 0, len(ids))
	for _, a := range assets {
		if _, ok := want[a.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "report id required")
		return
	}
	s.sync.DeleteReport(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteReports(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "ids required")
		return
	}
	s.sync.DeleteReports(r.Context(), req.IDs)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAttachPDF(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url required")
		return
	}
	s.sync.UpdatePDFURL(r.Context(), id, req.URL)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForceSync(w http.ResponseWriter, r *http.Request) {
	res := s.sync.ForceSync(r.Context())
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, res)
}
