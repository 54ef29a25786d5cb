package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/omirall/mobilitat/internal/auth"
	"github.com/omirall/mobilitat/internal/cache"
	"github.com/omirall/mobilitat/internal/db"
	"github.com/omirall/mobilitat/internal/domain"
	"github.com/omirall/mobilitat/internal/remote"
	syncsvc "github.com/omirall/mobilitat/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory remote.Store for handler tests.
type fakeRemote struct {
	assets    []domain.Asset
	reports   []domain.Report
	upsertErr error
	fetchErr  error
}

func (f *fakeRemote) FetchAssets(context.Context) ([]domain.Asset, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]domain.Asset(nil), f.assets...), nil
}

func (f *fakeRemote) UpsertAsset(_ context.Context, a domain.Asset) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.assets = append(f.assets, a)
	return nil
}

func (f *fakeRemote) DeleteAssets(context.Context, []string) error { return nil }

func (f *fakeRemote) FetchReports(context.Context) ([]domain.Report, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]domain.Report(nil), f.reports...), nil
}

func (f *fakeRemote) UpsertReport(_ context.Context, r domain.Report) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeRemote) DeleteReports(context.Context, []string) error { return nil }

type stubNarrative struct {
	text string
	err  error
}

func (s stubNarrative) Summarize(context.Context, []domain.Asset, domain.ReportType) (string, error) {
	return s.text, s.err
}

func newTestServer(t *testing.T, rem *fakeRemote, gen stubNarrative) (*Server, *cache.Store) {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	c := cache.New(d, slog.Default())
	svc := syncsvc.New(c, rem, false, auth.Static{UserID: "tech-1"}, slog.Default())
	return NewServer(svc, gen, slog.Default()), c
}

func TestListAssets(t *testing.T) {
	rem := &fakeRemote{assets: []domain.Asset{
		{ID: "a1", State: domain.StateGood, CreatedAt: 100},
		{ID: "a2", State: domain.StateDangerous, CreatedAt: 200},
	}}
	srv, _ := newTestServer(t, rem, stubNarrative{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []domain.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[0].ID)
}

func TestListAssetsFiltered(t *testing.T) {
	rem := &fakeRemote{assets: []domain.Asset{
		{ID: "a1", State: domain.StateGood, CreatedAt: 100},
		{ID: "a2", State: domain.StateDangerous, CreatedAt: 200},
	}}
	srv, _ := newTestServer(t, rem, stubNarrative{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets?state=Dangerous", nil))

	var got []domain.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a2", got[0].ID)
}

func TestSaveAssetOK(t *testing.T) {
	rem := &fakeRemote{}
	srv, _ := newTestServer(t, rem, stubNarrative{})

	body := `{"id":"a1","assetType":"Crossing","state":"Good","location":{"lat":41.0,"lng":0.5}}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/assets", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rem.assets, 1)
}

func TestSaveAssetGeneratesID(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRemote{}, stubNarrative{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/assets", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["id"])
}

func TestSaveAssetRemoteFailureSavedLocally(t *testing.T) {
	rem := &fakeRemote{upsertErr: &remote.Error{Backend: "pg", Op: "upsert asset", Err: errors.New("down")}}
	srv, c := newTestServer(t, rem, stubNarrative{})

	body := `{"id":"a1","state":"Poor"}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/assets", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["savedLocally"])
	// The local write survived.
	assert.Len(t, c.LoadAssets(context.Background()), 1)
}

func TestSaveAssetBadPayload(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRemote{}, stubNarrative{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/assets", strings.NewReader(`{bad`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAssets(t *testing.T) {
	rem := &fakeRemote{}
	srv, c := newTestServer(t, rem, stubNarrative{})
	require.NoError(t, c.SaveAssets(context.Background(), []domain.Asset{{ID: "a1"}, {ID: "a2"}}))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/assets/delete", strings.NewReader(`{"ids":["a1"]}`)))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, c.LoadAssets(context.Background()), 1)
}

func TestCreateReportWithNarrative(t *testing.T) {
	rem := &fakeRemote{assets: []domain.Asset{{ID: "a1", State: domain.StatePoor, CreatedAt: 100}}}
	srv, c := newTestServer(t, rem, stubNarrative{text: "overall condition is poor"})

	body := `{"title":"Spring review","type":"maintenance","assetIds":["a1"],"generateNarrative":true}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var report domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "overall condition is poor", report.AIAnalysis)
	assert.Len(t, c.LoadReports(context.Background()), 1)
}

func TestCreateReportNarrativeFailureDegrades(t *testing.T) {
	rem := &fakeRemote{assets: []domain.Asset{{ID: "a1"}}}
	srv, _ := newTestServer(t, rem, stubNarrative{err: errors.New("model unavailable")})

	body := `{"title":"t","type":"technical","assetIds":["a1"],"generateNarrative":true}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var report domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Empty(t, report.AIAnalysis)
}

func TestCreateReportValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRemote{}, stubNarrative{})

	for _, body := range []string{
		`{"title":"","type":"maintenance","assetIds":["a1"]}`,
		`{"title":"t","type":"maintenance","assetIds":[]}`,
		`{"title":"t","type":"weekly","assetIds":["a1"]}`,
	} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestDeleteReportByPath(t *testing.T) {
	rem := &fakeRemote{}
	srv, c := newTestServer(t, rem, stubNarrative{})
	require.NoError(t, c.SaveReports(context.Background(), []domain.Report{{ID: "R1"}}))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/reports/R1", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, c.LoadReports(context.Background()))
}

func TestAttachPDF(t *testing.T) {
	rem := &fakeRemote{}
	srv, c := newTestServer(t, rem, stubNarrative{})
	require.NoError(t, c.SaveReports(context.Background(), []domain.Report{{ID: "R1"}}))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reports/R1/pdf",
		strings.NewReader(`{"url":"https://pdf/r1.pdf"}`)))

	require.Equal(t, http.StatusNoContent, rec.Code)
	reports := c.LoadReports(context.Background())
	require.Len(t, reports, 1)
	assert.Equal(t, "https://pdf/r1.pdf", reports[0].PDFURL)
}

func TestForceSyncEndpoint(t *testing.T) {
	rem := &fakeRemote{assets: []domain.Asset{{ID: "a1", CreatedAt: 1}}}
	srv, _ := newTestServer(t, rem, stubNarrative{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var res syncsvc.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
}

func TestForceSyncEndpointFailure(t *testing.T) {
	rem := &fakeRemote{fetchErr: errors.New("unreachable")}
	srv, _ := newTestServer(t, rem, stubNarrative{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRemote{}, stubNarrative{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
