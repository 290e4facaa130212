package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/garyjia/sales-reports/internal/application/service"
	"github.com/garyjia/sales-reports/internal/domain/entity"
	"github.com/garyjia/sales-reports/internal/infrastructure/auth"
	"github.com/garyjia/sales-reports/internal/infrastructure/export"
	"github.com/garyjia/sales-reports/internal/infrastructure/persistence/memory"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type testServer struct {
	t      *testing.T
	server *Server
	tokens *auth.TokenService
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Kind    string            `json:"kind"`
	Fields  map[string]string `json:"fields"`
}

func newTestServer(t *testing.T, health HealthFunc) *testServer {
	t.Helper()

	store := memory.NewStore()
	store.AddCity(entity.City{ID: 1, Name: "Jakarta Selatan"})
	store.AddCity(entity.City{ID: 2, Name: "Jakarta Pusat"})
	store.AddSubdistrict(entity.Subdistrict{ID: 3, Name: "Kebayoran Baru", CityID: 1})
	store.AddSubdistrict(entity.Subdistrict{ID: 4, Name: "Menteng", CityID: 2})
	store.AddBranch(entity.Branch{ID: 10, Name: "Blok M", SubdistrictID: 3})
	store.AddBranch(entity.Branch{ID: 12, Name: "Cikini", SubdistrictID: 4})
	store.AddActor(entity.Actor{ID: 1, Name: "Sari", Role: entity.RoleBranchUser, BranchID: 10})
	store.AddActor(entity.Actor{ID: 20, Name: "Rina", Role: entity.RoleSubdistrictAdmin, SubdistrictID: 3})
	store.AddActor(entity.Actor{ID: 21, Name: "Agus", Role: entity.RoleSubdistrictAdmin, SubdistrictID: 4})
	store.AddActor(entity.Actor{ID: 30, Name: "Dewi", Role: entity.RoleCityAdmin, CityID: 1})

	logger := nopLogger{}
	locations := service.NewLocationService(store, logger)
	reports := service.NewReportService(
		store,
		memory.CommentStore{Store: store},
		memory.HistoryStore{Store: store},
		locations,
		store,
		logger,
	)

	tokens, err := auth.NewTokenService(auth.Config{Secret: "test-secret", Issuer: "sales-reports", TokenTTL: time.Hour})
	require.NoError(t, err)

	server := NewServer(DefaultServerConfig(), Dependencies{
		Reports:   reports,
		Locations: locations,
		Actors:    memory.ActorStore{Store: store},
		Tokens:    tokens,
		Exporter:  export.NewExcelExporter(export.DefaultExcelOptions()),
		Health:    health,
	}, logger)

	return &testServer{t: t, server: server, tokens: tokens}
}

func (ts *testServer) token(id int64, role entity.Role) string {
	ts.t.Helper()
	tok, err := ts.tokens.Issue(entity.Actor{ID: id, Role: role})
	require.NoError(ts.t, err)
	return tok
}

func (ts *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	ts.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) entity.Report {
	t.Helper()
	var r entity.Report
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &r))
	return r
}

func decodeActions(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var view struct {
		Actions []string `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &view))
	return view.Actions
}

var submitBody = map[string]interface{}{
	"period":   "2024-05",
	"stock":    "1500.25",
	"expenses": "300",
	"income":   "2750.50",
	"submit":   true,
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rec := ts.do(http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode(t, rec).Success)
	})

	t.Run("unhealthy component", func(t *testing.T) {
		ts := newTestServer(t, func(ctx context.Context) (interface{}, error) {
			return map[string]string{"database": "down"}, errors.New("database down")
		})
		rec := ts.do(http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.False(t, decode(t, rec).Success)
	})
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-token"},
		{"unknown actor", ts.token(404, entity.RoleBranchUser)},
		{"stale role", ts.token(1, entity.RoleCityAdmin)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodGet, "/api/reports", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decode(t, rec).Kind)
		})
	}

	t.Run("me resolves assignment", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/api/me", ts.token(1, entity.RoleBranchUser), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var actor entity.Actor
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &actor))
		assert.Equal(t, "Blok M", actor.BranchName)
		assert.Equal(t, int64(3), actor.SubdistrictID)
		assert.Equal(t, "Jakarta Selatan", actor.CityName)
	})
}

func TestReportLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	sari := ts.token(1, entity.RoleBranchUser)
	rina := ts.token(20, entity.RoleSubdistrictAdmin)
	agus := ts.token(21, entity.RoleSubdistrictAdmin)
	dewi := ts.token(30, entity.RoleCityAdmin)

	rec := ts.do(http.MethodPost, "/api/reports", sari, submitBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeReport(t, rec)
	assert.Equal(t, entity.StatusPendingSubdistrict, created.Status)
	assert.Equal(t, "Kebayoran Baru", created.SubdistrictName)
	path := "/api/reports/" + itoa(created.ID)

	// a second in-flight report is refused
	rec = ts.do(http.MethodPost, "/api/reports", sari, submitBody)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// another subdistrict's admin cannot approve
	rec = ts.do(http.MethodPost, path+"/approve", agus, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "permission_denied", decode(t, rec).Kind)

	rec = ts.do(http.MethodPost, path+"/approve", rina, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, entity.StatusPendingCity, decodeReport(t, rec).Status)

	rec = ts.do(http.MethodPost, path+"/reject", dewi, RejectRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "validation_error", env.Kind)
	assert.Contains(t, env.Fields, "reason")

	rec = ts.do(http.MethodPost, path+"/reject", dewi, RejectRequest{Reason: "income does not match deposits"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rejected := decodeReport(t, rec)
	assert.Equal(t, entity.StatusRejected, rejected.Status)
	assert.Equal(t, "income does not match deposits", rejected.RejectionReason)

	// rejecting again is not a legal transition
	rec = ts.do(http.MethodPost, path+"/reject", dewi, RejectRequest{Reason: "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode(t, rec).Kind)

	rec = ts.do(http.MethodPost, path+"/comments", sari, CommentRequest{Body: "corrected the deposit slip"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPut, path, sari, map[string]interface{}{
		"period":   "2024-05",
		"stock":    "1500.25",
		"expenses": "300",
		"income":   "2800",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, entity.StatusRejected, decodeReport(t, rec).Status)

	rec = ts.do(http.MethodPost, path+"/submit", sari, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, entity.StatusPendingSubdistrict, decodeReport(t, rec).Status)

	rec = ts.do(http.MethodGet, path, sari, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeReport(t, rec).Comments, 1)
	assert.Equal(t, []string{"comment"}, decodeActions(t, rec))

	rec = ts.do(http.MethodGet, path, rina, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"approve", "edit", "comment"}, decodeActions(t, rec))

	rec = ts.do(http.MethodGet, path+"/history", rina, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []entity.ReportHistory
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &history))
	assert.NotEmpty(t, history)

	// another subdistrict's admin cannot view it
	rec = ts.do(http.MethodGet, path, agus, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListAndExport(t *testing.T) {
	ts := newTestServer(t, nil)
	sari := ts.token(1, entity.RoleBranchUser)
	rina := ts.token(20, entity.RoleSubdistrictAdmin)
	agus := ts.token(21, entity.RoleSubdistrictAdmin)

	rec := ts.do(http.MethodPost, "/api/reports", sari, submitBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/reports?status=pending_subdistrict", rina, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []entity.Report
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &listed))
	assert.Len(t, listed, 1)

	rec = ts.do(http.MethodGet, "/api/reports", agus, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed = nil
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &listed))
	assert.Empty(t, listed)

	rec = ts.do(http.MethodGet, "/api/reports?status=bogus", rina, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodGet, "/api/reports?limit=abc", rina, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/reports/export", rina, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Reports")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestExportIgnoresListLimit(t *testing.T) {
	ts := newTestServer(t, nil)
	sari := ts.token(1, entity.RoleBranchUser)

	const drafts = 60
	for i := 0; i < drafts; i++ {
		rec := ts.do(http.MethodPost, "/api/reports", sari, map[string]interface{}{"period": "2024-05"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := ts.do(http.MethodGet, "/api/reports", sari, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []entity.Report
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &listed))
	assert.Len(t, listed, 50)

	rec = ts.do(http.MethodGet, "/api/reports/export?limit=10", sari, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Reports")
	require.NoError(t, err)
	assert.Len(t, rows, drafts+1, "header plus every draft")
}

func TestRequestErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	sari := ts.token(1, entity.RoleBranchUser)

	rec := ts.do(http.MethodGet, "/api/reports/abc", sari, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/reports/999", sari, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec).Kind)

	rec = ts.do(http.MethodPost, "/api/reports", sari, map[string]interface{}{"period": "May 2024"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec).Fields, "period")

	req := httptest.NewRequest(http.MethodPost, "/api/reports", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+sari)
	req.Header.Set("Content-Type", "application/json")
	raw := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, statusFor("permission_denied"))
	assert.Equal(t, http.StatusConflict, statusFor("invalid_transition"))
	assert.Equal(t, http.StatusConflict, statusFor("concurrency_conflict"))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor("validation_error"))
	assert.Equal(t, http.StatusNotFound, statusFor("not_found"))
	assert.Equal(t, http.StatusInternalServerError, statusFor("internal"))
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
