package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"gulfsolar/backend/services/calculator-service/internal/calcform"
	"gulfsolar/backend/services/calculator-service/internal/estimator"
	"gulfsolar/backend/services/calculator-service/internal/http/middleware"
	"gulfsolar/backend/services/calculator-service/internal/models"
	"gulfsolar/backend/services/calculator-service/internal/report"
	"gulfsolar/backend/services/calculator-service/internal/repository"
	"gulfsolar/backend/services/calculator-service/internal/service"
	"gulfsolar/backend/services/calculator-service/internal/settings"
)

type staticSettings struct {
	err error
}

func (s staticSettings) Current(context.Context) (settings.Settings, error) {
	return settings.Defaults(), s.err
}

func calculator() *service.CalculatorService {
	return service.NewCalculatorService(staticSettings{})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthHandler(t *testing.T) {
	rec := do(t, NewHealthHandler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPublicSettingsHandler(t *testing.T) {
	rec := do(t, NewPublicSettingsHandler(calculator(), zap.NewNop()), http.MethodGet, "/api/calculator", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "NZD", body["currency"])
	assert.Equal(t, "Waiheke Island & Hauraki Gulf", body["regionLabel"])
	assert.Len(t, body["assumptions"], 3)
	assert.NotContains(t, body, "ratePerKwh")

	failing := service.NewCalculatorService(staticSettings{err: errors.New("db down")})
	rec = do(t, NewPublicSettingsHandler(failing, zap.NewNop()), http.MethodGet, "/api/calculator", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEstimateHandler(t *testing.T) {
	h := NewEstimateHandler(calculator(), zap.NewNop())

	rec := do(t, h, http.MethodPost, "/api/estimate", `{"monthlyBill":"220","roofType":"pitched"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, string(calcform.EstimateEstimated), body["state"])
	display := body["display"].(map[string]interface{})
	assert.Equal(t, "$10,711–$14,491", display["upfrontCost"])
	assert.Equal(t, "4.5–6 kW", display["systemSize"])
	outputs := body["outputs"].(map[string]interface{})
	assert.Len(t, outputs["paybackYears"], 2)

	for _, bill := range []string{`""`, `null`, `0`, `-10`, `"abc"`} {
		rec = do(t, h, http.MethodPost, "/api/estimate", fmt.Sprintf(`{"monthlyBill":%s}`, bill))
		require.Equal(t, http.StatusOK, rec.Code, bill)
		body = decode(t, rec)
		assert.Equal(t, string(calcform.EstimateNotEstimable), body["state"], bill)
		assert.NotContains(t, body, "outputs", bill)
	}

	rec = do(t, h, http.MethodPost, "/api/estimate", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEstimatePDFHandler(t *testing.T) {
	h := NewEstimatePDFHandler(calculator(), zap.NewNop())

	rec := do(t, h, http.MethodPost, "/api/estimate/pdf", `{"monthlyBill":220,"roofType":"flat","homeDuringDay":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = do(t, h, http.MethodPost, "/api/estimate/pdf", `{"monthlyBill":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, calcform.MsgEnterBill, decode(t, rec)["error"])
}

type fakeCapturer struct {
	err   error
	email string
	input estimator.Input
	calls int
}

func (f *fakeCapturer) Capture(_ context.Context, email string, in estimator.Input) (*models.Lead, error) {
	f.calls++
	f.email = email
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.Lead{ID: "01LEAD", Email: email, Inputs: in, Status: models.LeadPending}, nil
}

type fakeLimiter struct {
	allow bool
	err   error
	ids   []string
}

func (f *fakeLimiter) Allow(_ context.Context, id string) (bool, error) {
	f.ids = append(f.ids, id)
	return f.allow, f.err
}

func TestLeadHandler(t *testing.T) {
	capturer := &fakeCapturer{}
	h := NewLeadHandler(capturer, nil, zap.NewNop())

	rec := do(t, h, http.MethodPost, "/api/leads",
		`{"email":"visitor@example.com","inputs":{"monthlyBill":"180","roofType":"flat","homeDuringDay":true},"outputs":{"annualSavings":[1,2]}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"ok":true,"id":"01LEAD"}`, rec.Body.String())
	assert.Equal(t, "visitor@example.com", capturer.email)
	assert.InDelta(t, 180, capturer.input.MonthlyBill, 1e-9)
	assert.Equal(t, estimator.RoofFlat, capturer.input.RoofType)
	assert.True(t, capturer.input.HomeDuringDay)
}

func TestLeadHandlerErrors(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		err     error
		status  int
		message string
	}{
		{"missing email", `{"inputs":{"monthlyBill":100}}`, nil, http.StatusBadRequest, "Email required"},
		{"blank email", `{"email":"  ","inputs":{"monthlyBill":100}}`, nil, http.StatusBadRequest, "Email required"},
		{"bad json", `{"email":`, nil, http.StatusBadRequest, "invalid JSON body"},
		{"bad email", `{"email":"nope","inputs":{"monthlyBill":100}}`, service.ErrInvalidEmail, http.StatusBadRequest, "invalid email"},
		{"no estimate", `{"email":"a@b.co"}`, estimator.ErrNotEstimable, http.StatusBadRequest, calcform.MsgEnterBill},
		{"store down", `{"email":"a@b.co","inputs":{"monthlyBill":100}}`, errors.New("db down"), http.StatusInternalServerError, "failed to capture lead"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewLeadHandler(&fakeCapturer{err: tc.err}, nil, zap.NewNop())
			rec := do(t, h, http.MethodPost, "/api/leads", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.message, decode(t, rec)["error"])
		})
	}
}

func TestLeadHandlerRateLimit(t *testing.T) {
	capturer := &fakeCapturer{}
	limiter := &fakeLimiter{allow: false}
	h := NewLeadHandler(capturer, limiter, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(`{"email":"a@b.co","inputs":{"monthlyBill":100}}`))
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, []string{"198.51.100.7"}, limiter.ids)
	assert.Zero(t, capturer.calls)

	failOpen := NewLeadHandler(capturer, &fakeLimiter{err: errors.New("redis down")}, zap.NewNop())
	rec = do(t, failOpen, http.MethodPost, "/api/leads", `{"email":"a@b.co","inputs":{"monthlyBill":100}}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, capturer.calls)
}

type fakeAuth struct {
	err error
}

func (f fakeAuth) Login(_ context.Context, email, _ string) (string, *models.AdminUser, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return "signed-token", &models.AdminUser{ID: 1, Email: email, Role: models.RoleAdmin}, nil
}

func TestAdminLoginHandler(t *testing.T) {
	rec := do(t, NewAdminLoginHandler(fakeAuth{}, zap.NewNop()), http.MethodPost, "/api/admin/login",
		`{"email":"owner@gulfsolar.nz","password":"long enough secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"token":"signed-token","token_type":"Bearer"}`, rec.Body.String())

	rec = do(t, NewAdminLoginHandler(fakeAuth{}, zap.NewNop()), http.MethodPost, "/api/admin/login", `{"email":"owner@gulfsolar.nz"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, NewAdminLoginHandler(fakeAuth{err: service.ErrInvalidCredentials}, zap.NewNop()), http.MethodPost,
		"/api/admin/login", `{"email":"owner@gulfsolar.nz","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, NewAdminLoginHandler(fakeAuth{err: errors.New("db down")}, zap.NewNop()), http.MethodPost,
		"/api/admin/login", `{"email":"owner@gulfsolar.nz","password":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type fakeSettingsAdmin struct {
	stored   models.StoredSettings
	err      error
	expected int64
	adminID  int64
	saved    *settings.Settings
}

func (f *fakeSettingsAdmin) Stored(context.Context) (*models.StoredSettings, error) {
	stored := f.stored
	return &stored, nil
}

func (f *fakeSettingsAdmin) Update(_ context.Context, adminID int64, expectedVersion int64, next settings.Settings) (int64, error) {
	f.adminID = adminID
	f.expected = expectedVersion
	if f.err != nil {
		return 0, f.err
	}
	if err := next.Validate(); err != nil {
		return 0, err
	}
	f.saved = &next
	return f.stored.Version + 1, nil
}

func adminRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(middleware.WithAdminID(req.Context(), 7))
}

func TestAdminSettingsHandlerGet(t *testing.T) {
	updated := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeSettingsAdmin{stored: models.StoredSettings{Settings: settings.Defaults(), Version: 3, UpdatedAt: &updated}}
	h := NewAdminSettingsHandler(svc, zap.NewNop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, adminRequest(http.MethodGet, "/api/admin/settings", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 3, body["version"])
	assert.Equal(t, "2026-10-01T12:00:00Z", body["updatedAt"])
	s := body["settings"].(map[string]interface{})
	assert.EqualValues(t, 0.34, s["ratePerKwh"])
	assert.Equal(t, "NZD", s["currency"])
}

func TestAdminSettingsHandlerPut(t *testing.T) {
	svc := &fakeSettingsAdmin{stored: models.StoredSettings{Settings: settings.Defaults(), Version: 3}}
	h := NewAdminSettingsHandler(svc, zap.NewNop())

	next := settings.Defaults()
	next.RatePerKwh = 0.4
	payload, err := json.Marshal(map[string]interface{}{"settings": next, "version": 3})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, adminRequest(http.MethodPut, "/api/admin/settings", string(payload)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"version":4}`, rec.Body.String())
	assert.Equal(t, int64(7), svc.adminID)
	assert.Equal(t, int64(3), svc.expected)
	require.NotNil(t, svc.saved)
	assert.InDelta(t, 0.4, svc.saved.RatePerKwh, 1e-12)

	payload, err = json.Marshal(map[string]interface{}{"settings": next})
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, adminRequest(http.MethodPut, "/api/admin/settings", string(payload)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.AnyVersion, svc.expected)
}

func TestAdminSettingsHandlerPutErrors(t *testing.T) {
	bad := settings.Defaults()
	bad.CoverageTarget = 1.4
	bad.SystemCostPerKw = -1
	payload, err := json.Marshal(map[string]interface{}{"settings": bad, "version": 3})
	require.NoError(t, err)

	h := NewAdminSettingsHandler(&fakeSettingsAdmin{}, zap.NewNop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, adminRequest(http.MethodPut, "/api/admin/settings", string(payload)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var verr struct {
		Error  string `json:"error"`
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verr))
	assert.Equal(t, "invalid settings", verr.Error)
	var fields []string
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"coverageTarget", "systemCostPerKw"}, fields)

	good, err := json.Marshal(map[string]interface{}{"settings": settings.Defaults(), "version": 1})
	require.NoError(t, err)
	conflict := NewAdminSettingsHandler(&fakeSettingsAdmin{err: repository.ErrVersionConflict}, zap.NewNop())
	rec = httptest.NewRecorder()
	conflict.ServeHTTP(rec, adminRequest(http.MethodPut, "/api/admin/settings", string(good)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, adminRequest(http.MethodPut, "/api/admin/settings", `{"version":1}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/admin/settings", string(good))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/admin/settings", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type fakeLister struct {
	leads []models.Lead
	limit int
}

func (f *fakeLister) List(_ context.Context, limit int) ([]models.Lead, error) {
	f.limit = limit
	return f.leads, nil
}

func TestAdminLeadsHandlers(t *testing.T) {
	in := estimator.Input{MonthlyBill: 200, RoofType: estimator.RoofPitched}
	out, err := estimator.Estimate(settings.Defaults().Params, in)
	require.NoError(t, err)
	lister := &fakeLister{leads: []models.Lead{{
		ID: "01LEAD", Email: "a@b.co", Inputs: in, Outputs: out, Currency: "NZD",
		Status: models.LeadSent, CreatedAt: time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC),
	}}}

	rec := do(t, NewAdminLeadsHandler(lister, zap.NewNop()), http.MethodGet, "/api/admin/leads?limit=20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, lister.limit)
	leads := decode(t, rec)["leads"].([]interface{})
	require.Len(t, leads, 1)
	assert.Equal(t, "01LEAD", leads[0].(map[string]interface{})["id"])

	rec = do(t, NewAdminLeadsHandler(lister, zap.NewNop()), http.MethodGet, "/api/admin/leads?limit=-3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, NewAdminLeadsHandler(&fakeLister{}, zap.NewNop()), http.MethodGet, "/api/admin/leads", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"leads":[]}`, rec.Body.String())

	rec = do(t, NewAdminLeadsExportHandler(lister, zap.NewNop()), http.MethodGet, "/api/admin/leads/export.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, 0, lister.limit)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.LeadsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "01LEAD", rows[1][0])
}
