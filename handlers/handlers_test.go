package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-case-service/blacklist"
	"report-case-service/gateway/gatewaytest"
	"report-case-service/intake"
	"report-case-service/ledger/ledgertest"
	"report-case-service/models"
	"report-case-service/resolution"
	"report-case-service/settings"
)

const (
	token         = "test-token"
	reviewChannel = "500"
)

type memPersister struct {
	s   models.ReportSettings
	err error
}

func (m *memPersister) GetReportSettings(context.Context) (*models.ReportSettings, error) {
	out := m.s.Clone()
	return &out, nil
}

func (m *memPersister) SetReviewChannel(_ context.Context, channelID string) error {
	m.s.ReviewChannelID = channelID
	return m.err
}

func (m *memPersister) SetAckMessage(_ context.Context, message string) error {
	m.s.AckMessage = message
	return m.err
}

func (m *memPersister) ToggleBlacklist(_ context.Context, userID, _ string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.s.Blacklist == nil {
		m.s.Blacklist = map[string]struct{}{}
	}
	if _, ok := m.s.Blacklist[userID]; ok {
		delete(m.s.Blacklist, userID)
		return false, nil
	}
	m.s.Blacklist[userID] = struct{}{}
	return true, nil
}

func (m *memPersister) ListBlacklist(context.Context) ([]models.BlacklistEntry, error) {
	var out []models.BlacklistEntry
	for id := range m.s.Blacklist {
		out = append(out, models.BlacklistEntry{UserID: id, AddedBy: "api"})
	}
	return out, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	router    *gin.Engine
	ledger    *ledgertest.Memory
	gw        *gatewaytest.Fake
	store     *settings.Store
	persister *memPersister
}

func newTestEnv(t *testing.T, db Pinger) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		ledger:    ledgertest.NewMemory(1),
		gw:        gatewaytest.New("1"),
		persister: &memPersister{},
	}
	env.gw.AddChannel(reviewChannel)
	env.store = settings.NewStore(env.persister, "Thanks!")
	require.NoError(t, env.store.Load(context.Background()))

	svc := intake.NewService(env.ledger, blacklist.NewGuard(env.store), env.store, env.gw, nil)
	wf := resolution.NewWorkflow(env.ledger, env.store, env.gw, nil, resolution.Options{TeamName: "Mods", ReplyTimeout: time.Minute})
	h := NewHandlers(svc, wf, env.store, env.ledger, env.persister, env.gw, db)
	env.router = NewRouter(h, token)
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Admin-Token", token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthAndVersion(t *testing.T) {
	env := newTestEnv(t, pinger{})
	w, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])

	w, body = env.do(t, http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "report-case-service", body["service"])

	down := newTestEnv(t, pinger{err: errors.New("connection refused")})
	w, body = down.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestSubmitReportStatuses(t *testing.T) {
	tests := []struct {
		name           string
		setup          func(env *testEnv)
		body           interface{}
		expectedStatus int
	}{
		{
			name:           "accepted",
			setup:          func(env *testEnv) { require.NoError(t, env.store.SetReviewChannel(context.Background(), reviewChannel)) },
			body:           models.SubmitReportRequest{ReporterID: "100", TargetID: "200", Reason: "spam"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "bad json",
			body:           "nope",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing reason",
			setup:          func(env *testEnv) { require.NoError(t, env.store.SetReviewChannel(context.Background(), reviewChannel)) },
			body:           models.SubmitReportRequest{ReporterID: "100", TargetID: "200"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "channel not set",
			body:           models.SubmitReportRequest{ReporterID: "100", TargetID: "200", Reason: "spam"},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "blacklisted",
			setup: func(env *testEnv) {
				require.NoError(t, env.store.SetReviewChannel(context.Background(), reviewChannel))
				_, err := env.store.ToggleBlacklist(context.Background(), "100", "900")
				require.NoError(t, err)
			},
			body:           models.SubmitReportRequest{ReporterID: "100", TargetID: "200", Reason: "spam"},
			expectedStatus: http.StatusForbidden,
		},
		{
			name: "store down",
			setup: func(env *testEnv) {
				require.NoError(t, env.store.SetReviewChannel(context.Background(), reviewChannel))
				env.ledger.CreateErr = errors.New("db down")
			},
			body:           models.SubmitReportRequest{ReporterID: "100", TargetID: "200", Reason: "spam"},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			if tt.setup != nil {
				tt.setup(env)
			}
			w, _ := env.do(t, http.MethodPost, "/api/v1/reports", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}

func TestSubmitReportNoticeUndelivered(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.store.SetReviewChannel(context.Background(), reviewChannel))
	env.gw.NoticeErr = errors.New("missing access")

	w, body := env.do(t, http.MethodPost, "/api/v1/reports", models.SubmitReportRequest{ReporterID: "100", TargetID: "200", Reason: "spam"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, float64(1), body["case_id"])
	assert.Equal(t, false, body["notice_delivered"])
	assert.Equal(t, 1, env.ledger.Len())
}

func TestCasesEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_, err := env.ledger.CreateCase(ctx, "100", "200", "spam")
	require.NoError(t, err)
	_, err = env.ledger.CreateCase(ctx, "101", "200", "flood")
	require.NoError(t, err)

	w, body := env.do(t, http.MethodGet, "/api/v1/cases?status=open&undelivered=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])

	w, _ = env.do(t, http.MethodGet, "/api/v1/cases?status=weird", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = env.do(t, http.MethodGet, "/api/v1/cases?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = env.do(t, http.MethodGet, "/api/v1/cases/2", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "flood", body["data"].(map[string]interface{})["reason"])

	w, _ = env.do(t, http.MethodGet, "/api/v1/cases/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = env.do(t, http.MethodGet, "/api/v1/cases/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = env.do(t, http.MethodPost, "/api/v1/cases/1/resolve", models.ResolveCaseRequest{ResolvedBy: "900", Note: "spoke to them"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "resolved", body["outcome"])

	w, body = env.do(t, http.MethodPost, "/api/v1/cases/1/resolve", models.ResolveCaseRequest{ResolvedBy: "900"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_resolved", body["outcome"])

	w, _ = env.do(t, http.MethodPost, "/api/v1/cases/99/resolve", models.ResolveCaseRequest{ResolvedBy: "900"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/v1/cases/2/resolve", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = env.do(t, http.MethodGet, "/api/v1/cases?status=resolved", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])

	w, body = env.do(t, http.MethodGet, "/api/v1/pending", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["count"])
}

func TestSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	w, _ := env.do(t, http.MethodPut, "/api/v1/settings/channel", models.SetChannelRequest{ChannelID: "999"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodPut, "/api/v1/settings/channel", models.SetChannelRequest{ChannelID: reviewChannel})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodPut, "/api/v1/settings/message", models.SetMessageRequest{Message: "  We are on it.  "})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := env.do(t, http.MethodPost, "/api/v1/blacklist/100", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["blacklisted"])

	w, body = env.do(t, http.MethodGet, "/api/v1/settings", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, reviewChannel, data["review_channel_id"])
	assert.Equal(t, "We are on it.", data["ack_message"])
	assert.Equal(t, []interface{}{"100"}, data["blacklist"])

	w, body = env.do(t, http.MethodGet, "/api/v1/blacklist", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])

	w, body = env.do(t, http.MethodPost, "/api/v1/blacklist/100", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["blacklisted"])

	env.persister.err = errors.New("db down")
	w, _ = env.do(t, http.MethodPut, "/api/v1/settings/message", models.SetMessageRequest{Message: "x"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "We are on it.", env.store.Current().AckMessage)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(models.ErrCaseNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(models.E(models.KindValidation, "op", nil)))
	assert.Equal(t, http.StatusForbidden, statusFor(models.E(models.KindAuthorization, "op", nil)))
	assert.Equal(t, http.StatusConflict, statusFor(models.E(models.KindConfiguration, "op", nil)))
	assert.Equal(t, http.StatusBadGateway, statusFor(models.E(models.KindDelivery, "op", nil)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(models.E(models.KindPersistence, "op", nil)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
