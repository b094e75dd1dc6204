package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
)

type stubRunner struct {
	mu    sync.Mutex
	calls int
	done  chan struct{}
}

func newStubRunner() *stubRunner {
	return &stubRunner{done: make(chan struct{}, 8)}
}

func (r *stubRunner) Run(context.Context) *model.RunResult {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	r.done <- struct{}{}
	return &model.RunResult{Success: true, Message: "run completed"}
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type stubProber struct {
	username string
	err      error
}

func (p *stubProber) Me(context.Context) (string, error) {
	return p.username, p.err
}

func newTestServer(t *testing.T, prober *stubProber) (*Server, store.Store, *stubRunner) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	runner := newStubRunner()
	opts := []Option{}
	if prober != nil {
		opts = append(opts, WithProberFactory(func(string, string) TelegramProber {
			return prober
		}))
	}
	return New(st, runner, opts...), st, runner
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, rec))
}

func TestState(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)
	require.NoError(t, st.SetEnabled(context.Background(), true))

	rec := doJSON(t, srv, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]json.RawMessage](t, rec)
	var engine model.EngineRunState
	require.NoError(t, json.Unmarshal(body["engine"], &engine))
	assert.True(t, engine.IsEnabled)
	assert.False(t, engine.IsRunning)

	var cursor model.CampaignCursor
	require.NoError(t, json.Unmarshal(body["cursor"], &cursor))
	assert.Equal(t, int64(0), cursor.LastEmailedLeadID)
}

func TestStats(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)
	ctx := context.Background()

	for _, status := range []model.LeadStatus{
		model.LeadStatusScraped, model.LeadStatusAudited, model.LeadStatusAudited,
	} {
		_, err := st.CreateLead(ctx, &model.Lead{
			BusinessName: "Biz", Industry: "plumbers", Country: "US", Status: status,
		})
		require.NoError(t, err)
	}
	require.NoError(t, st.UpdateCounters(ctx, &model.DailyCounters{EmailsSentToday: 3}))

	rec := doJSON(t, srv, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]json.RawMessage](t, rec)
	var counts map[string]int
	require.NoError(t, json.Unmarshal(body["leads_by_status"], &counts))
	assert.Equal(t, 1, counts["SCRAPED"])
	assert.Equal(t, 2, counts["AUDITED"])
	assert.Equal(t, 0, counts["EMAILED"])

	var remaining int
	require.NoError(t, json.Unmarshal(body["emails_remaining"], &remaining))
	assert.Equal(t, 47, remaining) // default limit 50 minus 3 sent
}

func TestListLeads(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := st.CreateLead(ctx, &model.Lead{
			BusinessName: "Biz", Industry: "plumbers", Country: "US",
			Status: model.LeadStatusScraped,
		})
		require.NoError(t, err)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/leads?status=SCRAPED&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Lead](t, rec), 2)

	rec = doJSON(t, srv, http.MethodGet, "/api/leads?status=EMAILED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]model.Lead](t, rec))
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = doJSON(t, srv, http.MethodGet, "/api/leads?status=BOGUS", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/leads?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTargetLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/targets", model.Target{
		Industry: "plumbers", Country: "United States", State: "Texas",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[model.Target](t, rec)
	assert.NotZero(t, created.ID)

	rec = doJSON(t, srv, http.MethodGet, "/api/targets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Target](t, rec), 1)

	rec = doJSON(t, srv, http.MethodDelete, "/api/targets/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/api/targets/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/targets", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCreateTargetValidation(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/targets", model.Target{Industry: "plumbers"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/targets", bytes.NewBufferString("{broken"))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decode[model.Settings](t, rec)
	assert.Equal(t, 50, settings.DailyEmailLimit)

	settings.SMTPHost = "smtp.example.com"
	settings.FromEmail = "hello@example.com"
	settings.SMTPEncryption = "SSL"
	rec = doJSON(t, srv, http.MethodPut, "/api/settings", settings)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/settings", nil)
	got := decode[model.Settings](t, rec)
	assert.Equal(t, "smtp.example.com", got.SMTPHost)
	assert.Equal(t, "SSL", got.SMTPEncryption)
}

func TestUpdateSettingsRejectsBadEncryption(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPut, "/api/settings", model.Settings{
		SMTPEncryption: "STARTTLS",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	msg := decode[apiMessage](t, rec)
	assert.False(t, msg.Success)
	assert.Contains(t, msg.Message, "smtp_encryption")
}

func TestEngineControl(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/engine/control", map[string]string{"action": "start"})
	require.Equal(t, http.StatusOK, rec.Code)
	state, err := st.GetRunState(context.Background())
	require.NoError(t, err)
	assert.True(t, state.IsEnabled)

	rec = doJSON(t, srv, http.MethodPost, "/api/engine/control", map[string]string{"action": "stop"})
	require.Equal(t, http.StatusOK, rec.Code)
	state, err = st.GetRunState(context.Background())
	require.NoError(t, err)
	assert.False(t, state.IsEnabled)

	rec = doJSON(t, srv, http.MethodPost, "/api/engine/control", map[string]string{"action": "restart"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEngineRunIsAsync(t *testing.T) {
	srv, _, runner := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/engine/run", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	msg := decode[apiMessage](t, rec)
	assert.True(t, msg.Success)

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine run never started")
	}
	assert.Equal(t, 1, runner.callCount())
}

func TestTelegramProbe(t *testing.T) {
	srv, st, _ := newTestServer(t, &stubProber{username: "outreach_bot"})
	ctx := context.Background()

	// Unconfigured first.
	rec := doJSON(t, srv, http.MethodGet, "/api/settings/test/telegram", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	settings, err := st.GetSettings(ctx)
	require.NoError(t, err)
	settings.TelegramBotToken = "token"
	settings.TelegramChatID = "chat"
	require.NoError(t, st.UpdateSettings(ctx, settings))

	rec = doJSON(t, srv, http.MethodGet, "/api/settings/test/telegram", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msg := decode[apiMessage](t, rec)
	assert.True(t, msg.Success)
	assert.Contains(t, msg.Message, "@outreach_bot")
}

func TestTelegramProbeFailure(t *testing.T) {
	srv, st, _ := newTestServer(t, &stubProber{err: errors.New("unauthorized")})
	ctx := context.Background()

	settings, err := st.GetSettings(ctx)
	require.NoError(t, err)
	settings.TelegramBotToken = "token"
	settings.TelegramChatID = "chat"
	require.NoError(t, st.UpdateSettings(ctx, settings))

	rec := doJSON(t, srv, http.MethodGet, "/api/settings/test/telegram", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	msg := decode[apiMessage](t, rec)
	assert.False(t, msg.Success)
	// The upstream error never leaks to the client.
	assert.NotContains(t, msg.Message, "unauthorized")
}
