package controlplane

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/pacer/internal/apperr"
	"github.com/fentz26/pacer/internal/clock"
	"github.com/fentz26/pacer/internal/decay"
	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/notify"
	"github.com/fentz26/pacer/internal/pace"
	"github.com/fentz26/pacer/internal/store"
)

func TestHealthEndpoint_OK(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	assert.True(t, health.OK)
	assert.Equal(t, "ok", health.DB)
	assert.NotEmpty(t, health.Version)
	assert.NotEmpty(t, health.Time)
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	if w.Result().StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Result().StatusCode)
	}
}

func TestHealthEndpoint_DBError(t *testing.T) {
	s, st := newTestServer(t)

	// Close the store to simulate DB error
	st.Close()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.False(t, health.OK)
	assert.NotEqual(t, "ok", health.DB)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/tasks", map[string]any{"title": "write report", "client_name": "acme", "effort_estimate": 3})
	require.Equal(t, http.StatusCreated, w.Code)
	var task models.Task
	decode(t, w, &task)
	assert.Equal(t, models.StatusBacklog, task.Status)

	w = do(t, h, http.MethodPost, "/tasks/"+task.ID+"/promote", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &task)
	assert.Equal(t, models.StatusQueued, task.Status)

	w = do(t, h, http.MethodPost, "/tasks/"+task.ID+"/transition", map[string]any{"status": "done", "actor": "cli"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &task)
	assert.Equal(t, models.StatusDone, task.Status)
	assert.NotNil(t, task.CompletedAt)

	w = do(t, h, http.MethodGet, "/tasks?status=done", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var done []models.Task
	decode(t, w, &done)
	assert.Len(t, done, 1)

	w = do(t, h, http.MethodGet, "/tasks/"+task.ID+"/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var events []models.TaskEvent
	decode(t, w, &events)
	require.Len(t, events, 3)
	assert.Equal(t, "cli", events[2].Actor)
}

func TestErrorStatusMapping(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp ErrorResponse
	decode(t, w, &resp)
	assert.Equal(t, "not_found", resp.Kind)

	w = do(t, h, http.MethodGet, "/tasks?status=blocked", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/tasks", map[string]any{"title": ""})
	assert.Equal(t, http.StatusConflict, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewBufferString("{"))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodDelete, "/tasks", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = do(t, h, http.MethodGet, "/goals/history?days=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/urgency/check", map[string]any{"hour": 24})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(apperr.NotFound("op", "x")))
	assert.Equal(t, http.StatusBadRequest, StatusFor(apperr.InvalidTransition("op", "x")))
	assert.Equal(t, http.StatusConflict, StatusFor(apperr.Invariant("op", "x")))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(apperr.Storage("op", errors.New("down"))))
	assert.Equal(t, http.StatusBadGateway, StatusFor(apperr.Relay("op", errors.New("down"))))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}

func TestArchiveAndResurrectOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/tasks", map[string]any{"title": "old idea"})
	require.Equal(t, http.StatusCreated, w.Code)
	var task models.Task
	decode(t, w, &task)

	w = do(t, h, http.MethodPost, "/tasks/"+task.ID+"/archive", map[string]any{"reason": "bored"})
	assert.Equal(t, http.StatusConflict, w.Code)
	var errResp ErrorResponse
	decode(t, w, &errResp)
	assert.Equal(t, "invariant_violation", errResp.Kind)

	w = do(t, h, http.MethodPost, "/tasks/"+task.ID+"/archive", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entry models.GraveyardEntry
	decode(t, w, &entry)
	assert.Equal(t, models.ArchiveManual, entry.Reason)

	w = do(t, h, http.MethodGet, "/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/graveyard", nil)
	var entries []models.GraveyardEntry
	decode(t, w, &entries)
	assert.Len(t, entries, 1)

	w = do(t, h, http.MethodPost, "/graveyard/"+entry.ID+"/resurrect", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &task)
	assert.Equal(t, models.StatusBacklog, task.Status)
}

func TestMomentumAndUrgencyOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/tasks", map[string]any{"title": "shipped", "points_final": 5, "status": "done"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, h, http.MethodGet, "/momentum", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report MomentumReport
	decode(t, w, &report)
	assert.Equal(t, 5, report.Earned)
	assert.Equal(t, 1, report.TaskCount)
	assert.Equal(t, 18, report.DailyTarget)
	assert.True(t, report.WorkDay)

	w = do(t, h, http.MethodPost, "/urgency/check", map[string]any{"hour": 15})
	require.Equal(t, http.StatusOK, w.Code)
	var result notify.CheckResult
	decode(t, w, &result)
	assert.True(t, result.Sent)
	assert.Equal(t, notify.TierUrgent, result.Tier)

	w = do(t, h, http.MethodPost, "/urgency/check", map[string]any{"hour": 15})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &result)
	assert.False(t, result.Sent)

	w = do(t, h, http.MethodGet, "/goals/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var records []models.DailyGoalRecord
	decode(t, w, &records)
	require.NotEmpty(t, records)
	assert.Equal(t, 5, records[0].EarnedPoints)
	require.NotNil(t, records[0].LastUrgencyHour)
	assert.Equal(t, 15, *records[0].LastUrgencyHour)
}

func TestClientEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/clients/Big%20Co", map[string]any{"tier": "gold", "importance": 4})
	require.Equal(t, http.StatusOK, w.Code)
	var client models.ClientMemory
	decode(t, w, &client)
	assert.Equal(t, "Big Co", client.Name)
	assert.Equal(t, "gold", client.Tier)

	w = do(t, h, http.MethodPost, "/clients/Big%20Co/reset-avoidance", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/clients", nil)
	var clients []models.ClientMemory
	decode(t, w, &clients)
	assert.Len(t, clients, 1)

	w = do(t, h, http.MethodPost, "/clients/nobody/reset-avoidance", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobsWithoutScheduler(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s.Handler(), http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	mc := clock.NewManual(time.Date(2026, 10, 15, 13, 30, 0, 0, time.UTC))
	service := NewService(st, mc, time.UTC, Options{
		Window:      pace.Window{StartHour: 9, EndHour: 18},
		DailyTarget: 18,
		WorkDays:    5,
		Decay:       decay.DefaultThresholds(),
		Urgency:     notify.DefaultThresholds(),
		Relay:       notify.LogRelay{},
	})
	return NewServer(service, "127.0.0.1:0"), st
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v), w.Body.String())
}
