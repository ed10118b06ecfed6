package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/jobs"
	"github.com/Checker-Finance/qa-suite/internal/store"
	"github.com/Checker-Finance/qa-suite/pkg/model"
)

// --- Mocks ---

type mockRuns struct {
	latest    map[string]*model.RunResult
	byID      map[uuid.UUID]*model.RunResult
	recent    []store.RunSummary
	gotLimit  int
	gotSuite  string
	err       error
	healthErr error
}

func (m *mockRuns) LatestRun(_ context.Context, suite string) (*model.RunResult, error) {
	return m.latest[suite], m.err
}

func (m *mockRuns) GetRun(_ context.Context, id uuid.UUID) (*model.RunResult, error) {
	return m.byID[id], m.err
}

func (m *mockRuns) RecentRuns(_ context.Context, suite string, limit int) ([]store.RunSummary, error) {
	m.gotSuite, m.gotLimit = suite, limit
	return m.recent, m.err
}

func (m *mockRuns) HealthCheck(context.Context) error { return m.healthErr }

type mockTrigger struct {
	id    uuid.UUID
	err   error
	calls []string
}

func (m *mockTrigger) Trigger(_ context.Context, suite string) (uuid.UUID, error) {
	m.calls = append(m.calls, suite)
	return m.id, m.err
}

// --- Helpers ---

var testSuites = []string{"workspace", "jira", "ui"}

func newTestApp(runs *mockRuns, trig *mockTrigger) *fiber.App {
	app := fiber.New()
	var reader RunReader
	var health HealthChecker
	if runs != nil {
		reader, health = runs, runs
	}
	RegisterRoutes(app, health, nil, NewRunsHandler(zap.NewNop(), reader, trig, testSuites))
	return app
}

func do(t *testing.T, app *fiber.App, method, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

// --- LatestRun ---

func TestLatestRun_Found(t *testing.T) {
	run := &model.RunResult{RunID: uuid.New(), Suite: "jira", Status: model.StatusPassed}
	app := newTestApp(&mockRuns{latest: map[string]*model.RunResult{"jira": run}}, &mockTrigger{})

	code, body := do(t, app, http.MethodGet, "/api/v1/runs/jira/latest")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, run.RunID.String(), body["run_id"])
	assert.Equal(t, "passed", body["status"])
}

func TestLatestRun_NoneRecorded(t *testing.T) {
	app := newTestApp(&mockRuns{}, &mockTrigger{})
	code, body := do(t, app, http.MethodGet, "/api/v1/runs/ui/latest")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["error"], "no runs recorded")
}

func TestLatestRun_UnknownSuite(t *testing.T) {
	app := newTestApp(&mockRuns{}, &mockTrigger{})
	code, body := do(t, app, http.MethodGet, "/api/v1/runs/nope/latest")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["error"], "unknown suite")
}

func TestLatestRun_StoreError(t *testing.T) {
	app := newTestApp(&mockRuns{err: errors.New("redis down")}, &mockTrigger{})
	code, _ := do(t, app, http.MethodGet, "/api/v1/runs/jira/latest")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestLatestRun_NoStore(t *testing.T) {
	app := newTestApp(nil, &mockTrigger{})
	code, _ := do(t, app, http.MethodGet, "/api/v1/runs/jira/latest")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

// --- GetRun / ListRuns ---

func TestGetRun(t *testing.T) {
	id := uuid.New()
	app := newTestApp(&mockRuns{byID: map[uuid.UUID]*model.RunResult{id: {RunID: id, Suite: "ui"}}}, &mockTrigger{})

	code, body := do(t, app, http.MethodGet, "/api/v1/run/"+id.String())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ui", body["suite"])

	code, _ = do(t, app, http.MethodGet, "/api/v1/run/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, app, http.MethodGet, "/api/v1/run/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListRuns(t *testing.T) {
	runs := &mockRuns{recent: []store.RunSummary{{RunID: uuid.New(), Suite: "jira", Status: model.StatusFailed, Failed: 1}}}
	app := newTestApp(runs, &mockTrigger{})

	code, body := do(t, app, http.MethodGet, "/api/v1/runs?suite=jira&limit=5")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "jira", runs.gotSuite)
	assert.Equal(t, 5, runs.gotLimit)
	assert.Len(t, body["runs"], 1)

	code, _ = do(t, app, http.MethodGet, "/api/v1/runs?limit=0")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodGet, "/api/v1/runs?suite=bogus")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListRuns_NoHistoryStore(t *testing.T) {
	app := newTestApp(&mockRuns{err: store.ErrNoPostgres}, &mockTrigger{})
	code, body := do(t, app, http.MethodGet, "/api/v1/runs")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "run history not configured", body["error"])
}

func TestListRuns_EmptyIsArray(t *testing.T) {
	app := newTestApp(&mockRuns{}, &mockTrigger{})
	code, body := do(t, app, http.MethodGet, "/api/v1/runs")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["runs"])
}

// --- TriggerRun ---

func TestTriggerRun_Accepted(t *testing.T) {
	trig := &mockTrigger{id: uuid.New()}
	app := newTestApp(&mockRuns{}, trig)

	code, body := do(t, app, http.MethodPost, "/api/v1/runs/workspace")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, trig.id.String(), body["run_id"])
	assert.Equal(t, "workspace", body["suite"])
	assert.Equal(t, []string{"workspace"}, trig.calls)
}

func TestTriggerRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"in progress", fmt.Errorf("jira: %w", jobs.ErrRunInProgress), http.StatusConflict},
		{"stopped", jobs.ErrStopped, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&mockRuns{}, &mockTrigger{err: tt.err})
			code, _ := do(t, app, http.MethodPost, "/api/v1/runs/jira")
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestTriggerRun_UnknownSuite(t *testing.T) {
	trig := &mockTrigger{}
	app := newTestApp(&mockRuns{}, trig)
	code, _ := do(t, app, http.MethodPost, "/api/v1/runs/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Empty(t, trig.calls)
}

// --- Health / metrics ---

func TestHealth(t *testing.T) {
	code, body := do(t, newTestApp(&mockRuns{}, &mockTrigger{}), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["store"])
	assert.Equal(t, "disabled", checks["nats"])

	code, body = do(t, newTestApp(&mockRuns{healthErr: errors.New("redis ping failed")}, &mockTrigger{}), http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])

	code, body = do(t, newTestApp(nil, &mockTrigger{}), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "disabled", body["checks"].(map[string]any)["store"])
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(nil, &mockTrigger{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), int((5 * time.Second).Milliseconds()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
