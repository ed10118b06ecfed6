package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncAPIRequest_Labels(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("workspace", "POST", "200"))
	IncAPIRequest("workspace", "POST", 200)
	assert.Equal(t, before+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("workspace", "POST", "200")))

	beforeErr := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("workspace", "POST", "error"))
	IncAPIRequest("workspace", "POST", 0)
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("workspace", "POST", "error")))
}

func TestIncLogin(t *testing.T) {
	ok := testutil.ToFloat64(LoginsTotal.WithLabelValues("workspace", "ok"))
	bad := testutil.ToFloat64(LoginsTotal.WithLabelValues("workspace", "error"))

	IncLogin("workspace", nil)
	IncLogin("workspace", errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(LoginsTotal.WithLabelValues("workspace", "ok")))
	assert.Equal(t, bad+1, testutil.ToFloat64(LoginsTotal.WithLabelValues("workspace", "error")))
}

func TestObserveDuration_Histogram(t *testing.T) {
	ObserveDuration(RunDuration, time.Now().Add(-time.Second), "jira", "passed")
	assert.GreaterOrEqual(t, testutil.CollectAndCount(RunDuration, "qa_run_duration_seconds"), 1)
}

func TestPush_SendsToGateway(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	IncStep("ui", "passed")
	require.NoError(t, Push(srv.URL, "qa-suite"))
	assert.True(t, strings.HasPrefix(gotPath, "/metrics/job/qa-suite"), "unexpected path %s", gotPath)
}
