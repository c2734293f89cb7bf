package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")
	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern, "expected handler to be registered for GET method on /debug/vars")
}

func TestStatsUpdaterCounters(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.RegisterMetric(NicknamesAssigned)
	su.RegisterMetric(NicknamesAssigned)
	su.RegisterMetric(ActiveConnections)
	su.Run()
	defer su.Stop()

	su.Incr(NicknamesAssigned)
	su.Incr(NicknamesAssigned)
	su.Incr(ActiveConnections)
	su.Decr(ActiveConnections)

	assert.Eventually(t, func() bool {
		return su.vars.Get(NicknamesAssigned).String() == "2"
	}, time.Second, 10*time.Millisecond, "expected counter updates to be applied")

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, float64(2), body[NicknamesAssigned])
	assert.Contains(t, body, "Uptime")
}
