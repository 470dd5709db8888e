package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/models"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.ObservePing("advanced", 10*time.Millisecond)
	c.ObservePing("advanced", 12*time.Millisecond)
	c.ObservePing("dropped", time.Millisecond)
	c.ObserveGateway("pickup", time.Second, nil)
	c.ObserveGateway("pickup", time.Second, errors.New("timeout"))
	c.StageTransition(models.StageRoute)
	c.ApplicationDecided(models.StatusApproved)
	c.NATSSetConnected(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Pings.WithLabelValues("advanced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Pings.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.GatewayCalls.WithLabelValues("pickup", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StageChanges.WithLabelValues("route")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Decisions.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NATSConnected))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.ObservePing("recorded", time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tracker_pings_total{outcome="recorded"} 1`)
}
