package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ExposedOnHandler(t *testing.T) {
	m := New()
	m.ObserveParse("2", "ok", 16)
	m.ObserveParse("1", "error", 0)
	m.ObserveSerialize("2", "ok")
	m.RelayConnOpened(":8080")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `pp_parse_total{result="ok",version="2"} 1`)
	assert.Contains(t, body, `pp_parse_total{result="error",version="1"} 1`)
	assert.Contains(t, body, `pp_serialize_total{result="ok",version="2"} 1`)
	assert.Contains(t, body, `pp_relay_active_connections{listen=":8080"} 1`)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not panic on duplicate registration.
	a := New()
	b := New()
	a.ObserveParse("2", "ok", 16)
	b.ObserveParse("2", "ok", 16)
}
