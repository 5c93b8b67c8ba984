package exchange

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesRequestCounts(t *testing.T) {
	session := newTestSession(t, func(Payload) {})
	status, _ := post(t, session.URL+"/nowhere", "{}")
	require.Equal(t, http.StatusNotFound, status)

	ts := httptest.NewServer(MetricsHandler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + MetricsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `linkdrop_exchange_requests_total{result="not_found"}`)

	resp, err = http.Get(ts.URL + "/other")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
