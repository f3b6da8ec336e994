package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/fetcher"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeEgress(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.UserAgent())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","query":"203.0.113.7","country":"中国",` +
			`"regionName":"山东","city":"济南","isp":"ChinaNet"}`))
	}))
	t.Cleanup(srv.Close)

	info, err := fetcher.ProbeEgress(context.Background(), fetcher.ProbeConfig{
		URL:     srv.URL,
		Timeout: 5 * time.Second,
	}, logger.NewNop())

	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", info.IP)
	assert.Equal(t, "济南", info.City)
	assert.Equal(t, "ChinaNet", info.ISP)
}

func TestProbeEgress_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := fetcher.ProbeEgress(context.Background(), fetcher.ProbeConfig{URL: srv.URL}, logger.NewNop())

	require.ErrorIs(t, err, fetcher.ErrProbeFailed)
}
