package captcha_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/captcha"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSolver_Solve(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		img, err := base64.StdEncoding.DecodeString(body["image"])
		assert.NoError(t, err)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, img)
		_, _ = w.Write([]byte(`{"result":" a7k2 "}`))
	}))
	t.Cleanup(srv.Close)

	s := captcha.NewHTTPSolver(srv.URL, time.Second, 1)
	answer, err := s.Solve(context.Background(), []byte{0x89, 'P', 'N', 'G'})

	require.NoError(t, err)
	assert.Equal(t, "a7k2", answer)
}

func TestHTTPSolver_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"result":"x9"}`))
	}))
	t.Cleanup(srv.Close)

	s := captcha.NewHTTPSolver(srv.URL, time.Second, 3)
	answer, err := s.Solve(context.Background(), []byte("img"))

	require.NoError(t, err)
	assert.Equal(t, "x9", answer)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPSolver_EmptyAnswerNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"result":""}`))
	}))
	t.Cleanup(srv.Close)

	s := captcha.NewHTTPSolver(srv.URL, time.Second, 3)
	_, err := s.Solve(context.Background(), []byte("img"))

	require.ErrorIs(t, err, captcha.ErrEmptyAnswer)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPSolver_NoEndpoint(t *testing.T) {
	t.Parallel()

	_, err := captcha.NewHTTPSolver("", time.Second, 1).Solve(context.Background(), nil)
	require.ErrorIs(t, err, captcha.ErrNoEndpoint)
}
