package httpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/educhainverify/credential-service/api"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(r chi.Router) {
	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
}

func newTestServer(t *testing.T, enablePprof bool, checks ...ReadinessCheck) *Server {
	t.Helper()
	srv, err := New(&api.HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      slog.New(slog.NewTextHandler(io.Discard, nil)),
		EnablePprof:              enablePprof,
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}, pingRoutes{}, checks...)
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t, false)

	rr := get(t, srv, "/api/ping")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pong", rr.Body.String())

	rr = get(t, srv, "/livez")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rr.Body.String())

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/debug/pprof/").Code)
}

func TestServer_DrainUndrain(t *testing.T) {
	srv := newTestServer(t, false)

	assert.Equal(t, http.StatusOK, get(t, srv, "/readyz").Code)

	rr := get(t, srv, "/drain")
	assert.JSONEq(t, `{"status":"draining"}`, rr.Body.String())
	rr = get(t, srv, "/drain")
	assert.JSONEq(t, `{"status":"already draining"}`, rr.Body.String())
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv, "/readyz").Code)

	rr = get(t, srv, "/undrain")
	assert.JSONEq(t, `{"status":"ready"}`, rr.Body.String())
	rr = get(t, srv, "/undrain")
	assert.JSONEq(t, `{"status":"already ready"}`, rr.Body.String())
	assert.Equal(t, http.StatusOK, get(t, srv, "/readyz").Code)
}

func TestServer_ReadinessChecks(t *testing.T) {
	healthy := true
	srv := newTestServer(t, false, func(ctx context.Context) error {
		if !healthy {
			return errors.New("database unreachable")
		}
		return nil
	})

	assert.Equal(t, http.StatusOK, get(t, srv, "/readyz").Code)
	healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv, "/readyz").Code)
}

func TestServer_Pprof(t *testing.T) {
	srv := newTestServer(t, true)
	assert.Equal(t, http.StatusOK, get(t, srv, "/debug/pprof/").Code)
}
