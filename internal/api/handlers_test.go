package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darshan-rambhia/wxlog/internal/cache"
	"github.com/darshan-rambhia/wxlog/internal/model"
)

// failWriter is a ResponseWriter whose Write always returns an error.
// Used to exercise the "client disconnected" debug-log path in writeJSON.
type failWriter struct {
	header http.Header
}

func (fw *failWriter) Header() http.Header       { return fw.header }
func (fw *failWriter) WriteHeader(int)           {}
func (fw *failWriter) Write([]byte) (int, error) { return 0, errors.New("write failed") }

func newTestServer(t *testing.T) (*Server, *cache.Cache, *prometheus.Registry) {
	t.Helper()
	c := cache.New()
	reg := prometheus.NewRegistry()
	return NewServer(":0", c, reg), c, reg
}

func populateCache(c *cache.Cache) {
	at := time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)
	for _, id := range []string{"WX2", "WX1"} {
		r := model.DefaultReading()
		r.StationID = id
		r.FirmwareRev = "4.2.8"
		r.Temp = 21.5
		c.RecordReading(r, "192.168.1.50:4000", at)
	}
	c.RecordStorageSuccess(at)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// --- handleHealthz ---

func TestHandleHealthz_NoData(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := get(t, srv.mux, "/healthz")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "no_data", resp["status"])
	assert.Contains(t, resp, "timestamp")
	assert.Contains(t, resp, "storage")
	assert.EqualValues(t, 0, resp["stations"])
}

func TestHandleHealthz_WithData(t *testing.T) {
	srv, c, _ := newTestServer(t)
	populateCache(c)
	c.RecordRejection("auth")

	w := get(t, srv.mux, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp healthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Stations)
	assert.Equal(t, int64(1), resp.Rejections["auth"])
	assert.Zero(t, resp.Storage.ConsecutiveErrors)
}

func TestHandleHealthz_StorageFailing(t *testing.T) {
	srv, c, _ := newTestServer(t)
	populateCache(c)
	c.RecordStorageFailure(errors.New("disk full"), time.Now())

	w := get(t, srv.mux, "/healthz")

	var resp healthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, 1, resp.Storage.ConsecutiveErrors)
	assert.Equal(t, "disk full", resp.Storage.LastError)
}

// --- handleStations ---

func TestHandleStations_Empty(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := get(t, srv.mux, "/api/stations")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestHandleStations_SortedWithLatest(t *testing.T) {
	srv, c, _ := newTestServer(t)
	populateCache(c)

	w := get(t, srv.mux, "/api/stations")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp []map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "WX1", resp[0]["station_id"])
	assert.Equal(t, "WX2", resp[1]["station_id"])
	assert.Equal(t, "4.2.8", resp[0]["firmware_rev"])
	assert.EqualValues(t, 1, resp[0]["readings"])

	latest, ok := resp[0]["latest"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 21.5, latest["temp"])
}

// --- handleStation ---

func TestHandleStation_Found(t *testing.T) {
	srv, c, _ := newTestServer(t)
	populateCache(c)

	w := get(t, srv.mux, "/api/stations/WX2")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp stationResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "WX2", resp.StationID)
	assert.Equal(t, "192.168.1.50:4000", resp.RemoteAddr)
	require.NotNil(t, resp.Latest)
	assert.Equal(t, "WX2", resp.Latest.StationID)
}

func TestHandleStation_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := get(t, srv.mux, "/api/stations/NOPE")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- metrics and swagger ---

func TestMetricsEndpoint(t *testing.T) {
	srv, _, reg := newTestServer(t)
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wxlog_test_total",
		Help: "Test counter.",
	})
	reg.MustRegister(counter)
	counter.Add(3)

	w := get(t, srv.mux, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wxlog_test_total 3")
}

func TestSwaggerDocJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := get(t, srv.mux, "/swagger/doc.json")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/stations")
	assert.Contains(t, w.Body.String(), "wxlog API")
}

func TestUnknownRoute(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := get(t, srv.mux, "/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Server.Run ---

func TestServerRun_GracefulShutdown(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	// Give server time to start
	time.Sleep(50 * time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerRun_ListenError(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.server.Addr = "127.0.0.1:99999"

	err := srv.Run(context.Background())
	assert.Error(t, err)
}

// --- SecurityHeadersMiddleware ---

func TestSecurityHeadersMiddleware(t *testing.T) {
	srv, _, _ := newTestServer(t)
	// Use the full handler stack (includes SecurityHeadersMiddleware).
	w := get(t, srv.server.Handler, "/healthz")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

// --- writeJSON error paths ---

func TestWriteJSON_MarshalError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	// channels cannot be marshalled to JSON.
	writeJSON(w, r, make(chan int))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWriteJSON_WriteBodyFail(t *testing.T) {
	w := &failWriter{header: make(http.Header)}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	// Marshal succeeds; Write to w fails. Must not panic.
	writeJSON(w, r, "ok")
}
