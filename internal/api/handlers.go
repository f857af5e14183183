// Package api provides the HTTP operations surface for wxlog.
package api

import (
	"cmp"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/darshan-rambhia/wxlog/internal/cache"
	"github.com/darshan-rambhia/wxlog/internal/model"

	_ "github.com/darshan-rambhia/wxlog/docs/swagger"
)

// Server is the HTTP server for wxlog.
type Server struct {
	cache    *cache.Cache
	gatherer prometheus.Gatherer
	mux      *http.ServeMux
	server   *http.Server
}

// NewServer creates a new HTTP server. Metrics are served from gatherer.
func NewServer(addr string, c *cache.Cache, gatherer prometheus.Gatherer) *Server {
	srv := &Server{
		cache:    c,
		gatherer: gatherer,
		mux:      http.NewServeMux(),
	}

	srv.registerRoutes()

	srv.server = &http.Server{
		Addr:         addr,
		Handler:      SecurityHeadersMiddleware(RecoveryMiddleware(LoggingMiddleware(srv.mux))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("HTTP server starting", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("GET /api/stations", s.handleStations)
	s.mux.HandleFunc("GET /api/stations/{id}", s.handleStation)

	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Swagger UI
	s.mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}

// writeJSON marshals v to JSON into a buffer first, then writes it to the
// response. This ensures marshalling errors can be returned as a proper 500.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding JSON response", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		// Client disconnected after headers sent.
		slog.Debug("writing JSON response", "path", r.URL.Path, "error", err)
	}
}

// healthResponse is the response body for GET /healthz.
type healthResponse struct {
	Status     string              `json:"status"`
	Timestamp  int64               `json:"timestamp"`
	Stations   int                 `json:"stations"`
	Storage    model.StorageHealth `json:"storage"`
	Rejections map[string]int64    `json:"rejections"`
}

// stationResponse pairs a station's status with its latest stored reading.
type stationResponse struct {
	model.StationStatus
	Latest *model.Reading `json:"latest,omitempty"`
}

// @Summary Health check
// @Description Reports whether readings have arrived and are being stored
// @Produce json
// @Success 200 {object} healthResponse
// @Router /healthz [get]
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Snapshot()

	status := "ok"
	switch {
	case snap.Storage.ConsecutiveErrors > 0:
		status = "degraded"
	case len(snap.Stations) == 0:
		status = "no_data"
	}

	writeJSON(w, r, healthResponse{
		Status:     status,
		Timestamp:  time.Now().Unix(),
		Stations:   len(snap.Stations),
		Storage:    snap.Storage,
		Rejections: snap.Rejections,
	})
}

// @Summary Station list
// @Description Returns every station heard since startup with its latest reading, ordered by station ID
// @Produce json
// @Success 200 {array} stationResponse
// @Router /api/stations [get]
func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Snapshot()

	resp := make([]stationResponse, 0, len(snap.Stations))
	for id, st := range snap.Stations {
		resp = append(resp, stationResponse{StationStatus: *st, Latest: snap.Latest[id]})
	}
	slices.SortFunc(resp, func(a, b stationResponse) int {
		return cmp.Compare(a.StationID, b.StationID)
	})

	writeJSON(w, r, resp)
}

// @Summary Station detail
// @Description Returns one station's status and latest reading
// @Produce json
// @Param id path string true "Station ID"
// @Success 200 {object} stationResponse
// @Failure 404 {string} string "Station not found"
// @Router /api/stations/{id} [get]
func (s *Server) handleStation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap := s.cache.Snapshot()
	st, ok := snap.Stations[id]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, r, stationResponse{StationStatus: *st, Latest: snap.Latest[id]})
}
