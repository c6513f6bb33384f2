// Package server exposes the catalog over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/radiodex/radiodex/api"
	"github.com/radiodex/radiodex/internal/config"
	"github.com/radiodex/radiodex/internal/engage"
	"github.com/radiodex/radiodex/internal/metrics"
	"github.com/radiodex/radiodex/internal/models"
	"github.com/radiodex/radiodex/internal/service"
	"github.com/radiodex/radiodex/internal/store"
)

// Server holds dependencies for the HTTP API.
type Server struct {
	store   store.Store
	cfg     *config.Config
	tracker *engage.Tracker
	prober  service.Prober
	mux     *http.ServeMux
}

// New creates a Server and registers routes.
func New(s store.Store, cfg *config.Config, tracker *engage.Tracker, pc service.Prober) *Server {
	srv := &Server{store: s, cfg: cfg, tracker: tracker, prober: pc, mux: http.NewServeMux()}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Stations
	s.mux.HandleFunc("GET /api/stations", s.handleSearchStations)
	s.mux.HandleFunc("GET /api/stations/{id}", s.handleGetStation)
	s.mux.HandleFunc("POST /api/stations/{id}/play", s.handleReportPlay)

	// User saved lists
	s.mux.HandleFunc("PUT /api/users/{user}/stations/{id}", s.handleAddToList)
	s.mux.HandleFunc("DELETE /api/users/{user}/stations/{id}", s.handleRemoveFromList)

	// Aggregations
	s.mux.HandleFunc("GET /api/genres/top", s.handleTopGenres)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)

	// Jobs
	s.mux.HandleFunc("POST /api/ingest", s.handleIngest)

	// Observability and docs
	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("GET /api/docs", handleSwaggerUI)
	s.mux.HandleFunc("GET /api/docs/openapi.yaml", handleOpenAPISpec)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.cfg.ServerPort
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      withCORS(withLogging(s)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSearchStations serves the genre search. With no genres parameter it
// returns the full online catalog under the same popularity ranking.
func (s *Server) handleSearchStations(w http.ResponseWriter, r *http.Request) {
	rawGenres := r.URL.Query().Get("genres")
	terms := splitTerms(rawGenres)

	stations, err := s.store.GetStationsByGenre(r.Context(), terms)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if stations == nil {
		stations = []models.Station{}
	}
	metrics.SearchesServed.Inc()

	// The query log feeds the top-genres aggregation. A failed log entry
	// never fails the search.
	if len(terms) > 0 {
		if err := s.store.LogGenres(r.Context(), rawGenres); err != nil {
			log.Printf("log genres %q: %v", rawGenres, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stations": stations,
		"total":    len(stations),
	})
}

func (s *Server) handleGetStation(w http.ResponseWriter, r *http.Request) {
	stationID, err := parseID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	st, err := s.store.GetStationByID(r.Context(), stationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusNotFound, fmt.Errorf("station %d not found", stationID))
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// handleReportPlay records one played minute for a station. A throttled
// report is still a successful request; the outcome field tells the client
// which case it hit.
func (s *Server) handleReportPlay(w http.ResponseWriter, r *http.Request) {
	stationID, err := parseID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	outcome, err := s.tracker.ReportPlay(r.Context(), stationID, clientAddr(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusNotFound, fmt.Errorf("station %d not found", stationID))
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	metrics.PlayReports.WithLabelValues(string(outcome)).Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"station_id": stationID,
		"outcome":    outcome,
	})
}

func (s *Server) handleAddToList(w http.ResponseWriter, r *http.Request) {
	s.handleListMembership(w, r, true)
}

func (s *Server) handleRemoveFromList(w http.ResponseWriter, r *http.Request) {
	s.handleListMembership(w, r, false)
}

func (s *Server) handleListMembership(w http.ResponseWriter, r *http.Request, inList bool) {
	stationID, err := parseID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	userID := r.PathValue("user")
	if userID == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("user is required"))
		return
	}

	if err := s.tracker.SetInList(r.Context(), stationID, userID, inList); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusNotFound, fmt.Errorf("station %d not found", stationID))
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	if !inList {
		writeNoContent(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"station_id": stationID,
		"user_id":    userID,
		"in_list":    true,
	})
}

func (s *Server) handleTopGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.store.TopGenres(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if genres == nil {
		genres = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"genres": genres})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	online, total, err := s.store.DBStats(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"online": online,
		"total":  total,
	})
}

// handleIngest triggers a directory ingestion pass synchronously and reports
// its counts. Large directories can take a while, which is why the server's
// write timeout is generous.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.cfg.DirectoryURL == "" {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("ingestion not configured (DIRECTORY_URL not set)"))
		return
	}

	res, err := service.Ingest(r.Context(), s.store, s.prober,
		s.cfg.DirectoryURL, s.cfg.UserAgent, s.cfg.FetchTimeout, s.cfg.IngestConcurrency)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("ingest: %w", err))
		return
	}
	metrics.StationsIngested.Add(float64(res.Added))

	writeJSON(w, http.StatusOK, res)
}

// --- middleware ---

// withCORS adds CORS headers to every response and handles preflight OPTIONS requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withLogging wraps a handler and logs each request with method, path, status, and duration.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		statusCode := sw.status

		// Color the status code for terminal readability.
		statusColor := colorForStatus(statusCode)
		methodColor := colorForMethod(r.Method)

		log.Printf("%s %-7s %s\x1b[0m  %s %3d %s\x1b[0m  %s",
			methodColor, r.Method, "\x1b[0m",
			statusColor, statusCode, "\x1b[0m",
			formatDuration(duration),
		)
		if r.URL.RawQuery != "" {
			log.Printf("         %s?%s", r.URL.Path, r.URL.RawQuery)
		} else {
			log.Printf("         %s", r.URL.Path)
		}
	})
}

func colorForStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "\x1b[32m" // green
	case code >= 300 && code < 400:
		return "\x1b[36m" // cyan
	case code >= 400 && code < 500:
		return "\x1b[33m" // yellow
	default:
		return "\x1b[31m" // red
	}
}

func colorForMethod(method string) string {
	switch method {
	case http.MethodGet:
		return "\x1b[36m" // cyan
	case http.MethodPost:
		return "\x1b[32m" // green
	case http.MethodPatch, http.MethodPut:
		return "\x1b[33m" // yellow
	case http.MethodDelete:
		return "\x1b[31m" // red
	default:
		return "\x1b[37m" // white
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dus", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// --- helpers ---

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// parseID extracts a path parameter by name and parses it as int64.
func parseID(r *http.Request, param string) (int64, error) {
	v := r.PathValue(param)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", param, v)
	}
	return id, nil
}

// splitTerms breaks a comma-separated genres parameter into trimmed,
// non-empty terms.
func splitTerms(raw string) []string {
	var terms []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// clientAddr identifies the requesting client for play-report throttling.
// The first X-Forwarded-For hop wins when a proxy is in front.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: %v", err)
	}
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		log.Printf("ERROR %d: %v", status, err)
	}
	writeJSON(w, status, APIError{
		Status: status,
		Error:  http.StatusText(status),
		Detail: err.Error(),
	})
}

// --- docs handlers ---

func handleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.OpenAPISpec)
}

func handleSwaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, swaggerUIHTML)
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Radiodex API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box;overflow-y:scroll}*,*:before,*:after{box-sizing:inherit}body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api/docs/openapi.yaml",
      dom_id: "#swagger-ui",
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: "BaseLayout",
    });
  </script>
</body>
</html>`
