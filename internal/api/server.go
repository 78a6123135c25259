// Package api serves the detection reports over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/astana-data/hotspot.report/internal/db"
	"github.com/astana-data/hotspot.report/internal/hotspot"
	"github.com/astana-data/hotspot.report/internal/monitoring"
	"github.com/astana-data/hotspot.report/internal/render"
	"github.com/astana-data/hotspot.report/internal/units"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db       *db.DB
	units    string
	registry *prometheus.Registry
}

// NewServer creates the report API. units is the default display unit
// for heat values; registry may be nil to disable /metrics.
func NewServer(database *db.DB, defaultUnits string, registry *prometheus.Registry) *Server {
	return &Server{
		db:       database,
		units:    defaultUnits,
		registry: registry,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/latest", s.showLatestRun)
	mux.HandleFunc("/api/reports/current", s.reportHandler(hotspot.ReportCurrent))
	mux.HandleFunc("/api/reports/predicted", s.reportHandler(hotspot.ReportPredicted))
	mux.HandleFunc("/api/heatmap/current", s.heatmapHandler(hotspot.ReportCurrent))
	mux.HandleFunc("/api/heatmap/predicted", s.heatmapHandler(hotspot.ReportPredicted))
	mux.HandleFunc("/api/tiles/current.csv", s.tilesCSVHandler(hotspot.ReportCurrent))
	mux.HandleFunc("/api/tiles/predicted.csv", s.tilesCSVHandler(hotspot.ReportPredicted))
	if s.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	metas, err := s.db.RecentRuns(r.Context(), limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if metas == nil {
		metas = []db.RunMeta{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metas)
}

func (s *Server) showLatestRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	run, err := s.db.LatestRun(r.Context())
	if errors.Is(err, db.ErrNoRuns) {
		s.writeJSONError(w, http.StatusNotFound, "no runs recorded yet")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// latestReport loads the requested report of the most recent run. A
// run without a prediction yields a 404 for the predicted kind.
func (s *Server) latestReport(r *http.Request, kind hotspot.ReportKind) (*hotspot.Report, int, error) {
	run, err := s.db.LatestRun(r.Context())
	if errors.Is(err, db.ErrNoRuns) {
		return nil, http.StatusNotFound, fmt.Errorf("no runs recorded yet")
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	if kind == hotspot.ReportPredicted {
		if run.Predicted == nil {
			return nil, http.StatusNotFound, fmt.Errorf("latest run has no prediction")
		}
		return run.Predicted, http.StatusOK, nil
	}
	return &run.Current, http.StatusOK, nil
}

// resolveUnits returns the display unit for a request, falling back to
// the server default.
func (s *Server) resolveUnits(r *http.Request) (string, error) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, nil
	}
	if !units.IsValid(u) {
		return "", fmt.Errorf("invalid units %q (valid: %s)", u, units.GetValidUnitsString())
	}
	return u, nil
}

// convertReportUnits converts the raw heat values of a report from
// km/h to the target units. Normalised values are unitless and pass
// through.
func convertReportUnits(report hotspot.Report, target string) hotspot.Report {
	converted := report
	converted.Clusters = make([]hotspot.ClusterSummary, len(report.Clusters))
	for i, c := range report.Clusters {
		c.HeatLevel = units.ConvertSpeed(c.HeatLevel, target)
		converted.Clusters[i] = c
	}
	converted.Tiles = make([]hotspot.Tile, len(report.Tiles))
	for i, t := range report.Tiles {
		t.HeatLevel = units.ConvertSpeed(t.HeatLevel, target)
		converted.Tiles[i] = t
	}
	return converted
}

func (s *Server) reportHandler(kind hotspot.ReportKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		target, err := s.resolveUnits(r)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		report, status, err := s.latestReport(r, kind)
		if err != nil {
			s.writeJSONError(w, status, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(convertReportUnits(*report, target))
	}
}

func (s *Server) heatmapHandler(kind hotspot.ReportKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		report, status, err := s.latestReport(r, kind)
		if err != nil {
			s.writeJSONError(w, status, err.Error())
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := render.TileHeatmapHTML(*report, w); err != nil {
			monitoring.Logf("api: heatmap render failed: %v", err)
		}
	}
}

func (s *Server) tilesCSVHandler(kind hotspot.ReportKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		report, status, err := s.latestReport(r, kind)
		if err != nil {
			s.writeJSONError(w, status, err.Error())
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=tiles_%s.csv", kind))
		if err := render.WriteTilesCSV(w, report.Tiles); err != nil {
			monitoring.Logf("api: tile CSV write failed: %v", err)
		}
	}
}
