package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/testimony-tracker/internal/config"
	"github.com/JakeFAU/testimony-tracker/internal/metrics"
	"github.com/JakeFAU/testimony-tracker/internal/testimony"
)

const robotsTxt = "User-agent: *\nDisallow: /"

// SnapshotSource supplies the current tallies.
type SnapshotSource interface {
	Snapshot() *testimony.Snapshot
}

// Server wires HTTP handlers to the refresher state and the artifact files.
type Server struct {
	router chi.Router
	source SnapshotSource
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(source SnapshotSource, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		source: source,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/", s.index)
	r.Get("/testimony.json", s.results)
	r.Get("/testimony.pdf", s.serveArtifact(cfg.Storage.MergedPDFPath(), "application/pdf"))
	r.Get("/testimony.txt", s.serveArtifact(cfg.Storage.MergedTextPath(), "text/plain; charset=utf-8"))
	r.Get("/missing.txt", s.missing)
	r.Get("/source", s.sourceInfo)
	r.Get("/robots.txt", s.robots)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) current() testimony.Snapshot {
	if snap := s.source.Snapshot(); snap != nil {
		return *snap
	}
	return testimony.Snapshot{MissingEnabled: s.cfg.Source.CompareURL() != ""}
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	snap := s.current()
	data := pageData{
		Bill:           s.cfg.Source.DisplayBill(),
		ListingURL:     s.cfg.Source.ListingURL(),
		Results:        snap.Results,
		MissingEnabled: snap.MissingEnabled,
		MissingCount:   snap.MissingCount,
		CompareBill:    s.cfg.Source.DisplayCompareBill(),
		CompareSession: s.cfg.Source.CompareSession,
		UpdatedAt:      snap.UpdatedAt,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("render index failed", zap.Error(err))
	}
}

func (s *Server) results(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.current().Results)
}

func (s *Server) serveArtifact(path, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// #nosec G304 -- path comes from configuration.
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "not generated yet")
			return
		}
		if err != nil {
			s.logger.Error("open artifact failed", zap.String("path", path), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "artifact unavailable")
			return
		}
		defer func() { _ = f.Close() }()
		info, err := f.Stat()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "artifact unavailable")
			return
		}
		w.Header().Set("Content-Type", contentType)
		http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
	}
}

func (s *Server) missing(w http.ResponseWriter, r *http.Request) {
	path := s.cfg.Storage.MissingNamesPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		return
	}
	s.serveArtifact(path, "text/plain; charset=utf-8")(w, r)
}

func (s *Server) sourceInfo(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Server.SourceURL != "" {
		http.Redirect(w, r, s.cfg.Server.SourceURL, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(buildInfo())); err != nil {
		s.logger.Warn("source write failed", zap.Error(err))
	}
}

func (s *Server) robots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(robotsTxt)); err != nil {
		s.logger.Warn("robots write failed", zap.Error(err))
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for first update"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "updated_at": snap.UpdatedAt})
}

func buildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "build information unavailable\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "module: %s\n", info.Main.Path)
	fmt.Fprintf(&b, "version: %s\n", info.Main.Version)
	fmt.Fprintf(&b, "go: %s\n", info.GoVersion)
	for _, setting := range info.Settings {
		if strings.HasPrefix(setting.Key, "vcs.") {
			fmt.Fprintf(&b, "%s: %s\n", setting.Key, setting.Value)
		}
	}
	return b.String()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
