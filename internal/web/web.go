package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"choircal/internal/board"
	"choircal/internal/config"
	"choircal/internal/ics"
	appLog "choircal/internal/log"
	"choircal/internal/schedule"
)

// Server exposes the schedule board as JSON, HTML and an iCalendar feed.
type Server struct {
	cfg      *config.Config
	svc      *board.Service
	gatherer prometheus.Gatherer
	now      func() time.Time
	mux      *http.ServeMux
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithGatherer exposes g on /metrics. Without it /metrics is not served.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, svc *board.Service, opts ...Option) *Server {
	s := &Server{
		cfg: cfg,
		svc: svc,
		now: time.Now,
		mux: http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="choircal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves s on cfg.Listen until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/board", s.handleBoard)
	s.mux.HandleFunc("GET /api/schedule.ics", s.handleICS)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /board", s.handleBoardPage)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/board", http.StatusFound)
	})
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleBoard returns the filtered board.
//
// GET /api/board?small=1&period=12月&period=1月&q=brahms&performance=1&sort=date
//
// The response is always 200; an unreadable source is reported through the
// board's unavailable flag and warning.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	sel := ParseSelection(r)
	b := s.svc.Board(r.Context(), sel, s.now())
	writeJSON(w, http.StatusOK, b)
}

// handleICS exports every dated row the viewer's role can see.
//
// GET /api/schedule.ics?small=1
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	ds, err := s.svc.Dataset(r.Context())
	if err != nil {
		appLog.Error("ics export: source unavailable", err)
		writeError(w, http.StatusServiceUnavailable, board.UnavailableWarning)
		return
	}

	sel := ParseSelection(r)
	records := schedule.Apply(ds.Records, sel.Predicates()...)
	body := ics.Export(records, ics.ExportConfig{
		SourceID: s.cfg.Source.ID,
		Name:     "choircal " + s.cfg.Source.ID,
		Location: s.cfg.Location(),
		Now:      s.now(),
	})

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="schedule.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

type refreshResponse struct {
	Records      int `json:"records"`
	Skipped      int `json:"skipped"`
	Dropped      int `json:"dropped"`
	MusicianOnly int `json:"musician_only"`
	Undated      int `json:"undated"`
}

// handleRefresh drops the cached export and ingests it again.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ds, err := s.svc.Refresh(r.Context())
	if err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusServiceUnavailable, board.UnavailableWarning)
		return
	}
	appLog.Info("manual refresh", "records", len(ds.Records))
	writeJSON(w, http.StatusOK, refreshResponse{
		Records:      len(ds.Records),
		Skipped:      ds.Skipped,
		Dropped:      ds.Dropped,
		MusicianOnly: ds.MusicianOnly,
		Undated:      ds.Undated,
	})
}

// ParseSelection reads the board filters from the query string.
func ParseSelection(r *http.Request) schedule.Selection {
	q := r.URL.Query()

	var periods []string
	for _, p := range q["period"] {
		if p = strings.TrimSpace(p); p != "" {
			periods = append(periods, p)
		}
	}

	return schedule.Selection{
		ShowSmall:       parseBoolDefault(q.Get("small"), false),
		Periods:         periods,
		Keyword:         strings.TrimSpace(q.Get("q")),
		PerformanceOnly: parseBoolDefault(q.Get("performance"), false),
		SortByDate:      q.Get("sort") == "date",
	}
}

func parseBoolDefault(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
