// Package api serves the ECG analysis HTTP interface: stateless analysis of
// uploaded recordings plus per-session playback and visualization.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/ecgscope/internal/classify"
	"github.com/banshee-data/ecgscope/internal/config"
	"github.com/banshee-data/ecgscope/internal/db"
	"github.com/banshee-data/ecgscope/internal/ecgclient"
	"github.com/banshee-data/ecgscope/internal/httputil"
	"github.com/banshee-data/ecgscope/internal/monitoring"
	"github.com/banshee-data/ecgscope/internal/session"
	"github.com/banshee-data/ecgscope/internal/timeutil"
	"github.com/banshee-data/ecgscope/internal/waveform"
)

const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxJSONBody bounds JSON request bodies other than uploads.
const maxJSONBody = 64 << 20

var logger = monitoring.Component("api")

// Server holds the collaborators behind the HTTP handlers. Store and
// Classifier are optional; without a remote classifier the built-in rules
// label recordings.
type Server struct {
	cfg        *config.AnalyzerConfig
	clock      timeutil.Clock
	sessions   *session.Manager
	store      *db.DB
	classifier *ecgclient.Client
	rules      *classify.Classifier
	chartHost  string
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables persistence of recordings, runs and classifications.
func WithStore(store *db.DB) Option {
	return func(s *Server) { s.store = store }
}

// WithClassifier sets the remote classification client.
func WithClassifier(c *ecgclient.Client) Option {
	return func(s *Server) { s.classifier = c }
}

// WithClock overrides the clock used for sessions and timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithChartAssets sets the host serving echarts assets for debug charts.
func WithChartAssets(host string) Option {
	return func(s *Server) { s.chartHost = host }
}

// NewServer builds a server. A nil config uses built-in defaults.
func NewServer(cfg *config.AnalyzerConfig, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.EmptyConfig()
	}
	s := &Server{cfg: cfg, clock: timeutil.RealClock{}}
	for _, o := range opts {
		o(s)
	}
	s.sessions = session.NewManager(s.clock, cfg)
	s.rules = classify.New(cfg)
	return s
}

// Sessions exposes the session manager.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Close stops every session.
func (s *Server) Close() {
	s.sessions.Close()
}

// ServeMux registers every route.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/upload-ecg", s.handleUpload)
	mux.HandleFunc("POST /api/analyze-ecg", s.handleAnalyze)
	mux.HandleFunc("POST /api/classify-ecg", s.handleClassify)

	mux.HandleFunc("GET /api/sessions", s.listSessions)
	mux.HandleFunc("POST /api/sessions", s.createSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.getSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/load", s.loadSession)
	mux.HandleFunc("POST /api/sessions/{id}/playback", s.playbackSession)
	mux.HandleFunc("POST /api/sessions/{id}/view", s.viewSession)
	mux.HandleFunc("GET /api/sessions/{id}/frame", s.frameSession)
	mux.HandleFunc("POST /api/sessions/{id}/analyze", s.analyzeSession)
	mux.HandleFunc("POST /api/sessions/{id}/classify", s.classifySession)
	mux.HandleFunc("GET /api/sessions/{id}/chart", s.chartSession)

	mux.HandleFunc("GET /api/recordings", s.listRecordings)
	mux.HandleFunc("GET /api/recordings/{id}", s.getRecording)
	return mux
}

// Handler returns the mux wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.ServeMux())
}

// statusFor maps error classes to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, waveform.ErrInvalidInput), errors.Is(err, httputil.ErrBadBody):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ecgclient.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, ecgclient.ErrUpstreamFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		logger.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	httputil.WriteJSONError(w, status, err.Error())
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
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

// LoggingMiddleware logs method, path, status and duration.
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
