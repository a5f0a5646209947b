package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"kindlecrm/internal/cache"
	"kindlecrm/internal/log"
	"kindlecrm/internal/metrics"
	"kindlecrm/internal/middleware/ratelimit"
	"kindlecrm/internal/middleware/security"
	"kindlecrm/internal/middleware/trace"
	"kindlecrm/internal/services"
	"kindlecrm/internal/session"
	appweb "kindlecrm/web"
)

// Options configure the dashboard server. Dashboard is required.
type Options struct {
	Dashboard *services.DashboardService
	Metrics   *metrics.Metrics
	Logger    *log.Logger
	// Checks are run by /readyz, keyed by dependency name.
	Checks map[string]func(context.Context) error
	// SessionCount feeds the active sessions gauge when the store can count.
	SessionCount func() int

	SessionTTL     time.Duration
	SecureCookies  bool
	MaxUploadBytes int64
	RateLimitRPM   int
}

type Server struct {
	http.Server
	templates    *template.Template
	dashboard    *services.DashboardService
	metrics      *metrics.Metrics
	logger       *log.Logger
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	checks       map[string]func(context.Context) error
	sessionCount func() int

	sessionTTL time.Duration
	secure     bool
	maxUpload  int64
	started    time.Time
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, opts Options) (*Server, error) {
	if opts.Dashboard == nil {
		return nil, errors.New("dashboard service is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = session.DefaultTTL
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	s := &Server{
		templates:    t,
		dashboard:    opts.Dashboard,
		metrics:      m,
		logger:       logger.WithComponent(log.ComponentHTTP),
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		detector:     security.NewDetector(logger),
		checks:       opts.Checks,
		sessionCount: opts.SessionCount,
		sessionTTL:   opts.SessionTTL,
		secure:       opts.SecureCookies,
		maxUpload:    opts.MaxUploadBytes,
		started:      time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /ui/summary", s.handleSummary)
	mux.HandleFunc("GET /ui/history", s.handleHistory)
	mux.HandleFunc("POST /compose", s.handleCompose)
	mux.HandleFunc("GET /ui/drafts", s.handleDrafts)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServerFS(static))))

	tracer := trace.NewMiddleware(trace.Options{
		Logger:    logger,
		ExtractIP: s.detector.ExtractClientIP,
		Route: func(r *http.Request) string {
			_, pattern := mux.Handler(r)
			return pattern
		},
		Observer: m,
	})

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.detector.Middleware(h)
	h = log.Middleware(logger, trace.RequestID)(h)
	h = tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// composing may wait on the text generation API
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// RateLimitCleaner lets a cache.Manager expire idle rate limit buckets.
func (s *Server) RateLimitCleaner() cache.Cleaner {
	return s.limiter.Cleaner()
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncRateLimited()
	s.requestLogger(r).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	msg := "Too many requests. Please wait a moment and try again."
	ErrorResponse(http.StatusTooManyRequests, msg).
		TriggerErrorNotification(msg).
		Write(w)
}

// session returns the caller's session id, issuing the cookie on first use.
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	return session.Ensure(w, r, s.sessionTTL, s.secure)
}

func (s *Server) requestLogger(r *http.Request) *log.Logger {
	return log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
}

// render executes a template into memory so a failure can still produce a
// clean error response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) ([]byte, bool) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.requestLogger(r).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			"template", name,
			log.FieldOperation, log.OpRender,
			log.FieldErrorType, log.ErrorTypeInternal)
		InternalServerError("The page could not be rendered.").Write(w)
		return nil, false
	}
	return buf.Bytes(), true
}

// writeError renders err as an error fragment with the matching status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	logger := s.requestLogger(r)
	if status >= http.StatusInternalServerError {
		fields := log.NewFields()
		fields[log.FieldStatusCode] = status
		fields[log.FieldPath] = r.URL.Path
		errorType := log.ErrorTypeInternal
		if status == http.StatusBadGateway {
			errorType = log.ErrorTypeComposition
		}
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Request failed", err,
			log.ComponentHTTP, log.OpRequest, errorType, fields)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", log.FieldError, err, log.FieldStatusCode, status, log.FieldPath, r.URL.Path)
	}
	ErrorResponse(status, msg).
		TriggerErrorNotification(msg).
		Write(w)
}
