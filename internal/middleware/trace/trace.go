// Package trace tags every request with an id and records how it went.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"kindlecrm/internal/log"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

type ctxKey struct{}

// Observer receives one observation per finished request.
type Observer interface {
	ObserveHTTP(route, method string, status int, took time.Duration)
}

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	route     func(*http.Request) string
	observer  Observer
	events    *log.StructuredLogger
	total     atomic.Int64
}

// Options configure the trace middleware. Every field is optional.
type Options struct {
	Logger *log.Logger
	// ExtractIP resolves the client address for the access log.
	ExtractIP func(*http.Request) string
	// Route returns the low-cardinality route label of a request, such as
	// the ServeMux pattern that will serve it.
	Route    func(*http.Request) string
	Observer Observer
}

func NewMiddleware(opts Options) *Middleware {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Middleware{
		extractIP: opts.ExtractIP,
		route:     opts.Route,
		observer:  opts.Observer,
		events:    log.NewStructuredLogger(logger.WithComponent(log.ComponentTrace)),
	}
}

// Middleware returns HTTP middleware for request tracing
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.total.Add(1)

		requestID := r.Header.Get(HeaderRequestID)
		if !validRequestID(requestID) {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, requestID))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		took := time.Since(start)
		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		m.events.LogHTTPEnd(r.Context(), r, rw.statusCode, took.Milliseconds(), clientIP, requestID)

		if m.observer != nil {
			route := "other"
			if m.route != nil {
				if p := m.route(r); p != "" {
					route = p
				}
			}
			m.observer.ObserveHTTP(route, r.Method, rw.statusCode, took)
		}
	})
}

// Total returns the number of requests seen.
func (m *Middleware) Total() int64 {
	return m.total.Load()
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

// validRequestID accepts short ids made of letters, digits, '-' and '_'.
func validRequestID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestID returns the id of r, for log.Middleware.
func RequestID(r *http.Request) string {
	return GetRequestID(r.Context())
}
