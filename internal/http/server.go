// Package http is the JSON view server: it exposes the computed insights
// (spend series, merchant tables, narratives, budget performance) and the
// budget target editor over a small API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	applog "pocketsight/internal/log"
	"pocketsight/internal/middleware/ratelimit"
	"pocketsight/internal/middleware/security"
	"pocketsight/internal/middleware/trace"
)

type Server struct {
	http.Server

	api      InsightAPI
	detector *security.Detector
	limiter  *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, api InsightAPI) *Server {
	mux := http.NewServeMux()

	s := &Server{
		api:      api,
		detector: security.NewDetector(),
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/insights/spend-series", s.handleSpendSeries)
	mux.HandleFunc("/api/insights/merchants", s.handleMerchants)
	mux.HandleFunc("/api/insights/narrative", s.handleNarrative)
	mux.HandleFunc("/api/budgets/performance", s.handlePerformance)
	mux.HandleFunc("/api/budgets/targets", s.handleTargets)
	mux.HandleFunc("/api/budgets/export", s.handleExport)
	mux.HandleFunc("/api/preferences/merchants-sort", s.handleSortPreference)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	traced := trace.NewMiddleware(s.detector.ExtractClientIP)
	requestLogger := applog.Middleware(applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentHTTP,
	}))

	handler := traced.Middleware(headers.Middleware(requestLogger(s.guard(mux))))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// guard applies suspicious-request detection and write rate limiting before
// the router.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := s.detector.ExtractClientIP(r)

		// Detection is advisory: scanners get logged and counted, legit
		// API clients (curl, scripts) still get answers.
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request",
				"client_ip", clientIP,
				"method", r.Method,
				"path", r.URL.Path)
		}

		// Writes are rate limited; reads stay cheap through the caches.
		if r.Method != http.MethodGet && !s.limiter.Allow(clientIP) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", clientIP,
				"method", r.Method,
				"path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
