package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/signalhaus/signalhaus/internal/ratelimit"
)

// Server is the signalhaus HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Config holds all dependencies and settings for creating a Server.
// Optional fields (nil-safe): Limiter, Cache, Index.
type Config struct {
	// Required dependencies.
	Store  Store
	Ingest Ingestor
	Search SearchService
	Deals  DealService
	Logger *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter *ratelimit.Limiter
	Cache   QueryCache
	Index   VectorAdmin

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	RateLimitPerMinute  int
	AllowClear          bool
}

// New creates a new HTTP server with all routes configured.
func New(cfg Config) *Server {
	h := newHandlers(cfg)

	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}
	perMinute := cfg.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 120
	}
	writeRL := ratelimit.Middleware(cfg.Limiter, ratelimit.Rule{
		Prefix: "write", Limit: perMinute / 2, Window: time.Minute,
	}, ratelimit.IPKeyFunc, reqIDFunc)
	queryRL := ratelimit.Middleware(cfg.Limiter, ratelimit.Rule{
		Prefix: "query", Limit: perMinute, Window: time.Minute,
	}, ratelimit.IPKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Acquisition.
	mux.Handle("POST /ingest", writeRL(http.HandlerFunc(h.handleIngest)))
	mux.Handle("POST /import", writeRL(http.HandlerFunc(h.handleImport)))

	// Entity lookup and analytics.
	mux.Handle("GET /companies", queryRL(http.HandlerFunc(h.handleCompanies)))
	mux.Handle("GET /companies/{id}", queryRL(http.HandlerFunc(h.handleGetCompany)))
	mux.Handle("POST /companies/{id}/meetings", writeRL(http.HandlerFunc(h.handleAddMeeting)))
	mux.Handle("GET /companies/by-industry", queryRL(http.HandlerFunc(h.handleCompaniesByIndustry)))
	mux.Handle("GET /companies/by-location", queryRL(http.HandlerFunc(h.handleCompaniesByLocation)))
	mux.Handle("GET /people", queryRL(http.HandlerFunc(h.handlePeople)))
	mux.Handle("GET /people/by-department", queryRL(http.HandlerFunc(h.handlePeopleByDepartment)))
	mux.Handle("GET /analytics/industries", queryRL(http.HandlerFunc(h.handleIndustryAnalytics)))
	mux.Handle("GET /analytics/departments", queryRL(http.HandlerFunc(h.handleDepartmentAnalytics)))

	// Search.
	mux.Handle("GET /search", queryRL(http.HandlerFunc(h.handleSearch)))
	mux.Handle("GET /search/hybrid", queryRL(http.HandlerFunc(h.handleHybridSearch)))

	// Signals.
	mux.Handle("POST /signals/detect", writeRL(http.HandlerFunc(h.handleDetect)))
	mux.Handle("POST /signals/{id}/outcome", writeRL(http.HandlerFunc(h.handleOutcome)))
	mux.Handle("GET /signals", queryRL(http.HandlerFunc(h.handleListSignals)))

	// Deal qualification.
	mux.Handle("POST /deals", writeRL(http.HandlerFunc(h.handleCreateDeal)))
	mux.Handle("GET /deals/{id}/analysis", queryRL(http.HandlerFunc(h.handleDealAnalysis)))
	mux.Handle("POST /deals/{id}/personas", writeRL(http.HandlerFunc(h.handleAddPersona)))
	mux.Handle("POST /deals/{id}/personas/{pid}/engagement", writeRL(http.HandlerFunc(h.handleEngagement)))
	mux.Handle("POST /deals/{id}/bant", writeRL(http.HandlerFunc(h.handleBANT)))
	mux.Handle("POST /deals/{id}/spin", writeRL(http.HandlerFunc(h.handleSPIN)))
	mux.Handle("POST /deals/{id}/paranoid", writeRL(http.HandlerFunc(h.handleParanoid)))
	mux.Handle("POST /deals/{id}/commit-gate", writeRL(http.HandlerFunc(h.handleCommitGate)))
	mux.Handle("POST /deals/{id}/stage", writeRL(http.HandlerFunc(h.handleStage)))
	mux.Handle("POST /deals/{id}/risks", writeRL(http.HandlerFunc(h.handleAddRisk)))
	mux.Handle("POST /deals/{id}/risks/{rid}/mitigations", writeRL(http.HandlerFunc(h.handleAddMitigation)))

	// Development only; disabled unless configured.
	mux.Handle("POST /clear", http.HandlerFunc(h.handleClear))

	// Health (no rate limit).
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
