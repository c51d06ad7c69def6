// Package api provides the HTTP server for the loyalty engine.
// It exposes the ledger operations to the order/service workflow, the
// read-only query surface, and the admin configuration surface.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/perkly/perkly/internal/app/ledger"
	"github.com/perkly/perkly/internal/app/reporting"
	"github.com/perkly/perkly/internal/app/rules"
	"github.com/perkly/perkly/internal/app/tiers"
	"github.com/perkly/perkly/internal/domain"
	"github.com/perkly/perkly/internal/infra/observability"
)

// Server is the loyalty HTTP API server.
type Server struct {
	engine         *ledger.Engine
	rules          *rules.Service
	tiers          *tiers.Service
	reports        *reporting.Service
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(engine *ledger.Engine, ruleSvc *rules.Service, tierSvc *tiers.Service, reports *reporting.Service) *Server {
	return &Server{engine: engine, rules: ruleSvc, tiers: tierSvc, reports: reports}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	// Ledger operations (order/service workflow surface)
	r.Route("/v1/loyalty", func(r chi.Router) {
		r.Post("/earn", s.handleEarn)
		r.Post("/redeem", s.handleRedeem)
		r.Post("/redemption-preview", s.handleRedemptionPreview)
		r.Post("/adjust", s.handleAdjust)
	})

	// Query/reporting surface (read-only)
	r.Route("/v1/members", func(r chi.Router) {
		r.Get("/", s.handleListMembers)
		r.Get("/{customerID}", s.handleGetMember)
		r.Get("/{customerID}/transactions", s.handleTransactionHistory)
	})
	r.Get("/v1/stats", s.handleStats)

	// Admin configuration surface (authorization is the caller's concern)
	r.Route("/v1/admin", func(r chi.Router) {
		r.Get("/rules", s.handleListRules)
		r.Post("/rules", s.handleCreateRules)
		r.Get("/tiers", s.handleListTiers)
		r.Post("/tiers", s.handleCreateTier)
		r.Put("/tiers/{code}", s.handleUpdateTier)
	})

	// Prometheus metrics endpoint (opt-in)
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// metricsMiddleware records request latency per route.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		observability.ObserveRequest(route, strconv.Itoa(ww.Status()), time.Since(start))
	})
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"kind":    kind,
			"message": msg,
		},
	})
}

// writeDomainError maps domain errors to status codes and error kinds.
func writeDomainError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	writeError(w, status, kind, err.Error())
}

// pageFromQuery reads offset/limit query parameters.
func pageFromQuery(r *http.Request) domain.Page {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return domain.Page{Offset: offset, Limit: limit}
}
