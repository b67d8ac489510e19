package server

import (
	"log/slog"
	"net/http"

	"eda-dashboard/internal/handlers"
	"eda-dashboard/internal/models"
	"eda-dashboard/internal/services"
)

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(store *services.Store, defaults models.Options, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(store, defaults, logger),
		sseHandlers: handlers.NewSSEHandlers(store, defaults, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard shell
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// Dataset lifecycle
	s.mux.HandleFunc("POST /api/datasets", s.apiHandlers.HandleUpload)
	s.mux.HandleFunc("GET /api/datasets", s.apiHandlers.HandleListDatasets)

	// View catalogue
	s.mux.HandleFunc("GET /api/datasets/{id}/report", s.apiHandlers.HandleReport)
	s.mux.HandleFunc("GET /api/datasets/{id}/overview", s.apiHandlers.HandleOverview)
	s.mux.HandleFunc("GET /api/datasets/{id}/kpis", s.apiHandlers.HandleKPIs)
	s.mux.HandleFunc("GET /api/datasets/{id}/trend", s.apiHandlers.HandleTrend)
	s.mux.HandleFunc("GET /api/datasets/{id}/top-products", s.apiHandlers.HandleTopProducts)
	s.mux.HandleFunc("GET /api/datasets/{id}/categories", s.apiHandlers.HandleCategories)
	s.mux.HandleFunc("GET /api/datasets/{id}/payments", s.apiHandlers.HandlePayments)
	s.mux.HandleFunc("GET /api/datasets/{id}/regions", s.apiHandlers.HandleRegions)
	s.mux.HandleFunc("GET /api/datasets/{id}/correlation", s.apiHandlers.HandleCorrelation)
	s.mux.HandleFunc("GET /api/datasets/{id}/customers", s.apiHandlers.HandleTopCustomers)
	s.mux.HandleFunc("GET /api/datasets/{id}/orders-monthly", s.apiHandlers.HandleOrdersMonthly)
	s.mux.HandleFunc("GET /api/datasets/{id}/countries", s.apiHandlers.HandleCountries)
	s.mux.HandleFunc("GET /api/datasets/{id}/distributions", s.apiHandlers.HandleDistributions)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/datasets/{id}/kpis", s.sseHandlers.HandleKPIs)
	s.mux.HandleFunc("GET /sse/datasets/{id}/trend", s.sseHandlers.HandleTrend)
	s.mux.HandleFunc("GET /sse/datasets/{id}/top-products", s.sseHandlers.HandleTopProducts)
	s.mux.HandleFunc("GET /sse/datasets/{id}/countries", s.sseHandlers.HandleCountries)
	s.mux.HandleFunc("GET /sse/datasets/{id}/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
