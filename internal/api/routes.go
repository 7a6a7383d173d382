package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/birdnest/pkg/logger"
)

// Router is the API router
type Router struct {
	handler     *Handler
	middleware  *Middleware
	corsOrigins []string
	logger      *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(handler *Handler, corsOrigins []string, logger *logger.Logger) *Router {
	return &Router{
		handler:     handler,
		middleware:  NewMiddleware(logger),
		corsOrigins: corsOrigins,
		logger:      logger.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.corsOrigins))

	router.Route("/api/v1", func(router chi.Router) {
		// Violations
		router.Get("/violations", r.handler.GetViolations)
		router.Get("/violations/{id}/history", r.handler.GetViolationHistory)

		// Live updates
		router.Get("/ws", r.handler.HandleWebSocket)

		// Monitoring
		router.Get("/status", r.handler.GetStatus)
		router.Get("/health", r.handler.GetHealth)
	})

	// The published report file, as the presentation layer polls it
	router.Get("/birdnest.json", r.handler.ServeReportFile)

	return router
}
