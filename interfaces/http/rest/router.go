package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"gentree/application/commands/bus"
	"gentree/application/ports"
	"gentree/application/services"
	"gentree/infrastructure/config"
	"gentree/interfaces/http/rest/handlers"
	"gentree/interfaces/http/rest/middleware"
	"gentree/pkg/auth"
	"gentree/pkg/common"
	pkgerrors "gentree/pkg/errors"
	"gentree/pkg/observability"
)

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	tree       *services.TreeService
	views      *services.ViewStateService
	photos     ports.PhotoStore
	collector  *observability.Collector
	validator  *auth.JWTValidator
	cfg        *config.Config
	logger     *zap.Logger
}

// NewRouter creates a new router instance. collector and validator may be
// nil, which disables /metrics and authentication respectively.
func NewRouter(
	commandBus *bus.CommandBus,
	tree *services.TreeService,
	views *services.ViewStateService,
	photos ports.PhotoStore,
	collector *observability.Collector,
	validator *auth.JWTValidator,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		tree:       tree,
		views:      views,
		photos:     photos,
		collector:  collector,
		validator:  validator,
		cfg:        cfg,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(rt.logger))
	router.Use(pkgerrors.NewErrorHandler(rt.logger, rt.cfg.IsDevelopment()).Middleware)
	if rt.metricsEnabled() {
		router.Use(middleware.Metrics(rt.collector))
	}

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
			AllowCredentials: rt.validator != nil,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metricsEnabled() {
		router.Handle("/metrics", rt.collector.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if rt.validator != nil {
			r.Use(middleware.Authenticate(rt.validator, rt.logger))
		}

		r.Route("/persons", func(r chi.Router) {
			personHandler := handlers.NewPersonHandler(rt.commandBus, rt.tree, rt.photos, rt.logger)
			r.Get("/", personHandler.ListPersons)
			r.Post("/", personHandler.CreatePerson)
			r.Get("/{id}", personHandler.GetPerson)
			r.Put("/{id}", personHandler.UpdatePerson)
			r.Delete("/{id}", personHandler.DeletePerson)
			r.Get("/{id}/children", personHandler.GetChildren)
			r.Get("/{id}/parents", personHandler.GetParents)
			r.Get("/{id}/siblings", personHandler.GetSiblings)
			r.Put("/{id}/relations", personHandler.EditRelations)
			r.Post("/{id}/photo", personHandler.AttachPhoto)
		})

		r.Route("/relationships", func(r chi.Router) {
			relHandler := handlers.NewRelationshipHandler(rt.commandBus, rt.logger)
			r.Post("/parent-child", relHandler.LinkParentChild)
			r.Delete("/parent-child", relHandler.UnlinkParentChild)
			r.Post("/spouses", relHandler.LinkSpouses)
			r.Delete("/spouses", relHandler.UnlinkSpouses)
		})

		r.Route("/tree", func(r chi.Router) {
			treeHandler := handlers.NewTreeHandler(rt.commandBus, rt.tree, rt.logger)
			r.Get("/", treeHandler.GetTree)
			r.Get("/roots", treeHandler.GetRoots)
			r.Put("/root", treeHandler.SetRoot)
			r.Get("/edges", treeHandler.GetEdges)
			r.Get("/stats", treeHandler.GetStats)
			r.Get("/export", treeHandler.Export)
			r.Post("/import", treeHandler.Import)
			r.Get("/placement", treeHandler.GetPlacement)
			r.Put("/positions/{id}", treeHandler.SetPosition)
			r.Put("/offsets/{id}", treeHandler.SetOffset)
		})

		viewHandler := handlers.NewViewHandler(rt.commandBus, rt.views, rt.logger)
		r.Get("/view", viewHandler.GetView)
		r.Put("/view", viewHandler.UpdateView)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.RespondError(w, http.StatusNotFound, common.StandardErrorCodes.NotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		common.RespondError(w, http.StatusMethodNotAllowed, common.StandardErrorCodes.BadRequest, "method not allowed")
	})

	return router
}

func (rt *Router) metricsEnabled() bool {
	return rt.collector != nil && rt.cfg.EnableMetrics
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck answers 503 until the initial tree load finished.
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if !rt.tree.IsReady() {
		common.RespondError(w, http.StatusServiceUnavailable, common.StandardErrorCodes.ServiceUnavailable, "tree is loading")
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
