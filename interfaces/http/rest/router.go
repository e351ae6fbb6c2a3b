// Package rest wires the HTTP surface: REST ingestion endpoints, the
// MCP transports and health checks.
package rest

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"contexthub-backend/application/services"
	"contexthub-backend/interfaces/http/rest/handlers"
	"contexthub-backend/interfaces/http/rest/middleware"
	"contexthub-backend/interfaces/mcp"
	pkgerrors "contexthub-backend/pkg/errors"
)

// Router creates and configures the HTTP router
type Router struct {
	store      *services.ContextStore
	mcpServer  *mcp.Server
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
	enableCORS bool
}

// NewRouter creates a new router instance
func NewRouter(
	store *services.ContextStore,
	mcpServer *mcp.Server,
	errHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
	enableCORS bool,
) *Router {
	return &Router{
		store:      store,
		mcpServer:  mcpServer,
		errors:     errHandler,
		logger:     logger,
		enableCORS: enableCORS,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Health checks
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	// MCP protocol surface
	router.Route("/mcp", func(r chi.Router) {
		r.Get("/sse", rt.mcpServer.SSEHandler())
		r.Get("/ws", rt.mcpServer.WebSocketHandler())
		r.Get("/tools", rt.mcpServer.ToolsHandler())
		r.Post("/tools/invoke", rt.invokeTool)
		r.Post("/resources", rt.createResource)
		r.Get("/resources", rt.getResource)
	})

	// REST ingestion and query endpoints
	router.Route("/api/v1", func(r chi.Router) {
		contextHandler := handlers.NewContextHandler(rt.store, rt.errors, rt.logger)
		relationshipHandler := handlers.NewRelationshipHandler(rt.store, rt.errors, rt.logger)

		r.Route("/contexts", func(r chi.Router) {
			r.Post("/", contextHandler.StoreContext)
			r.Get("/{entryID}", contextHandler.GetContext)
			r.Get("/{entryID}/related", relationshipHandler.GetRelated)
		})

		r.Post("/artifacts", contextHandler.StoreArtifact)
		r.Post("/summaries", contextHandler.CreateSummary)
		r.Post("/relationships", relationshipHandler.CreateRelationship)

		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/contexts", contextHandler.ListProjectContexts)
			r.Get("/search", contextHandler.SearchContexts)
			r.Get("/artifacts/{name}", contextHandler.GetArtifact)
			r.Get("/artifacts/{name}/history", contextHandler.GetArtifactHistory)
		})
	})

	return router
}

// invokeTool handles POST /mcp/tools/invoke for clients that do not
// hold a WebSocket connection
func (rt *Router) invokeTool(w http.ResponseWriter, r *http.Request) {
	var req mcp.ToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.errors.Handle(w, r, pkgerrors.NewInvalidArgumentError("malformed tool request"))
		return
	}

	resp := rt.mcpServer.InvokeTool(r.Context(), &req)

	status := http.StatusOK
	if resp.Status == mcp.StatusError && resp.ErrorType != "" {
		switch pkgerrors.ErrorType(resp.ErrorType) {
		case pkgerrors.ErrorTypeNotFound:
			status = http.StatusNotFound
		case pkgerrors.ErrorTypeInvalidArgument:
			status = http.StatusBadRequest
		case pkgerrors.ErrorTypeRateLimit:
			status = http.StatusTooManyRequests
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		rt.logger.Warn("Failed to encode tool response", zap.Error(err))
	}
}

func (rt *Router) createResource(w http.ResponseWriter, r *http.Request) {
	var resource mcp.Resource
	if err := json.NewDecoder(r.Body).Decode(&resource); err != nil {
		rt.errors.Handle(w, r, pkgerrors.NewInvalidArgumentError("malformed resource"))
		return
	}
	if err := rt.mcpServer.CreateResource(&resource); err != nil {
		rt.errors.Handle(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resource)
}

func (rt *Router) getResource(w http.ResponseWriter, r *http.Request) {
	uri, err := url.QueryUnescape(r.URL.Query().Get("uri"))
	if err != nil || uri == "" {
		rt.errors.Handle(w, r, pkgerrors.NewInvalidArgumentError("uri query parameter is required"))
		return
	}
	resource, err := rt.mcpServer.GetResource(uri)
	if err != nil {
		rt.errors.Handle(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resource)
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready","connections":` + strconv.Itoa(rt.mcpServer.Connections().Count()) + `}`))
}
