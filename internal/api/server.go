package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sheetflow/app"
	"sheetflow/domain/core"
)

// Server is the JSON HTTP surface over workspaces and stored datasets
type Server struct {
	router        *chi.Mux
	workspaces    *app.WorkspaceManager
	datasets      *app.DatasetService
	defaultUserID core.ID
}

// NewServer creates a server with its routes registered
func NewServer(workspaces *app.WorkspaceManager, datasets *app.DatasetService, defaultUserID core.ID) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		workspaces:    workspaces,
		datasets:      datasets,
		defaultUserID: defaultUserID,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures HTTP middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api", func(r chi.Router) {
		// Source browsing
		r.Get("/spreadsheets", s.handleListSpreadsheets)
		r.Get("/spreadsheets/{spreadsheetID}/tabs", s.handleListTabs)

		// Import workspaces
		r.Get("/workspaces", s.handleListWorkspaces)
		r.Post("/workspaces", s.handleCreateWorkspace)
		r.Route("/workspaces/{workspaceID}", func(r chi.Router) {
			r.Get("/", s.handleGetWorkspace)
			r.Delete("/", s.handleDeleteWorkspace)
			r.Post("/preview", s.handlePreview)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/save", s.handleSave)
			r.Post("/retry", s.handleRetry)
			r.Put("/columns/{column}/type", s.handleOverrideType)
			r.Post("/columns/delete", s.handleRemoveColumns)
			r.Put("/cells", s.handleSetCell)
			r.Post("/rows/delete", s.handleRemoveRows)
			r.Put("/grouping", s.handleSetGrouping)
			r.Post("/groups/{groupID}/collapse", s.handleCollapse)
			r.Post("/groups/{groupID}/expand", s.handleExpand)
		})

		// Stored datasets
		r.Get("/datasets", s.handleListDatasets)
		r.Get("/datasets/{datasetID}", s.handleGetDataset)
		r.Get("/datasets/{datasetID}/rows", s.handleQueryRows)
		r.Delete("/datasets/{datasetID}", s.handleDeleteDataset)
	})
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[API] listening on :%s", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Printf("[API] shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
