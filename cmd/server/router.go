package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phrazzld/docflow/internal/api"
	apiMiddleware "github.com/phrazzld/docflow/internal/api/middleware"
	"github.com/phrazzld/docflow/internal/api/shared"
)

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(middleware.Recoverer)

	taskHandler := api.NewTaskHandler(app.dispatcher, app.registry, app.logger)
	documentHandler := api.NewDocumentHandler(
		app.documents,
		app.search,
		app.archives,
		app.config.Server.MaxUploadBytes,
		app.logger,
	)

	r.Route("/api/files", func(r chi.Router) {
		taskHandler.RegisterRoutes(r)
		documentHandler.RegisterRoutes(r)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	if app.config.Metrics.Enabled {
		r.Handle(app.config.Metrics.Path, promhttp.Handler())
	}

	return r
}
