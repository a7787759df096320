package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskboard-scheduler/internal/api"
	apiMiddleware "github.com/phrazzld/taskboard-scheduler/internal/api/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter registers the operator routes, health and metrics.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(middleware.Recoverer)

	admin := api.NewAdminHandler(app.scheduler, app.service, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/admin", func(r chi.Router) {
		r.Use(apiMiddleware.RateLimit(app.config.API.AdminRatePerSecond, app.config.API.AdminBurst))
		r.Use(authMiddleware.Authenticate)
		r.Use(apiMiddleware.RequireAdmin)

		r.Post("/assign-tasks-now", admin.AssignTasksNow)
		r.Post("/check-completed-tasks-now", admin.CheckCompletedTasksNow)
		r.Get("/scheduler-status", admin.SchedulerStatus)
		r.Post("/assign-tasks-to-user/{id}", admin.AssignTasksToUser)
		r.Get("/premium-users-stats", admin.PremiumUsersStats)
		r.Get("/premium-users", admin.PremiumUsers)
	})

	r.Get("/health", api.NewHealthHandler(app.db, app.scheduler).Health)
	r.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{Registry: app.registry}))

	return r
}
