package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appMiddleware "github.com/eventsphere/backend/internal/middleware"
	"github.com/eventsphere/backend/internal/services"
)

type RouterConfig struct {
	Actions        *services.ModerationActions
	Authenticate   func(http.Handler) http.Handler
	AuthHandler    *AuthHandler
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter mounts the moderation API. AuthHandler is nil unless operator
// logins are enabled.
func NewRouter(cfg RouterConfig) http.Handler {
	moderationHandler := NewModerationHandler(cfg.Actions.Moderation, cfg.RequestTimeout)
	reportHandler := NewReportHandler(cfg.Actions.Reports, cfg.RequestTimeout)
	settingsHandler := NewSettingsHandler(cfg.Actions.Settings, cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.AuthHandler != nil {
			r.Post("/auth/login", cfg.AuthHandler.Login)
		}

		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticate)

			r.Post("/reports", reportHandler.FileReport)
			r.Post("/experiences/{experienceId}/reports", reportHandler.ReportExperience)

			r.Route("/admin", func(r chi.Router) {
				r.Use(appMiddleware.RequireAdmin(cfg.Actions.Moderation.IsAdminActor))

				r.Get("/users", moderationHandler.ListUsers)
				r.Route("/users/{userId}", func(r chi.Router) {
					r.Get("/", moderationHandler.GetUser)
					r.Post("/ban", moderationHandler.BanUser)
					r.Post("/unban", moderationHandler.UnbanUser)
					r.Post("/admin", moderationHandler.MakeAdmin)
					r.Delete("/admin", moderationHandler.RemoveAdmin)
				})

				r.Post("/moderation/sweep", moderationHandler.RunSweep)

				r.Get("/settings/moderation", settingsHandler.GetModeration)
				r.Put("/settings/moderation", settingsHandler.UpdateModeration)
			})
		})
	})

	return r
}
