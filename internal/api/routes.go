package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/llyrli/working-mode/internal/config"
	"github.com/llyrli/working-mode/internal/scheduler"
	"github.com/llyrli/working-mode/internal/tracker"
)

func NewRouter(cfg *config.Config, controller *tracker.Controller, sched *scheduler.Scheduler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)

	handlers := NewHandlers(controller, sched)
	limiter := NewRateLimiter(120, time.Minute)

	// Public endpoints
	r.Get("/health", handlers.Health)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg))
		r.Use(RateLimitMiddleware(limiter))
		r.Use(JSONContentType)

		r.Get("/stats/today", handlers.TodayStats)
		r.Get("/stats/range", handlers.StatsRangeFine)
		r.Get("/stats/pairs", handlers.TopDomainPairs)
		r.Get("/timeline", handlers.Timeline)
		r.Post("/reclassify", handlers.Reclassify)
		r.Post("/events", handlers.Event)

		r.Get("/prefs", handlers.GetPrefs)
		r.Put("/prefs", handlers.SetPrefs)
		r.Get("/alarm", handlers.GetRestAlarm)
		r.Put("/alarm", handlers.SetRestAlarm)
		r.Post("/category", handlers.SetManualCategory)
		r.Put("/colors/{name}", handlers.SetCategoryColor)
		r.Post("/modal-action", handlers.RestModalAction)

		r.Get("/settings", handlers.GetSettings)
		r.Put("/settings", handlers.SetSettings)

		r.Delete("/data", handlers.ClearAllData)
	})

	return r
}
