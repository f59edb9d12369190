package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Kamalbura/lms-sub001/internal/handlers"
	"github.com/Kamalbura/lms-sub001/internal/middleware"
)

type Handlers struct {
	Health     *handlers.HealthHandler
	OfficeHour *handlers.OfficeHourHandler
	Message    *handlers.MessageHandler
	Realtime   *handlers.RealtimeHandler
	WebSocket  http.HandlerFunc
}

func New(jwtAuth *middleware.JWTAuth, h Handlers, frontendURL string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Office-hour mutation limiter (30 req/min per user)
	mutationLimiter := middleware.NewRateLimiter(30, time.Minute)

	r.Get("/health", h.Health.Check)

	r.Route("/api/v1", func(r chi.Router) {

		// ──── WebSocket (authenticates its own ?token=) ────
		r.Get("/ws", h.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Get("/realtime/stats", h.Realtime.Stats)

			// ──── Office Hours ────
			r.Route("/office-hours", func(r chi.Router) {
				r.Get("/", h.OfficeHour.List)
				r.Get("/{id}", h.OfficeHour.Get)
				r.Get("/{id}/quality", h.OfficeHour.QualityReport)

				// Samples arrive every few seconds per participant and are not limited.
				r.Post("/{id}/quality", h.OfficeHour.IngestQuality)

				r.Group(func(r chi.Router) {
					r.Use(mutationLimiter.Middleware)
					r.Post("/", h.OfficeHour.Schedule)
					r.Put("/{id}", h.OfficeHour.Update)
					r.Post("/{id}/start", h.OfficeHour.Start)
					r.Post("/{id}/complete", h.OfficeHour.Complete)
					r.Post("/{id}/cancel", h.OfficeHour.Cancel)
					r.Post("/{id}/feedback", h.OfficeHour.SubmitFeedback)
					r.Post("/{id}/notes", h.OfficeHour.AddNote)
					r.Post("/{id}/events", h.OfficeHour.RecordEvent)
					r.Post("/{id}/quality/finalize", h.OfficeHour.FinalizeQuality)
				})
			})

			// ──── Message history ────
			r.Route("/messages", func(r chi.Router) {
				r.Get("/direct/{userId}", h.Message.DirectConversation)
				r.Get("/unread", h.Message.Unread)
			})
		})
	})

	return r
}
