package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
)

type RouterConfig struct {
	Booking   *BookingHandler
	Services  *ServicesHandler
	Auth      *AuthHandler
	JWTSecret string

	// BookingRateLimit guards POST /api/appointments when set.
	BookingRateLimit httpx.Middleware
	ReadyChecks      []runtime.ReadyCheck
	MetricsHandler   http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", runtime.HealthHandler())
	r.Get("/readyz", runtime.ReadyHandler(cfg.ReadyChecks...))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	requireAdmin := RequireAdmin(cfg.JWTSecret)

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", cfg.Auth.Login)
		api.With(requireAdmin).Post("/auth/change-password", cfg.Auth.ChangePassword)

		api.Get("/services", cfg.Services.List)
		api.Group(func(admin chi.Router) {
			admin.Use(requireAdmin)
			admin.Post("/services", cfg.Services.Create)
			admin.Put("/services/{id}", cfg.Services.Update)
			admin.Delete("/services/{id}", cfg.Services.Delete)
		})

		api.Get("/appointments/availability", cfg.Booking.Availability)
		create := http.Handler(http.HandlerFunc(cfg.Booking.Create))
		if cfg.BookingRateLimit != nil {
			create = cfg.BookingRateLimit(create)
		}
		api.Method(http.MethodPost, "/appointments", create)
		api.With(requireAdmin).Get("/appointments", cfg.Booking.List)
		api.With(requireAdmin).Delete("/appointments/{id}", cfg.Booking.Delete)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
