package web

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds the admin credentials. With an empty AdminUser the
// /admin routes are not mounted.
type RouterConfig struct {
	AdminUser     string
	AdminPassword string
}

func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger)

	r.Get("/health", HealthCheck)
	r.Get("/trainings", h.ListTrainings)
	r.Post("/trainings/{id}/registrations", h.Register)
	r.Get("/cancel/{token}", h.CancelByToken)

	if cfg.AdminUser != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(chimiddleware.BasicAuth("trainingreg admin", map[string]string{cfg.AdminUser: cfg.AdminPassword}))

			r.Post("/trainings", h.CreateTraining)
			r.Get("/trainings/{id}", h.TrainingDetail)
			r.Delete("/trainings/{id}", h.DeleteTraining)
			r.Put("/trainings/{id}/capacity", h.UpdateCapacity)
			r.Post("/trainings/{id}/registrations", h.AdminAddRegistration)
			r.Delete("/registrations/{id}", h.AdminKick)
		})
	}
	return r
}

// Logger writes one access log line per request.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Printf("%s %s %d %s [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Microsecond), chimiddleware.GetReqID(r.Context()))
	})
}
