package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_backend/internal/access"
)

// Pinger проверка хранилища для /healthz
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter собирает REST API под /api
func NewRouter(h *Handler, verifier access.TokenVerifier, db Pinger, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			logger.Warn("Health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authenticator := Authenticator(verifier, logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/admin/login", h.adminLogin)
			r.Post("/teacher/login", h.teacherLogin)
			r.Post("/otp/verify", h.verifyOTP)
			r.With(authenticator).Post("/otp/send", h.sendOTP)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticator)

			r.Route("/lessons", func(r chi.Router) {
				r.Post("/", h.createLesson)
				r.Get("/{id}", h.getLesson)
				r.Patch("/{id}/time", h.updateLessonTime)
				r.Post("/{id}/book", h.bookStudent)
				r.Post("/{id}/transition", h.transitionLesson)
				r.Delete("/{id}", h.deleteLesson)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/", h.createPayment)
				r.Get("/{id}", h.getPayment)
				r.Patch("/{id}", h.updatePayment)
				r.Post("/{id}/cancel", h.cancelPayment)
			})

			r.Post("/histories", h.createHistory)

			r.Route("/teachers/{id}", func(r chi.Router) {
				r.Get("/lessons", h.listTeacherLessons)
				r.Get("/payments", h.listTeacherPayments)
				r.Post("/archive", h.archiveTeacher)
				r.Post("/restore", h.restoreTeacher)
				r.Put("/calendar", h.linkCalendar)
			})

			r.Route("/admins", func(r chi.Router) {
				r.Post("/", h.createAdmin)
				r.Put("/{id}/role", h.changeRole)
			})
		})
	})

	return r
}
