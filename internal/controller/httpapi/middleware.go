package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_backend/internal/access"
	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/model"
)

type contextKey string

const principalKey contextKey = "principal"

// Authenticator кладёт принципала в контекст запроса
func Authenticator(verifier access.TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := access.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, logger, r, apperror.Unauthenticated())
				return
			}

			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				writeError(w, logger, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom nil если запрос не прошёл Authenticator
func PrincipalFrom(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(principalKey).(*model.Principal)
	return p
}

// requestLogger одна строка лога на запрос
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
