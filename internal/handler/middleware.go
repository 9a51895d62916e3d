package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const adminSubjectKey contextKey = "adminSubject"

// AdminAuthMiddleware validates Bearer tokens on administrative routes.
func AdminAuthMiddleware(auth *service.AdminAuth, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("admin auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Token de autenticação não fornecido")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "Formato de token inválido")
				return
			}

			subject, err := auth.ValidateToken(parts[1])
			if err != nil {
				logger.Warn("admin auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), adminSubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminSubjectFromContext extracts the authenticated admin subject.
func AdminSubjectFromContext(ctx context.Context) string {
	v, _ := ctx.Value(adminSubjectKey).(string)
	return v
}
