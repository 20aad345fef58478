package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/stridehub/sync-server-go/internal/util"
)

// ServiceAuthMiddleware protects the management endpoints with a shared
// bearer token. Callers are internal collaborators (scheduled jobs, the UI
// backend), not end users.
type ServiceAuthMiddleware struct {
	serviceToken string
}

func NewServiceAuthMiddleware(serviceToken string) *ServiceAuthMiddleware {
	return &ServiceAuthMiddleware{serviceToken: serviceToken}
}

func (m *ServiceAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.serviceToken == "" {
			log.Warn().Msg("service auth bypassed: SERVICE_TOKEN is not configured")
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		if !util.ConstantTimeEqual(token, m.serviceToken) {
			log.Warn().Msg("service auth: invalid token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
