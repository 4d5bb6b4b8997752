package middleware

import (
	"net/http"
	"strconv"

	"storefront/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RequireAdmin middleware ensures the user has the admin role. Every
// catalog mutation sits behind this.
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			if role != domain.RoleAdmin {
				logger.Warn("Non-admin user attempted to access admin endpoint",
					zap.String("role", role),
					zap.String("path", r.URL.Path),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireSelfOrAdmin ensures the authenticated user owns the resource
// addressed by the given URL parameter, or holds the admin role
func RequireSelfOrAdmin(param string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r.Context())
			if !ok {
				logger.Warn("User ID not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			resourceID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil {
				RespondWithError(w, http.StatusBadRequest, "invalid resource ID")
				return
			}

			role, _ := GetUserRole(r.Context())
			if resourceID != userID && role != domain.RoleAdmin {
				logger.Warn("User attempted to access another user's resource",
					zap.Int64("user_id", userID),
					zap.Int64("resource_id", resourceID),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
