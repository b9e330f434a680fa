package middleware

import (
	"context"
	"net/http"
	"strings"

	"go-ecommerce-delivery/logger"
	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/policy"
	"go-ecommerce-delivery/utils"

	"go.uber.org/zap"
)

// Key type for context
type contextKey string

const UserContextKey = contextKey("user")

// Authenticator resolves a bearer token to the current user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// CurrentUser returns the user attached by Auth.
func CurrentUser(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*models.User)
	return u, ok && u != nil
}

// WithUser attaches u to ctx.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, u)
}

// Auth verifies the bearer token and attaches the stored user to the request context
func Auth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteMessage(w, http.StatusUnauthorized, "Authorization header missing")
				return
			}

			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				utils.WriteMessage(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			user, err := authn.Authenticate(r.Context(), parts[1])
			if err != nil {
				utils.WriteError(w, r, err)
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("user_id", user.ID.Hex())))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require lets the request through only when the user's role may perform action
func Require(action policy.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				utils.WriteMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !policy.Can(user.Role, action) {
				utils.WriteMessage(w, http.StatusForbidden, policy.Describe(action))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
