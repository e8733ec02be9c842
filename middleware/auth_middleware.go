package middleware

import (
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nexbase/crudgate/auth"
	"github.com/nexbase/crudgate/pipeline"
	"github.com/nexbase/crudgate/utils"
)

// TokenValidator defines the interface for validating JWT tokens
type TokenValidator interface {
	// ValidateToken validates a JWT token and returns claims
	ValidateToken(token string) (*auth.Claims, error)
}

// AuthMiddleware builds the per-request pipeline metadata from the bearer
// token. Every downstream action invocation carries this metadata.
type AuthMiddleware struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		logger:    logger,
	}
}

// RequireAuth is a middleware that requires a valid JWT token. The token's
// claims become the request metadata stored on the context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := chimw.GetReqID(ctx)

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.validator.ValidateToken(token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		meta := claims.ToMeta()
		meta.RequestID = requestID
		ctx = WithMeta(ctx, meta)
		ctx = WithRequestID(ctx, requestID)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", claims.Subject),
			zap.String("tenant_id", claims.TenantID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth builds metadata from the bearer token when one is present and
// falls through to anonymous metadata otherwise. Invalid tokens still fail.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := chimw.GetReqID(ctx)

		token := extractBearerToken(r)
		if token == "" {
			meta := &pipeline.Meta{RequestID: requestID}
			ctx = WithMeta(ctx, meta)
			ctx = WithRequestID(ctx, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		claims, err := m.validator.ValidateToken(token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		meta := claims.ToMeta()
		meta.RequestID = requestID
		ctx = WithMeta(ctx, meta)
		ctx = WithRequestID(ctx, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin is a middleware that requires the caller to carry the admin
// role. Must run after RequireAuth.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		meta := GetMetaFromContext(ctx)
		if meta == nil || meta.Caller == nil {
			m.logger.Error("metadata not found in context",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		if !meta.Caller.IsAdmin() {
			m.logger.Warn("insufficient permissions",
				zap.String("request_id", requestID),
				zap.String("caller_id", meta.Caller.ID),
				zap.String("role", string(meta.Caller.Role)))
			_ = utils.WriteForbidden(w, "Insufficient permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
