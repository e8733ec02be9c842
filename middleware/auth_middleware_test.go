package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexbase/crudgate/auth"
	"github.com/nexbase/crudgate/models"
	"github.com/nexbase/crudgate/pipeline"
)

type stubValidator struct {
	claims *auth.Claims
	err    error
}

func (s *stubValidator) ValidateToken(token string) (*auth.Claims, error) {
	return s.claims, s.err
}

func validClaims() *auth.Claims {
	c := &auth.Claims{
		FirstName: "Ada",
		Role:      "admin",
		TenantID:  "acme",
	}
	c.Subject = "u1"
	return c
}

func captureMeta(metaOut **pipeline.Meta) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*metaOut = GetMetaFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		m := NewAuthMiddleware(&stubValidator{}, zap.NewNop())
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/get", nil)

		m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		})).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		m := NewAuthMiddleware(&stubValidator{err: auth.ErrInvalidToken}, zap.NewNop())
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/get", nil)
		req.Header.Set("Authorization", "Bearer bad-token")

		m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		})).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token builds metadata", func(t *testing.T) {
		m := NewAuthMiddleware(&stubValidator{claims: validClaims()}, zap.NewNop())
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/get", nil)
		req.Header.Set("Authorization", "Bearer good-token")

		var meta *pipeline.Meta
		m.RequireAuth(captureMeta(&meta)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, meta)
		assert.Equal(t, "u1", meta.Caller.ID)
		assert.Equal(t, models.RoleAdmin, meta.Caller.Role)
		assert.Equal(t, "acme", meta.Tenant.ID)
	})
}

func TestOptionalAuth(t *testing.T) {
	t.Run("no token falls through anonymously", func(t *testing.T) {
		m := NewAuthMiddleware(&stubValidator{}, zap.NewNop())
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/find", nil)

		var meta *pipeline.Meta
		m.OptionalAuth(captureMeta(&meta)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, meta)
		assert.Nil(t, meta.Caller)
	})

	t.Run("invalid token still fails", func(t *testing.T) {
		m := NewAuthMiddleware(&stubValidator{err: auth.ErrInvalidToken}, zap.NewNop())
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/find", nil)
		req.Header.Set("Authorization", "Bearer bad-token")

		m.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		})).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	run := func(meta *pipeline.Meta) *httptest.ResponseRecorder {
		m := NewAuthMiddleware(&stubValidator{}, zap.NewNop())
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/remove", nil)
		if meta != nil {
			req = req.WithContext(WithMeta(req.Context(), meta))
		}
		m.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(rec, req)
		return rec
	}

	t.Run("admin passes", func(t *testing.T) {
		rec := run(&pipeline.Meta{Caller: &models.User{ID: "u1", Role: models.RoleAdmin}})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("normal role is forbidden", func(t *testing.T) {
		rec := run(&pipeline.Meta{Caller: &models.User{ID: "u1", Role: models.RoleNormal}})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing metadata is unauthorized", func(t *testing.T) {
		rec := run(nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, extractBearerToken(req), "header %q", tt.header)
	}
}
