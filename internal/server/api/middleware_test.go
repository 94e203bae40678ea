package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"filevault/internal/server/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoke(mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, echo.Context) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	_ = handler(c)
	return rec, c
}

func TestIdentityRequired(t *testing.T) {
	t.Run("rejects missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec, _ := invoke(IdentityRequired(), req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "unauthenticated")
	})

	t.Run("rejects malformed user id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderUserID, "not-a-uuid")
		rec, _ := invoke(IdentityRequired(), req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("injects the principal", func(t *testing.T) {
		userID := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderUserID, userID.String())
		req.Header.Set(HeaderUserRole, "admin")

		rec, c := invoke(IdentityRequired(), req)
		require.Equal(t, http.StatusOK, rec.Code)

		who := identityFrom(c)
		assert.Equal(t, userID, who.UserID)
		assert.True(t, who.IsAdmin())
	})

	t.Run("unknown roles collapse to user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderUserID, uuid.NewString())
		req.Header.Set(HeaderUserRole, "superuser")

		rec, c := invoke(IdentityRequired(), req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, service.RoleUser, identityFrom(c).Role)
	})
}

func TestAdminRequired(t *testing.T) {
	run := func(role string) *httptest.ResponseRecorder {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(identityKey, service.Identity{UserID: uuid.New(), Role: role})

		handler := AdminRequired()(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		_ = handler(c)
		return rec
	}

	t.Run("admin passes", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, run(service.RoleAdmin).Code)
	})

	t.Run("user is forbidden", func(t *testing.T) {
		rec := run(service.RoleUser)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "forbidden")
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows burst then rejects", func(t *testing.T) {
		rl := NewRateLimiter(1, 3)

		for i := 0; i < 3; i++ {
			if !rl.allow("10.0.0.1") {
				t.Fatalf("request %d within burst was rejected", i+1)
			}
		}
		assert.False(t, rl.allow("10.0.0.1"))
	})

	t.Run("tracks ips independently", func(t *testing.T) {
		rl := NewRateLimiter(1, 1)

		assert.True(t, rl.allow("10.0.0.1"))
		assert.False(t, rl.allow("10.0.0.1"))
		assert.True(t, rl.allow("10.0.0.2"))
	})
}

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", service.ErrNotFound, http.StatusNotFound, "not_found"},
		{"gone", service.ErrGone, http.StatusGone, "gone"},
		{"unauthorized", service.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"quota", service.ErrQuotaExceeded, http.StatusBadRequest, "quota_exceeded"},
		{"file type", service.ErrInvalidFileType, http.StatusBadRequest, "invalid_file_type"},
		{"too large", service.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},
		{"invalid input", service.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{"preview", service.ErrUnsupportedPreview, http.StatusUnsupportedMediaType, "unsupported_preview"},
		{"inconsistency", service.ErrStorageInconsistency, http.StatusNotFound, "storage_inconsistency"},
		{"unknown", assert.AnError, http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, mapServiceError(c, tt.err))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}
}
