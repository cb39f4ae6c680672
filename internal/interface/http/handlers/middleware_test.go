package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdminKeyAuth(t *testing.T) {
	hash, err := HashKey("secret-key")
	require.NoError(t, err)

	t.Run("valid hash", func(t *testing.T) {
		auth, err := NewAdminKeyAuth("X-API-Key", []string{hash})
		require.NoError(t, err)
		assert.NotNil(t, auth)
	})

	t.Run("no hashes", func(t *testing.T) {
		_, err := NewAdminKeyAuth("X-API-Key", nil)
		assert.ErrorIs(t, err, ErrNoAdminKeys)
	})

	t.Run("empty strings are skipped", func(t *testing.T) {
		_, err := NewAdminKeyAuth("X-API-Key", []string{"", ""})
		assert.ErrorIs(t, err, ErrNoAdminKeys)
	})

	t.Run("malformed hash", func(t *testing.T) {
		_, err := NewAdminKeyAuth("X-API-Key", []string{"not-a-bcrypt-hash"})
		assert.Error(t, err)
	})
}

func TestAdminKeyAuth_IsValid(t *testing.T) {
	hash1, err := HashKey("first-key")
	require.NoError(t, err)
	hash2, err := HashKey("second-key")
	require.NoError(t, err)

	auth, err := NewAdminKeyAuth("X-API-Key", []string{hash1, hash2})
	require.NoError(t, err)

	assert.True(t, auth.IsValid("first-key"))
	assert.True(t, auth.IsValid("second-key"))
	assert.False(t, auth.IsValid("wrong-key"))
	assert.False(t, auth.IsValid(""))
}

func TestAdminKeyAuth_Middleware(t *testing.T) {
	hash, err := HashKey("admin-secret")
	require.NoError(t, err)

	auth, err := NewAdminKeyAuth("X-API-Key", []string{hash})
	require.NoError(t, err)

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		req.Header.Set("X-API-Key", "nope")

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid key via header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		req.Header.Set("X-API-Key", "admin-secret")

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("valid key via bearer token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		req.Header.Set("Authorization", "Bearer admin-secret")

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
