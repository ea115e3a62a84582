package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihokoo/spotmission/internal/apperrors"
	"github.com/jihokoo/spotmission/internal/handlers/principalctx"
	"github.com/jihokoo/spotmission/internal/models"
	"github.com/jihokoo/spotmission/internal/token"
)

type fakeDirectory struct {
	principals map[string]models.Principal
	err        error
}

func (f *fakeDirectory) GetByEmail(_ context.Context, email string) (models.Principal, error) {
	if f.err != nil {
		return models.Principal{}, f.err
	}
	p, ok := f.principals[email]
	if !ok {
		return models.Principal{}, apperrors.ErrPrincipalNotFound
	}
	return p, nil
}

func Test_Gateway(t *testing.T) {
	t.Parallel()

	codec, err := token.NewCodec(token.Config{SecretKey: "test-secret-key"})
	require.NoError(t, err)

	member := models.Principal{ID: uuid.New(), Email: "member@example.com", Role: models.RoleUser}
	directory := &fakeDirectory{principals: map[string]models.Principal{member.Email: member}}

	// next handler records what the gateway attached
	serve := func(t *testing.T, dir *fakeDirectory, authorization string) (models.Principal, bool, *httptest.ResponseRecorder) {
		t.Helper()

		var got models.Principal
		var attached bool
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, attached = principalctx.FromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/anything", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()

		Gateway(codec, dir, nil)(next).ServeHTTP(rec, req)
		return got, attached, rec
	}

	bearerFor := func(t *testing.T, p models.Principal) string {
		t.Helper()
		access, err := codec.Encode(p.Email, token.Extra{PrincipalID: p.ID, Role: string(p.Role)}, 15*time.Minute)
		require.NoError(t, err)
		return "Bearer " + access
	}

	t.Run("valid bearer attaches principal", func(t *testing.T) {
		got, attached, rec := serve(t, directory, bearerFor(t, member))

		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, attached)
		assert.Equal(t, member.ID, got.ID)
		assert.Equal(t, member.Email, got.Email)
	})

	t.Run("missing header is not a failure", func(t *testing.T) {
		_, attached, rec := serve(t, directory, "")

		require.Equal(t, http.StatusOK, rec.Code, "request must proceed")
		require.False(t, attached, "no principal should be attached")
	})

	t.Run("wrong scheme ignored", func(t *testing.T) {
		_, attached, rec := serve(t, directory, "Basic dXNlcjpwd2Q=")

		require.Equal(t, http.StatusOK, rec.Code)
		require.False(t, attached)
	})

	t.Run("garbage token proceeds unauthenticated", func(t *testing.T) {
		_, attached, rec := serve(t, directory, "Bearer not-a-token")

		require.Equal(t, http.StatusOK, rec.Code, "gateway never aborts the request itself")
		require.False(t, attached)
	})

	t.Run("unknown subject proceeds unauthenticated", func(t *testing.T) {
		ghost := models.Principal{ID: uuid.New(), Email: "ghost@example.com"}

		_, attached, rec := serve(t, directory, bearerFor(t, ghost))

		require.Equal(t, http.StatusOK, rec.Code)
		require.False(t, attached)
	})

	t.Run("directory failure proceeds unauthenticated", func(t *testing.T) {
		broken := &fakeDirectory{err: errors.New("db gone")}

		_, attached, rec := serve(t, broken, bearerFor(t, member))

		require.Equal(t, http.StatusOK, rec.Code)
		require.False(t, attached)
	})
}

func Test_RequirePrincipal(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("denies without principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/protected", nil)
		rec := httptest.NewRecorder()

		RequirePrincipal(next).ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"invalid_token","message":"Authentication required"}`, rec.Body.String())
	})

	t.Run("passes with principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/protected", nil)
		ctx := principalctx.New(req.Context(), models.Principal{ID: uuid.New()})
		rec := httptest.NewRecorder()

		RequirePrincipal(next).ServeHTTP(rec, req.WithContext(ctx))

		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_RequireAdmin(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		role     models.Role
		wantCode int
	}{
		{name: "admin allowed", role: models.RoleAdmin, wantCode: http.StatusOK},
		{name: "user forbidden", role: models.RoleUser, wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			ctx := principalctx.New(req.Context(), models.Principal{ID: uuid.New(), Role: tt.role})
			rec := httptest.NewRecorder()

			RequireAdmin(next).ServeHTTP(rec, req.WithContext(ctx))

			require.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
