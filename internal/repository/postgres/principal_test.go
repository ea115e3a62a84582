package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihokoo/spotmission/internal/apperrors"
	"github.com/jihokoo/spotmission/internal/models"
	"github.com/jihokoo/spotmission/internal/testutil"
)

func Test_PrincipalRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("create password principal", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := PrincipalRepo{DB: tx}
			hash := "bcrypt-hash"

			got, err := repo.Create(t.Context(), models.Principal{
				Email:          "member@example.com",
				Role:           models.RoleUser,
				HashedPassword: &hash,
			})

			require.NoError(t, err)
			require.NotEqual(t, uuid.Nil, got.ID)
			require.Equal(t, "member@example.com", got.Email)
			require.Equal(t, models.RoleUser, got.Role)
			require.NotNil(t, got.HashedPassword)
			require.Nil(t, got.SocialProvider)
			require.False(t, got.CreatedAt.IsZero())
		})
	})

	t.Run("create social principal", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := PrincipalRepo{DB: tx}
			provider, socialID := "kakao", "kakao-12345"

			got, err := repo.Create(t.Context(), models.Principal{
				Email:          "social@example.com",
				SocialProvider: &provider,
				SocialID:       &socialID,
			})

			require.NoError(t, err)
			require.Equal(t, models.RoleUser, got.Role, "role should default to USER")
			require.Nil(t, got.HashedPassword)
			require.NotNil(t, got.SocialProvider)
			require.Equal(t, "kakao", *got.SocialProvider)
		})
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := PrincipalRepo{DB: tx}
			_, err := repo.Create(t.Context(), models.Principal{Email: "member@example.com"})
			require.NoError(t, err)

			_, err = repo.Create(t.Context(), models.Principal{Email: "member@example.com"})

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrPrincipalAlreadyExists)
		})
	})

	t.Run("get by id and email", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := PrincipalRepo{DB: tx}
			created, err := repo.Create(t.Context(), models.Principal{Email: "member@example.com", Role: models.RoleAdmin})
			require.NoError(t, err)

			byID, err := repo.GetByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, created.ID, byID.ID)
			assert.Equal(t, models.RoleAdmin, byID.Role)

			byEmail, err := repo.GetByEmail(t.Context(), "member@example.com")
			require.NoError(t, err)
			assert.Equal(t, created.ID, byEmail.ID)
		})
	})

	t.Run("not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := PrincipalRepo{DB: tx}

			_, err := repo.GetByID(t.Context(), uuid.New())
			assert.ErrorIs(t, err, apperrors.ErrPrincipalNotFound)

			_, err = repo.GetByEmail(t.Context(), "ghost@example.com")
			assert.ErrorIs(t, err, apperrors.ErrPrincipalNotFound)
		})
	})
}
