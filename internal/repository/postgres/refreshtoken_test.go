package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihokoo/spotmission/internal/apperrors"
	"github.com/jihokoo/spotmission/internal/models"
	"github.com/jihokoo/spotmission/internal/testutil"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

func Test_RefreshTokenRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	issuedAt := mustParseTime("2025-01-01 19:00:01Z")
	expiresAt := mustParseTime("2200-01-01 03:00:02Z")

	// Saved rows need an owning principal row, fk constraint is on
	withRepos := func(t *testing.T, tx pgx.Tx) (*RefreshTokenRepo, models.Principal) {
		t.Helper()
		owner := testutil.CreatePrincipal(t, &PrincipalRepo{DB: tx}, "owner@example.com")
		return &RefreshTokenRepo{DB: tx}, owner
	}

	t.Run("save token ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo, owner := withRepos(t, tx)
			device := "android-app"
			token := models.RefreshToken{
				ID:         uuid.New(),
				OwnerID:    owner.ID,
				Token:      "secret-token",
				DeviceInfo: &device,
				IssuedAt:   issuedAt,
				ExpiresAt:  expiresAt,
			}

			got, err := repo.Save(t.Context(), token)

			require.NoError(t, err)
			require.Equal(t, token.ID, got.ID)
			require.Equal(t, owner.ID, got.OwnerID)
			require.Equal(t, "secret-token", got.Token)
			require.NotNil(t, got.DeviceInfo)
			require.Equal(t, "android-app", *got.DeviceInfo)
			require.WithinDuration(t, issuedAt, got.IssuedAt, time.Microsecond)
			require.WithinDuration(t, expiresAt, got.ExpiresAt, time.Microsecond)
		})
	})

	t.Run("save rejects expiry before issue", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo, owner := withRepos(t, tx)
			token := testutil.NewRefreshToken(owner.ID, "secret-token", issuedAt, -time.Hour)

			_, err := repo.Save(t.Context(), token)

			require.Error(t, err, "check constraint should reject expires_at <= issued_at")
		})
	})

	t.Run("get by token ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo, owner := withRepos(t, tx)
			token := testutil.NewRefreshToken(owner.ID, "secret-token", issuedAt, 7*24*time.Hour)
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)

			got, err := repo.GetByToken(t.Context(), "secret-token")

			require.NoError(t, err)
			require.Equal(t, token.ID, got.ID)
			require.Equal(t, owner.ID, got.OwnerID)
			require.Nil(t, got.DeviceInfo)
			require.WithinDuration(t, token.ExpiresAt, got.ExpiresAt, time.Microsecond)
		})
	})

	t.Run("get by token returns expired rows too", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo, owner := withRepos(t, tx)
			expired := testutil.NewRefreshToken(owner.ID, "expired-token", issuedAt, time.Minute)
			_, err := repo.Save(t.Context(), expired)
			require.NoError(t, err)

			got, err := repo.GetByToken(t.Context(), "expired-token")

			require.NoError(t, err, "expiry filtering belongs to the caller, not the store")
			require.True(t, got.IsExpired(time.Now()))
		})
	})

	t.Run("get unknown token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo, _ := withRepos(t, tx)

			_, err := repo.GetByToken(t.Context(), "never-issued")

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})
	})

	t.Run("token string is unique", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo, owner := withRepos(t, tx)
			_, err := repo.Save(t.Context(), testutil.NewRefreshToken(owner.ID, "same-token", issuedAt, time.Hour))
			require.NoError(t, err)

			_, err = repo.Save(t.Context(), testutil.NewRefreshToken(owner.ID, "same-token", issuedAt, time.Hour))

			require.Error(t, err, "unique constraint should reject duplicate token strings")
		})
	})

	t.Run("rotate in place", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo, owner := withRepos(t, tx)
			token := testutil.NewRefreshToken(owner.ID, "old-token", issuedAt, time.Hour)
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)

			newIssuedAt := issuedAt.Add(30 * time.Minute)
			got, err := repo.Rotate(t.Context(), token.ID, "old-token", "new-token", newIssuedAt, newIssuedAt.Add(time.Hour))

			require.NoError(t, err)
			require.Equal(t, token.ID, got.ID, "rotation must keep the same row id")
			require.Equal(t, "new-token", got.Token)
			require.WithinDuration(t, newIssuedAt, got.IssuedAt, time.Microsecond)

			// Old value must be unresolvable the moment the update lands
			_, err = repo.GetByToken(t.Context(), "old-token")
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)

			count, err := repo.CountByOwner(t.Context(), owner.ID)
			require.NoError(t, err)
			require.EqualValues(t, 1, count, "rotation must not grow the table")
		})
	})

	t.Run("rotate loses when old value is gone", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo, owner := withRepos(t, tx)
			token := testutil.NewRefreshToken(owner.ID, "old-token", issuedAt, time.Hour)
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)

			_, err = repo.Rotate(t.Context(), token.ID, "old-token", "winner-token", issuedAt, issuedAt.Add(time.Hour))
			require.NoError(t, err)

			// Second writer still holds the pre-rotation value
			_, err = repo.Rotate(t.Context(), token.ID, "old-token", "loser-token", issuedAt, issuedAt.Add(time.Hour))

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound, "losing concurrent rotation should fail explicitly")
		})
	})

	t.Run("delete by token is idempotent", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo, owner := withRepos(t, tx)
			token := testutil.NewRefreshToken(owner.ID, "secret-token", issuedAt, time.Hour)
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)

			require.NoError(t, repo.DeleteByToken(t.Context(), "secret-token"))
			require.NoError(t, repo.DeleteByToken(t.Context(), "secret-token"), "second delete should not error")
			require.NoError(t, repo.DeleteByToken(t.Context(), "never-issued"), "deleting unknown token should not error")
		})
	})

	t.Run("delete all by owner", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo, owner := withRepos(t, tx)
			other := testutil.CreatePrincipal(t, &PrincipalRepo{DB: tx}, "other@example.com")

			for i, s := range []string{"t1", "t2", "t3"} {
				_, err := repo.Save(t.Context(), testutil.NewRefreshToken(owner.ID, s, issuedAt.Add(time.Duration(i)*time.Second), time.Hour))
				require.NoError(t, err)
			}
			_, err := repo.Save(t.Context(), testutil.NewRefreshToken(other.ID, "keep-me", issuedAt, time.Hour))
			require.NoError(t, err)

			deleted, err := repo.DeleteAllByOwner(t.Context(), owner.ID)

			require.NoError(t, err)
			require.EqualValues(t, 3, deleted)

			tokens, err := repo.ListByOwner(t.Context(), owner.ID)
			require.NoError(t, err)
			require.Empty(t, tokens)

			exists, err := repo.ExistsByToken(t.Context(), "keep-me")
			require.NoError(t, err)
			require.True(t, exists, "other principals sessions must survive")
		})
	})

	t.Run("delete expired before", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo, owner := withRepos(t, tx)
			now := mustParseTime("2025-06-01 12:00:00Z")

			_, err := repo.Save(t.Context(), testutil.NewRefreshToken(owner.ID, "long-dead", now.Add(-48*time.Hour), time.Hour))
			require.NoError(t, err)
			_, err = repo.Save(t.Context(), testutil.NewRefreshToken(owner.ID, "just-dead", now.Add(-2*time.Hour), time.Hour))
			require.NoError(t, err)
			_, err = repo.Save(t.Context(), testutil.NewRefreshToken(owner.ID, "alive", now.Add(-time.Minute), time.Hour))
			require.NoError(t, err)

			deleted, err := repo.DeleteExpiredBefore(t.Context(), now)

			require.NoError(t, err)
			require.EqualValues(t, 2, deleted)

			tokens, err := repo.ListByOwner(t.Context(), owner.ID)
			require.NoError(t, err)
			require.Len(t, tokens, 1)
			require.Equal(t, "alive", tokens[0].Token, "only future-expiry rows should remain")
		})
	})

	t.Run("list by owner ordered by issue time", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo, owner := withRepos(t, tx)
			_, err := repo.Save(t.Context(), testutil.NewRefreshToken(owner.ID, "second", issuedAt.Add(time.Minute), time.Hour))
			require.NoError(t, err)
			_, err = repo.Save(t.Context(), testutil.NewRefreshToken(owner.ID, "first", issuedAt, time.Hour))
			require.NoError(t, err)

			tokens, err := repo.ListByOwner(t.Context(), owner.ID)

			require.NoError(t, err)
			require.Len(t, tokens, 2)
			assert.Equal(t, "first", tokens[0].Token)
			assert.Equal(t, "second", tokens[1].Token)
		})
	})
}
