package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jihokoo/spotmission/internal/apperrors"
	"github.com/jihokoo/spotmission/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const saveToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (id, owner_id, token, device_info, issued_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, owner_id, token, device_info, issued_at, expires_at
`

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveToken,
		token.ID, token.OwnerID, token.Token, token.DeviceInfo, token.IssuedAt, token.ExpiresAt,
	)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}

	return saved, nil
}

const getByToken = `-- name: GetRefreshTokenByToken
SELECT id, owner_id, token, device_info, issued_at, expires_at
FROM refresh_tokens
WHERE token = $1
`

// GetByToken returns the row holding that exact string, expired or not.
// Expiry handling belongs to the caller.
func (r *RefreshTokenRepo) GetByToken(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getByToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const listByOwner = `-- name: ListRefreshTokensByOwner
SELECT id, owner_id, token, device_info, issued_at, expires_at
FROM refresh_tokens
WHERE owner_id = $1
ORDER BY issued_at
`

func (r *RefreshTokenRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, listByOwner, ownerID)
	tokens, err := pgx.CollectRows(rows, rowToRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return tokens, nil
}

const rotateToken = `-- name: RotateRefreshToken
UPDATE refresh_tokens
SET token = $3, issued_at = $4, expires_at = $5
WHERE id = $1 AND token = $2
RETURNING id, owner_id, token, device_info, issued_at, expires_at
`

// Rotate overwrites the row in place. The WHERE clause matches the old token
// value too, so of two racing rotations only the first to commit succeeds;
// the loser sees no row and gets ErrRefreshTokenNotFound.
func (r *RefreshTokenRepo) Rotate(ctx context.Context, id uuid.UUID, oldToken string, newToken string, issuedAt time.Time, expiresAt time.Time) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, rotateToken, id, oldToken, newToken, issuedAt, expiresAt)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const deleteByToken = `-- name: DeleteRefreshTokenByToken
DELETE FROM refresh_tokens
WHERE token = $1
`

// DeleteByToken is idempotent: removing an absent token is not an error
func (r *RefreshTokenRepo) DeleteByToken(ctx context.Context, tokenString string) error {
	_, err := r.DB.Exec(ctx, deleteByToken, tokenString)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const deleteAllByOwner = `-- name: DeleteRefreshTokensByOwner
DELETE FROM refresh_tokens
WHERE owner_id = $1
`

func (r *RefreshTokenRepo) DeleteAllByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteAllByOwner, ownerID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected(), nil
}

const deleteExpiredBefore = `-- name: DeleteExpiredRefreshTokens
DELETE FROM refresh_tokens
WHERE expires_at < $1
`

func (r *RefreshTokenRepo) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredBefore, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected(), nil
}

const countByOwner = `-- name: CountRefreshTokensByOwner
SELECT count(*) FROM refresh_tokens
WHERE owner_id = $1
`

func (r *RefreshTokenRepo) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	rows, _ := r.DB.Query(ctx, countByOwner, ownerID)
	count, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

const existsByToken = `-- name: RefreshTokenExists
SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token = $1)
`

func (r *RefreshTokenRepo) ExistsByToken(ctx context.Context, tokenString string) (bool, error) {
	rows, _ := r.DB.Query(ctx, existsByToken, tokenString)
	exists, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return exists, nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.OwnerID, &t.Token, &t.DeviceInfo, &t.IssuedAt, &t.ExpiresAt)
	return t, err
}
