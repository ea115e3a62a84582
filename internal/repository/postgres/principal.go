package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jihokoo/spotmission/internal/apperrors"
	"github.com/jihokoo/spotmission/internal/models"
)

type PrincipalRepo struct {
	DB DBTX
}

const createPrincipal = `-- name: CreatePrincipal
INSERT INTO principals (id, email, role, password_hash, social_provider, social_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, email, role, password_hash, social_provider, social_id
`

func (r *PrincipalRepo) Create(ctx context.Context, principal models.Principal) (models.Principal, error) {
	role := principal.Role
	if role == "" {
		role = models.RoleUser
	}

	rows, _ := r.DB.Query(ctx, createPrincipal,
		uuid.New(), principal.Email, role,
		principal.HashedPassword, principal.SocialProvider, principal.SocialID,
	)
	created, err := pgx.CollectOneRow(rows, rowToPrincipal)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return created, apperrors.ErrPrincipalAlreadyExists
		}

		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getPrincipalByID = `-- name: GetPrincipalByID
SELECT id, created_at, email, role, password_hash, social_provider, social_id
FROM principals
WHERE id = $1
`

func (r *PrincipalRepo) GetByID(ctx context.Context, id uuid.UUID) (models.Principal, error) {
	rows, _ := r.DB.Query(ctx, getPrincipalByID, id)
	principal, err := pgx.CollectOneRow(rows, rowToPrincipal)

	switch {
	case err == nil:
		return principal, nil
	case errors.Is(err, pgx.ErrNoRows):
		return principal, apperrors.ErrPrincipalNotFound
	default:
		return principal, fmt.Errorf("db error: %w", err)
	}
}

const getPrincipalByEmail = `-- name: GetPrincipalByEmail
SELECT id, created_at, email, role, password_hash, social_provider, social_id
FROM principals
WHERE email = $1
`

func (r *PrincipalRepo) GetByEmail(ctx context.Context, email string) (models.Principal, error) {
	rows, _ := r.DB.Query(ctx, getPrincipalByEmail, email)
	principal, err := pgx.CollectOneRow(rows, rowToPrincipal)

	switch {
	case err == nil:
		return principal, nil
	case errors.Is(err, pgx.ErrNoRows):
		return principal, apperrors.ErrPrincipalNotFound
	default:
		return principal, fmt.Errorf("db error: %w", err)
	}
}

func rowToPrincipal(row pgx.CollectableRow) (models.Principal, error) {
	var p models.Principal
	err := row.Scan(&p.ID, &p.CreatedAt, &p.Email, &p.Role, &p.HashedPassword, &p.SocialProvider, &p.SocialID)
	return p, err
}
