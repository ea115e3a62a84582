package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jihokoo/spotmission/internal/models"
)

// Principal repository interface
type PrincipalRepo interface {
	// Create principal
	// If a principal with the same email exists already has to return
	// apperrors.ErrPrincipalAlreadyExists
	Create(ctx context.Context, principal models.Principal) (models.Principal, error)

	// Get principal by id or email
	// If not found must return apperrors.ErrPrincipalNotFound
	GetByID(ctx context.Context, id uuid.UUID) (models.Principal, error)
	GetByEmail(ctx context.Context, email string) (models.Principal, error)
}

// RefreshToken repository interface
// The token string is the only lookup key used by refresh and logout
type RefreshTokenRepo interface {
	// Insert a new session row
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the row holding that exact token string even if it is expired
	// If no row holds it must return apperrors.ErrRefreshTokenNotFound
	GetByToken(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Return every session row owned by the principal
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.RefreshToken, error)

	// Rotate the row in place: same row id, new token string and timestamps.
	// The update matches only while the row still holds oldToken, so a
	// concurrent rotation that committed first makes this one fail with
	// apperrors.ErrRefreshTokenNotFound instead of silently losing its write
	Rotate(ctx context.Context, id uuid.UUID, oldToken string, newToken string, issuedAt time.Time, expiresAt time.Time) (models.RefreshToken, error)

	// Delete the row holding the token string
	// Idempotent: deleting an absent token is not an error
	DeleteByToken(ctx context.Context, tokenString string) error

	// Delete every session row owned by the principal, returns rows removed
	DeleteAllByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)

	// Bulk expiry sweep, returns rows removed
	DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error)

	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	ExistsByToken(ctx context.Context, tokenString string) (bool, error)
}

// Storage aggregates repositories and runs closures in one db transaction
type Storage interface {
	Principal() PrincipalRepo
	RefreshToken() RefreshTokenRepo

	InTx(ctx context.Context, fn func(Storage) error) error
}
