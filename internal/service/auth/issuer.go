package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jihokoo/spotmission/internal/models"
	"github.com/jihokoo/spotmission/internal/token"
)

// Issuer builds access/refresh token pairs. It depends on nothing but the
// codec and a clock: persisting the refresh row is the caller's job.
type Issuer struct {
	codec      *token.Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Issue builds a fresh pair for the principal plus the unsaved refresh row.
// Both tokens carry the principal email as subject; only the access token
// carries the role.
func (i *Issuer) Issue(principal models.Principal, deviceInfo *string) (models.TokenPair, models.RefreshToken, error) {
	var pair models.TokenPair
	var row models.RefreshToken

	now := i.now().Truncate(time.Second)
	accessExpiresAt := now.Add(i.accessTTL)
	refreshExpiresAt := now.Add(i.refreshTTL)

	access, err := i.codec.Encode(
		principal.Email,
		token.Extra{PrincipalID: principal.ID, Role: string(principal.Role)},
		i.accessTTL,
	)
	if err != nil {
		return pair, row, fmt.Errorf("error while building access token. Err: %w", err)
	}

	refresh, err := i.codec.Encode(
		principal.Email,
		token.Extra{PrincipalID: principal.ID},
		i.refreshTTL,
	)
	if err != nil {
		return pair, row, fmt.Errorf("error while building refresh token. Err: %w", err)
	}

	pair = models.TokenPair{
		Access:  models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: refresh, ExpiresAt: refreshExpiresAt},
	}
	row = models.RefreshToken{
		ID:         uuid.New(),
		OwnerID:    principal.ID,
		Token:      refresh,
		DeviceInfo: deviceInfo,
		IssuedAt:   now,
		ExpiresAt:  refreshExpiresAt,
	}

	return pair, row, nil
}
