package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jihokoo/spotmission/internal/apperrors"
	"github.com/jihokoo/spotmission/internal/logger"
	"github.com/jihokoo/spotmission/internal/models"
	"github.com/jihokoo/spotmission/internal/repository"
	"github.com/jihokoo/spotmission/internal/token"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

type Config struct {
	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Hasher to use during password login
	// Defaults to BcryptHasher
	Hasher PasswordHasher

	// Clock, substituted in tests. Defaults to time.Now
	Now func() time.Time
}

// Service orchestrates login time issuance, refresh with rotation, logout
// and logout-all
type Service struct {
	codec   *token.Codec
	issuer  *Issuer
	hasher  PasswordHasher
	storage repository.Storage
	logger  logger.Logger
	now     func() time.Time
}

func NewService(cfg Config, codec *token.Codec, storage repository.Storage, l logger.Logger) (*Service, error) {
	if codec == nil {
		return nil, errors.New("codec must not be nil")
	}
	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}
	if l == nil {
		l = logger.NewNoOp()
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTokenTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTokenTTL, defaultRefreshTokenTTL)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		codec: codec,
		issuer: &Issuer{
			codec:      codec,
			accessTTL:  cfg.AccessTokenTTL,
			refreshTTL: cfg.RefreshTokenTTL,
			now:        now,
		},
		hasher:  hasher,
		storage: storage,
		logger:  l,
		now:     now,
	}, nil
}

// Issue builds a pair for the principal and inserts the refresh row.
// This is the hand-off point for login controllers and the social success
// hook alike.
func (s *Service) Issue(ctx context.Context, principal models.Principal, deviceInfo *string) (models.TokenPair, error) {
	pair, row, err := s.issuer.Issue(principal, deviceInfo)
	if err != nil {
		return pair, err
	}

	_, err = s.storage.RefreshToken().Save(ctx, row)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return pair, nil
}

// Login verifies the password credential and issues a pair.
// Returns apperrors.ErrBadCredentials for unknown email, wrong password and
// social-only principals alike: the caller never learns which.
func (s *Service) Login(ctx context.Context, email string, password string, deviceInfo *string) (models.TokenPair, error) {
	var pair models.TokenPair

	principal, err := s.storage.Principal().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrPrincipalNotFound) {
			return pair, apperrors.ErrBadCredentials
		}
		return pair, err
	}

	if principal.HashedPassword == nil {
		return pair, apperrors.ErrBadCredentials
	}
	if err := s.hasher.Compare(*principal.HashedPassword, password); err != nil {
		return pair, apperrors.ErrBadCredentials
	}

	return s.Issue(ctx, principal, deviceInfo)
}

// SocialLogin is the success hand-off from the social handshake (which runs
// outside this service). An unknown email gets a principal created with the
// provider linkage; a known one is used as is.
func (s *Service) SocialLogin(ctx context.Context, provider string, socialID string, email string, deviceInfo *string) (models.TokenPair, error) {
	var pair models.TokenPair

	principal, err := s.storage.Principal().GetByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrPrincipalNotFound):
		principal, err = s.storage.Principal().Create(ctx, models.Principal{
			Email:          email,
			Role:           models.RoleUser,
			SocialProvider: &provider,
			SocialID:       &socialID,
		})
		if err != nil {
			return pair, fmt.Errorf("error while creating social principal. Err: %w", err)
		}
	default:
		return pair, err
	}

	return s.Issue(ctx, principal, deviceInfo)
}

// Refresh validates the presented refresh token, rotates the backing row in
// place and returns the new pair. The whole flow runs in one transaction so
// a crash mid-rotation can never leave both or neither token resolvable.
//
// Errors: apperrors.ErrInvalidToken for malformed/bad-signature tokens,
// tokens unknown to the store and owner mismatches;
// apperrors.ErrTokenExpired for rows past their expiry (the row is deleted).
func (s *Service) Refresh(ctx context.Context, oldRefresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	claims, err := s.codec.Decode(oldRefresh)
	if err != nil {
		var decodeErr *token.DecodeError
		if !errors.As(err, &decodeErr) || decodeErr.Kind != token.KindExpired {
			return pair, apperrors.ErrInvalidToken
		}
		// Signature verified but the token is past its TTL: fall through so
		// the store row decides between ExpiredToken and InvalidToken
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		row, err := st.RefreshToken().GetByToken(ctx, oldRefresh)
		if err != nil {
			if errors.Is(err, apperrors.ErrRefreshTokenNotFound) {
				// Structurally valid but already rotated away or never issued
				return apperrors.ErrInvalidToken
			}
			return err
		}

		if row.IsExpired(s.now()) {
			if err := st.RefreshToken().DeleteByToken(ctx, oldRefresh); err != nil {
				return err
			}
			return apperrors.ErrTokenExpired
		}

		// The decoded subject must belong to the row's owner, otherwise the
		// token is being replayed against a different session
		if claims.PrincipalID != row.OwnerID {
			return apperrors.ErrInvalidToken
		}

		principal, err := st.Principal().GetByID(ctx, row.OwnerID)
		if err != nil {
			if errors.Is(err, apperrors.ErrPrincipalNotFound) {
				s.logger.Error("refresh row resolves but owning principal is gone",
					"rowID", row.ID, "ownerID", row.OwnerID)
				return apperrors.ErrInternalInconsistency
			}
			return err
		}

		newPair, newRow, err := s.issuer.Issue(principal, row.DeviceInfo)
		if err != nil {
			return err
		}

		_, err = st.RefreshToken().Rotate(ctx, row.ID, oldRefresh, newRow.Token, newRow.IssuedAt, newRow.ExpiresAt)
		if err != nil {
			if errors.Is(err, apperrors.ErrRefreshTokenNotFound) {
				// A concurrent refresh rotated the row first
				return apperrors.ErrInvalidToken
			}
			return err
		}

		pair = newPair
		return nil
	})
	if err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Logout deletes the session row holding the token if present.
// Deleting a token that does not exist is not an error.
func (s *Service) Logout(ctx context.Context, refresh string) error {
	return s.storage.RefreshToken().DeleteByToken(ctx, refresh)
}

// LogoutAll deletes every session owned by the principal, used for
// "sign out everywhere" after a suspected compromise or credential change
func (s *Service) LogoutAll(ctx context.Context, principalID uuid.UUID) (int64, error) {
	deleted, err := s.storage.RefreshToken().DeleteAllByOwner(ctx, principalID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("signed out everywhere", "principalID", principalID, "sessions", deleted)
	return deleted, nil
}
