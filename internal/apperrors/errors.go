package apperrors

import (
	"errors"
)

var (
	ErrPrincipalAlreadyExists = errors.New("principal already exists")
	ErrPrincipalNotFound      = errors.New("principal not found")
	ErrBadCredentials         = errors.New("bad credentials")

	// ErrRefreshTokenNotFound is the store level miss: no row holds the
	// presented token string (rotated away, deleted or never issued)
	ErrRefreshTokenNotFound = errors.New("refresh token not found")

	// ErrInvalidToken covers malformed tokens, bad signatures and tokens
	// unknown to the refresh store (already rotated away or never issued)
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired means the token is structurally valid but past its expiry
	ErrTokenExpired = errors.New("token expired")

	// ErrInternalInconsistency means a token resolved to a refresh row but the
	// owning principal could not be found. Should not occur in normal operation.
	ErrInternalInconsistency = errors.New("internal inconsistency")
)
