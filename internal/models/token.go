package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a persisted session row. The token string is rotated in
// place on every successful refresh: same row id, new value and timestamps.
type RefreshToken struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	Token      string
	DeviceInfo *string // optional client supplied device label
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Expiry is a derived predicate over timestamps, not a stored flag
func (t RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair is what the client receives on login, social success and refresh
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
