package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Principal is the identity a token ultimately resolves to.
// Constructed the same way whether the origin was password login or a social
// handshake: password-born principals carry a credential hash, social-born
// ones carry the provider linkage, and either may carry both.
type Principal struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Email     string
	Role      Role

	// Bcrypt hash, nil for social-only principals
	HashedPassword *string

	// Social provider linkage, nil for password-only principals
	SocialProvider *string
	SocialID       *string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
