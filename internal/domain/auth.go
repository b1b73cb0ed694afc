package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrLinkNotFound = errors.New("magic link not found")
	ErrLinkUsed     = errors.New("magic link already used")
	ErrLinkExpired  = errors.New("magic link expired")
	ErrNoSession    = errors.New("no current session")
)

const AuthMethodMagicLink = "magic-link"

// MagicLink is a single-use, time-boxed sign-in credential. Only the
// SHA-256 hash of the raw token is stored; UsedAt is nil until redeemed
// and transitions exactly once.
type MagicLink struct {
	TokenHash string     `json:"tokenHash"`
	Email     string     `json:"email"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// User is the authenticated identity bound to this wallet instance.
// At most one current user exists at a time.
type User struct {
	Email      string    `json:"email"`
	AuthMethod string    `json:"authMethod"`
	LastLogin  time.Time `json:"lastLogin"`
}
