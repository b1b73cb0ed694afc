package domain

import (
	"errors"
	"time"
)

var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Token is a unit of value owned by the current session.
type Token struct {
	Hash     string         `json:"hash"`
	Value    string         `json:"value"`
	Balance  float64        `json:"balance"`
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy. Store reads hand out clones so callers
// can never mutate internal state through a shared map.
func (t *Token) Clone() *Token {
	c := *t
	if t.Metadata != nil {
		c.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// TokenPatch is a partial update. Nil fields are left untouched.
type TokenPatch struct {
	Value    *string
	Balance  *float64
	Metadata map[string]any
}
