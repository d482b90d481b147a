package model

import "time"

// TokenRecord is the store-side view of an issued credential, keyed by its
// jti. The signed JWT proves identity; this record is the source of truth for
// whether the token may still be used.
type TokenRecord struct {
	ID            string    `json:"id"` // jti
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	Role          string    `json:"role"`
	Groups        []string  `json:"groups,omitempty"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	RemainingUses int       `json:"remaining_uses"`
}

func (t *TokenRecord) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
