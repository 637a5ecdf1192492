package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is an issued session token. The opaque token value is never stored;
// TokenHash holds its SHA-256 for lookup. IP and UserAgent are recorded for
// audit only and are not enforced as a binding.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"-"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is past its expiry. There is no grace
// period; validation fails closed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
