package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is an authenticated identity attempting an action. It is produced
// by session-token validation and has no lifecycle of its own.
type Principal struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}
