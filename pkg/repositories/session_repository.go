package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskora-inc/taskora-engine/pkg/apperrors"
	"github.com/taskora-inc/taskora-engine/pkg/database"
	"github.com/taskora-inc/taskora-engine/pkg/models"
)

// SessionRepository defines the interface for session token data access.
// Sessions are looked up by token hash; raw token values never reach storage.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	// GetWithEmail retrieves a session and its user's email by token hash.
	GetWithEmail(ctx context.Context, tokenHash string) (*models.Session, string, error)
	Delete(ctx context.Context, tokenHash string) error
}

// sessionRepository implements SessionRepository using PostgreSQL.
type sessionRepository struct {
	db database.Querier
}

// NewSessionRepository creates a new session repository over the given handle.
func NewSessionRepository(db database.Querier) SessionRepository {
	return &sessionRepository{db: db}
}

// Create inserts a new session row.
func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.CreatedAt = time.Now()

	query := `
		INSERT INTO sessions (id, user_id, token_hash, ip, user_agent, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.IP,
		session.UserAgent,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetWithEmail retrieves a session joined with the owning user's email.
func (r *sessionRepository) GetWithEmail(ctx context.Context, tokenHash string) (*models.Session, string, error) {
	query := `
		SELECT s.id, s.user_id, s.token_hash, s.ip, s.user_agent, s.expires_at, s.created_at, u.email
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1`

	var session models.Session
	var email string
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.IP,
		&session.UserAgent,
		&session.ExpiresAt,
		&session.CreatedAt,
		&email,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", apperrors.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to get session: %w", err)
	}

	return &session, email, nil
}

// Delete removes a session row. Deleting an unknown hash is a no-op; logout
// must be idempotent.
func (r *sessionRepository) Delete(ctx context.Context, tokenHash string) error {
	query := `DELETE FROM sessions WHERE token_hash = $1`

	if _, err := r.db.Exec(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Ensure sessionRepository implements SessionRepository at compile time.
var _ SessionRepository = (*sessionRepository)(nil)
