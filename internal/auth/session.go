package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/catalogd/internal/db"
)

// ErrSessionNotFound is returned for a cleared, expired or unknown session.
var ErrSessionNotFound = errors.New("session not found")

// Session is the state of one admin login: who is signed in and which
// service, if any, they have open in the editor. It is created by login and
// removed by logout.
type Session struct {
	ID               string    `json:"id"`
	AdminID          string    `json:"adminId"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	EditingServiceID string    `json:"editingServiceId"`
	CreatedAt        time.Time `json:"createdAt"`
	LastSeenAt       time.Time `json:"lastSeenAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// Editing reports whether the session has a service open.
func (s *Session) Editing() bool { return s.EditingServiceID != "" }

// SessionStore persists admin sessions.
type SessionStore struct {
	db  *db.DB
	now func() time.Time
}

// NewSessionStore creates a SessionStore backed by the given database.
func NewSessionStore(database *db.DB) *SessionStore {
	return &SessionStore{db: database, now: time.Now}
}

// Create opens a session for admin lasting ttl.
func (s *SessionStore) Create(ctx context.Context, admin Admin, ttl time.Duration) (*Session, error) {
	now := s.now().UTC()
	sess := Session{
		ID:         uuid.New().String(),
		AdminID:    admin.ID,
		Email:      admin.Email,
		Name:       admin.Name,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_sessions (id, admin_id, editing_service_id, created_at, last_seen_at, expires_at)
		VALUES (?, ?, '', ?, ?, ?)`,
		sess.ID, sess.AdminID,
		db.FormatTime(sess.CreatedAt), db.FormatTime(sess.LastSeenAt), db.FormatTime(sess.ExpiresAt),
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &sess, nil
}

// Get returns a live session. Expired sessions are reported as not found.
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var created, seen, expires string
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.admin_id, a.email, a.name, s.editing_service_id,
			s.created_at, s.last_seen_at, s.expires_at
		FROM admin_sessions s JOIN admins a ON a.id = s.admin_id
		WHERE s.id = ?`, id).Scan(
		&sess.ID, &sess.AdminID, &sess.Email, &sess.Name, &sess.EditingServiceID,
		&created, &seen, &expires,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	sess.CreatedAt = db.ParseTime(created)
	sess.LastSeenAt = db.ParseTime(seen)
	sess.ExpiresAt = db.ParseTime(expires)

	if !s.now().Before(sess.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

// Touch records activity on a session.
func (s *SessionStore) Touch(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE admin_sessions SET last_seen_at = ? WHERE id = ?",
		db.FormatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("touching session %s: %w", id, err)
	}
	return nil
}

// SetEditing records which service the session has open. An empty id clears it.
func (s *SessionStore) SetEditing(ctx context.Context, id, serviceID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE admin_sessions SET editing_service_id = ?, last_seen_at = ? WHERE id = ?",
		serviceID, db.FormatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Delete clears a session. Deleting an unknown session is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM admin_sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and returns how many.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM admin_sessions WHERE expires_at <= ?", db.FormatTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return res.RowsAffected()
}
