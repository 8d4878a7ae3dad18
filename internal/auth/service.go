package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// EventKind names an admin session event.
type EventKind string

const (
	EventLogin  EventKind = "admin_login"
	EventLogout EventKind = "admin_logout"
)

// Observer is told when sessions open and close.
type Observer interface {
	AdminEvent(ctx context.Context, kind EventKind, s Session)
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token   string
	Admin   Admin
	Session Session
}

// Service ties credential checks, tokens and sessions together.
type Service struct {
	admins    *AdminStore
	sessions  *SessionStore
	hasher    *PasswordHasher
	tokens    *TokenManager
	observers []Observer
}

// NewService creates a Service.
func NewService(admins *AdminStore, sessions *SessionStore, hasher *PasswordHasher, tokens *TokenManager, observers ...Observer) *Service {
	return &Service{
		admins:    admins,
		sessions:  sessions,
		hasher:    hasher,
		tokens:    tokens,
		observers: observers,
	}
}

// Observe registers an additional observer.
func (s *Service) Observe(o Observer) {
	s.observers = append(s.observers, o)
}

// Login checks credentials, opens a session and issues a token bound to it.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, admin.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(ctx, *admin, s.tokens.TTL())
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(*admin, sess.ID)
	if err != nil {
		s.sessions.Delete(ctx, sess.ID)
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	s.emit(ctx, EventLogin, *sess)
	return &LoginResult{Token: token, Admin: *admin, Session: *sess}, nil
}

// Authenticate validates a token and returns the live session it refers to.
// Tokens whose session was cleared by logout are rejected.
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, claims.SessionID())
	if err != nil {
		return nil, err
	}
	if sess.AdminID != claims.AdminID {
		return nil, ErrInvalidToken
	}
	if err := s.sessions.Touch(ctx, sess.ID); err != nil {
		zap.L().Warn("touching admin session", zap.String("session_id", sess.ID), zap.Error(err))
	}
	return sess, nil
}

// Logout clears the session.
func (s *Service) Logout(ctx context.Context, sess Session) error {
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return err
	}
	s.emit(ctx, EventLogout, sess)
	return nil
}

// SetEditing records the service open in the session's editor and returns
// the updated session.
func (s *Service) SetEditing(ctx context.Context, sessionID, serviceID string) (*Session, error) {
	if err := s.sessions.SetEditing(ctx, sessionID, serviceID); err != nil {
		return nil, err
	}
	return s.sessions.Get(ctx, sessionID)
}

// EnsureDefaultAdmin creates the configured admin when no admin exists yet.
// It reports whether an account was created.
func (s *Service) EnsureDefaultAdmin(ctx context.Context, email, password, name string) (bool, error) {
	n, err := s.admins.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hashing default admin password: %w", err)
	}
	if _, err := s.admins.Create(ctx, Admin{Email: email, Name: name, PasswordHash: hash}); err != nil {
		return false, err
	}
	zap.L().Info("default admin created", zap.String("email", NormalizeEmail(email)))
	return true, nil
}

// ChangePassword sets a new password for the admin with email.
func (s *Service) ChangePassword(ctx context.Context, email, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.admins.SetPasswordHash(ctx, email, hash)
}

// PruneSessions removes expired sessions.
func (s *Service) PruneSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx)
}

func (s *Service) emit(ctx context.Context, kind EventKind, sess Session) {
	for _, o := range s.observers {
		o.AdminEvent(ctx, kind, sess)
	}
}
