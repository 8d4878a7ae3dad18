package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/catalogd/internal/db"
)

var (
	// ErrAdminNotFound is returned when no admin matches the lookup.
	ErrAdminNotFound = errors.New("admin not found")
	// ErrAdminExists is returned when an email is already registered.
	ErrAdminExists = errors.New("admin already exists")
)

// Admin is an account allowed to edit the catalog.
type Admin struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// AdminStore persists admin accounts.
type AdminStore struct {
	db *db.DB
}

// NewAdminStore creates an AdminStore backed by the given database.
func NewAdminStore(database *db.DB) *AdminStore {
	return &AdminStore{db: database}
}

// NormalizeEmail lowercases and trims an address for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts an admin. An empty ID gets a UUID.
func (s *AdminStore) Create(ctx context.Context, a Admin) (*Admin, error) {
	a.Email = NormalizeEmail(a.Email)
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Name == "" {
		a.Name = "Admin"
	}
	a.CreatedAt = time.Now().UTC()

	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM admins WHERE email = ?", a.Email).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking admin email: %w", err)
	}
	if exists > 0 {
		return nil, ErrAdminExists
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO admins (id, email, password_hash, name, created_at) VALUES (?, ?, ?, ?, ?)",
		a.ID, a.Email, a.PasswordHash, a.Name, db.FormatTime(a.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting admin: %w", err)
	}
	return &a, nil
}

// GetByEmail looks an admin up by normalized email.
func (s *AdminStore) GetByEmail(ctx context.Context, email string) (*Admin, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, name, created_at FROM admins WHERE email = ?",
		NormalizeEmail(email))
	return scanAdmin(row)
}

// GetByID looks an admin up by id.
func (s *AdminStore) GetByID(ctx context.Context, id string) (*Admin, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, name, created_at FROM admins WHERE id = ?", id)
	return scanAdmin(row)
}

// Count returns the number of admins.
func (s *AdminStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM admins").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return n, nil
}

// SetPasswordHash replaces an admin's stored hash.
func (s *AdminStore) SetPasswordHash(ctx context.Context, email, hash string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE admins SET password_hash = ? WHERE email = ?", hash, NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("updating admin password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAdminNotFound
	}
	return nil
}

func scanAdmin(row *sql.Row) (*Admin, error) {
	var (
		a       Admin
		created string
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning admin: %w", err)
	}
	a.CreatedAt = db.ParseTime(created)
	return &a, nil
}
