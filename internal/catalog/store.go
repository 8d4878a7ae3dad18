package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/catalogd/internal/db"
)

// ListFilter controls which services are returned by List.
type ListFilter struct {
	// Search is a case-insensitive substring matched against name,
	// description and keywords.
	Search   string
	Category Category
	Status   Status
	Limit    int
	Offset   int
}

// Store provides CRUD operations for services in the server-side catalog.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

const serviceColumns = `id, name, category, description, price, image, images, keywords,
	features, product_types, status, created_at, updated_at`

// Create validates and inserts a new service. An empty ID gets a UUID.
func (s *Store) Create(ctx context.Context, svc Service) (*Service, error) {
	svc, err := Prepare(svc)
	if err != nil {
		return nil, err
	}
	if svc.ID == "" {
		svc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = now
	}
	svc.UpdatedAt = now

	images, features, tiers, err := marshalLists(svc)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO services (`+serviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		svc.ID, svc.Name, string(svc.Category), svc.Description, svc.Price,
		svc.Image, images, svc.Keywords, features, tiers, string(svc.Status),
		db.FormatTime(svc.CreatedAt), db.FormatTime(svc.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting service: %w", err)
	}
	return &svc, nil
}

// GetByID retrieves a single service.
func (s *Store) GetByID(ctx context.Context, id string) (*Service, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id)
	svc, err := scanInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting service %s: %w", id, err)
	}
	return svc, nil
}

// List returns services matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Service, error) {
	var (
		clauses []string
		args    []any
	)

	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		clauses = append(clauses, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(keywords) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := "SELECT " + serviceColumns + " FROM services"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying services: %w", err)
	}
	defer rows.Close()

	result := []Service{}
	for rows.Next() {
		svc, err := scanInto(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning service: %w", err)
		}
		result = append(result, *svc)
	}
	return result, rows.Err()
}

// Update applies a patch and returns the stored record before and after.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (updated, previous *Service, err error) {
	previous, err = s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	next, err := Apply(*previous, patch)
	if err != nil {
		return nil, nil, err
	}
	next.UpdatedAt = time.Now().UTC()

	images, features, tiers, err := marshalLists(next)
	if err != nil {
		return nil, nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE services SET name = ?, category = ?, description = ?, price = ?, image = ?,
			images = ?, keywords = ?, features = ?, product_types = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		next.Name, string(next.Category), next.Description, next.Price, next.Image,
		images, next.Keywords, features, tiers, string(next.Status),
		db.FormatTime(next.UpdatedAt), id,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("updating service %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil, ErrNotFound
	}
	return &next, previous, nil
}

// Delete removes a service and returns the deleted record so the caller can
// release what it owned.
func (s *Store) Delete(ctx context.Context, id string) (*Service, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM services WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("deleting service %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return existing, nil
}

// Count returns the number of stored services.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM services").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting services: %w", err)
	}
	return n, nil
}

// Stats returns totals per status and the number of distinct categories.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'available' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'unavailable' THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT category)
		FROM services`).Scan(&st.Total, &st.Available, &st.Unavailable, &st.Categories)
	if err != nil {
		return Stats{}, fmt.Errorf("computing stats: %w", err)
	}
	return st, nil
}

// Seed inserts services whose id is not yet stored and returns how many
// were inserted.
func (s *Store) Seed(ctx context.Context, services []Service) (int, error) {
	inserted := 0
	for _, svc := range services {
		if svc.ID != "" {
			var exists int
			err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM services WHERE id = ?", svc.ID).Scan(&exists)
			if err != nil {
				return inserted, fmt.Errorf("checking service %s: %w", svc.ID, err)
			}
			if exists > 0 {
				continue
			}
		}
		if _, err := s.Create(ctx, svc); err != nil {
			return inserted, fmt.Errorf("seeding %q: %w", svc.Name, err)
		}
		inserted++
	}
	return inserted, nil
}

// EnsureDefaults seeds the built-in catalog when the store holds fewer than
// floor services, or none at all when onEmpty is set.
func (s *Store) EnsureDefaults(ctx context.Context, onEmpty bool, floor int) (int, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if !NeedsSeed(n, onEmpty, floor) {
		return 0, nil
	}
	return s.Seed(ctx, Defaults())
}

// NeedsSeed applies the re-seed policy to a catalog of size n.
func NeedsSeed(n int, onEmpty bool, floor int) bool {
	if n == 0 {
		return onEmpty
	}
	return floor > 0 && n < floor
}

// Snapshot returns every service plus a marker that changes whenever any
// row is written or removed.
func (s *Store) Snapshot(ctx context.Context) ([]Service, string, error) {
	return s.snapshot(ctx, ListFilter{})
}

// PublicSnapshot is Snapshot restricted to available services. It feeds
// unauthenticated surfaces such as the change socket.
func (s *Store) PublicSnapshot(ctx context.Context) ([]Service, string, error) {
	return s.snapshot(ctx, ListFilter{Status: StatusAvailable})
}

func (s *Store) snapshot(ctx context.Context, filter ListFilter) ([]Service, string, error) {
	services, err := s.List(ctx, filter)
	if err != nil {
		return nil, "", err
	}
	var (
		count  int
		latest string
	)
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(MAX(updated_at), '') FROM services").Scan(&count, &latest)
	if err != nil {
		return nil, "", fmt.Errorf("reading catalog marker: %w", err)
	}
	return services, fmt.Sprintf("%d@%s", count, latest), nil
}

// PublicSnapshotter adapts PublicSnapshot to the Snapshot method set.
type PublicSnapshotter struct{ Store *Store }

// Snapshot calls PublicSnapshot.
func (p PublicSnapshotter) Snapshot(ctx context.Context) ([]Service, string, error) {
	return p.Store.PublicSnapshot(ctx)
}

// ImageRefs returns the set of image references held by any service.
func (s *Store) ImageRefs(ctx context.Context) (map[string]bool, error) {
	services, err := s.List(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}
	refs := make(map[string]bool)
	for _, svc := range services {
		if svc.Image != "" {
			refs[svc.Image] = true
		}
		for _, img := range svc.Images {
			refs[img] = true
		}
	}
	return refs, nil
}

func marshalLists(svc Service) (images, features, tiers string, err error) {
	b, err := json.Marshal(svc.Images)
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling images: %w", err)
	}
	images = string(b)
	if b, err = json.Marshal(svc.Features); err != nil {
		return "", "", "", fmt.Errorf("marshalling features: %w", err)
	}
	features = string(b)
	if b, err = json.Marshal(svc.ProductTypes); err != nil {
		return "", "", "", fmt.Errorf("marshalling product types: %w", err)
	}
	tiers = string(b)
	return images, features, tiers, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Service, error) {
	var (
		svc                             Service
		category, status                string
		imagesJSON, featuresJSON, tiers string
		created, updated                string
	)

	err := sc.Scan(&svc.ID, &svc.Name, &category, &svc.Description, &svc.Price,
		&svc.Image, &imagesJSON, &svc.Keywords, &featuresJSON, &tiers, &status,
		&created, &updated)
	if err != nil {
		return nil, err
	}

	svc.Category = Category(category)
	svc.Status = Status(status)
	svc.CreatedAt = db.ParseTime(created)
	svc.UpdatedAt = db.ParseTime(updated)

	if err := json.Unmarshal([]byte(imagesJSON), &svc.Images); err != nil || svc.Images == nil {
		svc.Images = []string{}
	}
	if err := json.Unmarshal([]byte(featuresJSON), &svc.Features); err != nil || svc.Features == nil {
		svc.Features = []string{}
	}
	if err := json.Unmarshal([]byte(tiers), &svc.ProductTypes); err != nil || svc.ProductTypes == nil {
		svc.ProductTypes = []ProductType{}
	}

	return &svc, nil
}
