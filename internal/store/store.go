// Package store is the Postgres data access layer for users, inspections,
// findings and their photos.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"k3rs/backend/internal/inspection"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("already exists")
)

// PhotoResolver turns a stored object key into a URL the report engine can
// fetch.
type PhotoResolver func(ctx context.Context, key string) (string, error)

type Store struct {
	db      *pgxpool.Pool
	resolve PhotoResolver
}

// New wraps pool. resolve may be nil; keys are then passed through as-is,
// which only works for keys that are already URLs.
func New(pool *pgxpool.Pool, resolve PhotoResolver) *Store {
	return &Store{db: pool, resolve: resolve}
}

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash, role string) (User, error) {
	u := User{Name: name, Email: email, Role: role, Status: "active"}
	err := s.db.QueryRow(ctx, `
		INSERT INTO users(name, email, password_hash, role, status)
		VALUES ($1, $2, $3, $4, 'active')
		RETURNING id, created_at
	`, name, email, passwordHash, role).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return User{}, mapError(err)
	}
	return u, nil
}

// UserByEmail returns an active user.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT id, name, email, role, status, password_hash, created_at
		FROM users
		WHERE email = $1 AND status = 'active'
	`, email))
}

func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT id, name, email, role, status, password_hash, created_at
		FROM users
		WHERE id = $1
	`, id))
}

func (s *Store) scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Status, &u.PasswordHash, &u.CreatedAt); err != nil {
		return User{}, mapError(err)
	}
	return u, nil
}

// CreateInspection inserts the inspection and its findings in one
// transaction and returns the stored record.
func (s *Store) CreateInspection(ctx context.Context, rec inspection.Record, createdBy int64) (inspection.Record, error) {
	rec.ID = uuid.NewString()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return inspection.Record{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO inspections(id, inspection_type, inspection_date, created_by)
		VALUES ($1, $2, $3, $4)
	`, rec.ID, rec.Type, nullableDate(rec.Date), nullableUser(createdBy))
	if err != nil {
		return inspection.Record{}, mapError(err)
	}

	for i := range rec.Findings {
		rec.Findings[i].ID = uuid.NewString()
		rec.Findings[i].Photos = nil
		if err := insertFinding(ctx, tx, rec.ID, i, rec.Findings[i]); err != nil {
			return inspection.Record{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return inspection.Record{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// AddFinding appends a finding to the end of an inspection. The inspection
// row is locked so concurrent appends get distinct positions.
func (s *Store) AddFinding(ctx context.Context, inspectionID string, f inspection.Finding) (inspection.Finding, error) {
	f.ID = uuid.NewString()
	f.Photos = nil

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return inspection.Finding{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockRow(ctx, tx, lockInspectionSQL, inspectionID); err != nil {
		return inspection.Finding{}, err
	}
	var position int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(position) + 1, 0) FROM findings WHERE inspection_id = $1
	`, inspectionID).Scan(&position)
	if err != nil {
		return inspection.Finding{}, mapError(err)
	}
	if err := insertFinding(ctx, tx, inspectionID, position, f); err != nil {
		return inspection.Finding{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return inspection.Finding{}, fmt.Errorf("commit: %w", err)
	}
	return f, nil
}

const (
	lockInspectionSQL = `SELECT id FROM inspections WHERE id = $1 FOR UPDATE`
	lockFindingSQL    = `SELECT id FROM findings WHERE id = $1 FOR UPDATE`
)

// lockRow takes a row lock on the parent for the rest of tx. A missing parent
// is ErrNotFound.
func lockRow(ctx context.Context, tx pgx.Tx, query, id string) error {
	var got string
	return mapError(tx.QueryRow(ctx, query, id).Scan(&got))
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertFinding(ctx context.Context, db execer, inspectionID string, position int, f inspection.Finding) error {
	_, err := db.Exec(ctx, `
		INSERT INTO findings(id, inspection_id, position, location, finding, hazard_risk, recommendation, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, f.ID, inspectionID, position, f.Location, f.Finding, f.HazardRisk, f.Recommendation, f.Notes)
	return mapError(err)
}

// AddPhoto records an uploaded object against a finding, after its existing
// photos. The finding row is locked while the position is taken.
func (s *Store) AddPhoto(ctx context.Context, findingID, objectKey, contentType string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockRow(ctx, tx, lockFindingSQL, findingID); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO finding_photos(id, finding_id, position, object_key, content_type)
		SELECT $1, $2, COALESCE(MAX(position) + 1, 0), $3, $4
		FROM finding_photos WHERE finding_id = $2
	`, uuid.NewString(), findingID, objectKey, contentType)
	if err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteInspection removes the inspection with its findings and photo rows,
// returning the object keys the caller should remove from storage.
func (s *Store) DeleteInspection(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.object_key
		FROM finding_photos p
		JOIN findings f ON f.id = p.finding_id
		WHERE f.inspection_id = $1
	`, id)
	if err != nil {
		return nil, mapError(err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapError(err)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM inspections WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return keys, nil
}

// GetInspection loads one record with its findings and photos.
func (s *Store) GetInspection(ctx context.Context, id string) (inspection.Record, error) {
	recs, err := s.load(ctx, `WHERE id = $1`, []any{id})
	if err != nil {
		return inspection.Record{}, err
	}
	if len(recs) == 0 {
		return inspection.Record{}, ErrNotFound
	}
	return recs[0], nil
}

// ListRecords loads every record matching f, oldest first, with findings
// and photos attached.
func (s *Store) ListRecords(ctx context.Context, f Filter) ([]inspection.Record, error) {
	where, args, err := f.where()
	if err != nil {
		return nil, err
	}
	return s.load(ctx, where, args)
}

func (s *Store) load(ctx context.Context, where string, args []any) ([]inspection.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, inspection_type, inspection_date
		FROM inspections
		`+where+`
		ORDER BY inspection_date NULLS LAST, created_at, id
	`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	heads, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (inspectionRow, error) {
		var r inspectionRow
		err := row.Scan(&r.ID, &r.Type, &r.Date)
		return r, err
	})
	if err != nil {
		return nil, mapError(err)
	}
	if len(heads) == 0 {
		return []inspection.Record{}, nil
	}

	ids := make([]string, len(heads))
	for i, h := range heads {
		ids[i] = h.ID
	}

	rows, err = s.db.Query(ctx, `
		SELECT id, inspection_id, location, finding, hazard_risk, recommendation, notes
		FROM findings
		WHERE inspection_id = ANY($1)
		ORDER BY inspection_id, position
	`, ids)
	if err != nil {
		return nil, mapError(err)
	}
	findings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (findingRow, error) {
		var f findingRow
		err := row.Scan(&f.ID, &f.InspectionID, &f.Location, &f.Finding, &f.HazardRisk, &f.Recommendation, &f.Notes)
		return f, err
	})
	if err != nil {
		return nil, mapError(err)
	}

	findingIDs := make([]string, len(findings))
	for i, f := range findings {
		findingIDs[i] = f.ID
	}
	rows, err = s.db.Query(ctx, `
		SELECT finding_id, object_key
		FROM finding_photos
		WHERE finding_id = ANY($1)
		ORDER BY finding_id, position
	`, findingIDs)
	if err != nil {
		return nil, mapError(err)
	}
	photos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (photoRow, error) {
		var p photoRow
		err := row.Scan(&p.FindingID, &p.Key)
		return p, err
	})
	if err != nil {
		return nil, mapError(err)
	}

	for i := range photos {
		photos[i].URL, err = s.photoURL(ctx, photos[i].Key)
		if err != nil {
			return nil, err
		}
	}
	return assembleRecords(heads, findings, photos), nil
}

func (s *Store) photoURL(ctx context.Context, key string) (string, error) {
	if s.resolve == nil {
		return key, nil
	}
	url, err := s.resolve(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve photo %s: %w", key, err)
	}
	return url, nil
}

type Dashboard struct {
	Month             string         `json:"month"`
	Inspections       int            `json:"inspections"`
	Findings          int            `json:"findings"`
	Photos            int            `json:"photos"`
	InspectionsByType map[string]int `json:"inspections_by_type"`
}

// Dashboard counts activity for the calendar month containing now.
func (s *Store) Dashboard(ctx context.Context, now time.Time) (Dashboard, error) {
	month := now.Format("2006-01")
	f := Filter{Month: month}
	where, args, err := f.where()
	if err != nil {
		return Dashboard{}, err
	}

	out := Dashboard{Month: month, InspectionsByType: map[string]int{}}
	err = s.db.QueryRow(ctx, `
		SELECT
			COUNT(DISTINCT i.id),
			COUNT(DISTINCT f.id),
			COUNT(p.id)
		FROM (SELECT id FROM inspections `+where+`) i
		LEFT JOIN findings f ON f.inspection_id = i.id
		LEFT JOIN finding_photos p ON p.finding_id = f.id
	`, args...).Scan(&out.Inspections, &out.Findings, &out.Photos)
	if err != nil {
		return Dashboard{}, mapError(err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT inspection_type, COUNT(*)
		FROM inspections
		`+where+`
		GROUP BY inspection_type
	`, args...)
	if err != nil {
		return Dashboard{}, mapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return Dashboard{}, err
		}
		out.InspectionsByType[typ] = n
	}
	return out, rows.Err()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(pgErr.ConstraintName, "_fkey"))
		}
	}
	return err
}

func nullableDate(d inspection.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Raw()
}

func nullableUser(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}
