package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStorage stores applicants in a SQLite database file.
type SQLiteStorage struct {
	db    *sql.DB
	clock func() time.Time
}

// NewSQLiteStorage opens dsn and creates the applicants table when missing.
func NewSQLiteStorage(dsn string) (*SQLiteStorage, error) {
	if dsn == "" {
		dsn = "quotes.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if err := migrateApplicants(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStorage{
		db: db,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func migrateApplicants(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS applicants (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    surname TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    age INTEGER NOT NULL,
    tenure_years INTEGER NOT NULL,
    power INTEGER NOT NULL,
    usage_type TEXT NOT NULL DEFAULT '',
    premium REAL NOT NULL,
    created_at TEXT NOT NULL
);
`)
	if err != nil {
		return fmt.Errorf("migrate applicants: %w", err)
	}
	return nil
}

// SaveApplicant inserts one row and fills in the generated ID.
func (s *SQLiteStorage) SaveApplicant(ctx context.Context, applicant *Applicant) error {
	if applicant.CreatedAt.IsZero() {
		applicant.CreatedAt = s.clock()
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO applicants(name, surname, email, age, tenure_years, power, usage_type, premium, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		applicant.Name,
		applicant.Surname,
		applicant.Email,
		applicant.Age,
		applicant.TenureYears,
		applicant.Power,
		applicant.UsageType,
		applicant.Premium,
		applicant.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, applicant.Email)
		}
		return fmt.Errorf("insert applicant: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read applicant id: %w", err)
	}
	applicant.ID = uint(id)
	return nil
}

// ApplicantByEmail loads a stored applicant.
func (s *SQLiteStorage) ApplicantByEmail(ctx context.Context, email string) (Applicant, error) {
	var (
		applicant Applicant
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, surname, email, age, tenure_years, power, usage_type, premium, created_at
FROM applicants WHERE email = ?`, email).Scan(
		&applicant.ID,
		&applicant.Name,
		&applicant.Surname,
		&applicant.Email,
		&applicant.Age,
		&applicant.TenureYears,
		&applicant.Power,
		&applicant.UsageType,
		&applicant.Premium,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Applicant{}, ErrNotFound
	}
	if err != nil {
		return Applicant{}, fmt.Errorf("load applicant: %w", err)
	}

	applicant.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Applicant{}, fmt.Errorf("parse created_at: %w", err)
	}
	return applicant, nil
}

// Close closes the database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	default:
		return false
	}
}
