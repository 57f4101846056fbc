package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const pgUniqueViolation = "23505"

// GormStorage stores applicants in PostgreSQL through gorm.
type GormStorage struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and optionally migrates the applicants table.
func OpenPostgres(dsn string, autoMigrate bool) (*GormStorage, error) {
	if dsn == "" {
		return nil, errors.New("postgres storage requires a DSN")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	store := NewGormStorage(db)
	if autoMigrate {
		if err := store.Migrate(); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

// NewGormStorage wraps an existing gorm handle.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

// Migrate creates or updates the applicants table.
func (s *GormStorage) Migrate() error {
	if err := s.db.AutoMigrate(&Applicant{}); err != nil {
		return fmt.Errorf("migrate applicants: %w", err)
	}
	return nil
}

// SaveApplicant inserts one row; the unique index on email rejects duplicates.
func (s *GormStorage) SaveApplicant(ctx context.Context, applicant *Applicant) error {
	if err := s.db.WithContext(ctx).Create(applicant).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, applicant.Email)
		}
		return fmt.Errorf("insert applicant: %w", err)
	}
	return nil
}

// ApplicantByEmail loads a stored applicant.
func (s *GormStorage) ApplicantByEmail(ctx context.Context, email string) (Applicant, error) {
	var applicant Applicant
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&applicant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Applicant{}, ErrNotFound
	}
	if err != nil {
		return Applicant{}, fmt.Errorf("load applicant: %w", err)
	}
	return applicant, nil
}

// Close releases the underlying connection pool.
func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
