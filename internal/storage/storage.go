package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrDuplicateEmail indicates an applicant with the same email is already stored.
	ErrDuplicateEmail = errors.New("an applicant with this email already exists")
	// ErrNotFound is returned by lookups that match no applicant.
	ErrNotFound = errors.New("applicant not found")
	// ErrUnknownDriver is returned by Open for unsupported backends.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Supported storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Applicant is a submitted quote request together with its computed premium.
// Rows are written once and never updated.
type Applicant struct {
	ID          uint      `gorm:"primaryKey"`
	Name        string    `gorm:"size:50;not null"`
	Surname     string    `gorm:"size:50;not null"`
	Email       string    `gorm:"size:100;not null;uniqueIndex"`
	Age         int       `gorm:"not null"`
	TenureYears int       `gorm:"not null"`
	Power       int       `gorm:"not null"`
	UsageType   string    `gorm:"size:16;not null"`
	Premium     float64   `gorm:"type:numeric;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName pins the table used by every SQL backend.
func (Applicant) TableName() string {
	return "applicants"
}

// Storage persists applicants. Implementations enforce email uniqueness.
type Storage interface {
	SaveApplicant(ctx context.Context, applicant *Applicant) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

// Open constructs the backend named by opts.Driver.
func Open(opts Options) (Storage, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryStorage(), nil
	case DriverPostgres:
		return OpenPostgres(opts.DSN, opts.AutoMigrate)
	case DriverSQLite:
		return NewSQLiteStorage(opts.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

// MemoryStorage keeps applicants in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu         sync.RWMutex
	nextID     uint
	applicants map[string]Applicant
	clock      func() time.Time
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		applicants: make(map[string]Applicant),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SaveApplicant assigns an ID and creation time and stores a copy of the applicant.
func (s *MemoryStorage) SaveApplicant(ctx context.Context, applicant *Applicant) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.applicants[applicant.Email]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, applicant.Email)
	}

	s.nextID++
	applicant.ID = s.nextID
	if applicant.CreatedAt.IsZero() {
		applicant.CreatedAt = s.clock()
	}
	s.applicants[applicant.Email] = *applicant
	return nil
}

// ApplicantByEmail returns a copy of the stored applicant.
func (s *MemoryStorage) ApplicantByEmail(email string) (Applicant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	applicant, ok := s.applicants[email]
	if !ok {
		return Applicant{}, ErrNotFound
	}
	return applicant, nil
}

// Len reports how many applicants are stored.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.applicants)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStorage) Close() error {
	return nil
}
