package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/eugenenazirov/premium-quote/internal/cache"
	"github.com/eugenenazirov/premium-quote/internal/premium"
	"github.com/eugenenazirov/premium-quote/internal/storage"
)

// Submission is the applicant form after wire decoding.
type Submission struct {
	Name          string        `json:"nom" validate:"required,max=50"`
	Surname       string        `json:"prenom" validate:"required,max=50"`
	Email         string        `json:"email" validate:"required,max=100,loose_email"`
	Age           int           `json:"age" validate:"insurable_age"`
	LicenseTenure string        `json:"anciennete_permis"`
	Power         int           `json:"puissance" validate:"gte=0"`
	Usage         premium.Usage `json:"usage_type"`
}

// Result is a priced quote.
type Result struct {
	ApplicantID uint
	TenureYears int
	Premium     float64
	Formatted   string
	Breakdown   premium.Breakdown
	Cached      bool
}

// Service prices and stores quotes.
type Service struct {
	validator  *Validator
	calculator premium.Calculator
	store      storage.Storage
	cache      cache.Cache
	logger     *zap.Logger
}

// ServiceOption configures Service behaviour.
type ServiceOption func(*Service)

// WithCache memoises premium calculations.
func WithCache(c cache.Cache) ServiceOption {
	return func(s *Service) {
		s.cache = c
	}
}

// WithLogger sets the logger used for computation failures.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs a Service. store may be nil for estimate-only use.
func NewService(calc premium.Calculator, store storage.Storage, opts ...ServiceOption) *Service {
	s := &Service{
		validator:  NewValidator(),
		calculator: calc,
		store:      store,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Estimate prices a submission without persisting it. Only the pricing
// fields are validated; the applicant's name and email may be empty.
func (s *Service) Estimate(ctx context.Context, sub Submission) (Result, error) {
	if err := s.validator.ValidatePricing(sub); err != nil {
		return Result{}, err
	}
	return s.price(ctx, sub)
}

func (s *Service) price(ctx context.Context, sub Submission) (Result, error) {
	bucket, err := premium.ParseTenureBucket(sub.LicenseTenure)
	if err != nil {
		return Result{}, err
	}

	in := premium.Input{
		Age:         sub.Age,
		TenureYears: bucket.Years(),
		Power:       sub.Power,
		Usage:       sub.Usage,
	}

	breakdown, cached, err := s.calculate(ctx, in)
	if err != nil {
		s.logger.Error("premium calculation failed",
			zap.Error(err),
			zap.Int("age", in.Age),
			zap.Int("tenure_years", in.TenureYears),
			zap.Int("power", in.Power),
			zap.String("usage", string(in.Usage.Class())),
		)
		return Result{}, err
	}

	return Result{
		TenureYears: in.TenureYears,
		Premium:     breakdown.Rounded,
		Formatted:   breakdown.Formatted(),
		Breakdown:   breakdown,
		Cached:      cached,
	}, nil
}

// Submit prices a submission and stores the applicant with its premium.
func (s *Service) Submit(ctx context.Context, sub Submission) (Result, error) {
	if err := s.validator.Validate(sub); err != nil {
		return Result{}, err
	}
	result, err := s.price(ctx, sub)
	if err != nil {
		return Result{}, err
	}
	if s.store == nil {
		return Result{}, &ComputationError{Op: "persist applicant", Err: errors.New("no storage configured")}
	}

	applicant := &storage.Applicant{
		Name:        sub.Name,
		Surname:     sub.Surname,
		Email:       sub.Email,
		Age:         sub.Age,
		TenureYears: result.TenureYears,
		Power:       sub.Power,
		UsageType:   string(sub.Usage.Class()),
		Premium:     result.Premium,
	}
	if err := s.store.SaveApplicant(ctx, applicant); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return Result{}, err
		}
		s.logger.Error("failed to persist applicant",
			zap.Error(err),
			zap.String("email", sub.Email),
			zap.Float64("premium", result.Premium),
		)
		return Result{}, &ComputationError{Op: "persist applicant", Err: err}
	}

	result.ApplicantID = applicant.ID
	return result, nil
}

func (s *Service) calculate(ctx context.Context, in premium.Input) (b premium.Breakdown, cached bool, err error) {
	key := cacheKey(in)
	if s.cache != nil {
		raw, ok, getErr := s.cache.Get(ctx, key)
		switch {
		case getErr != nil:
			s.logger.Warn("premium cache lookup failed", zap.String("key", key), zap.Error(getErr))
		case ok:
			if jsonErr := json.Unmarshal([]byte(raw), &b); jsonErr == nil {
				return b, true, nil
			}
			s.logger.Warn("discarding unreadable cache entry", zap.String("key", key))
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = &ComputationError{Op: "calculate premium", Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	b = s.calculator.Calculate(in)
	if math.IsNaN(b.Premium) || math.IsInf(b.Premium, 0) || b.Premium <= 0 {
		return premium.Breakdown{}, false, &ComputationError{
			Op:  "calculate premium",
			Err: fmt.Errorf("premium out of range: %v", b.Premium),
		}
	}

	if s.cache != nil {
		if raw, jsonErr := json.Marshal(b); jsonErr == nil {
			if setErr := s.cache.Set(ctx, key, string(raw)); setErr != nil {
				s.logger.Warn("failed to cache premium", zap.String("key", key), zap.Error(setErr))
			}
		}
	}
	return b, false, nil
}

// cacheKey keys on the usage class, so the key space stays bounded whatever
// usage string a client sends.
func cacheKey(in premium.Input) string {
	return "premium:" + strconv.Itoa(in.Age) + ":" + strconv.Itoa(in.TenureYears) + ":" +
		strconv.Itoa(in.Power) + ":" + string(in.Usage.Class())
}
