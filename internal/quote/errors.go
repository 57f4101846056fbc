package quote

import (
	"errors"
	"fmt"

	"github.com/eugenenazirov/premium-quote/internal/premium"
)

var (
	// ErrInvalidInput is returned when the email or age (or another applicant field) fails validation.
	ErrInvalidInput = errors.New("submitted data is invalid")
	// ErrInvalidTenureToken is returned when the licence tenure token is not a known bucket.
	ErrInvalidTenureToken = premium.ErrInvalidTenureToken
)

// ComputationError reports an unexpected failure while pricing or persisting a quote.
type ComputationError struct {
	Op  string
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}
