package premium

import "errors"

var (
	// ErrInvalidTenureToken is returned when a licence tenure token is not one of the known buckets.
	ErrInvalidTenureToken = errors.New("license tenure token is not recognised")
)
