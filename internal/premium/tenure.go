package premium

import "fmt"

// TenureBucket is the coarse licence age category picked on the form.
type TenureBucket string

const (
	TenureUnder5 TenureBucket = "moins_5"
	Tenure5To20  TenureBucket = "5_20"
	TenureOver20 TenureBucket = "plus_20"
)

// ParseTenureBucket validates a form token.
func ParseTenureBucket(token string) (TenureBucket, error) {
	switch b := TenureBucket(token); b {
	case TenureUnder5, Tenure5To20, TenureOver20:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTenureToken, token)
	}
}

// Years returns the representative tenure used by the formula.
func (b TenureBucket) Years() int {
	switch b {
	case TenureUnder5:
		return 5
	case Tenure5To20:
		return 10
	case TenureOver20:
		return 20
	default:
		return 0
	}
}
