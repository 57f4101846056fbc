package quote

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// emailPattern is deliberately permissive: something, an @, a dotted domain.
var emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)

// IsValidEmail reports whether email has the local@domain.tld shape.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidAge reports whether age is within the insurable range.
func IsValidAge(age int) bool {
	return age >= 18 && age <= 100
}

// Validator checks applicant fields before any computation happens.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator with the loose_email and insurable_age rules registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	// registration only fails for empty tags or nil functions
	_ = v.RegisterValidation("loose_email", func(fl validator.FieldLevel) bool {
		return IsValidEmail(fl.Field().String())
	})
	_ = v.RegisterValidation("insurable_age", func(fl validator.FieldLevel) bool {
		return IsValidAge(int(fl.Field().Int()))
	})
	return &Validator{validate: v}
}

// Validate returns nil when every field is acceptable, or an error wrapping
// ErrInvalidInput that names the offending fields.
func (v *Validator) Validate(s Submission) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
	}
	return fmt.Errorf("%w: invalid %s", ErrInvalidInput, strings.Join(fields, ", "))
}

// ValidatePricing checks only the fields the premium depends on, for
// estimates that carry no applicant identity.
func (v *Validator) ValidatePricing(s Submission) error {
	var fields []string
	if err := v.validate.Var(s.Age, "insurable_age"); err != nil {
		fields = append(fields, "age")
	}
	if err := v.validate.Var(s.Power, "gte=0"); err != nil {
		fields = append(fields, "puissance")
	}
	if len(fields) == 0 {
		return nil
	}
	return fmt.Errorf("%w: invalid %s", ErrInvalidInput, strings.Join(fields, ", "))
}
