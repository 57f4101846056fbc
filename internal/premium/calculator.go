package premium

import (
	"strconv"

	"go.uber.org/zap"
)

const (
	baseCost           = 300.0
	minLicenseFactor   = 0.85
	vehicleTenureCap   = 15
	seats              = 4
	passengerSurcharge = 0.03
)

type formulaCalculator struct {
	logger *zap.Logger
}

// Option configures the calculator.
type Option func(*formulaCalculator)

// WithLogger enables a debug trace of every factor.
func WithLogger(logger *zap.Logger) Option {
	return func(c *formulaCalculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Calculator implementing the fixed multiplicative formula.
// It holds no mutable state and is safe for concurrent use.
func New(opts ...Option) Calculator {
	c := &formulaCalculator{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *formulaCalculator) Calculate(in Input) Breakdown {
	b := Breakdown{
		AgeFactor:       AgeFactor(in.Age),
		LicenseFactor:   LicenseFactor(in.TenureYears),
		VehicleFactor:   VehicleFactor(in.TenureYears),
		PowerFactor:     PowerFactor(in.Power),
		PassengerFactor: PassengerFactor(),
		UsageFactor:     in.Usage.Factor(),
	}
	b.Multiplier = b.AgeFactor * b.LicenseFactor * b.VehicleFactor * b.PowerFactor * b.PassengerFactor * b.UsageFactor
	b.Premium = baseCost * b.Multiplier
	b.Rounded = roundAmount(b.Premium)

	if ce := c.logger.Check(zap.DebugLevel, "premium calculated"); ce != nil {
		ce.Write(
			zap.Int("age", in.Age),
			zap.Int("tenure_years", in.TenureYears),
			zap.Int("power", in.Power),
			zap.String("usage", string(in.Usage)),
			zap.Float64("age_factor", b.AgeFactor),
			zap.Float64("license_factor", b.LicenseFactor),
			zap.Float64("vehicle_factor", b.VehicleFactor),
			zap.Float64("power_factor", b.PowerFactor),
			zap.Float64("passenger_factor", b.PassengerFactor),
			zap.Float64("usage_factor", b.UsageFactor),
			zap.Float64("multiplier", b.Multiplier),
			zap.Float64("premium", b.Premium),
		)
	}

	return b
}

// AgeFactor is piecewise: young drivers pay more, the 25-60 band is
// cheapest around 30 and seniors pay progressively more after 60.
func AgeFactor(age int) float64 {
	switch {
	case age < 25:
		return 1.6 - 0.02*float64(25-age)
	case age <= 60:
		return 1.0 + 0.01*float64(30-abs(age-30))
	default:
		return 1.3 + 0.015*float64(age-60)
	}
}

// LicenseFactor decreases with tenure and never drops below 0.85.
func LicenseFactor(tenureYears int) float64 {
	return max(minLicenseFactor, 1.6-0.06*float64(tenureYears))
}

// VehicleFactor grows with tenure, capped at 15 years.
func VehicleFactor(tenureYears int) float64 {
	return 1.0 + 0.04*float64(min(tenureYears, vehicleTenureCap))
}

// PowerFactor is linear in engine power.
func PowerFactor(power int) float64 {
	return 1.0 + 0.015*float64(power)
}

// PassengerFactor assumes a four seat vehicle.
func PassengerFactor() float64 {
	return 1.0 + passengerSurcharge*float64(max(0, seats-1))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// roundAmount goes through the decimal rendering so that the stored value
// always agrees with the formatted one.
func roundAmount(v float64) float64 {
	rounded, err := strconv.ParseFloat(formatAmount(v), 64)
	if err != nil {
		return v
	}
	return rounded
}
