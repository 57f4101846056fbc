package premium

// Input carries the applicant attributes the pricing formula depends on.
type Input struct {
	Age         int
	TenureYears int
	Power       int
	Usage       Usage
}

// Breakdown exposes every factor of a calculation alongside the premium.
// Premium keeps full precision; Rounded is the value shown to applicants.
type Breakdown struct {
	AgeFactor       float64
	LicenseFactor   float64
	VehicleFactor   float64
	PowerFactor     float64
	PassengerFactor float64
	UsageFactor     float64
	Multiplier      float64
	Premium         float64
	Rounded         float64
}

// Formatted renders the premium with exactly two fractional digits.
func (b Breakdown) Formatted() string {
	return formatAmount(b.Premium)
}

// Calculator describes the behaviour required from a premium calculator.
type Calculator interface {
	Calculate(in Input) Breakdown
}
