package premium

// Usage classifies how the insured vehicle is used.
type Usage string

const (
	UsagePersonal     Usage = "personal"
	UsageProfessional Usage = "professional"
	// UsageOther stands for every value outside the known set.
	UsageOther Usage = "other"
)

// Factor returns the usage multiplier. Values outside the known set,
// including the empty string, fall back to the default multiplier.
func (u Usage) Factor() float64 {
	switch u.Class() {
	case UsagePersonal:
		return 1.0
	case UsageProfessional:
		return 1.4
	default:
		return 1.15
	}
}

// Class collapses u onto the closed set personal, professional or other.
// Every value in a class prices identically.
func (u Usage) Class() Usage {
	switch u {
	case UsagePersonal, UsageProfessional:
		return u
	default:
		return UsageOther
	}
}
