package action

import "strings"

// Limits is the assistant's fixed authority.
type Limits struct {
	RefundLimit          float64
	DiscountPercentLimit float64
	DiscountValueLimit   float64
}

func DefaultLimits() Limits {
	return Limits{RefundLimit: 100, DiscountPercentLimit: 15, DiscountValueLimit: 50}
}

func (l Limits) RefundAuthorized(amount float64) bool {
	return amount <= l.RefundLimit
}

// DiscountAuthorized checks a percentage against the percent limit and a flat
// value against the value limit.
func (l Limits) DiscountAuthorized(value float64, isPercent bool) bool {
	if isPercent {
		return value <= l.DiscountPercentLimit
	}
	return value <= l.DiscountValueLimit
}

func isPercentKind(kind string) bool {
	kind = strings.ToLower(kind)
	return strings.Contains(kind, "percent") || strings.Contains(kind, "%")
}
