package toll

import (
	"time"

	"github.com/shopspring/decimal"
)

// PotentialFee scans the fee table in declared order; the first fee with
// an interval containing t wins. No match yields zero.
func (r *RuleSet) PotentialFee(t TimeOfDay) decimal.Decimal {
	for _, fee := range r.Fees {
		for _, interval := range fee.Intervals {
			if interval.Contains(t) {
				return fee.Amount
			}
		}
	}
	return decimal.Zero
}

// ClassifyPassage prices one timestamp before any window or exemption logic.
func ClassifyPassage(rules *RuleSet, at time.Time) Passage {
	potential := rules.PotentialFee(TimeOfDayOf(at))
	kind := Unclassified
	if !potential.IsPositive() {
		kind = ExemptionNoFeeInterval
	}
	return Passage{
		At:           at,
		PotentialFee: potential,
		ChargedFee:   decimal.Zero,
		Kind:         kind,
	}
}
