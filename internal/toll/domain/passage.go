package toll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PassageKind classifies how a passage was billed.
type PassageKind uint8

const (
	Unclassified PassageKind = iota
	Standard
	ExemptionNoFeeInterval
	ExemptionWeekend
	ExemptionPublicHoliday
	ExemptionPartialDailyMax
	ExemptionFullDailyMax
	StandardWindowPeak
	ExemptionWindowNonPeak
	ExemptionVehicleType
)

var passageKindNames = [...]string{
	Unclassified:             "Unclassified",
	Standard:                 "Standard",
	ExemptionNoFeeInterval:   "ExemptionNoFeeInterval",
	ExemptionWeekend:         "ExemptionWeekend",
	ExemptionPublicHoliday:   "ExemptionPublicHoliday",
	ExemptionPartialDailyMax: "ExemptionPartialDailyMax",
	ExemptionFullDailyMax:    "ExemptionFullDailyMax",
	StandardWindowPeak:       "StandardWindowPeak",
	ExemptionWindowNonPeak:   "ExemptionWindowNonPeak",
	ExemptionVehicleType:     "ExemptionVehicleType",
}

// PassageKinds lists every kind in declaration order.
func PassageKinds() []PassageKind {
	kinds := make([]PassageKind, len(passageKindNames))
	for i := range passageKindNames {
		kinds[i] = PassageKind(i)
	}
	return kinds
}

func (k PassageKind) String() string {
	if int(k) < len(passageKindNames) {
		return passageKindNames[k]
	}
	return fmt.Sprintf("PassageKind(%d)", uint8(k))
}

// MarshalText encodes the kind by name.
func (k PassageKind) MarshalText() ([]byte, error) {
	if int(k) >= len(passageKindNames) {
		return nil, fmt.Errorf("toll: unknown passage kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *PassageKind) UnmarshalText(text []byte) error {
	for i, name := range passageKindNames {
		if name == string(text) {
			*k = PassageKind(i)
			return nil
		}
	}
	return fmt.Errorf("toll: unknown passage kind %q", text)
}

// Charged reports whether the kind can carry a nonzero charge.
func (k PassageKind) Charged() bool {
	return k == Standard || k == StandardWindowPeak || k == ExemptionPartialDailyMax
}

// Passage is the evaluation of one timestamp.
type Passage struct {
	At           time.Time       `json:"at"`
	PotentialFee decimal.Decimal `json:"potential_fee"`
	ChargedFee   decimal.Decimal `json:"charged_fee"`
	Kind         PassageKind     `json:"kind"`
}

// TimeOfDay returns the wall clock time of the passage.
func (p Passage) TimeOfDay() TimeOfDay { return TimeOfDayOf(p.At) }

// HasFee reports whether the fee table prices this passage.
func (p Passage) HasFee() bool { return p.PotentialFee.IsPositive() }
