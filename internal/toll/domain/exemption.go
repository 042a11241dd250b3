package toll

// DayExemption is the whole-day override decided before window evaluation.
type DayExemption uint8

const (
	NoDayExemption DayExemption = iota
	VehicleTypeExemption
	WeekendExemption
	PublicHolidayExemption
)

func (e DayExemption) String() string {
	switch e {
	case VehicleTypeExemption:
		return "vehicle_type"
	case WeekendExemption:
		return "weekend"
	case PublicHolidayExemption:
		return "public_holiday"
	default:
		return "none"
	}
}

// Kind returns the passage kind stamped on every passage of an exempt day.
func (e DayExemption) Kind() (PassageKind, bool) {
	switch e {
	case VehicleTypeExemption:
		return ExemptionVehicleType, true
	case WeekendExemption:
		return ExemptionWeekend, true
	case PublicHolidayExemption:
		return ExemptionPublicHoliday, true
	default:
		return Unclassified, false
	}
}

// DayFacts are the inputs of exemption resolution for one day.
type DayFacts struct {
	ExemptVehicle bool
	Weekend       bool
	PublicHoliday bool
}

// ResolveExemption applies the fixed precedence
// vehicle type > weekend > public holiday.
func ResolveExemption(facts DayFacts) DayExemption {
	switch {
	case facts.ExemptVehicle:
		return VehicleTypeExemption
	case facts.Weekend:
		return WeekendExemption
	case facts.PublicHoliday:
		return PublicHolidayExemption
	default:
		return NoDayExemption
	}
}

// ApplyExemption marks every passage with the exemption's kind. It is a
// no-op for NoDayExemption.
func ApplyExemption(windows []Window, exemption DayExemption) {
	kind, ok := exemption.Kind()
	if !ok {
		return
	}
	for _, window := range windows {
		for i := range window {
			window[i].Kind = kind
		}
	}
}
