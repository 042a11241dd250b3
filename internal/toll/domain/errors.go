package toll

import "errors"

var (
	// ErrInvalidRuleSet is returned when a rule set fails validation.
	ErrInvalidRuleSet = errors.New("toll: invalid rule set")
	// ErrNilRuleSet is returned when a computation is asked to run without rules.
	ErrNilRuleSet = errors.New("toll: nil rule set")
	// ErrInvalidTimeOfDay is returned when a clock string cannot be parsed.
	ErrInvalidTimeOfDay = errors.New("toll: invalid time of day")
	// ErrInvalidVehicleType is returned for an empty vehicle type.
	ErrInvalidVehicleType = errors.New("toll: invalid vehicle type")
	// ErrInvalidWeekday is returned when a weekday name is unknown.
	ErrInvalidWeekday = errors.New("toll: invalid weekday")
)
