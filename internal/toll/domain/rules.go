package toll

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Interval is a half-open time-of-day range [Start, End).
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Contains reports whether t falls inside the interval.
func (i Interval) Contains(t TimeOfDay) bool {
	return t >= i.Start && t < i.End
}

// Fee is one amount charged over a set of intervals.
type Fee struct {
	Amount    decimal.Decimal
	Intervals []Interval
}

// RuleSet is the fee table and exemption configuration.
// A RuleSet handed to the engine is treated as an immutable snapshot.
type RuleSet struct {
	DailyMaxFee        decimal.Decimal
	WindowDuration     time.Duration
	Fees               []Fee
	ExemptWeekdays     []time.Weekday
	ExemptVehicleTypes []VehicleType
	ValidUntil         time.Time
}

// IsExemptWeekday reports whether passages on the weekday are free.
func (r *RuleSet) IsExemptWeekday(day time.Weekday) bool {
	for _, exempt := range r.ExemptWeekdays {
		if exempt == day {
			return true
		}
	}
	return false
}

// IsExemptVehicle reports whether the vehicle type never pays.
func (r *RuleSet) IsExemptVehicle(vehicle VehicleType) bool {
	for _, exempt := range r.ExemptVehicleTypes {
		if exempt.Matches(vehicle) {
			return true
		}
	}
	return false
}

// Expired reports whether the validity horizon has passed. A zero
// ValidUntil never expires.
func (r *RuleSet) Expired(now time.Time) bool {
	if r.ValidUntil.IsZero() {
		return false
	}
	return now.After(r.ValidUntil)
}

// Validate rejects rule sets that would silently misclassify passages.
func (r *RuleSet) Validate() error {
	if r == nil {
		return ErrNilRuleSet
	}
	if r.DailyMaxFee.IsNegative() {
		return fmt.Errorf("%w: negative daily max fee %s", ErrInvalidRuleSet, r.DailyMaxFee)
	}
	if r.WindowDuration <= 0 {
		return fmt.Errorf("%w: window duration must be positive, got %s", ErrInvalidRuleSet, r.WindowDuration)
	}

	var all []Interval
	for i, fee := range r.Fees {
		if !fee.Amount.IsPositive() {
			return fmt.Errorf("%w: fee %d amount must be positive, got %s", ErrInvalidRuleSet, i, fee.Amount)
		}
		for _, interval := range fee.Intervals {
			if interval.End <= interval.Start {
				return fmt.Errorf("%w: interval %s-%s ends before it starts", ErrInvalidRuleSet, interval.Start, interval.End)
			}
			if interval.Start < 0 || interval.End > Clock(24, 0) {
				return fmt.Errorf("%w: interval %s-%s outside the day", ErrInvalidRuleSet, interval.Start, interval.End)
			}
			all = append(all, interval)
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Start < all[j].Start })
	for i := 1; i < len(all); i++ {
		if all[i].Start < all[i-1].End {
			return fmt.Errorf("%w: interval %s-%s overlaps %s-%s", ErrInvalidRuleSet,
				all[i].Start, all[i].End, all[i-1].Start, all[i-1].End)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (r *RuleSet) Clone() *RuleSet {
	if r == nil {
		return nil
	}
	out := *r
	out.Fees = make([]Fee, len(r.Fees))
	for i, fee := range r.Fees {
		out.Fees[i] = Fee{Amount: fee.Amount, Intervals: append([]Interval(nil), fee.Intervals...)}
	}
	out.ExemptWeekdays = append([]time.Weekday(nil), r.ExemptWeekdays...)
	out.ExemptVehicleTypes = append([]VehicleType(nil), r.ExemptVehicleTypes...)
	return &out
}

// ParseWeekday accepts English day names ("Saturday", "sat") or the
// numbers 0-6 with Sunday as 0.
func ParseWeekday(value string) (time.Weekday, error) {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, value)
		}
		return time.Weekday(n), nil
	}
	for day := time.Sunday; day <= time.Saturday; day++ {
		name := day.String()
		if strings.EqualFold(name, value) || (len(value) == 3 && strings.EqualFold(name[:3], value)) {
			return day, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, value)
}

// DefaultRuleSet returns the built-in Gothenburg congestion tax table.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		DailyMaxFee:    decimal.NewFromInt(60),
		WindowDuration: 60 * time.Minute,
		Fees: []Fee{
			{
				Amount: decimal.NewFromInt(8),
				Intervals: []Interval{
					{Start: Clock(6, 0), End: Clock(6, 30)},
					{Start: Clock(8, 30), End: Clock(15, 0)},
					{Start: Clock(17, 0), End: Clock(18, 0)},
				},
			},
			{
				Amount: decimal.NewFromInt(13),
				Intervals: []Interval{
					{Start: Clock(6, 30), End: Clock(7, 0)},
					{Start: Clock(8, 0), End: Clock(8, 30)},
					{Start: Clock(15, 0), End: Clock(15, 30)},
				},
			},
			{
				Amount: decimal.NewFromInt(18),
				Intervals: []Interval{
					{Start: Clock(7, 0), End: Clock(8, 0)},
					{Start: Clock(15, 30), End: Clock(17, 0)},
				},
			},
		},
		ExemptWeekdays:     []time.Weekday{time.Saturday, time.Sunday},
		ExemptVehicleTypes: []VehicleType{VehicleEmergency, VehicleDiplomat, VehicleMilitary},
		ValidUntil:         time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}
