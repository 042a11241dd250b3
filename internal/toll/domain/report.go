package toll

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// HolidayChecker answers whether a calendar date is a public holiday.
type HolidayChecker interface {
	IsPublicHoliday(date civil.Date) bool
}

// HolidayFunc adapts a function to HolidayChecker.
type HolidayFunc func(date civil.Date) bool

// IsPublicHoliday implements HolidayChecker.
func (f HolidayFunc) IsPublicHoliday(date civil.Date) bool { return f(date) }

// DailyReport is the evaluation of all passages on one calendar date.
type DailyReport struct {
	Date      civil.Date
	Exemption DayExemption
	Windows   []Window
}

// TotalFee sums the charged fees of the day.
func (r DailyReport) TotalFee() decimal.Decimal {
	total := decimal.Zero
	for _, window := range r.Windows {
		total = total.Add(window.ChargedTotal())
	}
	return total
}

// Passages flattens the windows in order.
func (r DailyReport) Passages() []Passage {
	var out []Passage
	for _, window := range r.Windows {
		out = append(out, window...)
	}
	return out
}

// TotalFee sums the charged fees over several reports.
func TotalFee(reports []DailyReport) decimal.Decimal {
	total := decimal.Zero
	for _, report := range reports {
		total = total.Add(report.TotalFee())
	}
	return total
}

// ComputeDailyReports groups timestamps by their local calendar date and
// runs classification, windowing, exemption and cap evaluation per day.
// Reports are ordered by date. A nil holiday checker means no holidays.
func ComputeDailyReports(rules *RuleSet, holidays HolidayChecker, vehicle VehicleType, timestamps []time.Time) []DailyReport {
	if rules == nil || len(timestamps) == 0 {
		return nil
	}

	days := make(map[civil.Date][]time.Time)
	for _, ts := range timestamps {
		date := civil.DateOf(ts)
		days[date] = append(days[date], ts)
	}

	reports := make([]DailyReport, 0, len(days))
	for date, stamps := range days {
		reports = append(reports, computeDay(rules, holidays, vehicle, date, stamps))
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Date.Before(reports[j].Date) })
	return reports
}

func computeDay(rules *RuleSet, holidays HolidayChecker, vehicle VehicleType, date civil.Date, stamps []time.Time) DailyReport {
	sorted := append([]time.Time(nil), stamps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Before(sorted[j])
	})

	passages := make([]Passage, len(sorted))
	for i, ts := range sorted {
		passages[i] = ClassifyPassage(rules, ts)
	}
	windows := BuildWindows(passages, rules.WindowDuration)

	exemption := ResolveExemption(DayFacts{
		ExemptVehicle: rules.IsExemptVehicle(vehicle),
		Weekend:       rules.IsExemptWeekday(date.In(time.UTC).Weekday()),
		PublicHoliday: holidays != nil && holidays.IsPublicHoliday(date),
	})
	if exemption != NoDayExemption {
		ApplyExemption(windows, exemption)
	} else {
		windows = EvaluateWindows(windows, rules.DailyMaxFee)
	}

	return DailyReport{Date: date, Exemption: exemption, Windows: windows}
}
