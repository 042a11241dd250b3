package toll

import (
	"time"

	"github.com/shopspring/decimal"
)

// Window is a group of passages of which at most one is charged.
type Window []Passage

// Start returns the time of the first passage.
func (w Window) Start() time.Time {
	if len(w) == 0 {
		return time.Time{}
	}
	return w[0].At
}

// HasFee reports whether any passage in the window is priced.
func (w Window) HasFee() bool {
	for _, p := range w {
		if p.HasFee() {
			return true
		}
	}
	return false
}

// ChargedTotal sums the charged fees of the window.
func (w Window) ChargedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range w {
		total = total.Add(p.ChargedFee)
	}
	return total
}

// BuildWindows partitions a day's passages, sorted ascending, into
// charging windows. A window spans at most duration from its first
// passage; unpriced passages always stand alone.
func BuildWindows(passages []Passage, duration time.Duration) []Window {
	var (
		windows []Window
		current Window
		anchor  time.Time
	)
	flush := func() {
		if len(current) > 0 {
			windows = append(windows, current)
			current = nil
		}
	}

	for _, p := range passages {
		if !p.HasFee() {
			flush()
			windows = append(windows, Window{p})
			continue
		}
		if len(current) > 0 && TimeOfDayOf(p.At)-TimeOfDayOf(anchor) >= TimeOfDay(duration) {
			flush()
		}
		if len(current) == 0 {
			anchor = p.At
		}
		current = append(current, p)
	}
	flush()
	return windows
}
