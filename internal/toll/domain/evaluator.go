package toll

import "github.com/shopspring/decimal"

// EvaluateWindows charges the peak passage of each window in order while
// keeping the running total at or below dailyMax. Windows are updated in
// place; empty windows are dropped from the result.
func EvaluateWindows(windows []Window, dailyMax decimal.Decimal) []Window {
	out := make([]Window, 0, len(windows))
	dailyTotal := decimal.Zero

	for _, window := range windows {
		if len(window) == 0 {
			continue
		}
		if !window.HasFee() {
			out = append(out, window)
			continue
		}
		if dailyTotal.GreaterThanOrEqual(dailyMax) {
			for i := range window {
				window[i].Kind = ExemptionFullDailyMax
			}
			out = append(out, window)
			continue
		}

		peak := 0
		for i := 1; i < len(window); i++ {
			if window[i].PotentialFee.GreaterThan(window[peak].PotentialFee) {
				peak = i
			}
		}
		peakFee := window[peak].PotentialFee
		allowed := decimal.Min(peakFee, dailyMax.Sub(dailyTotal))
		window[peak].ChargedFee = allowed
		dailyTotal = dailyTotal.Add(allowed)

		switch {
		case allowed.LessThan(peakFee):
			window[peak].Kind = ExemptionPartialDailyMax
		case len(window) == 1:
			window[peak].Kind = Standard
		default:
			window[peak].Kind = StandardWindowPeak
		}
		for i := range window {
			if i != peak && window[i].HasFee() {
				window[i].Kind = ExemptionWindowNonPeak
			}
		}
		out = append(out, window)
	}
	return out
}
