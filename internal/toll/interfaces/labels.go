package interfaces

import toll "toll-calculator/internal/toll/domain"

var kindLabels = map[toll.PassageKind]string{
	toll.Unclassified:             "Unknown",
	toll.Standard:                 "Standard (Per Fee Table)",
	toll.ExemptionNoFeeInterval:   "Exemption (No Fee Interval Applies)",
	toll.ExemptionWeekend:         "Exemption (Weekend)",
	toll.ExemptionPublicHoliday:   "Exemption (Public Holiday)",
	toll.ExemptionPartialDailyMax: "Partial Exemption (Daily Maximum Reached)",
	toll.ExemptionFullDailyMax:    "Full Exemption (Daily Maximum Reached)",
	toll.StandardWindowPeak:       "Standard (Peak in Window)",
	toll.ExemptionWindowNonPeak:   "Exemption (Non-Peak in Window)",
	toll.ExemptionVehicleType:     "Exemption for Exempt Vehicle Type",
}

// KindLabel returns the display label of a passage kind.
func KindLabel(kind toll.PassageKind) string {
	if label, ok := kindLabels[kind]; ok {
		return label
	}
	return kindLabels[toll.Unclassified]
}
