package interfaces

import (
	"bufio"
	"fmt"
	"io"

	toll "toll-calculator/internal/toll/domain"
)

// WriteText renders daily reports as a tree, one block per day, with the
// passages of a multi-passage window bracketed together.
func WriteText(w io.Writer, reports []toll.DailyReport, currency string) error {
	bw := bufio.NewWriter(w)
	for _, report := range reports {
		fmt.Fprintf(bw, "┌─ Daily Report (%s)\n", report.Date)
		for _, window := range report.Windows {
			for i, passage := range window {
				fmt.Fprintf(bw, "│%s %-5s | Potential %3s | Charged %3s | %s\n",
					branch(i, len(window)),
					toll.TimeOfDayOf(passage.At),
					passage.PotentialFee.String(),
					passage.ChargedFee.String(),
					KindLabel(passage.Kind),
				)
			}
		}
		fmt.Fprintf(bw, "└─ Total Fee: %s %s\n", report.TotalFee().String(), currency)
	}
	return bw.Flush()
}

func branch(i, size int) string {
	switch {
	case size == 1:
		return " ─"
	case i == 0:
		return "┌─"
	case i == size-1:
		return "└─"
	default:
		return "│ "
	}
}
