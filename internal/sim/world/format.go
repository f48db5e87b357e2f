package world

import (
	"strconv"
)

// formatMoney renders a value stored in tenths of the display currency.
func formatMoney(v Money) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatInt(v/10, 10) + "." + strconv.FormatInt(v%10, 10) + "0"
	if neg {
		return "-" + s
	}
	return s
}

// FormatMoney is the display form used in error arguments and logs.
func FormatMoney(v Money) string { return "$" + formatMoney(v) }
