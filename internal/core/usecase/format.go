package usecase

import (
	"strconv"
	"strings"
)

// formatRupees renders an amount with comma thousands separators.
func formatRupees(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatFloat(amount, 'f', 0, 64)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// formatNumber drops a trailing ".0" from whole numbers.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
