// Package format renders amounts, percentages and month labels the way the
// dashboard shows them to Indonesian users.
package format

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const zeroIDR = "Rp 0"

var printer = message.NewPrinter(language.Indonesian)

var shortMonths = [...]string{
	"Jan", "Feb", "Mar", "Apr", "Mei", "Jun",
	"Jul", "Agu", "Sep", "Okt", "Nov", "Des",
}

// IDR formats a rupiah amount rounded to whole rupiah with Indonesian digit
// grouping, e.g. 18500000 -> "Rp 18.500.000". Non-finite input yields "Rp 0".
func IDR(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return zeroIDR
	}
	rounded := decimal.NewFromFloat(amount).Round(0)
	if rounded.IsZero() {
		return zeroIDR
	}
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	if rounded.GreaterThan(maxInt64) {
		return sign + "Rp " + groupDigits(rounded.String())
	}
	return sign + "Rp " + printer.Sprintf("%v", rounded.IntPart())
}

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// groupDigits inserts Indonesian thousands separators into a plain digit
// string. Used for amounts that do not fit in an int64.
func groupDigits(digits string) string {
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Pct formats a percentage with one decimal. Non-finite input yields "0%".
func Pct(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "0%"
	}
	return strconv.FormatFloat(value, 'f', 1, 64) + "%"
}

// Score renders a 0-100 score without decimals.
func Score(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "0"
	}
	return strconv.FormatFloat(math.Round(value), 'f', 0, 64)
}

// MonthLabel turns "YYYY-MM-DD" (or "YYYY-MM") into "Mei 2024". Input it
// cannot read is returned unchanged.
func MonthLabel(isoDate string) string {
	parts := strings.SplitN(isoDate, "-", 3)
	if len(parts) < 2 {
		return isoDate
	}
	y, err := strconv.Atoi(parts[0])
	if err != nil || y <= 0 {
		return isoDate
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < int(time.January) || m > int(time.December) {
		return isoDate
	}
	return shortMonths[m-1] + " " + strconv.Itoa(y)
}
