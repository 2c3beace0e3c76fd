package format

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"gulfsolar/backend/services/calculator-service/internal/estimator"
)

// NotAvailable replaces values that cannot be shown, such as an infinite payback.
const NotAvailable = "—"

const rangeSeparator = "–"

var printer = message.NewPrinter(language.English)

var symbols = map[string]string{
	"NZD": "$",
	"AUD": "$",
	"USD": "$",
	"CAD": "$",
	"EUR": "€",
	"GBP": "£",
}

// Display holds the visitor-facing strings for an estimate.
type Display struct {
	SystemSize     string `json:"systemSize"`
	UpfrontCost    string `json:"upfrontCost"`
	MonthlySavings string `json:"monthlySavings"`
	AnnualSavings  string `json:"annualSavings"`
	Payback        string `json:"payback"`
	OilNotBurned   string `json:"oilNotBurned"`
}

// Currency formats whole currency units with grouping, e.g. "$12,598".
func Currency(v float64, code string) string {
	if !finite(v) {
		return NotAvailable
	}
	return Symbol(code) + printer.Sprintf("%.0f", roundTo(v, 1))
}

// Number formats v with at most one fraction digit, e.g. "6.4" or "1,200".
func Number(v float64) string {
	if !finite(v) {
		return NotAvailable
	}
	return strings.TrimSuffix(printer.Sprintf("%.1f", roundTo(v, 10)), ".0")
}

// roundTo rounds half away from zero at 1/scale and folds -0 into 0. Formatting
// stays in float64 so amounts beyond the int64 range keep their digits.
func roundTo(v, scale float64) float64 {
	if math.Abs(v) >= 1<<52 {
		return v
	}
	r := math.Round(v*scale) / scale
	if r == 0 {
		return 0
	}
	return r
}

// CurrencyRange formats "low–high"; a non-finite end makes the whole range unavailable.
func CurrencyRange(r estimator.Range, code string) string {
	if !r.Finite() {
		return NotAvailable
	}
	return Currency(r.Low, code) + rangeSeparator + Currency(r.High, code)
}

// NumberRange formats "low–high" with Number.
func NumberRange(r estimator.Range) string {
	if !r.Finite() {
		return NotAvailable
	}
	return Number(r.Low) + rangeSeparator + Number(r.High)
}

// Symbol returns the display prefix for an ISO currency code.
func Symbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if s, ok := symbols[code]; ok {
		return s
	}
	if code == "" {
		return ""
	}
	return code + " "
}

// FromOutput renders every range of an estimate.
func FromOutput(out estimator.Output, code string) Display {
	return Display{
		SystemSize:     withSuffix(NumberRange(out.SystemSizeKw), " kW"),
		UpfrontCost:    CurrencyRange(out.UpfrontCost, code),
		MonthlySavings: withPrefix("+", CurrencyRange(out.MonthlySavings, code)),
		AnnualSavings:  CurrencyRange(out.AnnualSavings, code),
		Payback:        withSuffix(NumberRange(out.PaybackYears), " years"),
		OilNotBurned:   withSuffix(NumberRange(out.LitersOilNotBurned), " L/year"),
	}
}

func withSuffix(s, suffix string) string {
	if s == NotAvailable {
		return s
	}
	return s + suffix
}

func withPrefix(prefix, s string) string {
	if s == NotAvailable {
		return s
	}
	return prefix + s
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
