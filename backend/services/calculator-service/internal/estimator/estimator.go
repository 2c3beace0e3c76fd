// Package estimator converts a monthly electricity bill into ranged solar system,
// cost and savings estimates. It performs no I/O and holds no state.
package estimator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gulfsolar/backend/services/calculator-service/internal/settings"
)

// ErrNotEstimable is returned when the monthly bill is missing, non-numeric or not positive.
var ErrNotEstimable = errors.New("estimator: monthly bill must be a positive number")

// RoofType selects the production multiplier.
type RoofType string

const (
	RoofPitched RoofType = "pitched"
	RoofFlat    RoofType = "flat"
	RoofOther   RoofType = "other"
)

const (
	fallbackRoofMultiplier = 0.95
	occupancyHome          = 1.05
	occupancyAway          = 0.95
	// kWh of generation counted as one litre of oil not burned.
	kwhPerLitreOil = 10
	daysPerYear    = 365
	monthsPerYear  = 12
)

var roofMultipliers = map[RoofType]float64{
	RoofPitched: 1.0,
	RoofFlat:    0.92,
}

// Input is one set of values entered on the calculator form.
type Input struct {
	MonthlyBill   float64  `json:"monthlyBill"`
	RoofType      RoofType `json:"roofType"`
	HomeDuringDay bool     `json:"homeDuringDay"`
}

// UnmarshalJSON accepts the bill as a number, a numeric string, an empty string or
// null, the way the browser form submits it. Anything that is not a number becomes
// NaN so Estimate reports ErrNotEstimable instead of failing the decode.
func (in *Input) UnmarshalJSON(data []byte) error {
	var raw struct {
		MonthlyBill   json.RawMessage `json:"monthlyBill"`
		RoofType      string          `json:"roofType"`
		HomeDuringDay bool            `json:"homeDuringDay"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("estimator: input: %w", err)
	}
	in.MonthlyBill = decodeBill(raw.MonthlyBill)
	in.RoofType = ParseRoofType(raw.RoofType)
	in.HomeDuringDay = raw.HomeDuringDay
	return nil
}

func decodeBill(raw json.RawMessage) float64 {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return math.NaN()
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return math.NaN()
		}
		return ParseBill(s)
	}
	return ParseBill(text)
}

// Range is a low/high pair, encoded as a two element JSON array.
type Range struct {
	Low  float64
	High float64
}

// Finite reports whether both ends are real numbers.
func (r Range) Finite() bool {
	return isFinite(r.Low) && isFinite(r.High)
}

// MarshalJSON encodes the range as [low, high]. Non-finite ends encode as null
// because JSON has no representation for them.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]*float64{finiteOrNil(r.Low), finiteOrNil(r.High)})
}

// UnmarshalJSON accepts [low, high].
func (r *Range) UnmarshalJSON(data []byte) error {
	var pair [2]*float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("estimator: range: %w", err)
	}
	r.Low, r.High = math.NaN(), math.NaN()
	if pair[0] != nil {
		r.Low = *pair[0]
	}
	if pair[1] != nil {
		r.High = *pair[1]
	}
	return nil
}

// Output is the ranged estimate shown to the visitor.
type Output struct {
	SystemSizeKw       Range `json:"systemSizeKw"`
	AnnualSavings      Range `json:"annualSavings"`
	PaybackYears       Range `json:"paybackYears"`
	UpfrontCost        Range `json:"upfrontCost"`
	MonthlySavings     Range `json:"monthlySavings"`
	LitersOilNotBurned Range `json:"litersOilNotBurned"`
}

// Finite reports whether every range holds real numbers. A degenerate configuration
// (for example a zero savings multiplier) produces infinite payback.
func (o Output) Finite() bool {
	return o.SystemSizeKw.Finite() &&
		o.AnnualSavings.Finite() &&
		o.PaybackYears.Finite() &&
		o.UpfrontCost.Finite() &&
		o.MonthlySavings.Finite() &&
		o.LitersOilNotBurned.Finite()
}

// point holds the unranged values.
type point struct {
	systemSizeKw       float64
	annualSavings      float64
	paybackYears       float64
	upfrontCost        float64
	monthlySavings     float64
	litersOilNotBurned float64
}

// Estimate computes the ranged estimate for in. The configuration is trusted; it is
// validated once when loaded, not on every call.
func Estimate(p settings.Params, in Input) (Output, error) {
	pt, err := compute(p, in)
	if err != nil {
		return Output{}, err
	}
	b := p.RangeBuffer
	return Output{
		SystemSizeKw:       expand(pt.systemSizeKw, b),
		AnnualSavings:      expand(pt.annualSavings, b),
		PaybackYears:       expand(pt.paybackYears, b),
		UpfrontCost:        expand(pt.upfrontCost, b),
		MonthlySavings:     expand(pt.monthlySavings, b),
		LitersOilNotBurned: expand(pt.litersOilNotBurned, b),
	}, nil
}

func compute(p settings.Params, in Input) (point, error) {
	if !Estimable(in.MonthlyBill) {
		return point{}, ErrNotEstimable
	}

	annualBill := in.MonthlyBill * monthsPerYear
	annualUsageKwh := annualBill / p.RatePerKwh
	productionPerKw := p.DailySunHours * daysPerYear * p.SystemEfficiency
	targetKwh := annualUsageKwh * p.CoverageTarget
	systemSizeKw := (targetKwh / productionPerKw) * RoofMultiplier(in.RoofType)

	savingsBase := annualUsageKwh * p.RatePerKwh * p.CoverageTarget * p.SavingsMultiplier
	annualSavings := savingsBase * occupancyBoost(in.HomeDuringDay)
	upfrontCost := systemSizeKw * p.SystemCostPerKw
	annualProductionKwh := systemSizeKw * productionPerKw

	return point{
		systemSizeKw:       systemSizeKw,
		annualSavings:      annualSavings,
		paybackYears:       upfrontCost / annualSavings,
		upfrontCost:        upfrontCost,
		monthlySavings:     annualSavings / monthsPerYear,
		litersOilNotBurned: annualProductionKwh / kwhPerLitreOil,
	}, nil
}

// Estimable reports whether a bill value can be estimated.
func Estimable(monthlyBill float64) bool {
	return isFinite(monthlyBill) && monthlyBill > 0
}

// RoofMultiplier returns the production multiplier for a roof type.
func RoofMultiplier(rt RoofType) float64 {
	if m, ok := roofMultipliers[rt]; ok {
		return m
	}
	return fallbackRoofMultiplier
}

func occupancyBoost(homeDuringDay bool) float64 {
	if homeDuringDay {
		return occupancyHome
	}
	return occupancyAway
}

func expand(v, buffer float64) Range {
	return Range{Low: v * (1 - buffer), High: v * (1 + buffer)}
}

// ParseBill converts form text to a bill amount. Blank or non-numeric text gives NaN.
func ParseBill(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ParseRoofType maps form text to a roof type, defaulting to RoofOther.
func ParseRoofType(raw string) RoofType {
	rt := RoofType(strings.ToLower(strings.TrimSpace(raw)))
	switch rt {
	case RoofPitched, RoofFlat:
		return rt
	default:
		return RoofOther
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOrNil(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}
