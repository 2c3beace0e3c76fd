package settings

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/currency"
)

// Params are the tunable constants the estimator reads on every call.
type Params struct {
	RatePerKwh        float64 `json:"ratePerKwh" yaml:"ratePerKwh"`
	DailySunHours     float64 `json:"dailySunHours" yaml:"dailySunHours"`
	SystemEfficiency  float64 `json:"systemEfficiency" yaml:"systemEfficiency"`
	CoverageTarget    float64 `json:"coverageTarget" yaml:"coverageTarget"`
	SystemCostPerKw   float64 `json:"systemCostPerKw" yaml:"systemCostPerKw"`
	SavingsMultiplier float64 `json:"savingsMultiplier" yaml:"savingsMultiplier"`
	RangeBuffer       float64 `json:"rangeBuffer" yaml:"rangeBuffer"`
}

// Settings is the full record edited from the admin area.
type Settings struct {
	Params      `yaml:",inline"`
	Currency    string   `json:"currency" yaml:"currency"`
	RegionLabel string   `json:"regionLabel" yaml:"regionLabel"`
	Assumptions []string `json:"assumptions" yaml:"assumptions"`
}

// Defaults returns the values the site ships with before anything is stored.
func Defaults() Settings {
	return Settings{
		Params: Params{
			RatePerKwh:        0.34,
			DailySunHours:     4.2,
			SystemEfficiency:  0.82,
			CoverageTarget:    0.85,
			SystemCostPerKw:   2400,
			SavingsMultiplier: 0.92,
			RangeBuffer:       0.15,
		},
		Currency:    "NZD",
		RegionLabel: "Waiheke Island & Hauraki Gulf",
		Assumptions: []string{
			"Based on typical Waiheke solar yield and local rates",
			"Assumes north-facing roof or equivalent output",
			"Ranges shown for clarity, not guaranteed savings",
		},
	}
}

// FieldError describes one rejected field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// ValidationError aggregates every rejected field of a settings record.
type ValidationError struct {
	Fields []*FieldError
}

func (e *ValidationError) Error() string {
	errs := make([]error, 0, len(e.Fields))
	for _, f := range e.Fields {
		errs = append(errs, f)
	}
	return "settings: invalid: " + strings.ReplaceAll(errors.Join(errs...).Error(), "\n", "; ")
}

// FieldNames lists rejected fields in sorted order.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	sort.Strings(names)
	return names
}

// Normalize trims text fields, uppercases the currency code and drops blank assumption lines.
func (s *Settings) Normalize() {
	s.Currency = strings.ToUpper(strings.TrimSpace(s.Currency))
	s.RegionLabel = strings.TrimSpace(s.RegionLabel)
	lines := make([]string, 0, len(s.Assumptions))
	for _, line := range s.Assumptions {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	s.Assumptions = lines
}

// Validate rejects the whole record when any field is out of range. It returns a
// *ValidationError naming every offending field.
func (s Settings) Validate() error {
	var fields []*FieldError
	fields = append(fields, s.Params.check()...)
	if _, err := currency.ParseISO(s.Currency); err != nil {
		fields = append(fields, &FieldError{Field: "currency", Message: "must be an ISO 4217 code"})
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// Validate checks only the numeric parameters.
func (p Params) Validate() error {
	if fields := p.check(); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (p Params) check() []*FieldError {
	var fields []*FieldError
	positive := func(name string, v float64) {
		if !finite(v) || v <= 0 {
			fields = append(fields, &FieldError{Field: name, Message: "must be a positive number"})
		}
	}
	fraction := func(name string, v float64) {
		if !finite(v) || v <= 0 || v > 1 {
			fields = append(fields, &FieldError{Field: name, Message: "must be greater than 0 and at most 1"})
		}
	}

	positive("ratePerKwh", p.RatePerKwh)
	positive("dailySunHours", p.DailySunHours)
	fraction("systemEfficiency", p.SystemEfficiency)
	fraction("coverageTarget", p.CoverageTarget)
	positive("systemCostPerKw", p.SystemCostPerKw)
	fraction("savingsMultiplier", p.SavingsMultiplier)
	if !finite(p.RangeBuffer) || p.RangeBuffer < 0 || p.RangeBuffer >= 1 {
		fields = append(fields, &FieldError{Field: "rangeBuffer", Message: "must be at least 0 and below 1"})
	}
	return fields
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
