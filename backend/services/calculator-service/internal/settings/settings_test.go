package settings

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestValidateReportsEveryBadField(t *testing.T) {
	s := Defaults()
	s.RatePerKwh = 0
	s.SystemEfficiency = 1.2
	s.RangeBuffer = 1
	s.DailySunHours = math.NaN()
	s.Currency = "dollars"

	err := s.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"currency", "dailySunHours", "rangeBuffer", "ratePerKwh", "systemEfficiency"}, verr.FieldNames())
	assert.Contains(t, err.Error(), "ratePerKwh must be a positive number")
}

func TestValidateBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		ok     bool
	}{
		{"efficiency exactly one", func(s *Settings) { s.SystemEfficiency = 1 }, true},
		{"coverage zero", func(s *Settings) { s.CoverageTarget = 0 }, false},
		{"savings multiplier negative", func(s *Settings) { s.SavingsMultiplier = -0.1 }, false},
		{"range buffer zero", func(s *Settings) { s.RangeBuffer = 0 }, true},
		{"range buffer negative", func(s *Settings) { s.RangeBuffer = -0.01 }, false},
		{"cost infinite", func(s *Settings) { s.SystemCostPerKw = math.Inf(1) }, false},
		{"lowercase currency after normalize", func(s *Settings) { s.Currency = " aud "; s.Normalize() }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(&s)
			err := s.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNormalizeDropsBlankAssumptions(t *testing.T) {
	s := Settings{
		Currency:    " nzd",
		RegionLabel: "  Waiheke ",
		Assumptions: []string{" first ", "", "   ", "second"},
	}
	s.Normalize()

	assert.Equal(t, "NZD", s.Currency)
	assert.Equal(t, "Waiheke", s.RegionLabel)
	assert.Equal(t, []string{"first", "second"}, s.Assumptions)
}

func TestSettingsJSONShapeIsFlat(t *testing.T) {
	raw := []byte(`{
		"ratePerKwh": 0.34,
		"dailySunHours": 4.2,
		"systemEfficiency": 0.82,
		"coverageTarget": 0.85,
		"systemCostPerKw": 2400,
		"savingsMultiplier": 0.92,
		"rangeBuffer": 0.15,
		"currency": "NZD"
	}`)
	var s Settings
	require.NoError(t, json.Unmarshal(raw, &s))
	assert.Equal(t, Defaults().Params, s.Params)
	assert.Equal(t, "NZD", s.Currency)
}
