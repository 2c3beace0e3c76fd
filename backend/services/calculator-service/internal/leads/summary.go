package leads

import (
	"bytes"
	"errors"
	"text/template"
	"time"

	"gulfsolar/backend/services/calculator-service/internal/format"
	"gulfsolar/backend/services/calculator-service/internal/models"
)

// DefaultSummaryTemplate is the plain-text breakdown sent with each lead.
const DefaultSummaryTemplate = `New solar estimate request
Email: {{.Email}}
Monthly bill: {{.MonthlyBill}}
Roof: {{.RoofType}}
Home during the day: {{if .HomeDuringDay}}yes{{else}}no{{end}}

System size: {{.Display.SystemSize}}
Upfront cost: {{.Display.UpfrontCost}}
Monthly savings: {{.Display.MonthlySavings}}
Annual savings: {{.Display.AnnualSavings}}
Payback: {{.Display.Payback}}
Oil not burned: {{.Display.OilNotBurned}}

Lead: {{.ID}} ({{.CreatedAt}})`

// SummaryData is what a summary template can reference.
type SummaryData struct {
	ID            string
	Email         string
	MonthlyBill   string
	RoofType      string
	HomeDuringDay bool
	Display       format.Display
	CreatedAt     string
}

// Summary renders the human-readable text for a lead.
type Summary struct {
	tpl *template.Template
}

// NewSummary parses a summary template, falling back to DefaultSummaryTemplate.
func NewSummary(tpl string) (*Summary, error) {
	if tpl == "" {
		tpl = DefaultSummaryTemplate
	}
	parsed, err := template.New("lead-summary").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Summary{tpl: parsed}, nil
}

// Render applies the template to a lead.
func (s *Summary) Render(lead models.Lead) (string, error) {
	if s == nil || s.tpl == nil {
		return "", errors.New("lead summary: nil template")
	}
	data := SummaryData{
		ID:            lead.ID,
		Email:         lead.Email,
		MonthlyBill:   format.Currency(lead.Inputs.MonthlyBill, lead.Currency),
		RoofType:      string(lead.Inputs.RoofType),
		HomeDuringDay: lead.Inputs.HomeDuringDay,
		Display:       format.FromOutput(lead.Outputs, lead.Currency),
		CreatedAt:     lead.CreatedAt.UTC().Format(time.RFC3339),
	}
	var buf bytes.Buffer
	if err := s.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
