package calcform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gulfsolar/backend/services/calculator-service/internal/estimator"
	"gulfsolar/backend/services/calculator-service/internal/format"
	"gulfsolar/backend/services/calculator-service/internal/settings"
)

// EstimateState tracks whether the form currently shows an estimate.
type EstimateState string

const (
	EstimateIdle         EstimateState = "idle"
	EstimateEstimating   EstimateState = "estimating"
	EstimateEstimated    EstimateState = "estimated"
	EstimateNotEstimable EstimateState = "not_estimable"
)

// SubmitState tracks the lead submission, independently of the estimate.
type SubmitState string

const (
	SubmitIdle       SubmitState = "idle"
	SubmitSubmitting SubmitState = "submitting"
	SubmitSent       SubmitState = "sent"
	SubmitFailed     SubmitState = "failed"
)

// Visitor-facing messages.
const (
	MsgEmailRequired  = "Email is required."
	MsgEnterBill      = "Enter your bill to see your estimate."
	MsgSending        = "Sending your breakdown..."
	MsgSent           = "Done! Check your inbox for the full breakdown."
	MsgFailed         = "Something went wrong. Please try again."
	MsgRateLimited    = "Too many requests, please try again shortly."
	MsgNoEstimateHint = "Enter your monthly bill above to see your personalized estimate"
)

var (
	// ErrInvalidSubmission means the form has field errors; see Snapshot.Errors.
	ErrInvalidSubmission = errors.New("calcform: submission has field errors")
	// ErrSubmitInProgress rejects a second submit while one is outstanding.
	ErrSubmitInProgress = errors.New("calcform: submission already in progress")
	// ErrNotSubmitting is returned by FinishSubmit without a matching BeginSubmit.
	ErrNotSubmitting = errors.New("calcform: no submission in progress")
	// ErrRateLimited is returned by a Submitter that refuses the client for now.
	ErrRateLimited = errors.New("calcform: too many submissions")
)

var estimateTransitions = map[EstimateState][]EstimateState{
	EstimateIdle:         {EstimateEstimating},
	EstimateEstimating:   {EstimateEstimated, EstimateNotEstimable},
	EstimateEstimated:    {EstimateEstimating},
	EstimateNotEstimable: {EstimateEstimating},
}

var submitTransitions = map[SubmitState][]SubmitState{
	SubmitIdle:       {SubmitSubmitting},
	SubmitSubmitting: {SubmitSent, SubmitFailed},
	SubmitSent:       {SubmitSubmitting},
	SubmitFailed:     {SubmitSubmitting},
}

// Submitter hands a completed form to lead capture.
type Submitter interface {
	SubmitLead(ctx context.Context, email string, in estimator.Input) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, email string, in estimator.Input) error

// SubmitLead calls f.
func (f SubmitterFunc) SubmitLead(ctx context.Context, email string, in estimator.Input) error {
	return f(ctx, email, in)
}

// Snapshot is the observable form state.
type Snapshot struct {
	EstimateState EstimateState     `json:"estimateState"`
	SubmitState   SubmitState       `json:"submitState"`
	Outputs       *estimator.Output `json:"outputs,omitempty"`
	Display       *format.Display   `json:"display,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
	Message       string            `json:"message,omitempty"`
}

// Form is one visitor's calculator. It recomputes synchronously on every input
// change. A Form is not safe for concurrent use.
type Form struct {
	settings settings.Settings
	input    estimator.Input
	email    string

	estimate EstimateState
	submit   SubmitState
	output   *estimator.Output
	errors   map[string]string
	message  string
}

// New returns an idle form bound to the session's settings.
func New(s settings.Settings) *Form {
	return &Form{
		settings: s,
		estimate: EstimateIdle,
		submit:   SubmitIdle,
	}
}

// SetInputs replaces the inputs and recomputes. It returns the resulting estimate state.
func (f *Form) SetInputs(in estimator.Input) EstimateState {
	f.input = in
	f.moveEstimate(EstimateEstimating)

	out, err := estimator.Estimate(f.settings.Params, in)
	if err != nil {
		f.output = nil
		f.moveEstimate(EstimateNotEstimable)
		return f.estimate
	}
	f.output = &out
	delete(f.errors, "estimate")
	f.moveEstimate(EstimateEstimated)
	return f.estimate
}

// Input returns the current inputs.
func (f *Form) Input() estimator.Input {
	return f.input
}

// BeginSubmit validates the form and moves to submitting. Field errors leave the
// submit state untouched and return ErrInvalidSubmission.
func (f *Form) BeginSubmit(email string) (string, estimator.Input, error) {
	if f.submit == SubmitSubmitting {
		return "", estimator.Input{}, ErrSubmitInProgress
	}

	f.message = ""
	fieldErrors := make(map[string]string)
	email = strings.TrimSpace(email)
	if email == "" {
		fieldErrors["email"] = MsgEmailRequired
	}
	if f.estimate != EstimateEstimated {
		fieldErrors["estimate"] = MsgEnterBill
	}
	f.errors = fieldErrors
	if len(fieldErrors) > 0 {
		return "", estimator.Input{}, ErrInvalidSubmission
	}

	f.email = email
	f.moveSubmit(SubmitSubmitting)
	f.message = MsgSending
	return email, f.input, nil
}

// FinishSubmit records the outcome of the submission started by BeginSubmit.
func (f *Form) FinishSubmit(err error) error {
	if f.submit != SubmitSubmitting {
		return ErrNotSubmitting
	}
	if err != nil {
		f.moveSubmit(SubmitFailed)
		f.message = MsgFailed
		if errors.Is(err, ErrRateLimited) {
			f.message = MsgRateLimited
		}
		return nil
	}
	f.moveSubmit(SubmitSent)
	f.message = MsgSent
	f.email = ""
	return nil
}

// Submit runs BeginSubmit, the submitter and FinishSubmit in sequence. It returns the
// validation error or the submitter's error.
func (f *Form) Submit(ctx context.Context, email string, sub Submitter) error {
	addr, in, err := f.BeginSubmit(email)
	if err != nil {
		return err
	}
	submitErr := sub.SubmitLead(ctx, addr, in)
	if err := f.FinishSubmit(submitErr); err != nil {
		return err
	}
	return submitErr
}

// Snapshot returns a copy of the observable state.
func (f *Form) Snapshot() Snapshot {
	snap := Snapshot{
		EstimateState: f.estimate,
		SubmitState:   f.submit,
		Message:       f.message,
	}
	if f.output != nil {
		out := *f.output
		display := format.FromOutput(out, f.settings.Currency)
		snap.Outputs = &out
		snap.Display = &display
	}
	if len(f.errors) > 0 {
		snap.Errors = make(map[string]string, len(f.errors))
		for k, v := range f.errors {
			snap.Errors[k] = v
		}
	}
	if snap.Message == "" && f.estimate != EstimateEstimated {
		snap.Message = MsgNoEstimateHint
	}
	return snap
}

func (f *Form) moveEstimate(to EstimateState) {
	if !allowed(estimateTransitions[f.estimate], to) {
		panic(fmt.Sprintf("calcform: illegal estimate transition %s -> %s", f.estimate, to))
	}
	f.estimate = to
}

func (f *Form) moveSubmit(to SubmitState) {
	if !allowed(submitTransitions[f.submit], to) {
		panic(fmt.Sprintf("calcform: illegal submit transition %s -> %s", f.submit, to))
	}
	f.submit = to
}

func allowed[S comparable](targets []S, to S) bool {
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}
