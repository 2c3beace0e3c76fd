package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"gulfsolar/backend/services/calculator-service/internal/calcform"
	"gulfsolar/backend/services/calculator-service/internal/estimator"
	"gulfsolar/backend/services/calculator-service/internal/format"
	"gulfsolar/backend/services/calculator-service/internal/report"
	"gulfsolar/backend/services/calculator-service/internal/service"
	"gulfsolar/backend/services/calculator-service/internal/settings"
)

// Calculator computes estimates against the current settings.
type Calculator interface {
	Settings(ctx context.Context) (settings.Settings, error)
	Estimate(ctx context.Context, in estimator.Input) (*service.Estimate, error)
}

// NewPublicSettingsHandler handles GET /api/calculator.
func NewPublicSettingsHandler(calc Calculator, logger *zap.Logger) http.HandlerFunc {
	type response struct {
		Currency    string   `json:"currency"`
		RegionLabel string   `json:"regionLabel"`
		Assumptions []string `json:"assumptions"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		s, err := calc.Settings(r.Context())
		if err != nil {
			logger.Error("failed to load settings", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		assumptions := s.Assumptions
		if assumptions == nil {
			assumptions = []string{}
		}
		writeJSON(w, http.StatusOK, response{
			Currency:    s.Currency,
			RegionLabel: s.RegionLabel,
			Assumptions: assumptions,
		})
	}
}

// NewEstimateHandler handles POST /api/estimate.
func NewEstimateHandler(calc Calculator, logger *zap.Logger) http.HandlerFunc {
	type response struct {
		State   calcform.EstimateState `json:"state"`
		Outputs *estimator.Output      `json:"outputs,omitempty"`
		Display *format.Display        `json:"display,omitempty"`
		Message string                 `json:"message,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var in estimator.Input
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		est, err := calc.Estimate(r.Context(), in)
		if err != nil {
			if errors.Is(err, estimator.ErrNotEstimable) {
				writeJSON(w, http.StatusOK, response{
					State:   calcform.EstimateNotEstimable,
					Message: calcform.MsgNoEstimateHint,
				})
				return
			}
			logger.Error("estimate failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to compute estimate")
			return
		}

		display := format.FromOutput(est.Output, est.Settings.Currency)
		writeJSON(w, http.StatusOK, response{
			State:   calcform.EstimateEstimated,
			Outputs: &est.Output,
			Display: &display,
		})
	}
}

// NewEstimatePDFHandler handles POST /api/estimate/pdf.
func NewEstimatePDFHandler(calc Calculator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in estimator.Input
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		est, err := calc.Estimate(r.Context(), in)
		if err != nil {
			if errors.Is(err, estimator.ErrNotEstimable) {
				writeError(w, http.StatusUnprocessableEntity, calcform.MsgEnterBill)
				return
			}
			logger.Error("estimate failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to compute estimate")
			return
		}

		pdf, err := report.EstimatePDF(est.Settings, est.Input, est.Output, time.Now())
		if err != nil {
			logger.Error("failed to render estimate pdf", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to render pdf")
			return
		}
		writeFile(w, "application/pdf", "solar-estimate.pdf", pdf)
	}
}
