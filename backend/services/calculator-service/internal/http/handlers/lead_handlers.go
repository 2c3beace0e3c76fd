package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"gulfsolar/backend/services/calculator-service/internal/calcform"
	"gulfsolar/backend/services/calculator-service/internal/estimator"
	"gulfsolar/backend/services/calculator-service/internal/http/middleware"
	"gulfsolar/backend/services/calculator-service/internal/models"
	"gulfsolar/backend/services/calculator-service/internal/service"
)

// LeadCapturer stores and queues a lead.
type LeadCapturer interface {
	Capture(ctx context.Context, email string, in estimator.Input) (*models.Lead, error)
}

// RateLimiter decides whether a caller may submit another lead.
type RateLimiter interface {
	Allow(ctx context.Context, id string) (bool, error)
}

// NewLeadHandler handles POST /api/leads. Outputs sent by the client are ignored;
// the estimate is recomputed from inputs. limiter may be nil.
func NewLeadHandler(leads LeadCapturer, limiter RateLimiter, logger *zap.Logger) http.HandlerFunc {
	type request struct {
		Email  string          `json:"email"`
		Inputs json.RawMessage `json:"inputs"`
	}
	type response struct {
		OK bool   `json:"ok"`
		ID string `json:"id"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if limiter != nil {
			allowed, err := limiter.Allow(r.Context(), middleware.ClientIP(r))
			if err != nil {
				logger.Warn("lead rate limiter unavailable", zap.Error(err))
			} else if !allowed {
				writeError(w, http.StatusTooManyRequests, "too many requests, please try again shortly")
				return
			}
		}

		var req request
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Email) == "" {
			writeError(w, http.StatusBadRequest, "Email required")
			return
		}

		in := estimator.Input{}
		if len(req.Inputs) > 0 {
			if err := json.Unmarshal(req.Inputs, &in); err != nil {
				writeError(w, http.StatusBadRequest, "invalid inputs")
				return
			}
		}

		lead, err := leads.Capture(r.Context(), req.Email, in)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, "invalid email")
			return
		case errors.Is(err, estimator.ErrNotEstimable):
			writeError(w, http.StatusBadRequest, calcform.MsgEnterBill)
			return
		default:
			logger.Error("failed to capture lead", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to capture lead")
			return
		}

		writeJSON(w, http.StatusAccepted, response{OK: true, ID: lead.ID})
	}
}
