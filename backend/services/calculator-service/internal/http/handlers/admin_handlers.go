package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"gulfsolar/backend/services/calculator-service/internal/http/middleware"
	"gulfsolar/backend/services/calculator-service/internal/models"
	"gulfsolar/backend/services/calculator-service/internal/report"
	"gulfsolar/backend/services/calculator-service/internal/repository"
	"gulfsolar/backend/services/calculator-service/internal/service"
	"gulfsolar/backend/services/calculator-service/internal/settings"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Authenticator logs admins in.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, *models.AdminUser, error)
}

// SettingsAdmin reads and replaces the stored calculator settings.
type SettingsAdmin interface {
	Stored(ctx context.Context) (*models.StoredSettings, error)
	Update(ctx context.Context, adminID int64, expectedVersion int64, next settings.Settings) (int64, error)
}

// LeadLister lists captured leads.
type LeadLister interface {
	List(ctx context.Context, limit int) ([]models.Lead, error)
}

// NewAdminLoginHandler handles POST /api/admin/login.
func NewAdminLoginHandler(auth Authenticator, logger *zap.Logger) http.HandlerFunc {
	type request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	type response struct {
		Token     string `json:"token"`
		TokenType string `json:"token_type"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		token, _, err := auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			logger.Error("admin login failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to login")
			return
		}

		writeJSON(w, http.StatusOK, response{Token: token, TokenType: "Bearer"})
	}
}

// NewAdminSettingsHandler handles GET and PUT /api/admin/settings.
func NewAdminSettingsHandler(svc SettingsAdmin, logger *zap.Logger) http.HandlerFunc {
	type getResponse struct {
		Settings  settings.Settings `json:"settings"`
		Version   int64             `json:"version"`
		UpdatedAt *time.Time        `json:"updatedAt,omitempty"`
	}
	type putRequest struct {
		Settings *settings.Settings `json:"settings"`
		Version  *int64             `json:"version"`
	}
	type fieldError struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}
	type validationResponse struct {
		Error  string       `json:"error"`
		Fields []fieldError `json:"fields"`
	}
	type putResponse struct {
		OK      bool  `json:"ok"`
		Version int64 `json:"version"`
	}

	get := func(w http.ResponseWriter, r *http.Request) {
		stored, err := svc.Stored(r.Context())
		if err != nil {
			logger.Error("failed to load settings", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		writeJSON(w, http.StatusOK, getResponse{
			Settings:  stored.Settings,
			Version:   stored.Version,
			UpdatedAt: stored.UpdatedAt,
		})
	}

	put := func(w http.ResponseWriter, r *http.Request) {
		adminID, ok := middleware.AdminIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req putRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Settings == nil {
			writeError(w, http.StatusBadRequest, "settings are required")
			return
		}
		expected := repository.AnyVersion
		if req.Version != nil {
			expected = *req.Version
		}

		version, err := svc.Update(r.Context(), adminID, expected, *req.Settings)
		if err != nil {
			var verr *settings.ValidationError
			switch {
			case errors.As(err, &verr):
				resp := validationResponse{Error: "invalid settings"}
				for _, f := range verr.Fields {
					resp.Fields = append(resp.Fields, fieldError{Field: f.Field, Message: f.Message})
				}
				writeJSON(w, http.StatusBadRequest, resp)
			case errors.Is(err, repository.ErrVersionConflict):
				writeError(w, http.StatusConflict, "settings were changed by someone else, reload and try again")
			default:
				logger.Error("failed to save settings", zap.Int64("admin_id", adminID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to save settings")
			}
			return
		}

		writeJSON(w, http.StatusOK, putResponse{OK: true, Version: version})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			get(w, r)
		case http.MethodPut:
			put(w, r)
		default:
			w.Header().Set("Allow", "GET, PUT")
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

// NewAdminLeadsHandler handles GET /api/admin/leads.
func NewAdminLeadsHandler(leads LeadLister, logger *zap.Logger) http.HandlerFunc {
	type response struct {
		Leads []models.Lead `json:"leads"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		list, err := leads.List(r.Context(), limit)
		if err != nil {
			logger.Error("failed to list leads", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list leads")
			return
		}
		if list == nil {
			list = []models.Lead{}
		}
		writeJSON(w, http.StatusOK, response{Leads: list})
	}
}

// NewAdminLeadsExportHandler handles GET /api/admin/leads/export.xlsx.
func NewAdminLeadsExportHandler(leads LeadLister, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		list, err := leads.List(r.Context(), limit)
		if err != nil {
			logger.Error("failed to list leads", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list leads")
			return
		}
		body, err := report.LeadsXLSX(list)
		if err != nil {
			logger.Error("failed to render leads export", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to export leads")
			return
		}
		writeFile(w, xlsxContentType, "leads.xlsx", body)
	}
}

// parseLimit returns 0 when no limit was given; the repository applies its default.
func parseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("invalid limit")
	}
	return limit, nil
}
