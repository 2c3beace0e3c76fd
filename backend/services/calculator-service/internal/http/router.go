package httpserver

import (
	"net/http"
	"strings"

	"gulfsolar/backend/services/calculator-service/internal/http/middleware"
)

// Routes aggregates handlers for HTTP server. Nil handlers are not mounted.
type Routes struct {
	Health  http.HandlerFunc
	Metrics http.Handler

	PublicSettings http.HandlerFunc
	Estimate       http.HandlerFunc
	EstimatePDF    http.HandlerFunc
	EstimateWS     http.HandlerFunc
	Leads          http.HandlerFunc

	AdminLogin       http.HandlerFunc
	AdminSettings    http.HandlerFunc
	AdminLeads       http.HandlerFunc
	AdminLeadsExport http.HandlerFunc
}

// NewRouter wires all HTTP routes. adminAuth guards every /api/admin route except login.
func NewRouter(routes Routes, adminAuth func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	mount := func(pattern string, handler http.Handler, allowed ...string) {
		if handler == nil {
			return
		}
		mux.Handle(pattern, method(handler, allowed...))
	}
	admin := func(handler http.HandlerFunc) http.Handler {
		if handler == nil {
			return nil
		}
		return middleware.Chain(handler, adminAuth)
	}

	mount("/health", handlerOrNil(routes.Health), http.MethodGet)
	if routes.Metrics != nil {
		mount("/metrics", routes.Metrics, http.MethodGet)
	}

	mount("/api/calculator", handlerOrNil(routes.PublicSettings), http.MethodGet)
	mount("/api/estimate", handlerOrNil(routes.Estimate), http.MethodPost)
	mount("/api/estimate/pdf", handlerOrNil(routes.EstimatePDF), http.MethodPost)
	mount("/api/estimate/ws", handlerOrNil(routes.EstimateWS), http.MethodGet)
	mount("/api/leads", handlerOrNil(routes.Leads), http.MethodPost)

	mount("/api/admin/login", handlerOrNil(routes.AdminLogin), http.MethodPost)
	mount("/api/admin/settings", admin(routes.AdminSettings), http.MethodGet, http.MethodPut)
	mount("/api/admin/leads", admin(routes.AdminLeads), http.MethodGet)
	mount("/api/admin/leads/export.xlsx", admin(routes.AdminLeadsExport), http.MethodGet)

	return mux
}

func handlerOrNil(h http.HandlerFunc) http.Handler {
	if h == nil {
		return nil
	}
	return h
}

func method(handler http.Handler, allowed ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, m := range allowed {
			if r.Method == m {
				handler.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}
