package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"gulfsolar/backend/services/calculator-service/internal/calcform"
	"gulfsolar/backend/services/calculator-service/internal/estimator"
	"gulfsolar/backend/services/calculator-service/internal/http/middleware"
	"gulfsolar/backend/services/calculator-service/internal/settings"
)

// SettingsSource returns the settings a new session binds to.
type SettingsSource interface {
	Settings(ctx context.Context) (settings.Settings, error)
}

// RateLimiter decides whether a client may submit another lead.
type RateLimiter interface {
	Allow(ctx context.Context, id string) (bool, error)
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithRateLimiter applies the lead limit of POST /api/leads to live submissions,
// keyed by the same client address. A nil limiter is ignored.
func WithRateLimiter(limiter RateLimiter) ServerOption {
	return func(s *Server) {
		if limiter != nil {
			s.limiter = limiter
		}
	}
}

// Config tunes connection keepalive.
type Config struct {
	PingInterval  time.Duration
	WriteTimeout  time.Duration
	SubmitTimeout time.Duration
}

// Server upgrades HTTP connections to live calculator sessions.
type Server struct {
	manager   *Manager
	settings  SettingsSource
	submitter calcform.Submitter
	limiter   RateLimiter
	cfg       Config
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(manager *Manager, source SettingsSource, submitter calcform.Submitter, cfg Config, logger *zap.Logger, opts ...ServerOption) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 15 * time.Second
	}
	srv := &Server{
		manager:   manager,
		settings:  source,
		submitter: submitter,
		cfg:       cfg,
		logger:    logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// HandleWS is HTTP handler for /api/estimate/ws.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	current, err := s.settings.Settings(r.Context())
	if err != nil {
		s.logger.Error("failed to load settings for live session", zap.Error(err))
		http.Error(w, "calculator unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	id := ulid.Make().String()
	session := newSession(id, conn, calcform.New(current), s.submitterFor(middleware.ClientIP(r)), s.cfg, s.logger, s.manager.Remove)
	s.manager.Add(session)

	go session.Start(context.Background())
	s.logger.Debug("live session opened", zap.String("session_id", id))
}

// submitterFor scopes lead submissions to one client address.
func (s *Server) submitterFor(clientIP string) calcform.Submitter {
	if s.limiter == nil {
		return s.submitter
	}
	return calcform.SubmitterFunc(func(ctx context.Context, email string, in estimator.Input) error {
		allowed, err := s.limiter.Allow(ctx, clientIP)
		if err != nil {
			s.logger.Warn("lead rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			return calcform.ErrRateLimited
		}
		return s.submitter.SubmitLead(ctx, email, in)
	})
}
