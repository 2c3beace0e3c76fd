package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gulfsolar/backend/services/calculator-service/internal/calcform"
	"gulfsolar/backend/services/calculator-service/internal/estimator"
)

const (
	maxMessageBytes = 16 << 10
	sendBuffer      = 16
)

// Client message types.
const (
	MessageInput  = "input"
	MessageSubmit = "submit"
)

type clientMessage struct {
	Type  string `json:"type"`
	Email string `json:"email"`
}

type errorMessage struct {
	Error string `json:"error"`
}

// Session is one visitor's live calculator over a websocket. Messages are applied
// in arrival order on the read loop; only the write loop touches the socket for writes.
type Session struct {
	id        string
	conn      *websocket.Conn
	form      *calcform.Form
	submitter calcform.Submitter
	cfg       Config
	logger    *zap.Logger
	send      chan []byte
	onClose   func(id string)
}

func newSession(id string, conn *websocket.Conn, form *calcform.Form, submitter calcform.Submitter, cfg Config, logger *zap.Logger, onClose func(string)) *Session {
	return &Session{
		id:        id,
		conn:      conn,
		form:      form,
		submitter: submitter,
		cfg:       cfg,
		logger:    logger,
		send:      make(chan []byte, sendBuffer),
		onClose:   onClose,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Start sends the initial snapshot and runs the read and write loops until the
// connection closes.
func (s *Session) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.writePump(ctx)
	s.pushSnapshot()
	s.readPump(ctx)
}

// Close closes the underlying connection.
func (s *Session) Close() {
	_ = s.conn.Close()
}

func (s *Session) readTimeout() time.Duration {
	return 2 * s.cfg.PingInterval
}

func (s *Session) readPump(ctx context.Context) {
	defer s.cleanup()
	s.conn.SetReadLimit(maxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout()))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.readTimeout()))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("live session read closed", zap.String("session_id", s.id), zap.Error(err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout()))

		if err := s.handle(ctx, raw); err != nil {
			s.logger.Debug("rejected live session message", zap.String("session_id", s.id), zap.Error(err))
			s.push(errorMessage{Error: err.Error()})
		}
	}
}

func (s *Session) handle(ctx context.Context, raw []byte) error {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return errors.New("invalid message")
	}

	switch msg.Type {
	case MessageInput:
		var in estimator.Input
		if err := json.Unmarshal(raw, &in); err != nil {
			return errors.New("invalid input")
		}
		s.form.SetInputs(in)
		s.pushSnapshot()
	case MessageSubmit:
		s.submit(ctx, msg.Email)
	default:
		return errors.New("unknown message type")
	}
	return nil
}

func (s *Session) submit(ctx context.Context, email string) {
	addr, in, err := s.form.BeginSubmit(email)
	if err != nil {
		s.pushSnapshot()
		return
	}
	s.pushSnapshot()

	submitCtx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	submitErr := s.submitter.SubmitLead(submitCtx, addr, in)
	cancel()
	if submitErr != nil {
		s.logger.Warn("live session submission failed", zap.String("session_id", s.id), zap.Error(submitErr))
	}
	_ = s.form.FinishSubmit(submitErr)
	s.pushSnapshot()
}

func (s *Session) pushSnapshot() {
	s.push(s.form.Snapshot())
}

func (s *Session) push(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode live session message", zap.String("session_id", s.id), zap.Error(err))
		return
	}
	select {
	case s.send <- data:
	default:
		s.logger.Warn("dropping outgoing message, buffer full", zap.String("session_id", s.id))
	}
}

func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.send:
			if !ok {
				_ = s.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) write(messageType int, data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(messageType, data)
}

func (s *Session) cleanup() {
	close(s.send)
	_ = s.conn.Close()
	if s.onClose != nil {
		s.onClose(s.id)
	}
}
