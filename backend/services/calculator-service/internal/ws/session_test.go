package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gulfsolar/backend/services/calculator-service/internal/calcform"
	"gulfsolar/backend/services/calculator-service/internal/estimator"
	"gulfsolar/backend/services/calculator-service/internal/settings"
)

type staticSource struct {
	err error
}

func (s staticSource) Settings(context.Context) (settings.Settings, error) {
	return settings.Defaults(), s.err
}

type recordingSubmitter struct {
	mu     sync.Mutex
	err    error
	emails []string
	inputs []estimator.Input
}

func (r *recordingSubmitter) SubmitLead(_ context.Context, email string, in estimator.Input) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, email)
	r.inputs = append(r.inputs, in)
	return r.err
}

type countingLimiter struct {
	mu    sync.Mutex
	limit int
	err   error
	seen  map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen == nil {
		l.seen = make(map[string]int)
	}
	l.seen[id]++
	if l.err != nil {
		return true, l.err
	}
	return l.seen[id] <= l.limit, nil
}

func startServer(t *testing.T, source SettingsSource, sub calcform.Submitter, opts ...ServerOption) (*Manager, *websocket.Conn) {
	t.Helper()
	manager := NewManager()
	srv := NewServer(manager, source, sub, Config{PingInterval: time.Second, WriteTimeout: time.Second}, zap.NewNop(), opts...)
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return manager, conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) calcform.Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var snap calcform.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	return snap
}

func TestSessionEstimateAndSubmit(t *testing.T) {
	sub := &recordingSubmitter{}
	_, conn := startServer(t, staticSource{}, sub)

	initial := readSnapshot(t, conn)
	assert.Equal(t, calcform.EstimateIdle, initial.EstimateState)
	assert.Equal(t, calcform.SubmitIdle, initial.SubmitState)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"input","monthlyBill":"220","roofType":"pitched","homeDuringDay":false}`)))
	estimated := readSnapshot(t, conn)
	assert.Equal(t, calcform.EstimateEstimated, estimated.EstimateState)
	require.NotNil(t, estimated.Display)
	assert.Equal(t, "$10,711–$14,491", estimated.Display.UpfrontCost)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "submit", "email": "visitor@example.com"}))
	submitting := readSnapshot(t, conn)
	assert.Equal(t, calcform.SubmitSubmitting, submitting.SubmitState)
	assert.Equal(t, calcform.MsgSending, submitting.Message)

	sent := readSnapshot(t, conn)
	assert.Equal(t, calcform.SubmitSent, sent.SubmitState)
	assert.Equal(t, calcform.MsgSent, sent.Message)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, []string{"visitor@example.com"}, sub.emails)
	assert.InDelta(t, 220, sub.inputs[0].MonthlyBill, 1e-9)
}

func TestSessionRejectsSubmitWithoutEstimate(t *testing.T) {
	sub := &recordingSubmitter{}
	_, conn := startServer(t, staticSource{}, sub)
	readSnapshot(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"input","monthlyBill":""}`)))
	notEstimable := readSnapshot(t, conn)
	assert.Equal(t, calcform.EstimateNotEstimable, notEstimable.EstimateState)
	assert.Nil(t, notEstimable.Outputs)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"submit","email":"  "}`)))
	rejected := readSnapshot(t, conn)
	assert.Equal(t, calcform.SubmitIdle, rejected.SubmitState)
	assert.Equal(t, calcform.MsgEmailRequired, rejected.Errors["email"])
	assert.Equal(t, calcform.MsgEnterBill, rejected.Errors["estimate"])

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Empty(t, sub.emails)
}

func TestSessionReportsFailedSubmission(t *testing.T) {
	_, conn := startServer(t, staticSource{}, &recordingSubmitter{err: errors.New("db down")})
	readSnapshot(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"input","monthlyBill":150}`)))
	readSnapshot(t, conn)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"submit","email":"visitor@example.com"}`)))
	readSnapshot(t, conn)

	failed := readSnapshot(t, conn)
	assert.Equal(t, calcform.SubmitFailed, failed.SubmitState)
	assert.Equal(t, calcform.MsgFailed, failed.Message)
}

func TestSessionRejectsUnknownMessages(t *testing.T) {
	_, conn := startServer(t, staticSource{}, &recordingSubmitter{})
	readSnapshot(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg errorMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "unknown message type", msg.Error)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "invalid message", msg.Error)
}

func TestManagerTracksAndClosesSessions(t *testing.T) {
	manager, conn := startServer(t, staticSource{}, &recordingSubmitter{})
	readSnapshot(t, conn)
	assert.Equal(t, 1, manager.Count())

	manager.CloseAll()
	require.Eventually(t, func() bool { return manager.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandleWSWithoutSettings(t *testing.T) {
	srv := NewServer(NewManager(), staticSource{err: errors.New("db down")}, &recordingSubmitter{}, Config{}, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.HandleWS(rec, httptest.NewRequest(http.MethodGet, "/api/estimate/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func submitOnce(t *testing.T, conn *websocket.Conn) calcform.Snapshot {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"submit","email":"visitor@example.com"}`)))
	submitting := readSnapshot(t, conn)
	require.Equal(t, calcform.SubmitSubmitting, submitting.SubmitState)
	return readSnapshot(t, conn)
}

func TestSessionSubmitsAreRateLimitedPerClient(t *testing.T) {
	sub := &recordingSubmitter{}
	limiter := &countingLimiter{limit: 2}
	_, conn := startServer(t, staticSource{}, sub, WithRateLimiter(limiter))
	readSnapshot(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"input","monthlyBill":220,"roofType":"pitched"}`)))
	readSnapshot(t, conn)

	for i := 0; i < 2; i++ {
		sent := submitOnce(t, conn)
		assert.Equal(t, calcform.SubmitSent, sent.SubmitState)
	}

	refused := submitOnce(t, conn)
	assert.Equal(t, calcform.SubmitFailed, refused.SubmitState)
	assert.Equal(t, calcform.MsgRateLimited, refused.Message)

	sub.mu.Lock()
	assert.Len(t, sub.emails, 2)
	sub.mu.Unlock()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	require.Len(t, limiter.seen, 1)
	for id, n := range limiter.seen {
		assert.Equal(t, "127.0.0.1", id)
		assert.Equal(t, 3, n)
	}
}

func TestSessionSubmitFailsOpenWhenLimiterErrors(t *testing.T) {
	sub := &recordingSubmitter{}
	_, conn := startServer(t, staticSource{}, sub, WithRateLimiter(&countingLimiter{err: errors.New("redis down")}))
	readSnapshot(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"input","monthlyBill":220}`)))
	readSnapshot(t, conn)

	sent := submitOnce(t, conn)
	assert.Equal(t, calcform.SubmitSent, sent.SubmitState)
}
