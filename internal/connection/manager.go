package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/market-chat/internal/clock"
	"github.com/rickgao/market-chat/internal/codec"
	"github.com/rickgao/market-chat/internal/dispatch"
	"github.com/rickgao/market-chat/internal/heartbeat"
	"github.com/rickgao/market-chat/internal/metrics"
	"github.com/rickgao/market-chat/internal/session"
	"github.com/rickgao/market-chat/internal/timeline"
)

// run holds the resources of one session. Every field is owned by the
// Manager and guarded by its mutex.
type run struct {
	sess         *session.Session
	socket       Socket
	engine       *heartbeat.Engine
	connectTimer clock.Timer
	cancelDial   context.CancelFunc
	logger       *slog.Logger
}

// Manager supervises the chat connection for one conversation at a time.
type Manager struct {
	cfg      Config
	dialer   Dialer
	sender   Sender
	handlers Handlers
	guard    *session.Guard
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger
	timeline *timeline.Timeline
	events   *dispatch.Dispatcher[event]

	mu        sync.Mutex
	target    session.Target
	url       string
	current   *run
	reconnect clock.Timer // keyed by the token of current
	attempt   int
	exhausted bool
	teardown  bool
	closed    bool
}

// NewManager creates an idle Manager. A nil dialer uses gorilla/websocket
// with default settings. sender may be nil if SendMessage is never used.
func NewManager(cfg Config, dialer Dialer, sender Sender, handlers Handlers, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewUnregistered()
	}
	if dialer == nil {
		dialer = NewWebSocketDialer(DefaultDialerConfig())
	}

	m := &Manager{
		cfg:      cfg,
		dialer:   dialer,
		sender:   sender,
		handlers: handlers,
		guard:    &session.Guard{},
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
		logger:   logger,
		timeline: timeline.New(),
	}
	m.events = dispatch.New(64, m.deliver)

	return m
}

// Connect opens a session to the conversation. It is a no-op while a
// session for the same target is connecting, open or waiting to retry.
// Connecting to a different target supersedes the current session.
func (m *Manager) Connect(conversationID, userID string) {
	target := session.Target{ConversationID: conversationID, UserID: userID}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.logger.Warn("connect on closed manager ignored")
		return
	}
	if m.inFlightLocked(target) {
		m.mu.Unlock()
		m.logger.Debug("connect ignored, session already in flight",
			"conversation", conversationID,
			"user", userID,
		)
		return
	}

	url, err := BuildURL(m.cfg.BaseURL, conversationID, userID)
	if err != nil {
		m.logger.Error("cannot build socket url", "error", err)
		m.postErrorLocked(err)
		m.mu.Unlock()
		return
	}

	stale := m.supersedeLocked()
	if m.target != (session.Target{}) && m.target != target {
		m.timeline.Reset()
	}
	m.target = target
	m.url = url
	m.attempt = 0
	m.exhausted = false
	m.teardown = false
	m.startLocked()
	m.mu.Unlock()

	closeSocket(stale, CloseNormal)
}

// Disconnect closes the current session with a normal closure, cancels
// every timer and suppresses reconnection until the next Connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	sock := m.disconnectLocked()
	m.mu.Unlock()

	closeSocket(sock, CloseNormal)
}

// Close disconnects and waits for pending handler calls to finish. It
// must not be called from a handler.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	sock := m.disconnectLocked()
	m.closed = true
	m.mu.Unlock()

	closeSocket(sock, CloseNormal)
	m.events.Close()

	m.logger.Info("connection manager stopped")
	return nil
}

// SendMessage persists text in the current conversation through the
// Sender. Failures are reported to OnError and returned.
func (m *Manager) SendMessage(ctx context.Context, text string) error {
	m.mu.Lock()
	target := m.target
	closed := m.closed
	m.mu.Unlock()

	switch {
	case closed:
		return ErrClosed
	case target == (session.Target{}):
		return ErrNotConnected
	case m.sender == nil:
		return ErrNoSender
	}

	msg, err := m.sender.SendMessage(ctx, target.ConversationID, target.UserID, text)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.metrics.SendFailures.Inc()
		m.logger.Warn("send failed", "conversation", target.ConversationID, "error", err)
		m.postErrorLocked(err)
		return err
	}

	// The echo may also arrive over the socket; the timeline keeps one.
	if msg.ID != "" && m.target == target {
		m.addMessageLocked(msg)
	}
	return nil
}

// SeedHistory loads previously persisted messages so that live frames
// repeating them are suppressed. Seeded messages are not sent to
// OnMessage. It returns the number of new messages.
func (m *Manager) SeedHistory(msgs []codec.ChatMessage) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeline.Seed(msgs)
}

// Messages returns the conversation, de-duplicated and ordered by timestamp.
func (m *Manager) Messages() []codec.ChatMessage {
	return m.timeline.Messages()
}

// State returns the state of the current session, or Idle before the
// first Connect.
func (m *Manager) State() session.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Attempt returns the number of reconnections scheduled since the last Open.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Stats returns current statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		State:          m.stateLocked().String(),
		Attempt:        m.attempt,
		Exhausted:      m.exhausted,
		ConversationID: m.target.ConversationID,
		UserID:         m.target.UserID,
		Messages:       m.timeline.Len(),
		PendingEvents:  m.events.Stats().Pending,
	}
	if r := m.current; r != nil {
		s.SessionID = string(r.sess.ID)
		if r.engine != nil {
			hb := r.engine.State()
			s.Heartbeat = HeartbeatStats{
				LastProbeSentAt: hb.LastProbeSentAt,
				Acknowledged:    hb.Acknowledged,
				Running:         hb.Running,
			}
		}
	}
	return s
}

// inFlightLocked reports whether Connect(target) has nothing to do.
func (m *Manager) inFlightLocked(target session.Target) bool {
	if m.current == nil || m.target != target || m.teardown || m.exhausted {
		return false
	}
	return m.current.sess.Live() || m.reconnect != nil
}

func (m *Manager) stateLocked() session.State {
	if m.current == nil {
		return session.StateIdle
	}
	return m.current.sess.State
}

// ownsLocked reports whether r is still the authoritative session.
func (m *Manager) ownsLocked(r *run) bool {
	return m.current == r && m.guard.IsCurrent(r.sess.ID)
}

// startLocked mints a token and begins a connection attempt to m.url.
func (m *Manager) startLocked() {
	prev := m.stateLocked()

	tok := m.guard.Mint()
	sess := session.New(tok, m.target, m.clock.Now())
	sess.Transition(session.StateConnecting)

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		sess:       sess,
		cancelDial: cancel,
		logger: m.logger.With(
			"session", tok.Short(),
			"conversation", m.target.ConversationID,
		),
	}
	m.current = r
	m.reconnect = nil
	r.connectTimer = m.clock.AfterFunc(m.cfg.ConnectTimeout, func() { m.connectTimedOut(r) })

	m.metrics.SessionsStarted.Inc()
	m.metrics.SessionState.Set(float64(session.StateConnecting))
	m.events.Post(event{kind: eventState, from: prev, to: session.StateConnecting})

	r.logger.Info("connecting", "attempt", m.attempt, "url", m.url)

	go m.dial(ctx, r, m.url)
}

func (m *Manager) dial(ctx context.Context, r *run, url string) {
	sock, err := m.dialer.Dial(ctx, url)

	m.mu.Lock()
	if !m.ownsLocked(r) || r.sess.State != session.StateConnecting {
		m.mu.Unlock()
		closeSocket(sock, CloseNormal)
		return
	}
	if err != nil {
		r.logger.Warn("dial failed", "error", err)
		m.failLocked(r, CloseAbnormal, err)
		m.mu.Unlock()
		return
	}
	m.openLocked(r, sock)
	m.mu.Unlock()

	go m.readLoop(r, sock)
}

func (m *Manager) openLocked(r *run, sock Socket) {
	r.socket = sock
	stopTimer(&r.connectTimer)
	m.transitionLocked(r, session.StateOpen)
	m.attempt = 0

	r.engine = heartbeat.New(m.cfg.Heartbeat, r.sess.ID, m.guard, m.clock, heartbeat.Hooks{
		Send:   sock.WriteMessage,
		OnDead: func() { m.heartbeatDead(r) },
	}, r.logger)
	r.engine.Start()

	r.logger.Info("session open")
}

// readLoop reads frames until the socket ends.
func (m *Manager) readLoop(r *run, sock Socket) {
	for {
		data, err := sock.ReadMessage()
		if err != nil {
			m.socketClosed(r, closeCode(err), err)
			return
		}
		m.handleFrame(r, data)
	}
}

func (m *Manager) handleFrame(r *run, data []byte) {
	frame, err := codec.Decode(data, m.clock.Now())

	m.mu.Lock()
	if !m.ownsLocked(r) || r.sess.State != session.StateOpen {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.metrics.FramesDropped.Inc()
		m.mu.Unlock()
		r.logger.Warn("dropping malformed frame", "error", err, "size", len(data))
		return
	}
	engine := r.engine
	if frame.Kind == codec.KindData {
		m.addMessageLocked(frame.Message)
	}
	m.mu.Unlock()

	switch frame.Kind {
	case codec.KindProbe:
		engine.HandleProbe()
	case codec.KindAck:
		engine.HandleAck()
	}
}

func (m *Manager) addMessageLocked(msg codec.ChatMessage) {
	if !m.timeline.Add(msg) {
		m.metrics.DuplicatesSuppressed.Inc()
		m.logger.Debug("duplicate message suppressed", "id", msg.ID)
		return
	}
	m.metrics.MessagesDelivered.Inc()
	m.events.Post(event{kind: eventMessage, msg: msg})
}

// socketClosed handles the end of r's read loop.
func (m *Manager) socketClosed(r *run, code int, cause error) {
	m.mu.Lock()
	if !m.ownsLocked(r) || !r.sess.Live() {
		m.mu.Unlock()
		return
	}

	var sock Socket
	if code == CloseNormal {
		r.logger.Info("server closed session")
		sock = m.stopRunLocked(r)
		m.transitionLocked(r, session.StateClosed)
	} else {
		r.logger.Warn("session closed unexpectedly", "code", code, "error", cause)
		sock = m.failLocked(r, code, cause)
	}
	m.mu.Unlock()

	closeSocket(sock, CloseAbnormal)
}

func (m *Manager) heartbeatDead(r *run) {
	m.mu.Lock()
	if !m.ownsLocked(r) || r.sess.State != session.StateOpen {
		m.mu.Unlock()
		return
	}
	m.metrics.HeartbeatTimeouts.Inc()
	r.logger.Warn("heartbeat lost, forcing close")
	sock := m.failLocked(r, CloseAbnormal, ErrHeartbeatTimeout)
	m.mu.Unlock()

	closeSocket(sock, CloseAbnormal)
}

func (m *Manager) connectTimedOut(r *run) {
	m.mu.Lock()
	if !m.ownsLocked(r) || r.sess.State != session.StateConnecting {
		m.mu.Unlock()
		return
	}
	r.logger.Warn("connect timed out", "timeout", m.cfg.ConnectTimeout)
	sock := m.failLocked(r, CloseAbnormal, ErrConnectTimeout)
	m.mu.Unlock()

	closeSocket(sock, CloseAbnormal)
}

// failLocked closes r after an unexpected end and either schedules a
// reconnect or reports exhaustion. It returns the socket to close once
// the lock is released.
func (m *Manager) failLocked(r *run, code int, cause error) Socket {
	sock := m.stopRunLocked(r)
	m.transitionLocked(r, session.StateClosed)

	if m.teardown {
		return sock
	}

	if m.cfg.Policy.Exhausted(m.attempt) {
		if !m.exhausted {
			m.exhausted = true
			m.metrics.RetriesExhausted.Inc()
			r.logger.Error("giving up on reconnection",
				"attempts", m.attempt,
				"code", code,
				"error", cause,
			)
			m.postErrorLocked(fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, m.attempt, cause))
		}
		return sock
	}

	delay := m.cfg.Policy.Delay(m.attempt)
	m.attempt++
	m.metrics.ReconnectsScheduled.Inc()

	tok := r.sess.ID
	m.reconnect = m.clock.AfterFunc(delay, func() { m.reconnectDue(tok) })

	r.logger.Info("reconnect scheduled",
		"delay", delay,
		"attempt", m.attempt,
		"code", code,
	)
	return sock
}

func (m *Manager) reconnectDue(tok session.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.teardown || m.closed || m.current == nil || m.current.sess.ID != tok || !m.guard.IsCurrent(tok) {
		return
	}
	m.startLocked()
}

// supersedeLocked cancels the reconnect task and ends the current
// session. It returns the socket to close once the lock is released.
func (m *Manager) supersedeLocked() Socket {
	stopTimer(&m.reconnect)

	r := m.current
	if r == nil {
		return nil
	}
	sock := m.stopRunLocked(r)
	if r.sess.Live() {
		m.transitionLocked(r, session.StateClosing)
		m.transitionLocked(r, session.StateClosed)
	}
	return sock
}

func (m *Manager) disconnectLocked() Socket {
	m.teardown = true
	sock := m.supersedeLocked()
	m.guard.Revoke()
	if sock != nil {
		m.logger.Info("disconnected", "conversation", m.target.ConversationID)
	}
	return sock
}

// stopRunLocked cancels every timer of r and detaches its socket.
func (m *Manager) stopRunLocked(r *run) Socket {
	if r.engine != nil {
		r.engine.Stop()
	}
	stopTimer(&r.connectTimer)
	r.cancelDial()

	sock := r.socket
	r.socket = nil
	return sock
}

func (m *Manager) transitionLocked(r *run, next session.State) {
	from := r.sess.State
	if err := r.sess.Transition(next); err != nil {
		r.logger.Error("state transition rejected", "error", err)
		return
	}
	if m.current == r {
		m.metrics.SessionState.Set(float64(next))
		m.events.Post(event{kind: eventState, from: from, to: next})
	}
}

func (m *Manager) postErrorLocked(err error) {
	m.events.Post(event{kind: eventError, err: err.Error()})
}

// deliver runs on the dispatcher goroutine.
func (m *Manager) deliver(ev event) {
	switch ev.kind {
	case eventMessage:
		if m.handlers.OnMessage != nil {
			m.handlers.OnMessage(ev.msg)
		}
	case eventError:
		if m.handlers.OnError != nil {
			m.handlers.OnError(ev.err)
		}
	case eventState:
		if m.handlers.OnStateChange != nil {
			m.handlers.OnStateChange(ev.from, ev.to)
		}
	}
}

func stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
