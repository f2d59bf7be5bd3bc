// Package heartbeat detects silent connection failures on an open session.
//
// Two cycles run while the engine is started:
//   - probe: every ProbeInterval send a Probe and expect an Ack within
//     AckTimeout, otherwise report the connection dead
//   - keep-alive: every KeepAliveInterval send an unprompted Ack so that
//     intermediaries with short idle timeouts keep the connection open
package heartbeat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/market-chat/internal/clock"
	"github.com/rickgao/market-chat/internal/codec"
	"github.com/rickgao/market-chat/internal/session"
)

// Config holds heartbeat cadences.
type Config struct {
	ProbeInterval     time.Duration
	AckTimeout        time.Duration
	KeepAliveInterval time.Duration
}

// DefaultConfig returns the standard cadences.
func DefaultConfig() Config {
	return Config{
		ProbeInterval:     30 * time.Second,
		AckTimeout:        5 * time.Second,
		KeepAliveInterval: 5 * time.Second,
	}
}

// Hooks connect the engine to its session.
type Hooks struct {
	// Send writes a control frame to the socket.
	Send func(frame []byte) error

	// OnDead is called once when a Probe goes unacknowledged.
	OnDead func()
}

// State is a snapshot of the heartbeat bookkeeping.
type State struct {
	LastProbeSentAt time.Time
	Acknowledged    bool
	Running         bool
}

// Engine runs the heartbeat for one session. Every timer callback checks
// the session token against the guard and does nothing once superseded.
type Engine struct {
	cfg    Config
	token  session.Token
	guard  *session.Guard
	clock  clock.Clock
	hooks  Hooks
	logger *slog.Logger

	mu             sync.Mutex
	running        bool
	lastProbeAt    time.Time
	acknowledged   bool
	probeTimer     clock.Timer
	ackTimer       clock.Timer
	keepAliveTimer clock.Timer
}

// New creates a stopped engine bound to the session identified by tok.
func New(cfg Config, tok session.Token, guard *session.Guard, clk clock.Clock, hooks Hooks, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Engine{
		cfg:          cfg,
		token:        tok,
		guard:        guard,
		clock:        clk,
		hooks:        hooks,
		logger:       logger,
		acknowledged: true,
	}
}

// Start arms both cycles. Starting a running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return
	}
	e.running = true
	e.probeTimer = e.clock.AfterFunc(e.cfg.ProbeInterval, e.probe)
	e.keepAliveTimer = e.clock.AfterFunc(e.cfg.KeepAliveInterval, e.keepAlive)
}

// Stop cancels every timer. It is safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// HandleAck records an inbound Ack.
func (e *Engine) HandleAck() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.activeLocked() {
		return
	}
	e.acknowledged = true
	if e.ackTimer != nil {
		e.ackTimer.Stop()
		e.ackTimer = nil
	}
}

// HandleProbe answers an inbound Probe with an Ack.
func (e *Engine) HandleProbe() {
	e.mu.Lock()
	active := e.activeLocked()
	e.mu.Unlock()

	if active {
		e.send(codec.EncodeAck(), "ack")
	}
}

// State returns a snapshot of the heartbeat bookkeeping.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		LastProbeSentAt: e.lastProbeAt,
		Acknowledged:    e.acknowledged,
		Running:         e.running,
	}
}

func (e *Engine) probe() {
	e.mu.Lock()
	if !e.activeLocked() {
		e.mu.Unlock()
		return
	}
	e.lastProbeAt = e.clock.Now()
	e.acknowledged = false
	if e.ackTimer != nil {
		e.ackTimer.Stop()
	}
	e.ackTimer = e.clock.AfterFunc(e.cfg.AckTimeout, e.ackExpired)
	e.probeTimer = e.clock.AfterFunc(e.cfg.ProbeInterval, e.probe)
	e.mu.Unlock()

	e.send(codec.EncodeProbe(), "probe")
}

func (e *Engine) ackExpired() {
	e.mu.Lock()
	if !e.activeLocked() || e.acknowledged {
		e.mu.Unlock()
		return
	}
	sentAt := e.lastProbeAt
	e.stopLocked()
	e.mu.Unlock()

	e.logger.Warn("heartbeat ack timeout",
		"session", e.token.Short(),
		"probe_sent_at", sentAt,
		"timeout", e.cfg.AckTimeout,
	)
	if e.hooks.OnDead != nil {
		e.hooks.OnDead()
	}
}

func (e *Engine) keepAlive() {
	e.mu.Lock()
	if !e.activeLocked() {
		e.mu.Unlock()
		return
	}
	e.keepAliveTimer = e.clock.AfterFunc(e.cfg.KeepAliveInterval, e.keepAlive)
	e.mu.Unlock()

	e.send(codec.EncodeAck(), "keepalive")
}

func (e *Engine) send(frame []byte, kind string) {
	if e.hooks.Send == nil {
		return
	}
	if err := e.hooks.Send(frame); err != nil {
		e.logger.Debug("heartbeat send failed",
			"session", e.token.Short(),
			"kind", kind,
			"error", err,
		)
	}
}

// activeLocked reports whether timers may still act. Must hold e.mu.
func (e *Engine) activeLocked() bool {
	return e.running && e.guard.IsCurrent(e.token)
}

func (e *Engine) stopLocked() {
	e.running = false
	for _, t := range []*clock.Timer{&e.probeTimer, &e.ackTimer, &e.keepAliveTimer} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
}
