package connection

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/market-chat/internal/backoff"
	"github.com/rickgao/market-chat/internal/clock"
	"github.com/rickgao/market-chat/internal/codec"
	"github.com/rickgao/market-chat/internal/heartbeat"
	"github.com/rickgao/market-chat/internal/metrics"
	"github.com/rickgao/market-chat/internal/session"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected to a conversation")
	ErrNoSender         = errors.New("no message sender configured")
	ErrInvalidTarget    = errors.New("invalid chat target")
	ErrConnectTimeout   = errors.New("connection establishment timed out")
	ErrHeartbeatTimeout = errors.New("heartbeat acknowledgement timed out")
	ErrRetriesExhausted = errors.New("reconnection attempts exhausted")
	ErrClosed           = errors.New("manager closed")
)

// Sender persists outbound messages. *api.Client implements it.
type Sender interface {
	SendMessage(ctx context.Context, conversationID, senderID, text string) (codec.ChatMessage, error)
}

// Handlers receive manager events. They run one at a time on a dedicated
// goroutine and may call back into the Manager (except Close).
type Handlers struct {
	OnMessage     func(msg codec.ChatMessage)
	OnError       func(message string)
	OnStateChange func(old, new session.State)
}

// Config configures the Manager.
type Config struct {
	BaseURL        string        // HTTP API base URL; the socket scheme mirrors it
	ConnectTimeout time.Duration // Max time from dial to Open
	Heartbeat      heartbeat.Config
	Policy         backoff.Policy
	Clock          clock.Clock      // nil = real clock
	Metrics        *metrics.Metrics // nil = unregistered collectors
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		Heartbeat:      heartbeat.DefaultConfig(),
		Policy:         backoff.DefaultPolicy(),
	}
}

// Stats is a point-in-time view of the manager, served on /health.
type Stats struct {
	State          string         `json:"state"`
	Attempt        int            `json:"attempt"`
	Exhausted      bool           `json:"exhausted"`
	SessionID      string         `json:"session_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	Heartbeat      HeartbeatStats `json:"heartbeat"`
	Messages       int            `json:"messages"`
	PendingEvents  int            `json:"pending_events"`
}

// HeartbeatStats mirrors heartbeat.State for JSON output.
type HeartbeatStats struct {
	LastProbeSentAt time.Time `json:"last_probe_sent_at"`
	Acknowledged    bool      `json:"acknowledged"`
	Running         bool      `json:"running"`
}

type eventKind int

const (
	eventMessage eventKind = iota
	eventError
	eventState
)

// event is a unit of work for the handler goroutine.
type event struct {
	kind     eventKind
	msg      codec.ChatMessage
	err      string
	from, to session.State
}
