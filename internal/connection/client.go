package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Close codes used by the manager.
const (
	CloseNormal   = websocket.CloseNormalClosure
	CloseAbnormal = websocket.CloseAbnormalClosure
)

// Socket is one established chat connection.
type Socket interface {
	// ReadMessage blocks until the next frame arrives or the connection
	// ends. The error of a peer close is a *websocket.CloseError.
	ReadMessage() ([]byte, error)

	// WriteMessage writes one text frame. Safe for concurrent use.
	WriteMessage(data []byte) error

	// Close closes the connection. CloseAbnormal drops it without a close
	// handshake. Safe to call more than once.
	Close(code int) error
}

// Dialer opens sockets.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// DialerConfig configures the WebSocket dialer.
type DialerConfig struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration // Write deadline for sends
	ReadLimit        int64         // Max inbound frame size, 0 = unlimited
	APIKey           string        // Sent as a bearer token when set
}

// DefaultDialerConfig returns sensible defaults.
func DefaultDialerConfig() DialerConfig {
	return DialerConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadLimit:        1 << 20,
	}
}

// wsDialer implements Dialer with gorilla/websocket.
type wsDialer struct {
	cfg    DialerConfig
	dialer websocket.Dialer
}

// NewWebSocketDialer creates a Dialer backed by gorilla/websocket.
func NewWebSocketDialer(cfg DialerConfig) Dialer {
	return &wsDialer{
		cfg: cfg,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Dial establishes the WebSocket connection.
func (d *wsDialer) Dial(ctx context.Context, url string) (Socket, error) {
	header := http.Header{}
	if d.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	}

	conn, resp, err := d.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	if d.cfg.ReadLimit > 0 {
		conn.SetReadLimit(d.cfg.ReadLimit)
	}

	return &wsSocket{conn: conn, writeTimeout: d.cfg.WriteTimeout}, nil
}

// wsSocket implements Socket.
type wsSocket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	// Write serialization
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func (s *wsSocket) ReadMessage() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

func (s *wsSocket) WriteMessage(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSocket) Close(code int) error {
	s.closeOnce.Do(func() {
		// 1006 is reserved for "no close frame"; never put it on the wire.
		if code != CloseAbnormal {
			s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(code, ""),
				time.Now().Add(time.Second),
			)
		}
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// closeCode extracts the close code from a read error. Anything that is
// not a close frame from the peer counts as an abnormal closure.
func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CloseAbnormal
}

func closeSocket(s Socket, code int) {
	if s != nil {
		s.Close(code)
	}
}
