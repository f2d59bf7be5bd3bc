package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// ErrMalformedFrame is returned for inbound frames that are neither a
// control frame nor a usable data frame.
var ErrMalformedFrame = errors.New("malformed frame")

// Kind classifies an inbound frame.
type Kind int

const (
	KindData  Kind = iota // chat message
	KindProbe             // liveness request ("ping")
	KindAck               // liveness response ("pong")
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindProbe:
		return "probe"
	case KindAck:
		return "ack"
	default:
		return "unknown"
	}
}

// ChatMessage is a chat message carried by a data frame.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"content"`
	Timestamp      time.Time `json:"created_at"`
}

// Frame is a decoded inbound frame. Message is set only for KindData.
type Frame struct {
	Kind    Kind
	Message ChatMessage
}

// IsControl reports whether the frame belongs to the heartbeat protocol.
func (f Frame) IsControl() bool {
	return f.Kind == KindProbe || f.Kind == KindAck
}

// wireFrame is the union of every JSON frame shape the backend sends.
type wireFrame struct {
	Type           string          `json:"type"`
	ID             ID              `json:"id"`
	ConversationID ID              `json:"conversation_id"`
	SenderID       ID              `json:"sender_id"`
	Content        string          `json:"content"`
	CreatedAt      json.RawMessage `json:"created_at"`
}

// ID is an identifier the backend may encode as a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// controlEnvelope is the JSON form of a heartbeat frame.
type controlEnvelope struct {
	Type string `json:"type"`
}
