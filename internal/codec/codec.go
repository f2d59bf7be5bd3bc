// Package codec parses inbound chat socket frames and encodes heartbeat
// control frames.
//
// Inbound frames are classified in this order:
//   - the bare strings "ping" and "pong"
//   - JSON objects whose "type" is "ping" or "pong"
//   - JSON data frames carrying a chat message
//
// Anything else is reported as ErrMalformedFrame; callers drop it.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	wireProbe = "ping"
	wireAck   = "pong"
)

var (
	probeFrame = mustEnvelope(wireProbe)
	ackFrame   = mustEnvelope(wireAck)
)

// Zone-less layouts are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Decode classifies data. now is used as the timestamp of data frames
// whose created_at is missing or unparseable.
func Decode(data []byte, now time.Time) (Frame, error) {
	switch string(data) {
	case wireProbe:
		return Frame{Kind: KindProbe}, nil
	case wireAck:
		return Frame{Kind: KindAck}, nil
	}

	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch w.Type {
	case wireProbe:
		return Frame{Kind: KindProbe}, nil
	case wireAck:
		return Frame{Kind: KindAck}, nil
	}

	if w.ID == "" {
		return Frame{}, fmt.Errorf("%w: data frame without id", ErrMalformedFrame)
	}

	return Frame{
		Kind: KindData,
		Message: ChatMessage{
			ID:             string(w.ID),
			ConversationID: string(w.ConversationID),
			SenderID:       string(w.SenderID),
			Text:           w.Content,
			Timestamp:      parseTimestamp(w.CreatedAt, now),
		},
	}, nil
}

// EncodeProbe returns the wire form of a Probe frame.
func EncodeProbe() []byte {
	return bytes.Clone(probeFrame)
}

// EncodeAck returns the wire form of an Ack frame.
func EncodeAck() []byte {
	return bytes.Clone(ackFrame)
}

func parseTimestamp(raw json.RawMessage, now time.Time) time.Time {
	if len(raw) == 0 {
		return now
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return now
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return now
}

func mustEnvelope(kind string) []byte {
	data, err := json.Marshal(controlEnvelope{Type: kind})
	if err != nil {
		panic(err)
	}
	return data
}
