package session

import (
	"errors"
	"fmt"
	"time"
)

// ErrIllegalTransition is returned when a session is moved along an edge
// the state machine does not allow.
var ErrIllegalTransition = errors.New("illegal session state transition")

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var transitions = map[State][]State{
	StateIdle:       {StateConnecting},
	StateConnecting: {StateOpen, StateClosing, StateClosed},
	StateOpen:       {StateClosing, StateClosed},
	StateClosing:    {StateClosed},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Target is the conversation/user pair a session connects to.
type Target struct {
	ConversationID string
	UserID         string
}

// Session is one logical attempt at a live connection.
type Session struct {
	ID        Token
	Target    Target
	State     State
	CreatedAt time.Time
}

// New creates a session in the Idle state.
func New(id Token, target Target, createdAt time.Time) *Session {
	return &Session{
		ID:        id,
		Target:    target,
		State:     StateIdle,
		CreatedAt: createdAt,
	}
}

// Transition moves the session to next, rejecting illegal edges.
func (s *Session) Transition(next State) error {
	if !CanTransition(s.State, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.State, next)
	}
	s.State = next
	return nil
}

// Live reports whether the session still holds (or is acquiring) a socket.
func (s *Session) Live() bool {
	return s.State == StateConnecting || s.State == StateOpen
}
