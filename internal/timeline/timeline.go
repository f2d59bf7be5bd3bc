// Package timeline keeps the client-side view of a conversation:
// messages de-duplicated by id and ordered by timestamp.
package timeline

import (
	"sort"
	"sync"

	"github.com/rickgao/market-chat/internal/codec"
)

// Timeline is safe for concurrent use.
type Timeline struct {
	mu       sync.RWMutex
	seen     map[string]struct{}
	messages []codec.ChatMessage
}

// New creates an empty timeline.
func New() *Timeline {
	return &Timeline{
		seen: make(map[string]struct{}),
	}
}

// Add inserts msg in timestamp order. It returns false if a message with
// the same id was already added. Equal timestamps keep arrival order.
func (t *Timeline) Add(msg codec.ChatMessage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addLocked(msg)
}

// Seed bulk-loads messages (e.g. history fetched over HTTP) and returns
// how many were new.
func (t *Timeline) Seed(msgs []codec.ChatMessage) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	added := 0
	for _, m := range msgs {
		if t.addLocked(m) {
			added++
		}
	}
	return added
}

// Messages returns an ordered copy of the timeline.
func (t *Timeline) Messages() []codec.ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]codec.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages held.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Reset drops every message and forgets every id.
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seen = make(map[string]struct{})
	t.messages = nil
}

func (t *Timeline) addLocked(msg codec.ChatMessage) bool {
	if _, dup := t.seen[msg.ID]; dup {
		return false
	}
	t.seen[msg.ID] = struct{}{}

	// First index whose timestamp is strictly after msg.
	i := sort.Search(len(t.messages), func(i int) bool {
		return t.messages[i].Timestamp.After(msg.Timestamp)
	})
	t.messages = append(t.messages, codec.ChatMessage{})
	copy(t.messages[i+1:], t.messages[i:])
	t.messages[i] = msg
	return true
}
