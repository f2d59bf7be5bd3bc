package timeline

import (
	"testing"
	"time"

	"github.com/rickgao/market-chat/internal/codec"
)

var base = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func msg(id string, offset time.Duration) codec.ChatMessage {
	return codec.ChatMessage{ID: id, ConversationID: "c1", Text: id, Timestamp: base.Add(offset)}
}

func ids(msgs []codec.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTimeline_Dedupe(t *testing.T) {
	tl := New()

	if !tl.Add(msg("m1", 0)) {
		t.Fatal("first Add returned false")
	}
	if tl.Add(msg("m1", time.Minute)) {
		t.Error("duplicate id accepted")
	}
	if tl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tl.Len())
	}
}

func TestTimeline_OrderedByTimestamp(t *testing.T) {
	tl := New()

	tl.Add(msg("c", 3*time.Second))
	tl.Add(msg("a", 1*time.Second))
	tl.Add(msg("d", 4*time.Second))
	tl.Add(msg("b", 2*time.Second))

	got := ids(tl.Messages())
	want := []string{"a", "b", "c", "d"}
	if !equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestTimeline_TiesKeepArrivalOrder(t *testing.T) {
	tl := New()

	tl.Add(msg("first", 0))
	tl.Add(msg("second", 0))
	tl.Add(msg("earlier", -time.Second))
	tl.Add(msg("third", 0))

	got := ids(tl.Messages())
	want := []string{"earlier", "first", "second", "third"}
	if !equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestTimeline_SeedAndReset(t *testing.T) {
	tl := New()
	tl.Add(msg("live", 5*time.Second))

	added := tl.Seed([]codec.ChatMessage{msg("h1", 0), msg("live", 5*time.Second), msg("h2", time.Second)})
	if added != 2 {
		t.Errorf("Seed added %d, want 2", added)
	}
	if got, want := ids(tl.Messages()), []string{"h1", "h2", "live"}; !equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}

	tl.Reset()
	if tl.Len() != 0 {
		t.Errorf("Len() after Reset = %d", tl.Len())
	}
	if !tl.Add(msg("h1", 0)) {
		t.Error("Reset should forget seen ids")
	}
}

func TestTimeline_MessagesIsCopy(t *testing.T) {
	tl := New()
	tl.Add(msg("m1", 0))

	snapshot := tl.Messages()
	snapshot[0].Text = "mutated"

	if tl.Messages()[0].Text != "m1" {
		t.Error("Messages() exposed internal slice")
	}
}
