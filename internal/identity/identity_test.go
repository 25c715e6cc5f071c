package identity

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gushwork/leadwatch/internal/store"
)

func newProvider(maxJourney int) (*Provider, *store.MemorySession) {
	s := store.NewMemorySession()
	p := New(Config{
		SessionKey: "gw_session_id",
		JourneyKey: "gw_user_journey",
		MaxJourney: maxJourney,
	}, s)
	return p, s
}

func TestSessionID_StableAndPersisted(t *testing.T) {
	p, s := newProvider(5)

	first := p.SessionID()
	if !strings.HasPrefix(first, "sess_") {
		t.Fatalf("session id shape: %q", first)
	}
	if second := p.SessionID(); second != first {
		t.Fatalf("session id changed: %q then %q", first, second)
	}

	stored, ok := s.Get("gw_session_id")
	if !ok || stored != first {
		t.Fatalf("stored id %q/%v, want %q", stored, ok, first)
	}

	// A fresh provider over the same session store sees the same id.
	p2 := New(Config{SessionKey: "gw_session_id", JourneyKey: "gw_user_journey"}, s)
	if got := p2.SessionID(); got != first {
		t.Fatalf("second provider got %q, want %q", got, first)
	}
}

func TestTrackJourney_SuppressesConsecutiveDuplicates(t *testing.T) {
	p, _ := newProvider(5)

	p.TrackJourney("https://a.test/")
	p.TrackJourney("https://a.test/") // re-entrant call on the same page
	got := p.TrackJourney("https://a.test/pricing")

	want := []string{"https://a.test/", "https://a.test/pricing"}
	if len(got) != len(want) {
		t.Fatalf("journey: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("journey[%d]: got %q, want %q", i, got[i], want[i])
		}
	}

	// Non-consecutive repeats are kept.
	got = p.TrackJourney("https://a.test/")
	if len(got) != 3 || got[2] != "https://a.test/" {
		t.Fatalf("non-consecutive repeat dropped: %v", got)
	}
}

func TestTrackJourney_FIFOBound(t *testing.T) {
	p, _ := newProvider(3)
	for i := 0; i < 7; i++ {
		p.TrackJourney(fmt.Sprintf("https://a.test/p%d", i))
	}
	got := p.Journey()
	want := []string{"https://a.test/p4", "https://a.test/p5", "https://a.test/p6"}
	if len(got) != len(want) {
		t.Fatalf("journey length: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("journey[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestJourney_CorruptStateResets(t *testing.T) {
	p, s := newProvider(5)
	s.Set("gw_user_journey", "{not json")
	got := p.TrackJourney("https://a.test/")
	if len(got) != 1 || got[0] != "https://a.test/" {
		t.Fatalf("corrupt journey not reset: %v", got)
	}
}
