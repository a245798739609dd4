package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestClient(sessionID uuid.UUID, participantID int, kind SessionKind) *Client {
	c := &Client{
		ID:            uuid.New().String(),
		SessionID:     sessionID,
		ParticipantID: participantID,
		Kind:          kind,
		send:          make(chan WSMessage, 16),
	}
	c.Touch()
	return c
}

func drain(c *Client) []WSMessage {
	var msgs []WSMessage
	for {
		select {
		case m := <-c.send:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func TestBroadcastReachesWholeRoomOnly(t *testing.T) {
	hub := NewHub(nil)
	sessionID := uuid.New()
	a := newTestClient(sessionID, 0, KindEstimation)
	b := newTestClient(sessionID, 1, KindEstimation)
	outsider := newTestClient(uuid.New(), 0, KindEstimation)
	hub.Register(a)
	hub.Register(b)
	hub.Register(outsider)

	hub.Broadcast(sessionID, EventVote, json.RawMessage(`{"score":"2.00"}`))

	for _, c := range []*Client{a, b} {
		msgs := drain(c)
		if len(msgs) != 1 || msgs[0].Event != EventVote {
			t.Errorf("room client got %v, want one vote event", msgs)
		}
	}
	if msgs := drain(outsider); len(msgs) != 0 {
		t.Errorf("outsider got %v, want nothing", msgs)
	}
}

func TestBroadcastPreservesOrder(t *testing.T) {
	hub := NewHub(nil)
	sessionID := uuid.New()
	c := newTestClient(sessionID, 0, KindEstimation)
	hub.Register(c)

	events := []string{EventJoin, EventVote, EventShowResults, EventResetVotes}
	for _, e := range events {
		hub.Broadcast(sessionID, e, nil)
	}
	msgs := drain(c)
	if len(msgs) != len(events) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(events))
	}
	for i, e := range events {
		if msgs[i].Event != e {
			t.Errorf("msg[%d] = %s, want %s (order must match application order)", i, msgs[i].Event, e)
		}
	}
}

func TestSendToParticipantHitsEveryTab(t *testing.T) {
	hub := NewHub(nil)
	sessionID := uuid.New()
	tab1 := newTestClient(sessionID, 3, KindRetro)
	tab2 := newTestClient(sessionID, 3, KindRetro)
	other := newTestClient(sessionID, 4, KindRetro)
	hub.Register(tab1)
	hub.Register(tab2)
	hub.Register(other)

	hub.SendToParticipant(sessionID, 3, EventMentioned, MentionedPayload{Text: "hi @you"})

	if msgs := drain(tab1); len(msgs) != 1 || msgs[0].Event != EventMentioned {
		t.Errorf("tab1 got %v", msgs)
	}
	if msgs := drain(tab2); len(msgs) != 1 {
		t.Errorf("tab2 got %v", msgs)
	}
	if msgs := drain(other); len(msgs) != 0 {
		t.Errorf("other participant got %v, mentions are targeted", msgs)
	}
}

func TestSendToConnectionIsTargeted(t *testing.T) {
	hub := NewHub(nil)
	sessionID := uuid.New()
	a := newTestClient(sessionID, 0, KindEstimation)
	b := newTestClient(sessionID, 1, KindEstimation)
	hub.Register(a)
	hub.Register(b)

	hub.SendToConnection(sessionID, a.ID, EventErrored, nil)

	if msgs := drain(a); len(msgs) != 1 || msgs[0].Event != EventErrored {
		t.Errorf("a got %v, want the error", msgs)
	}
	if msgs := drain(b); len(msgs) != 0 {
		t.Errorf("b got %v, errors never broadcast", msgs)
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	sessionID := uuid.New()
	c := newTestClient(sessionID, 0, KindEstimation)
	hub.Register(c)
	if hub.ConnectionCount(sessionID) != 1 {
		t.Fatal("count != 1")
	}
	hub.Unregister(c)
	if hub.ConnectionCount(sessionID) != 0 {
		t.Fatal("count != 0 after unregister")
	}
	hub.Broadcast(sessionID, EventVote, nil)
	if msgs := drain(c); len(msgs) != 0 {
		t.Errorf("unregistered client got %v", msgs)
	}
}

func TestFullSendBufferIsSkippedNotBlocking(t *testing.T) {
	hub := NewHub(nil)
	sessionID := uuid.New()
	c := newTestClient(sessionID, 0, KindEstimation)
	c.send = make(chan WSMessage, 1)
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(sessionID, EventVote, nil)
		hub.Broadcast(sessionID, EventVote, nil) // buffer full: dropped
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a stale socket")
	}
	if msgs := drain(c); len(msgs) != 1 {
		t.Errorf("got %d messages, want 1 (second dropped)", len(msgs))
	}
}

func TestHeartbeatStaleness(t *testing.T) {
	hub := NewHub(nil)
	sessionID := uuid.New()
	fresh := newTestClient(sessionID, 0, KindRetro)
	estimation := newTestClient(uuid.New(), 0, KindEstimation)
	hub.Register(fresh)
	hub.Register(estimation)

	// Nothing stale yet.
	if fresh.LastHeartbeat().Before(time.Now().Add(-time.Second)) {
		t.Fatal("Touch did not record a recent heartbeat")
	}
	cutoff := time.Now().Add(time.Minute) // everything is older than this
	stale := 0
	hub.mu.RLock()
	for _, clients := range hub.sessions {
		for _, c := range clients {
			if c.Kind == KindRetro && c.LastHeartbeat().Before(cutoff) {
				stale++
			}
		}
	}
	hub.mu.RUnlock()
	// Only the retro client qualifies; estimation presence is transport-only.
	if stale != 1 {
		t.Errorf("stale retro connections = %d, want 1", stale)
	}
}
