package gateway

import (
	"testing"
)

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case p := <-c.send:
			out = append(out, p)
		default:
			return out
		}
	}
}

func TestHubRooms(t *testing.T) {
	hub := NewHub()
	alice := newClient("Alice")
	bob := newClient("Bob")

	hub.Join("group:g1", alice)
	hub.Join("group:g1", bob)
	if hub.RoomSize("group:g1") != 2 {
		t.Fatalf("room size = %d, want 2", hub.RoomSize("group:g1"))
	}

	hub.Leave("group:g1", bob)
	if hub.RoomSize("group:g1") != 1 {
		t.Fatalf("room size = %d, want 1", hub.RoomSize("group:g1"))
	}

	hub.LeaveAll(alice)
	if hub.RoomSize("group:g1") != 0 {
		t.Fatalf("room size = %d, want 0", hub.RoomSize("group:g1"))
	}
}

func TestEmitExcludesOriginConnectionOnly(t *testing.T) {
	hub := NewHub()
	alicePhone := newClient("Alice")
	aliceTablet := newClient("Alice")
	bob := newClient("Bob")

	hub.Join("group:g1", alicePhone)
	hub.Join("group:g1", aliceTablet)
	hub.Join("group:g1", bob)

	delivered := hub.Emit("group:g1", []byte(`{"kind":"add_expense"}`), alicePhone.id)
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2 (Bob and Alice's tablet)", delivered)
	}
	if got := drain(bob); len(got) != 1 {
		t.Errorf("Bob received %d messages, want 1", len(got))
	}
	// Only the connection that produced the mutation is skipped. The
	// same user's other devices hold replicas that were not mutated
	// optimistically and would go stale without the broadcast.
	if got := drain(alicePhone); len(got) != 0 {
		t.Errorf("originating connection received %d messages, want 0", len(got))
	}
	if got := drain(aliceTablet); len(got) != 1 {
		t.Errorf("Alice's second connection received %d messages, want 1", len(got))
	}
}

func TestEmitToEmptyRoom(t *testing.T) {
	hub := NewHub()
	if delivered := hub.Emit("group:missing", []byte("x"), ""); delivered != 0 {
		t.Errorf("delivered = %d, want 0", delivered)
	}
}

func TestEmitDropsWhenQueueFull(t *testing.T) {
	hub := NewHub()
	slow := newClient("Slow")
	hub.Join("group:g1", slow)

	for i := 0; i < sendBuffer; i++ {
		hub.Emit("group:g1", []byte("fill"), "")
	}
	// Queue is full; the next emit must drop instead of blocking.
	if delivered := hub.Emit("group:g1", []byte("overflow"), ""); delivered != 0 {
		t.Errorf("delivered = %d, want 0 for a saturated client", delivered)
	}
}
