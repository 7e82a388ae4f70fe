package gateway

import (
	"context"
	"testing"
)

type fakeApplier struct {
	remote  []Message
	relayed []Message
	members map[string]bool
}

func (f *fakeApplier) ApplyRemote(_ context.Context, _ string, msg Message) error {
	f.remote = append(f.remote, msg)
	return nil
}

func (f *fakeApplier) ApplyRelayed(_ context.Context, msg Message) error {
	f.relayed = append(f.relayed, msg)
	return nil
}

func (f *fakeApplier) IsMember(_ context.Context, groupID, username string) bool {
	return f.members[groupID+":"+username]
}

func TestDeliverRelayedAppliesBeforeEmitting(t *testing.T) {
	hub := NewHub()
	g := New(hub, nil)
	applier := &fakeApplier{}
	g.SetApplier(applier)

	bob := newClient("Bob")
	hub.Join("group:g1", bob)

	g.deliverRelayed(Message{GroupID: "g1", Kind: KindAddExpense, Origin: "Alice"})

	// The mutation must reach the local ledger, not just the local
	// clients, or this instance serves stale snapshots forever.
	if len(applier.relayed) != 1 {
		t.Fatalf("applier saw %d relayed mutations, want 1", len(applier.relayed))
	}
	if applier.relayed[0].Kind != KindAddExpense {
		t.Errorf("relayed kind = %q, want %q", applier.relayed[0].Kind, KindAddExpense)
	}
	if got := drain(bob); len(got) != 1 {
		t.Errorf("Bob received %d messages, want 1", len(got))
	}
}

func TestHandleJoinRequiresMembership(t *testing.T) {
	hub := NewHub()
	g := New(hub, nil)
	g.SetApplier(&fakeApplier{members: map[string]bool{"g1:Alice": true}})

	alice := newClient("Alice")
	g.handleJoin(alice, "g1")
	if hub.RoomSize("group:g1") != 1 {
		t.Fatalf("member join refused: room size = %d, want 1", hub.RoomSize("group:g1"))
	}

	mallory := newClient("Mallory")
	g.handleJoin(mallory, "g1")
	if hub.RoomSize("group:g1") != 1 {
		t.Errorf("non-member joined: room size = %d, want 1", hub.RoomSize("group:g1"))
	}
}

func TestHandleJoinWithoutApplier(t *testing.T) {
	hub := NewHub()
	g := New(hub, nil)

	g.handleJoin(newClient("Alice"), "g1")
	if hub.RoomSize("group:g1") != 0 {
		t.Errorf("join admitted with no membership source: room size = %d, want 0", hub.RoomSize("group:g1"))
	}
}
