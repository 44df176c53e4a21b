package match

import (
	"context"
	"testing"

	"github.com/wricardo/connectfour/game/protocol"
)

func TestManagerTracksActiveMatches(t *testing.T) {
	mgr := NewManager(context.Background(), Deps{})
	a, b := newFakePlayer("alice"), newFakePlayer("bob")

	done := make(chan Outcome, 1)
	go func() { done <- mgr.Play(a, b) }()

	a.skipTo(t, protocol.YourTurn)

	if mgr.Count() != 1 {
		t.Fatalf("Expected 1 active match, got %d", mgr.Count())
	}
	active := mgr.Active()
	if len(active) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(active))
	}
	info := active[0]
	if info.PlayerA != "alice" || info.PlayerB != "bob" || info.ToMove != "alice" || info.State != "playing" {
		t.Errorf("unexpected snapshot %+v", info)
	}
	if _, ok := mgr.Get(info.ID); !ok {
		t.Error("Get should find the running match")
	}

	a.say("MOVE:3")
	b.skipTo(t, protocol.YourTurn)
	if got, _ := mgr.Get(info.ID); got.Moves != 1 || got.ToMove != "bob" {
		t.Errorf("snapshot not updated: %+v", got)
	}

	b.say("LEAVE")
	<-done
	mgr.Wait()

	if mgr.Count() != 0 {
		t.Errorf("Expected no active matches, got %d", mgr.Count())
	}
	if _, ok := mgr.Get(info.ID); ok {
		t.Error("finished match still listed")
	}
}
