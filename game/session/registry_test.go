package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/connectfour/game/service"
)

// pairRecorder collects the pairs handed to a StartFunc
type pairRecorder struct {
	pairs chan [2]*Session
}

func newPairRecorder() *pairRecorder {
	return &pairRecorder{pairs: make(chan [2]*Session, 8)}
}

func (p *pairRecorder) start(a, b *Session) {
	p.pairs <- [2]*Session{a, b}
}

func (p *pairRecorder) next(t *testing.T) [2]*Session {
	t.Helper()
	select {
	case pair := <-p.pairs:
		return pair
	case <-time.After(waitTimeout):
		t.Fatal("no pair started")
		return [2]*Session{}
	}
}

func (p *pairRecorder) none(t *testing.T) {
	t.Helper()
	select {
	case pair := <-p.pairs:
		t.Fatalf("unexpected pair %s vs %s", pair[0].Name(), pair[1].Name())
	case <-time.After(20 * time.Millisecond):
	}
}

// eventRecorder implements service.EventPublisher
type eventRecorder struct {
	mu     sync.Mutex
	events []service.Event
}

func (e *eventRecorder) Publish(ev service.Event) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *eventRecorder) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

func loggedIn(t *testing.T, r *Registry, name string) *Session {
	t.Helper()
	s, _ := pipeSession(t, 0)
	if err := r.Login(name, s); err != nil {
		t.Fatalf("Login(%s) failed: %v", name, err)
	}
	return s
}

func TestRegistry_FIFOPairing(t *testing.T) {
	rec := newPairRecorder()
	r := NewRegistry(rec.start)

	s1 := loggedIn(t, r, "s1")
	s2 := loggedIn(t, r, "s2")
	s3 := loggedIn(t, r, "s3")
	s4 := loggedIn(t, r, "s4")

	for _, s := range []*Session{s1, s2, s3} {
		if err := r.Enqueue(s); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	pair := rec.next(t)
	if pair[0] != s1 || pair[1] != s2 {
		t.Errorf("Expected (s1, s2), got (%s, %s)", pair[0].Name(), pair[1].Name())
	}
	rec.none(t)

	if got := r.Queued(); len(got) != 1 || got[0] != "s3" {
		t.Fatalf("Expected s3 alone in queue, got %v", got)
	}
	if s1.State() != InMatch || s2.State() != InMatch {
		t.Error("paired sessions should be InMatch")
	}

	if err := r.Enqueue(s4); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	pair = rec.next(t)
	if pair[0] != s3 || pair[1] != s4 {
		t.Errorf("Expected (s3, s4), got (%s, %s)", pair[0].Name(), pair[1].Name())
	}
	if r.QueueLen() != 0 {
		t.Errorf("Expected empty queue, got %d", r.QueueLen())
	}
}

func TestRegistry_EnqueueRules(t *testing.T) {
	rec := newPairRecorder()
	r := NewRegistry(rec.start)

	anon, _ := pipeSession(t, 0)
	if err := r.Enqueue(anon); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("Expected ErrNotLoggedIn, got %v", err)
	}

	s := loggedIn(t, r, "alice")
	if err := r.Enqueue(s); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := r.Enqueue(s); !errors.Is(err, ErrAlreadyQueued) {
		t.Errorf("Expected ErrAlreadyQueued, got %v", err)
	}

	if !r.Dequeue(s) {
		t.Error("Dequeue should report removal")
	}
	if r.Dequeue(s) {
		t.Error("second Dequeue should be a no-op")
	}
	rec.none(t)
}

func TestRegistry_SkipsDisconnected(t *testing.T) {
	rec := newPairRecorder()
	r := NewRegistry(rec.start)

	gone, goneClient := pipeSession(t, 0)
	if err := r.Login("gone", gone); err != nil {
		t.Fatal(err)
	}
	if err := r.Enqueue(gone); err != nil {
		t.Fatal(err)
	}
	goneClient.Close()
	<-gone.Done()

	a := loggedIn(t, r, "a")
	b := loggedIn(t, r, "b")
	r.Enqueue(a)
	r.Enqueue(b)

	pair := rec.next(t)
	if pair[0] != a || pair[1] != b {
		t.Errorf("Expected (a, b), got (%s, %s)", pair[0].Name(), pair[1].Name())
	}
}

func TestRegistry_OnlineSet(t *testing.T) {
	r := NewRegistry(func(a, b *Session) {})

	alice := loggedIn(t, r, "alice")
	loggedIn(t, r, "bob")

	dup, _ := pipeSession(t, 0)
	if err := r.Login("alice", dup); !errors.Is(err, ErrAlreadyOnline) {
		t.Errorf("Expected ErrAlreadyOnline, got %v", err)
	}
	if dup.Name() != "" {
		t.Error("rejected login must not name the session")
	}

	if got := r.Online(); len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("unexpected online set %v", got)
	}

	// Only the owning session can log a name out.
	r.LogoutSession(dup)
	if !r.IsOnline("alice") {
		t.Error("foreign session logged alice out")
	}
	r.LogoutSession(alice)
	if r.IsOnline("alice") {
		t.Error("alice should be offline")
	}

	r.Logout("bob")
	r.Logout("bob")
	if len(r.Online()) != 0 {
		t.Errorf("Expected nobody online, got %v", r.Online())
	}
}

func TestRegistry_PublishesQueueEvents(t *testing.T) {
	events := &eventRecorder{}
	r := NewRegistry(func(a, b *Session) {})
	r.SetPublisher(events)

	s := loggedIn(t, r, "alice")
	r.Enqueue(s)
	r.Dequeue(s)
	r.Dequeue(s)

	if events.count() != 2 {
		t.Errorf("Expected 2 queue events, got %d", events.count())
	}
}

func TestRegistry_ConcurrentEnqueue(t *testing.T) {
	rec := &pairRecorder{pairs: make(chan [2]*Session, 64)}
	r := NewRegistry(rec.start)

	const n = 40
	sessions := make([]*Session, n)
	for i := range sessions {
		sessions[i] = loggedIn(t, r, string(rune('A'+i)))
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			r.Enqueue(s)
		}(s)
	}
	wg.Wait()

	seen := make(map[*Session]bool)
	for i := 0; i < n/2; i++ {
		pair := rec.next(t)
		for _, s := range pair {
			if seen[s] {
				t.Fatalf("%s paired twice", s.Name())
			}
			seen[s] = true
		}
	}
	if r.QueueLen() != 0 {
		t.Errorf("Expected empty queue, got %d", r.QueueLen())
	}
}
