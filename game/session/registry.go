package session

import (
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/wricardo/connectfour/game/service"
)

var (
	ErrAlreadyOnline = errors.New("user already logged in")
	ErrAlreadyQueued = errors.New("already in queue")
	ErrNotLoggedIn   = errors.New("session is not logged in")
)

// StartFunc runs a match between two paired sessions. It is called on its
// own goroutine and must Release both sessions when the match ends.
type StartFunc func(a, b *Session)

// Registry tracks logged-in sessions and the FIFO waiting queue. All
// mutations happen under one lock so pairing, enqueueing and logout never
// interleave.
type Registry struct {
	online    map[string]*Session
	queue     []*Session
	start     StartFunc
	publisher service.EventPublisher
	mu        sync.Mutex
}

// NewRegistry creates a registry that hands pairs to start
func NewRegistry(start StartFunc) *Registry {
	return &Registry{
		online: make(map[string]*Session),
		start:  start,
	}
}

// SetPublisher sets the receiver of queue events
func (r *Registry) SetPublisher(p service.EventPublisher) {
	r.mu.Lock()
	r.publisher = p
	r.mu.Unlock()
}

// Login binds username to s. A username can be online only once.
func (r *Registry) Login(username string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.online[username]; exists {
		return ErrAlreadyOnline
	}
	r.online[username] = s
	s.setName(username)
	log.Printf("[Registry] %s logged in from %s", username, s.Addr())
	return nil
}

// Logout removes username from the online set. A match in progress keeps
// its own references and is unaffected.
func (r *Registry) Logout(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.online[username]; exists {
		delete(r.online, username)
		log.Printf("[Registry] %s logged out", username)
	}
}

// LogoutSession removes s from the online set if it still owns its name
func (r *Registry) LogoutSession(s *Session) {
	name := s.Name()
	if name == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.online[name] == s {
		delete(r.online, name)
		log.Printf("[Registry] %s logged out", name)
	}
}

// IsOnline reports whether username is logged in
func (r *Registry) IsOnline(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.online[username]
	return exists
}

// Online returns the logged-in usernames, sorted
func (r *Registry) Online() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.online))
	for name := range r.online {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enqueue appends s to the waiting queue and pairs the two oldest entries
// for as long as two are waiting.
func (r *Registry) Enqueue(s *Session) error {
	if s.Name() == "" {
		return ErrNotLoggedIn
	}

	r.mu.Lock()
	for _, queued := range r.queue {
		if queued == s {
			r.mu.Unlock()
			return ErrAlreadyQueued
		}
	}

	r.queue = append(r.queue, s)
	log.Printf("[Registry] %s joined the queue (%d waiting)", s.Name(), len(r.queue))

	pairs := r.tryPair()
	queued := len(r.queue)
	publisher := r.publisher
	r.mu.Unlock()

	for _, p := range pairs {
		go r.start(p[0], p[1])
	}
	r.publishQueue(publisher, queued)
	return nil
}

// tryPair must be called with r.mu held
func (r *Registry) tryPair() [][2]*Session {
	var pairs [][2]*Session

	// Drop sessions whose connection already went away.
	live := r.queue[:0]
	for _, s := range r.queue {
		select {
		case <-s.Done():
			log.Printf("[Registry] dropping disconnected %s from queue", s.Name())
		default:
			live = append(live, s)
		}
	}
	r.queue = live

	for len(r.queue) >= 2 {
		a, b := r.queue[0], r.queue[1]
		r.queue[0], r.queue[1] = nil, nil
		r.queue = r.queue[2:]

		a.SetState(InMatch)
		b.SetState(InMatch)
		pairs = append(pairs, [2]*Session{a, b})
		log.Printf("[Registry] paired %s with %s", a.Name(), b.Name())
	}

	return pairs
}

// Dequeue removes s if it is still waiting and reports whether it was
func (r *Registry) Dequeue(s *Session) bool {
	r.mu.Lock()
	removed := false
	for i, queued := range r.queue {
		if queued == s {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			removed = true
			break
		}
	}
	queued := len(r.queue)
	publisher := r.publisher
	r.mu.Unlock()

	if removed {
		log.Printf("[Registry] %s left the queue", s.Name())
		r.publishQueue(publisher, queued)
	}
	return removed
}

// QueueLen returns the number of waiting sessions
func (r *Registry) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Queued returns the waiting usernames in pairing order
func (r *Registry) Queued() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.queue))
	for _, s := range r.queue {
		names = append(names, s.Name())
	}
	return names
}

func (r *Registry) publishQueue(p service.EventPublisher, queued int) {
	if p == nil {
		return
	}
	p.Publish(service.Event{
		Type:      service.EventQueueChanged,
		Queued:    queued,
		Timestamp: time.Now(),
	})
}
