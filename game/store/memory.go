package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wricardo/connectfour/game/service"
)

// userData is the full state of a MemoryStore
type userData struct {
	Passwords map[string]string              `json:"passwords"`
	Stats     map[string]service.Stats       `json:"stats"`
	Friends   map[string]map[string]struct{} `json:"friends"`
}

func newUserData() *userData {
	return &userData{
		Passwords: make(map[string]string),
		Stats:     make(map[string]service.Stats),
		Friends:   make(map[string]map[string]struct{}),
	}
}

// MemoryStore implements service.Store with in-memory maps
type MemoryStore struct {
	data *userData
	// save is called with the lock held after every mutation. A failed
	// save undoes the mutation, so memory never runs ahead of disk.
	save func(*userData) error
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newUserData()}
}

func (s *MemoryStore) Register(ctx context.Context, username, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.Passwords[username]; exists {
		return service.ErrUserExists
	}

	s.data.Passwords[username] = hash
	s.data.Stats[username] = service.Stats{}
	s.data.Friends[username] = make(map[string]struct{})
	if err := s.persist(); err != nil {
		delete(s.data.Passwords, username)
		delete(s.data.Stats, username)
		delete(s.data.Friends, username)
		return err
	}
	return nil
}

func (s *MemoryStore) Authenticate(ctx context.Context, username, password string) error {
	s.mu.RLock()
	hash, exists := s.data.Passwords[username]
	s.mu.RUnlock()

	if !exists {
		return service.ErrInvalidCredentials
	}
	return checkPassword(hash, password)
}

func (s *MemoryStore) Exists(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.data.Passwords[username]
	return exists, nil
}

func (s *MemoryStore) Friends(ctx context.Context, username string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	friends := make([]string, 0, len(s.data.Friends[username]))
	for name := range s.data.Friends[username] {
		friends = append(friends, name)
	}
	sort.Strings(friends)
	return friends, nil
}

func (s *MemoryStore) AddFriend(ctx context.Context, username, friend string) error {
	if username == friend {
		return service.ErrSelfFriend
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.Passwords[username]; !exists {
		return fmt.Errorf("%w: %s", service.ErrUnknownUser, username)
	}
	if _, exists := s.data.Passwords[friend]; !exists {
		return fmt.Errorf("%w: %s", service.ErrUnknownUser, friend)
	}

	set, ok := s.data.Friends[username]
	if !ok {
		set = make(map[string]struct{})
		s.data.Friends[username] = set
	}
	if _, already := set[friend]; already {
		return service.ErrAlreadyFriends
	}
	set[friend] = struct{}{}
	if err := s.persist(); err != nil {
		delete(set, friend)
		return err
	}
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context, username string) (service.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Stats[username], nil
}

func (s *MemoryStore) RecordResult(ctx context.Context, username string, result service.Result) error {
	if !result.Valid() {
		return fmt.Errorf("invalid result %q", result)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.Passwords[username]; !exists {
		return fmt.Errorf("%w: %s", service.ErrUnknownUser, username)
	}
	prev := s.data.Stats[username]
	s.data.Stats[username] = prev.Apply(result)
	if err := s.persist(); err != nil {
		s.data.Stats[username] = prev
		return err
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) persist() error {
	if s.save == nil {
		return nil
	}
	return s.save(s.data)
}
