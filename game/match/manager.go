package match

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/wricardo/connectfour/game/service"
)

// Manager runs matches and tracks the ones in progress
type Manager struct {
	ctx     context.Context
	deps    Deps
	matches map[string]*Match
	wg      sync.WaitGroup
	mu      sync.RWMutex
}

// NewManager creates a manager whose matches stop when ctx is cancelled
func NewManager(ctx context.Context, deps Deps) *Manager {
	return &Manager{
		ctx:     ctx,
		deps:    deps,
		matches: make(map[string]*Match),
	}
}

// Play runs a match between a and b and blocks until it ends
func (mgr *Manager) Play(a, b Player) Outcome {
	mgr.wg.Add(1)
	defer mgr.wg.Done()

	m := New(uuid.NewString(), a, b, mgr.deps)

	mgr.mu.Lock()
	mgr.matches[m.ID()] = m
	mgr.mu.Unlock()

	defer func() {
		mgr.mu.Lock()
		delete(mgr.matches, m.ID())
		mgr.mu.Unlock()
	}()

	return m.Run(mgr.ctx)
}

// Active returns snapshots of running matches, oldest first
func (mgr *Manager) Active() []service.MatchInfo {
	mgr.mu.RLock()
	infos := make([]service.MatchInfo, 0, len(mgr.matches))
	for _, m := range mgr.matches {
		infos = append(infos, m.Info())
	}
	mgr.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// Get returns the snapshot of one running match
func (mgr *Manager) Get(id string) (service.MatchInfo, bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	m, ok := mgr.matches[id]
	if !ok {
		return service.MatchInfo{}, false
	}
	return m.Info(), true
}

// Count returns the number of running matches
func (mgr *Manager) Count() int {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return len(mgr.matches)
}

// Wait blocks until every match has returned
func (mgr *Manager) Wait() {
	mgr.wg.Wait()
}
