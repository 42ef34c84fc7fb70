package server

import (
	"errors"
	"sync"
	"time"

	"github.com/raaihank/redactor/internal/workspace"
)

// ErrTooManyWorkspaces is returned by Create when the registry is full
var ErrTooManyWorkspaces = errors.New("workspace limit reached")

// Registry owns the live workspaces of the server. Each workspace belongs
// to the session that created it and is never shared.
type Registry struct {
	mu         sync.RWMutex
	workspaces map[string]*entry
	max        int
	build      func() *workspace.Workspace
	now        func() time.Time
}

type entry struct {
	ws       *workspace.Workspace
	lastUsed time.Time
}

// NewRegistry creates a registry holding at most limit workspaces (0 is unbounded)
func NewRegistry(limit int, build func() *workspace.Workspace) *Registry {
	return &Registry{
		workspaces: make(map[string]*entry),
		max:        limit,
		build:      build,
		now:        time.Now,
	}
}

// Create builds and registers a new idle workspace
func (r *Registry) Create() (*workspace.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max > 0 && len(r.workspaces) >= r.max {
		return nil, ErrTooManyWorkspaces
	}
	ws := r.build()
	r.workspaces[ws.ID()] = &entry{ws: ws, lastUsed: r.now()}
	return ws, nil
}

// Get looks up a workspace and marks it as used
func (r *Registry) Get(id string) (*workspace.Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.workspaces[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.ws, true
}

// Snapshot implements websocket.StateSource
func (r *Registry) Snapshot(id string) (workspace.State, bool) {
	ws, ok := r.Get(id)
	if !ok {
		return workspace.State{}, false
	}
	return ws.State(), true
}

// Remove tears a workspace down. Its state is discarded.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.workspaces[id]
	delete(r.workspaces, id)
	r.mu.Unlock()

	if ok {
		e.ws.Close()
	}
	return ok
}

// Len returns the number of live workspaces
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workspaces)
}

// ExpireIdle tears down workspaces unused for longer than idle and returns
// their IDs. Workspaces with a call in flight, or for which keep reports
// true, are left alone.
func (r *Registry) ExpireIdle(idle time.Duration, keep func(id string) bool) []string {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var expired []*workspace.Workspace
	for id, e := range r.workspaces {
		if !e.lastUsed.Before(cutoff) || e.ws.State().Status == workspace.StatusInFlight {
			continue
		}
		if keep != nil && keep(id) {
			continue
		}
		delete(r.workspaces, id)
		expired = append(expired, e.ws)
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, ws := range expired {
		ws.Close()
		ids = append(ids, ws.ID())
	}
	return ids
}

// StartExpiryRoutine expires idle workspaces until stop is closed
func (r *Registry) StartExpiryRoutine(idle time.Duration, keep func(id string) bool, onExpire func(ids []string), stop <-chan struct{}) {
	interval := max(idle/4, time.Second)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if ids := r.ExpireIdle(idle, keep); len(ids) > 0 && onExpire != nil {
					onExpire(ids)
				}
			case <-stop:
				return
			}
		}
	}()
}

// CloseAll tears down every workspace
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.workspaces
	r.workspaces = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range all {
		e.ws.Close()
	}
}
