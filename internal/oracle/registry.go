package oracle

import (
	"strings"
	"sync"
	"time"
)

// Registry tracks which machines may ask for access and when each was last
// heard from.  An empty known set accepts every machine.
type Registry struct {
	mu       sync.RWMutex
	known    map[string]struct{}
	seen     map[string]time.Time
	extended map[string]time.Time
}

func NewRegistry(knownMachines []string) *Registry {
	k := make(map[string]struct{}, len(knownMachines))
	for _, m := range knownMachines {
		m = strings.TrimSpace(m)
		if m != "" {
			k[m] = struct{}{}
		}
	}
	return &Registry{
		known:    k,
		seen:     make(map[string]time.Time),
		extended: make(map[string]time.Time),
	}
}

func (r *Registry) IsKnown(machineID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.known) == 0 {
		return true
	}
	_, ok := r.known[machineID]
	return ok
}

func (r *Registry) NoteSeen(machineID string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[machineID] = t
}

func (r *Registry) LastSeen(machineID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.seen[machineID]
	return t, ok
}

func (r *Registry) NoteExtended(group string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extended[group] = t
}

func (r *Registry) LastExtended(group string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.extended[group]
	return t, ok
}
