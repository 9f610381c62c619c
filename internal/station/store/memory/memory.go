package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Portunus/station/internal/station/store"
)

// Journal is an in-memory store.Journal.  It is intended for use in tests
// and for stations running without a journal file.
type Journal struct {
	mu          sync.Mutex
	events      []store.AccessEventRecord
	transitions []store.TransitionRecord
}

func New() *Journal {
	return &Journal{}
}

func (j *Journal) RecordEvent(_ context.Context, rec store.AccessEventRecord) error {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, rec)
	return nil
}

func (j *Journal) RecordTransition(_ context.Context, rec store.TransitionRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.transitions = append(j.transitions, rec)
	return nil
}

func (j *Journal) Recent(_ context.Context, limit int) ([]store.EventRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]store.EventRecord, 0, len(j.events)+len(j.transitions))
	for _, e := range j.events {
		out = append(out, store.EventRecord{
			Kind:       store.KindAccess,
			MachineID:  e.MachineID,
			CardIDHash: e.CardIDHash,
			Decision:   e.Decision,
			Reason:     e.Reason,
			At:         e.DecidedAt,
		})
	}
	for _, tr := range j.transitions {
		out = append(out, store.EventRecord{
			Kind:       store.KindTransition,
			MachineID:  tr.MachineID,
			From:       tr.From,
			To:         tr.To,
			CardIDHash: tr.CardIDHash,
			At:         tr.At,
		})
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].At.After(out[b].At) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (j *Journal) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var deleted int64
	events := j.events[:0]
	for _, e := range j.events {
		if e.DecidedAt.Before(cutoff) {
			deleted++
			continue
		}
		events = append(events, e)
	}
	j.events = events

	transitions := j.transitions[:0]
	for _, tr := range j.transitions {
		if tr.At.Before(cutoff) {
			deleted++
			continue
		}
		transitions = append(transitions, tr)
	}
	j.transitions = transitions

	return deleted, nil
}

// Events returns a copy of all recorded access events.  Test-only helper.
func (j *Journal) Events() []store.AccessEventRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]store.AccessEventRecord, len(j.events))
	copy(out, j.events)
	return out
}

// Transitions returns a copy of all recorded transitions.  Test-only helper.
func (j *Journal) Transitions() []store.TransitionRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]store.TransitionRecord, len(j.transitions))
	copy(out, j.transitions)
	return out
}
