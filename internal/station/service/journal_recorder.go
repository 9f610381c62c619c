package service

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BrandonDHaskell/Portunus/station/internal/station/store"
	"github.com/BrandonDHaskell/Portunus/station/internal/station/types"
)

const journalWriteTimeout = 5 * time.Second

// RecorderConfig holds the parameters for NewJournalRecorder.
type RecorderConfig struct {
	MachineID string
	Depth     int // queue size, defaults to 128

	// RetentionDays bounds the journal's age.  0 keeps everything.
	RetentionDays int
	// PruneEvery is the spacing of retention passes.  Defaults to 6h.
	PruneEvery time.Duration

	Now func() time.Time
}

// JournalRecorder is the journal's only writer.  Records are queued so the
// tick loop never waits on the store; when the queue is full the record is
// dropped and counted.  The same goroutine applies the retention window.
type JournalRecorder struct {
	journal    store.Journal
	machineID  string
	logger     *log.Logger
	retention  time.Duration
	pruneEvery time.Duration
	now        func() time.Time

	queue chan func(ctx context.Context) error
	done  chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64

	// Writer-goroutine owned.
	reported uint64
}

// NewJournalRecorder starts the background writer.
func NewJournalRecorder(j store.Journal, cfg RecorderConfig, logger *log.Logger) *JournalRecorder {
	if cfg.Depth <= 0 {
		cfg.Depth = 128
	}
	if cfg.PruneEvery <= 0 {
		cfg.PruneEvery = 6 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	r := &JournalRecorder{
		journal:    j,
		machineID:  strings.TrimSpace(cfg.MachineID),
		logger:     logger,
		retention:  time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		pruneEvery: cfg.PruneEvery,
		now:        cfg.Now,
		queue:      make(chan func(ctx context.Context) error, cfg.Depth),
		done:       make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *JournalRecorder) Transition(from, to types.State, cardID string, at time.Time) {
	rec := store.TransitionRecord{
		MachineID:  r.machineID,
		From:       from.String(),
		To:         to.String(),
		CardIDHash: store.HashCardID(cardID),
		At:         at.UTC(),
	}
	r.enqueue(func(ctx context.Context) error {
		return r.journal.RecordTransition(ctx, rec)
	})
}

func (r *JournalRecorder) AccessDecision(cardID string, granted bool, reason string, at time.Time) {
	decision := types.AuthDenied.String()
	if granted {
		decision = types.AuthGranted.String()
	}
	rec := store.AccessEventRecord{
		MachineID:  r.machineID,
		CardIDHash: store.HashCardID(cardID),
		Decision:   decision,
		Reason:     reason,
		DecidedAt:  at.UTC(),
	}
	r.enqueue(func(ctx context.Context) error {
		return r.journal.RecordEvent(ctx, rec)
	})
}

// Dropped returns how many records were discarded because the queue was full
// or the recorder was closed.
func (r *JournalRecorder) Dropped() uint64 { return r.dropped.Load() }

// Close flushes queued records and stops the writer.  Safe to call more than
// once; records submitted afterwards are dropped.
func (r *JournalRecorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *JournalRecorder) enqueue(fn func(ctx context.Context) error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.queue <- fn:
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.logger.Printf("journal queue full, %d records dropped", n)
		}
	}
}

func (r *JournalRecorder) loop() {
	defer close(r.done)

	var prune <-chan time.Time
	if r.retention > 0 {
		t := time.NewTicker(r.pruneEvery)
		defer t.Stop()
		prune = t.C
		r.logger.Printf("journal retention %s, pass every %s", r.retention, r.pruneEvery)
		r.maintain()
	}

	for {
		select {
		case fn, ok := <-r.queue:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
			if err := fn(ctx); err != nil {
				r.logger.Printf("journal write error: %v", err)
			}
			cancel()
		case <-prune:
			r.maintain()
		}
	}
}

// maintain deletes rows past the retention window and reports records lost
// since the previous pass.
func (r *JournalRecorder) maintain() {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()

	cutoff := r.now().UTC().Add(-r.retention)
	if n, err := r.journal.PruneOlderThan(ctx, cutoff); err != nil {
		r.logger.Printf("journal prune error: %v", err)
	} else if n > 0 {
		r.logger.Printf("journal pruned %d rows before %s", n, cutoff.Format(time.RFC3339))
	}

	if d := r.dropped.Load(); d != r.reported {
		r.logger.Printf("journal lost %d records since last pass (%d total)", d-r.reported, d)
		r.reported = d
	}
}
