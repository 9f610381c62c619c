package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/Portunus/station/internal/db"
	"github.com/BrandonDHaskell/Portunus/station/internal/station/store"
)

// Journal is the sqlite-backed store.Journal.  Writes go through the shared
// single-writer worker; reads use the connection directly.
type Journal struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewJournal(db *sql.DB, writer *dbpkg.Worker) *Journal {
	return &Journal{db: db, writer: writer}
}

func (j *Journal) RecordEvent(ctx context.Context, rec store.AccessEventRecord) error {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}
	decidedMs := rec.DecidedAt.UTC().UnixMilli()

	return j.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_events(
  machine_id, card_id_hash, decision, decision_reason, decided_at_ms
) VALUES (?, ?, ?, ?, ?);
`,
			strings.TrimSpace(rec.MachineID), nullableHash(rec.CardIDHash),
			rec.Decision, rec.Reason, decidedMs,
		); err != nil {
			return fmt.Errorf("RecordEvent insert: %w", err)
		}
		return nil
	})
}

func (j *Journal) RecordTransition(ctx context.Context, rec store.TransitionRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	atMs := rec.At.UTC().UnixMilli()

	return j.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO state_transitions(
  machine_id, from_state, to_state, card_id_hash, at_ms
) VALUES (?, ?, ?, ?, ?);
`,
			strings.TrimSpace(rec.MachineID), rec.From, rec.To,
			nullableHash(rec.CardIDHash), atMs,
		); err != nil {
			return fmt.Errorf("RecordTransition insert: %w", err)
		}
		return nil
	})
}

// Recent merges both tables newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]store.EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT kind, machine_id, from_state, to_state, card_id_hash, decision, decision_reason, at_ms
FROM (
  SELECT 'transition' AS kind, machine_id, from_state, to_state, card_id_hash,
         '' AS decision, '' AS decision_reason, at_ms, id
  FROM state_transitions
  UNION ALL
  SELECT 'access' AS kind, machine_id, '' AS from_state, '' AS to_state, card_id_hash,
         decision, decision_reason, decided_at_ms AS at_ms, id
  FROM access_events
)
ORDER BY at_ms DESC, id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("Recent query: %w", err)
	}
	defer rows.Close()

	var out []store.EventRecord
	for rows.Next() {
		var (
			rec  store.EventRecord
			atMs int64
		)
		if err := rows.Scan(
			&rec.Kind, &rec.MachineID, &rec.From, &rec.To, &rec.CardIDHash,
			&rec.Decision, &rec.Reason, &atMs,
		); err != nil {
			return nil, fmt.Errorf("Recent scan: %w", err)
		}
		rec.At = time.UnixMilli(atMs).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Recent rows: %w", err)
	}
	return out, nil
}

// PruneOlderThan deletes rows from both tables older than cutoff and
// returns the total number deleted.
func (j *Journal) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := j.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM state_transitions WHERE at_ms < ?;`,
			`DELETE FROM access_events WHERE decided_at_ms < ?;`,
		} {
			res, err := tx.ExecContext(ctx, q, cutoffMs)
			if err != nil {
				return fmt.Errorf("PruneOlderThan: %w", err)
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		return nil
	})
	return deleted, err
}

func nullableHash(h []byte) any {
	if len(h) != 32 {
		return nil
	}
	return h
}
