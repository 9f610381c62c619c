package store

import (
	"context"
	"time"
)

// AccessEventRecord captures a single authentication outcome for the local
// audit log.  CardIDHash is the SHA-256 of the card id, or nil when the card
// read failed.
type AccessEventRecord struct {
	MachineID  string
	CardIDHash []byte
	Decision   string // "granted" | "denied"
	Reason     string
	DecidedAt  time.Time
}

// AccessEventStore persists access decisions as an append-only log.
type AccessEventStore interface {
	RecordEvent(ctx context.Context, rec AccessEventRecord) error
}
