package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const (
	KindTransition = "transition"
	KindAccess     = "access"
)

// EventRecord is a row of either table as returned by Recent.
type EventRecord struct {
	Kind       string
	MachineID  string
	From       string
	To         string
	CardIDHash []byte
	Decision   string
	Reason     string
	At         time.Time
}

// Journal is the full local audit log: both append-only tables plus the
// read and retention operations the station needs.
type Journal interface {
	AccessEventStore
	TransitionStore

	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]EventRecord, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// HashCardID returns the SHA-256 of a card id.  Empty ids and the "0"
// no-card sentinel hash to nil.
func HashCardID(cardID string) []byte {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" || cardID == "0" {
		return nil
	}
	sum := sha256.Sum256([]byte(cardID))
	return sum[:]
}

// CardTag is a short, log-safe reference to a card: the first eight hex
// digits of its hash, or "none" for the no-card sentinel.
func CardTag(cardID string) string {
	h := HashCardID(cardID)
	if h == nil {
		return "none"
	}
	return hex.EncodeToString(h[:4])
}
