package store

import (
	"context"
	"time"
)

type TransitionRecord struct {
	MachineID  string
	From       string
	To         string
	CardIDHash []byte // card presented in the visit, if any
	At         time.Time
}

type TransitionStore interface {
	RecordTransition(ctx context.Context, rec TransitionRecord) error
}
