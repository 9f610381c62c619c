package types

import "time"

// State is the access-control state of the station.  Exactly one state is
// current at any time; the zero value is Standby.
type State int

const (
	Standby State = iota
	Identification
	Running
	Reset
)

func (s State) String() string {
	switch s {
	case Standby:
		return "standby"
	case Identification:
		return "identification"
	case Running:
		return "running"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// Snapshot is one tick's view of the inputs.  HardStop is the value of the
// hard-stop latch at the moment it was consumed.
type Snapshot struct {
	CardPresent bool
	StopPressed bool
	HardStop    bool
	At          time.Time
}
