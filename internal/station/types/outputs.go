package types

// Outputs is the indicator and relay configuration driven for a state.
type Outputs struct {
	Red    bool `json:"red"`
	Yellow bool `json:"yellow"`
	Green  bool `json:"green"`
	Relay  bool `json:"relay"`
}

var outputTable = map[State]Outputs{
	Standby:        {Yellow: true},
	Identification: {Yellow: true, Green: true},
	Running:        {Green: true, Relay: true},
	Reset:          {Red: true},
}

// OutputsFor returns the fixed output configuration for s.  Unknown states
// map to the Reset configuration so the relay is never energised by
// accident.
func OutputsFor(s State) Outputs {
	if o, ok := outputTable[s]; ok {
		return o
	}
	return outputTable[Reset]
}
