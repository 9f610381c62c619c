package service

import "time"

// Confirm is the glitch-filter gate: it reports true only when the condition
// is armed and has been active since `since` for at least min.
func Confirm(since time.Time, armed bool, now time.Time, min time.Duration) bool {
	if !armed {
		return false
	}
	return now.Sub(since) >= min
}

// Filter confirms a condition once it has held continuously for Min.  Any
// observation of the condition as false disarms it, so an interruption
// restarts the dwell time from zero.
type Filter struct {
	Min time.Duration

	since time.Time
	armed bool
}

// NewFilter returns an unarmed filter with the given dwell time.
func NewFilter(min time.Duration) *Filter {
	return &Filter{Min: min}
}

// Observe feeds one sample of the raw condition and reports whether it is
// confirmed.
func (f *Filter) Observe(active bool, now time.Time) bool {
	if !active {
		f.armed = false
		return false
	}
	if !f.armed {
		f.since = now
		f.armed = true
	}
	return Confirm(f.since, f.armed, now, f.Min)
}

// Reset disarms the filter.
func (f *Filter) Reset() {
	f.armed = false
	f.since = time.Time{}
}
