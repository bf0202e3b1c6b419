// Package op tracks the lifecycle of a single asynchronous UI operation
// (save, upload, verify) as an explicit finite state.
//
// A Tracker also carries a generation counter. Every Begin returns the
// generation the result must present to Finish; Reset bumps the counter so
// results from work started before the reset are ignored. Screens call
// Reset when they are torn down, which stands in for an "is mounted" guard.
package op

// State is the phase of an operation.
type State int

const (
	Idle State = iota
	InFlight
	Succeeded
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InFlight:
		return "in-flight"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Tracker holds the state of one operation. The zero value is Idle.
type Tracker struct {
	state State
	gen   uint64
	err   error
}

// Begin moves the tracker to InFlight and returns the generation that the
// eventual result must carry. It reports false, leaving the tracker
// untouched, when an operation is already in flight.
func (t *Tracker) Begin() (uint64, bool) {
	if t.state == InFlight {
		return 0, false
	}
	t.gen++
	t.state = InFlight
	t.err = nil
	return t.gen, true
}

// Finish records the outcome of the operation started at gen. Results from
// a stale generation, or arriving when nothing is in flight, are dropped
// and Finish reports false.
func (t *Tracker) Finish(gen uint64, err error) bool {
	if gen != t.gen || t.state != InFlight {
		return false
	}
	if err != nil {
		t.state = Failed
		t.err = err
		return true
	}
	t.state = Succeeded
	t.err = nil
	return true
}

// Reset returns the tracker to Idle and invalidates any in-flight result.
func (t *Tracker) Reset() {
	t.gen++
	t.state = Idle
	t.err = nil
}

// State returns the current phase.
func (t Tracker) State() State { return t.state }

// Err returns the failure reason when the state is Failed.
func (t Tracker) Err() error { return t.err }

// Busy reports whether the operation is in flight.
func (t Tracker) Busy() bool { return t.state == InFlight }

// Generation returns the current generation.
func (t Tracker) Generation() uint64 { return t.gen }
