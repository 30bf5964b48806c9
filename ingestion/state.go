package ingestion

// State is a step of an ingestion request.
type State int

const (
	StateReceived State = iota
	StateExtracting
	StateResolving
	StatePersisting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateExtracting:
		return "extracting"
	case StateResolving:
		return "resolving"
	case StatePersisting:
		return "persisting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Monitor observes state transitions. Calls for one request are sequential; calls for
// different requests may be concurrent. err is set only on transitions to StateFailed.
type Monitor interface {
	Transition(runID string, from, to State, err error)
}

type noopMonitor struct{}

var _ Monitor = noopMonitor{}

func (noopMonitor) Transition(string, State, State, error) {}

// run tracks the state of one request and reports its transitions.
type run struct {
	id      string
	state   State
	monitor Monitor
}

func (r *run) advance(next State) {
	if r.state == next || r.state.Terminal() {
		return
	}
	prev := r.state
	r.state = next
	r.monitor.Transition(r.id, prev, next, nil)
}

func (r *run) fail(err error) *Failure {
	failure := &Failure{RunID: r.id, State: r.state, Class: classify(err), Err: err}
	prev := r.state
	r.state = StateFailed
	r.monitor.Transition(r.id, prev, StateFailed, failure)
	return failure
}
