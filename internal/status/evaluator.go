// Package status classifies a probe result against a monitor's
// last-known state.
package status

type Transition int

const (
	TransitionNone Transition = iota
	TransitionToDown
	TransitionToUp
)

func (t Transition) String() string {
	switch t {
	case TransitionToDown:
		return "to-down"
	case TransitionToUp:
		return "to-up"
	default:
		return "none"
	}
}

type Outcome struct {
	Status     bool
	Transition Transition
}

// Evaluate compares the probe's success flag against the previous
// monitor state. A nil previous state means this is the monitor's
// first-ever check: it establishes the baseline and never counts as a
// transition.
func Evaluate(prev *bool, success bool) Outcome {
	if prev == nil || *prev == success {
		return Outcome{Status: success, Transition: TransitionNone}
	}
	if success {
		return Outcome{Status: true, Transition: TransitionToUp}
	}
	return Outcome{Status: false, Transition: TransitionToDown}
}
