// Package safety holds the process-wide kill-switch state.
//
// State is deliberately not self-locking: the validation engine owns one
// instance and guards it together with the metrics ledger under a single
// mutex, so failure counting, safe-mode transitions and metric updates
// are linearized across concurrent callers.
package safety

// State tracks safe-mode activation and the consecutive-failure counter.
type State struct {
	enabled   bool
	threshold int

	active              bool
	consecutiveFailures int
}

// NewState builds the state machine. A zero or negative threshold
// disables the consecutive-failure trigger; zero-tolerance trips still
// work.
func NewState(enabled bool, threshold int) *State {
	return &State{
		enabled:   enabled,
		threshold: threshold,
	}
}

// Active reports whether safe mode is engaged.
func (s *State) Active() bool {
	return s.active
}

// ConsecutiveFailures returns the current failure streak.
func (s *State) ConsecutiveFailures() int {
	return s.consecutiveFailures
}

// RecordFailure increments the failure streak and reports whether this
// failure crossed the threshold and engaged safe mode.
func (s *State) RecordFailure() bool {
	s.consecutiveFailures++
	if !s.enabled || s.threshold <= 0 {
		return false
	}
	if s.consecutiveFailures >= s.threshold {
		return s.Trip()
	}
	return false
}

// RecordSuccess resets the failure streak.
func (s *State) RecordSuccess() {
	s.consecutiveFailures = 0
}

// Trip engages safe mode immediately, bypassing the failure counter.
// Re-entering while already active is a no-op; the return reports whether
// a transition actually happened.
func (s *State) Trip() bool {
	if !s.enabled || s.active {
		return false
	}
	s.active = true
	return true
}

// Reset clears safe mode and zeroes the failure streak. Only an explicit
// operator call exits safe mode; there is no automatic recovery.
func (s *State) Reset() {
	s.active = false
	s.consecutiveFailures = 0
}
