package activation

import "sync"

// State tracks how many held triggers currently request transmission.
//
// Every trigger increments on its down edge and decrements on its up edge,
// so several overlapping holds keep the user transmitting until the last
// one is released. alt counts the subset of holds that are alternate
// triggers. alt never exceeds push and neither goes below zero.
//
// State is safe for concurrent use; the audio pipeline polls
// IsTransmitting from its own goroutine.
type State struct {
	mu   sync.Mutex
	push Counter
	alt  Counter
}

// IncrementPush registers a held trigger.
func (s *State) IncrementPush(alt bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push.Inc()
	if alt {
		s.alt.Inc()
	}
}

// DecrementPush releases a held trigger. It is a no-op when nothing is held.
func (s *State) DecrementPush(alt bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.push.Dec() {
		return
	}
	if alt {
		s.alt.Dec()
	}
	// an unmatched plain release may leave more alt holds than holds
	s.alt.Clamp(s.push.Value())
}

// IsTransmitting reports whether at least one trigger is held.
func (s *State) IsTransmitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.push.Value() > 0
}

// IsAltSpeaking reports whether an alternate trigger is held.
func (s *State) IsAltSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alt.Value() > 0
}

// Counts returns the push and alt counters.
func (s *State) Counts() (push, alt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.push.Value(), s.alt.Value()
}

// Reset releases every hold.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push.Reset()
	s.alt.Reset()
}
