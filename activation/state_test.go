package activation

import (
	"math/rand"
	"testing"
)

func TestCounter(t *testing.T) {
	var c Counter

	if c.Dec() {
		t.Error("Dec() at zero = true, want false")
	}
	if c.Value() != 0 {
		t.Errorf("Value() = %v, want 0", c.Value())
	}

	c.Inc()
	c.Inc()
	if !c.Dec() {
		t.Error("Dec() = false, want true")
	}
	if c.Value() != 1 {
		t.Errorf("Value() = %v, want 1", c.Value())
	}

	c.Inc()
	c.Clamp(1)
	if c.Value() != 1 {
		t.Errorf("Value() after Clamp(1) = %v, want 1", c.Value())
	}
	c.Clamp(-3)
	if c.Value() != 0 {
		t.Errorf("Value() after Clamp(-3) = %v, want 0", c.Value())
	}
}

func TestState_Transmitting(t *testing.T) {
	var s State

	if s.IsTransmitting() {
		t.Error("new State should not be transmitting")
	}

	s.IncrementPush(false)
	s.IncrementPush(true)
	if !s.IsTransmitting() || !s.IsAltSpeaking() {
		t.Error("State should be transmitting with an alt hold")
	}

	s.DecrementPush(true)
	if !s.IsTransmitting() {
		t.Error("State should keep transmitting while one trigger is held")
	}
	if s.IsAltSpeaking() {
		t.Error("alt hold should be released")
	}

	s.DecrementPush(false)
	if s.IsTransmitting() {
		t.Error("State should stop transmitting when every trigger is released")
	}
}

func TestState_DecrementAtZeroIsNoop(t *testing.T) {
	var s State

	s.DecrementPush(false)
	s.DecrementPush(true)

	push, alt := s.Counts()
	if push != 0 || alt != 0 {
		t.Errorf("Counts() = (%d, %d), want (0, 0)", push, alt)
	}

	s.IncrementPush(true)
	s.DecrementPush(true)
	s.DecrementPush(true)
	push, alt = s.Counts()
	if push != 0 || alt != 0 {
		t.Errorf("Counts() after extra release = (%d, %d), want (0, 0)", push, alt)
	}
}

func TestState_PlainReleaseClampsAlt(t *testing.T) {
	var s State

	s.IncrementPush(true)
	s.IncrementPush(true)
	s.DecrementPush(false)
	s.DecrementPush(false)

	push, alt := s.Counts()
	if push != 0 || alt != 0 {
		t.Errorf("Counts() = (%d, %d), want (0, 0)", push, alt)
	}
}

func TestState_InvariantsHoldForRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for run := 0; run < 200; run++ {
		var s State
		for step := 0; step < 100; step++ {
			alt := rng.Intn(2) == 0
			if rng.Intn(2) == 0 {
				s.IncrementPush(alt)
			} else {
				s.DecrementPush(alt)
			}

			push, altCount := s.Counts()
			if push < 0 || altCount < 0 {
				t.Fatalf("run %d step %d: negative counters (%d, %d)", run, step, push, altCount)
			}
			if altCount > push {
				t.Fatalf("run %d step %d: alt %d exceeds push %d", run, step, altCount, push)
			}
			if s.IsTransmitting() != (push > 0) {
				t.Fatalf("run %d step %d: IsTransmitting() = %v with push %d", run, step, s.IsTransmitting(), push)
			}
		}
	}
}

func TestState_Reset(t *testing.T) {
	var s State
	s.IncrementPush(true)
	s.IncrementPush(false)

	s.Reset()

	if s.IsTransmitting() || s.IsAltSpeaking() {
		t.Error("Reset() should release every hold")
	}
}
