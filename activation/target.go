package activation

import (
	"errors"
	"fmt"
)

// ErrInvalidTrigger is returned by DecodeTrigger for indices outside 0..10.
var ErrInvalidTrigger = errors.New("invalid channel link trigger")

// MaxSibling is the highest sub-channel a single trigger can address.
const MaxSibling = 9

// TargetKind identifies which channels a link trigger addresses.
type TargetKind int

const (
	// TargetParent is the parent of the current channel.
	TargetParent TargetKind = iota
	// TargetSibling is the Nth sub-channel of the current channel.
	TargetSibling
	// TargetAllSubchannels is every sub-channel of the current channel.
	TargetAllSubchannels
)

// Target is a decoded channel link trigger.
type Target struct {
	kind TargetKind
	n    int
}

// Parent returns the parent-channel target.
func Parent() Target {
	return Target{kind: TargetParent}
}

// Sibling returns the target for the nth sub-channel, counting from 1.
func Sibling(n int) (Target, error) {
	if n < 1 || n > MaxSibling {
		return Target{}, fmt.Errorf("%w: sibling %d", ErrInvalidTrigger, n)
	}
	return Target{kind: TargetSibling, n: n}, nil
}

// AllSubchannels returns the target addressing every sub-channel.
func AllSubchannels() Target {
	return Target{kind: TargetAllSubchannels}
}

// DecodeTrigger maps a hotkey index to a Target:
// 0 is the parent, 1..9 the Nth sub-channel and 10 all sub-channels.
func DecodeTrigger(index int) (Target, error) {
	switch {
	case index == 0:
		return Parent(), nil
	case index >= 1 && index <= MaxSibling:
		return Sibling(index)
	case index == MaxSibling+1:
		return AllSubchannels(), nil
	default:
		return Target{}, fmt.Errorf("%w: index %d", ErrInvalidTrigger, index)
	}
}

// Kind returns the target kind.
func (t Target) Kind() TargetKind {
	return t.kind
}

// N returns the 1-based sub-channel number of a sibling target, or 0.
func (t Target) N() int {
	return t.n
}

// Index returns the hotkey index the target decodes from.
func (t Target) Index() int {
	switch t.kind {
	case TargetSibling:
		return t.n
	case TargetAllSubchannels:
		return MaxSibling + 1
	default:
		return 0
	}
}

func (t Target) String() string {
	switch t.kind {
	case TargetParent:
		return "parent"
	case TargetSibling:
		return fmt.Sprintf("sub-channel %d", t.n)
	case TargetAllSubchannels:
		return "all sub-channels"
	default:
		return "unknown"
	}
}
