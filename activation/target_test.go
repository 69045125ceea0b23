package activation

import (
	"errors"
	"testing"
)

func TestDecodeTrigger(t *testing.T) {
	tests := []struct {
		index    int
		wantKind TargetKind
		wantN    int
		wantErr  bool
	}{
		{0, TargetParent, 0, false},
		{1, TargetSibling, 1, false},
		{5, TargetSibling, 5, false},
		{9, TargetSibling, 9, false},
		{10, TargetAllSubchannels, 0, false},
		{-1, 0, 0, true},
		{11, 0, 0, true},
	}

	for _, tt := range tests {
		got, err := DecodeTrigger(tt.index)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidTrigger) {
				t.Errorf("DecodeTrigger(%d) error = %v, want ErrInvalidTrigger", tt.index, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("DecodeTrigger(%d) error = %v", tt.index, err)
			continue
		}
		if got.Kind() != tt.wantKind || got.N() != tt.wantN {
			t.Errorf("DecodeTrigger(%d) = %v, want kind %v n %d", tt.index, got, tt.wantKind, tt.wantN)
		}
		if got.Index() != tt.index {
			t.Errorf("DecodeTrigger(%d).Index() = %d", tt.index, got.Index())
		}
	}
}

func TestSibling_OutOfRange(t *testing.T) {
	for _, n := range []int{0, 10} {
		if _, err := Sibling(n); !errors.Is(err, ErrInvalidTrigger) {
			t.Errorf("Sibling(%d) error = %v, want ErrInvalidTrigger", n, err)
		}
	}
}

func TestTarget_String(t *testing.T) {
	sib, _ := Sibling(3)
	tests := []struct {
		target Target
		want   string
	}{
		{Parent(), "parent"},
		{sib, "sub-channel 3"},
		{AllSubchannels(), "all sub-channels"},
	}
	for _, tt := range tests {
		if got := tt.target.String(); got != tt.want {
			t.Errorf("Target.String() = %v, want %v", got, tt.want)
		}
	}
}

func TestModeSwitch_Toggle(t *testing.T) {
	var s ModeSwitch
	if s.Mode() != ModeLink {
		t.Errorf("Mode() = %v, want link", s.Mode())
	}
	if got := s.Toggle(); got != ModeMove {
		t.Errorf("Toggle() = %v, want move", got)
	}
	if got := s.Toggle(); got != ModeLink {
		t.Errorf("Toggle() = %v, want link", got)
	}
	s.Set(ModeMove)
	if s.Mode() != ModeMove {
		t.Errorf("Mode() = %v, want move", s.Mode())
	}
}
