package activation

import (
	"reflect"
	"testing"

	"github.com/yllada/voicelink/common"
	"github.com/yllada/voicelink/message"
)

// fakeTree is a fixed channel layout:
//
//	0 Root
//	└── 1 Lobby (local user, session 7)
//	    ├── 11 Alpha
//	    ├── 12 Bravo
//	    └── 13 Charlie
type fakeTree struct {
	session  uint32
	hasLocal bool
	current  uint32
	parents  map[uint32]uint32
	children map[uint32][]uint32
}

func newFakeTree() *fakeTree {
	return &fakeTree{
		session:  7,
		hasLocal: true,
		current:  1,
		parents:  map[uint32]uint32{1: 0, 11: 1, 12: 1, 13: 1},
		children: map[uint32][]uint32{0: {1}, 1: {11, 12, 13}},
	}
}

func (f *fakeTree) LocalSession() (uint32, bool) { return f.session, f.hasLocal }

func (f *fakeTree) CurrentChannel(session uint32) (uint32, bool) {
	if session != f.session {
		return 0, false
	}
	return f.current, true
}

func (f *fakeTree) Parent(channel uint32) (uint32, bool) {
	p, ok := f.parents[channel]
	return p, ok
}

func (f *fakeTree) Subchannel(channel uint32, n int) (uint32, bool) {
	kids := f.children[channel]
	if n < 0 || n >= len(kids) {
		return 0, false
	}
	return kids[n], true
}

func (f *fakeTree) Subchannels(channel uint32) []uint32 {
	return append([]uint32(nil), f.children[channel]...)
}

type recordingSender struct {
	sent []message.Message
	err  error
}

func (r *recordingSender) Send(msg message.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func newTestController(mode Mode) (*Controller, *fakeTree, *recordingSender, *ModeSwitch) {
	tree := newFakeTree()
	sender := &recordingSender{}
	sw := &ModeSwitch{}
	sw.Set(mode)
	return NewController(&State{}, tree, sender, sw), tree, sender, sw
}

func mustDecode(t *testing.T, index int) Target {
	t.Helper()
	target, err := DecodeTrigger(index)
	if err != nil {
		t.Fatalf("DecodeTrigger(%d) error = %v", index, err)
	}
	return target
}

func TestController_PushLinkAllSubchannels(t *testing.T) {
	ctrl, _, sender, _ := newTestController(ModeLink)
	target := mustDecode(t, 10)

	ctrl.OnChannelLinkTrigger(target, Down)
	ctrl.OnChannelLinkTrigger(target, Up)

	want := []message.Message{
		message.LinkChannels{SourceID: 1, Targets: []uint32{11, 12, 13}, Kind: message.PushLink},
		message.LinkChannels{SourceID: 1, Targets: []uint32{11, 12, 13}, Kind: message.PushUnlink},
	}
	if !reflect.DeepEqual(sender.sent, want) {
		t.Errorf("sent = %+v, want %+v", sender.sent, want)
	}
	if ctrl.State().IsTransmitting() {
		t.Error("matched down/up edges should leave the user silent")
	}
}

func TestController_PushLinkSingleTarget(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  uint32
	}{
		{"parent", 0, 0},
		{"first sub-channel", 1, 11},
		{"third sub-channel", 3, 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, _, sender, _ := newTestController(ModeLink)
			ctrl.OnChannelLinkTrigger(mustDecode(t, tt.index), Down)

			want := []message.Message{
				message.LinkChannels{SourceID: 1, Targets: []uint32{tt.want}, Kind: message.PushLink},
			}
			if !reflect.DeepEqual(sender.sent, want) {
				t.Errorf("sent = %+v, want %+v", sender.sent, want)
			}
		})
	}
}

func TestController_LinkModeSuppressesEmptyTargets(t *testing.T) {
	ctrl, tree, sender, _ := newTestController(ModeLink)

	ctrl.OnChannelLinkTrigger(mustDecode(t, 5), Down)
	ctrl.OnChannelLinkTrigger(mustDecode(t, 5), Up)

	tree.children[1] = nil
	ctrl.OnChannelLinkTrigger(mustDecode(t, 10), Down)

	if len(sender.sent) != 0 {
		t.Errorf("sent = %+v, want nothing", sender.sent)
	}
}

func TestController_MoveMode(t *testing.T) {
	ctrl, _, sender, _ := newTestController(ModeMove)

	ctrl.OnChannelLinkTrigger(mustDecode(t, 2), Down)
	ctrl.OnChannelLinkTrigger(mustDecode(t, 2), Up)

	want := []message.Message{message.MoveSelf{ChannelID: 12}}
	if !reflect.DeepEqual(sender.sent, want) {
		t.Errorf("sent = %+v, want %+v", sender.sent, want)
	}
}

func TestController_MoveModeUnresolvable(t *testing.T) {
	tests := []struct {
		name  string
		index int
	}{
		{"missing fifth sub-channel", 5},
		{"all sub-channels has no single target", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, _, sender, _ := newTestController(ModeMove)
			ctrl.OnChannelLinkTrigger(mustDecode(t, tt.index), Down)
			if len(sender.sent) != 0 {
				t.Errorf("sent = %+v, want nothing", sender.sent)
			}
			if !ctrl.State().IsAltSpeaking() {
				t.Error("an unresolved trigger should still count as an alt hold")
			}
		})
	}
}

func TestController_MoveModeFromRootHasNoParent(t *testing.T) {
	ctrl, tree, sender, _ := newTestController(ModeMove)
	tree.current = 0

	ctrl.OnChannelLinkTrigger(Parent(), Down)

	if len(sender.sent) != 0 {
		t.Errorf("sent = %+v, want nothing", sender.sent)
	}
}

func TestController_NoSessionOnlyCounts(t *testing.T) {
	ctrl, tree, sender, _ := newTestController(ModeLink)
	tree.hasLocal = false

	ctrl.OnChannelLinkTrigger(mustDecode(t, 10), Down)

	if len(sender.sent) != 0 {
		t.Errorf("sent = %+v, want nothing", sender.sent)
	}
	push, alt := ctrl.State().Counts()
	if push != 1 || alt != 1 {
		t.Errorf("Counts() = (%d, %d), want (1, 1)", push, alt)
	}
}

func TestController_ModeToggleBetweenEdges(t *testing.T) {
	ctrl, _, sender, sw := newTestController(ModeLink)

	ctrl.OnChannelLinkTrigger(mustDecode(t, 1), Down)
	sw.Toggle()
	ctrl.OnChannelLinkTrigger(mustDecode(t, 1), Up)

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if _, ok := sender.sent[0].(message.LinkChannels); !ok {
		t.Errorf("sent[0] = %T, want LinkChannels", sender.sent[0])
	}
}

func TestController_SendErrorIsSwallowed(t *testing.T) {
	ctrl, _, sender, _ := newTestController(ModeLink)
	sender.err = common.ErrNotConnected

	ctrl.OnChannelLinkTrigger(mustDecode(t, 1), Down)

	if !ctrl.State().IsTransmitting() {
		t.Error("a failed send should not undo the hold")
	}
}

func TestController_Hotkeys(t *testing.T) {
	ctrl, _, _, _ := newTestController(ModeLink)

	ctrl.OnPushToTalk(Down)
	ctrl.OnAltPushToTalk(Down)
	ctrl.OnCenterPosition(Down)
	ctrl.OnPushToMute(Down)

	push, alt := ctrl.State().Counts()
	if push != 3 || alt != 2 {
		t.Errorf("Counts() = (%d, %d), want (3, 2)", push, alt)
	}
	if !ctrl.IsCenterPosition() || !ctrl.IsPushToMute() {
		t.Error("center position and push-to-mute should be held")
	}

	ctrl.OnCenterPosition(Up)
	ctrl.OnPushToMute(Up)
	if ctrl.IsCenterPosition() || ctrl.IsPushToMute() {
		t.Error("center position and push-to-mute should be released")
	}

	ctrl.OnPushToTalk(Down)
	ctrl.Reset()
	if ctrl.State().IsTransmitting() {
		t.Error("Reset() should release every hold")
	}
}

func TestController_LinkActions(t *testing.T) {
	ctrl, _, sender, _ := newTestController(ModeLink)

	if err := ctrl.LinkWith(12); err != nil {
		t.Fatalf("LinkWith() error = %v", err)
	}
	if err := ctrl.UnlinkFrom(12); err != nil {
		t.Fatalf("UnlinkFrom() error = %v", err)
	}
	if err := ctrl.UnlinkAll(); err != nil {
		t.Fatalf("UnlinkAll() error = %v", err)
	}

	want := []message.Message{
		message.LinkChannels{SourceID: 1, Targets: []uint32{12}, Kind: message.Link},
		message.LinkChannels{SourceID: 1, Targets: []uint32{12}, Kind: message.Unlink},
		message.LinkChannels{SourceID: 1, Kind: message.UnlinkAll},
	}
	if !reflect.DeepEqual(sender.sent, want) {
		t.Errorf("sent = %+v, want %+v", sender.sent, want)
	}
}

func TestController_LinkActionsWithoutSession(t *testing.T) {
	ctrl, tree, _, _ := newTestController(ModeLink)
	tree.hasLocal = false

	if err := ctrl.LinkWith(12); err != common.ErrNotConnected {
		t.Errorf("LinkWith() error = %v, want ErrNotConnected", err)
	}
}
