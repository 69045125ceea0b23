package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yllada/voicelink/activation"
	"github.com/yllada/voicelink/app"
	"github.com/yllada/voicelink/channel"
	"github.com/yllada/voicelink/client"
)

type edgeCall struct {
	name  string
	index int
	edge  activation.Edge
}

type fakeBackend struct {
	state      client.State
	session    client.Session
	hasSession bool
	mute, deaf bool
	tx         bool
	mode       activation.Mode
	tree       *channel.Tree

	edges        []edgeCall
	modeToggles  int
	muteToggles  int
	deafToggles  int
	disconnects  int
	reconnects   int
	reconnectErr error
}

func (f *fakeBackend) State() client.State                { return f.state }
func (f *fakeBackend) Session() (client.Session, bool)    { return f.session, f.hasSession }
func (f *fakeBackend) SelfState() (bool, bool)            { return f.mute, f.deaf }
func (f *fakeBackend) IsTransmitting() bool               { return f.tx }
func (f *fakeBackend) Mode() activation.Mode              { return f.mode }
func (f *fakeBackend) Tree() *channel.Tree                { return f.tree }
func (f *fakeBackend) ToggleMute()                        { f.muteToggles++ }
func (f *fakeBackend) ToggleDeaf()                        { f.deafToggles++ }
func (f *fakeBackend) Disconnect()                        { f.disconnects++ }
func (f *fakeBackend) Reconnect(context.Context) error    { f.reconnects++; return f.reconnectErr }
func (f *fakeBackend) PushToTalk(edge activation.Edge)    { f.record("ptt", -1, edge) }
func (f *fakeBackend) AltPushToTalk(edge activation.Edge) { f.record("alt", -1, edge) }

func (f *fakeBackend) CenterPosition(edge activation.Edge) { f.record("center", -1, edge) }
func (f *fakeBackend) PushToMute(edge activation.Edge)     { f.record("mute", -1, edge) }

func (f *fakeBackend) ChannelTrigger(index int, edge activation.Edge) error {
	if _, err := activation.DecodeTrigger(index); err != nil {
		return err
	}
	f.record("trigger", index, edge)
	return nil
}

func (f *fakeBackend) ToggleMode() activation.Mode {
	f.modeToggles++
	if f.mode == activation.ModeLink {
		f.mode = activation.ModeMove
	} else {
		f.mode = activation.ModeLink
	}
	return f.mode
}

func (f *fakeBackend) record(name string, index int, edge activation.Edge) {
	f.edges = append(f.edges, edgeCall{name, index, edge})
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m *Model, keys ...tea.KeyMsg) {
	for _, k := range keys {
		m.Update(k)
	}
}

func TestHoldKeysToggle(t *testing.T) {
	b := &fakeBackend{}
	m := New(b)

	press(m, tea.KeyMsg{Type: tea.KeySpace}, keyRunes("a"), tea.KeyMsg{Type: tea.KeySpace}, keyRunes("a"))

	want := []edgeCall{
		{"ptt", -1, activation.Down},
		{"alt", -1, activation.Down},
		{"ptt", -1, activation.Up},
		{"alt", -1, activation.Up},
	}
	if len(b.edges) != len(want) {
		t.Fatalf("edges = %v, want %v", b.edges, want)
	}
	for i := range want {
		if b.edges[i] != want[i] {
			t.Errorf("edges[%d] = %v, want %v", i, b.edges[i], want[i])
		}
	}
	if len(m.held) != 0 {
		t.Errorf("held = %v, want none", m.held)
	}
}

func TestCenterAndPushToMuteKeys(t *testing.T) {
	b := &fakeBackend{}
	m := New(b)

	press(m, keyRunes("c"), keyRunes("p"), keyRunes("c"))
	if len(m.held) != 1 || m.held[0] != "mute" {
		t.Fatalf("held = %v, want [mute]", m.held)
	}
	m.Update(keyRunes("q"))

	want := []edgeCall{
		{"center", -1, activation.Down},
		{"mute", -1, activation.Down},
		{"center", -1, activation.Up},
		{"mute", -1, activation.Up},
	}
	if len(b.edges) != len(want) {
		t.Fatalf("edges = %v, want %v", b.edges, want)
	}
	for i := range want {
		if b.edges[i] != want[i] {
			t.Errorf("edges[%d] = %v, want %v", i, b.edges[i], want[i])
		}
	}
}

func TestChannelTriggerKeys(t *testing.T) {
	tests := []struct {
		key   string
		index int
	}{
		{"0", 0},
		{"1", 1},
		{"9", 9},
		{"*", 10},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			b := &fakeBackend{}
			m := New(b)

			press(m, keyRunes(tt.key), keyRunes(tt.key))

			if len(b.edges) != 2 {
				t.Fatalf("edges = %v, want 2", b.edges)
			}
			if b.edges[0] != (edgeCall{"trigger", tt.index, activation.Down}) {
				t.Errorf("first edge = %v", b.edges[0])
			}
			if b.edges[1] != (edgeCall{"trigger", tt.index, activation.Up}) {
				t.Errorf("second edge = %v", b.edges[1])
			}
		})
	}
}

func TestCommandKeys(t *testing.T) {
	b := &fakeBackend{reconnectErr: client.ErrNotConnected}
	m := New(b)

	press(m, keyRunes("m"), keyRunes("M"), keyRunes("D"), keyRunes("x"), keyRunes("r"))

	if b.modeToggles != 1 || b.mode != activation.ModeMove {
		t.Errorf("mode toggles = %d, mode = %v", b.modeToggles, b.mode)
	}
	if b.muteToggles != 1 || b.deafToggles != 1 {
		t.Errorf("mute/deaf toggles = %d/%d, want 1/1", b.muteToggles, b.deafToggles)
	}
	if b.disconnects != 1 || b.reconnects != 1 {
		t.Errorf("disconnects/reconnects = %d/%d, want 1/1", b.disconnects, b.reconnects)
	}
	if len(m.logs) != 1 || !strings.Contains(m.logs[0], "Reconnect") {
		t.Errorf("logs = %v, want the reconnect error", m.logs)
	}
}

func TestQuitReleasesHeldKeys(t *testing.T) {
	b := &fakeBackend{}
	m := New(b)

	press(m, tea.KeyMsg{Type: tea.KeySpace}, keyRunes("*"))
	_, cmd := m.Update(keyRunes("q"))

	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
	last := b.edges[len(b.edges)-2:]
	if last[0] != (edgeCall{"ptt", -1, activation.Up}) || last[1] != (edgeCall{"trigger", 10, activation.Up}) {
		t.Errorf("released = %v", last)
	}
}

func TestStateEventClearsHeldKeys(t *testing.T) {
	b := &fakeBackend{state: client.StateConnected}
	m := New(b)
	press(m, tea.KeyMsg{Type: tea.KeySpace})

	b.state = client.StateDisconnected
	m.Update(eventMsg{Time: time.Now(), Kind: app.EventState, Text: "Disconnected"})

	if len(m.held) != 0 {
		t.Errorf("held = %v, want none after disconnect", m.held)
	}
	press(m, tea.KeyMsg{Type: tea.KeySpace})
	if got := b.edges[len(b.edges)-1].edge; got != activation.Down {
		t.Errorf("next press edge = %v, want down", got)
	}
}

func TestLogEvents(t *testing.T) {
	m := New(&fakeBackend{})
	for i := 0; i < maxLogLines+5; i++ {
		m.Update(eventMsg{Time: time.Now(), Kind: app.EventLog, Text: "line"})
	}
	if len(m.logs) != maxLogLines {
		t.Errorf("len(logs) = %v, want %v", len(m.logs), maxLogLines)
	}
}

func TestCertificatePrompt(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"y", true},
		{"n", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			b := &fakeBackend{}
			m := New(b)

			var answers []bool
			m.Update(promptMsg{
				kind: promptCertificate,
				review: client.CertificateReview{
					Host: "voice.example.org", Port: 64738,
					Digest:       strings.Repeat("ab", 32),
					PinnedDigest: strings.Repeat("cd", 32),
					Errors:       []error{errors.New("x509: unknown authority")},
				},
				replyBool: func(ok bool) { answers = append(answers, ok) },
			})

			view := m.View()
			if !strings.Contains(view, "ABAB ABAB") {
				t.Errorf("view should show the formatted digest:\n%s", view)
			}
			if !strings.Contains(view, "changed") {
				t.Errorf("view should warn about the changed certificate:\n%s", view)
			}

			// hotkeys are inert while the prompt is open
			press(m, tea.KeyMsg{Type: tea.KeySpace}, keyRunes(tt.key))

			if len(b.edges) != 0 {
				t.Errorf("edges = %v, want none during prompt", b.edges)
			}
			if len(answers) != 1 || answers[0] != tt.want {
				t.Errorf("answers = %v, want [%v]", answers, tt.want)
			}
			if m.prompt != nil {
				t.Error("prompt should close after an answer")
			}
		})
	}
}

func TestPasswordPrompt(t *testing.T) {
	m := New(&fakeBackend{})

	var got string
	var gotOK bool
	calls := 0
	m.Update(promptMsg{
		kind:    promptPassword,
		request: client.CredentialRequest{Host: "voice.example.org", Port: 64738, Username: "alice", Reason: client.RejectWrongUserPassword},
		replyText: func(s string, ok bool) {
			calls++
			got, gotOK = s, ok
		},
	})

	// empty submissions are ignored
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if calls != 0 {
		t.Fatalf("empty enter replied %d times", calls)
	}

	press(m, keyRunes("s"), keyRunes("3"), keyRunes("c"))
	if strings.Contains(m.View(), "s3c") {
		t.Error("password should not be echoed")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if calls != 1 || got != "s3c" || !gotOK {
		t.Errorf("reply = %q, %v (calls %d), want s3c, true", got, gotOK, calls)
	}
	if m.prompt != nil {
		t.Error("prompt should close after submit")
	}
}

func TestUsernamePrompt_Cancel(t *testing.T) {
	m := New(&fakeBackend{})

	var gotOK = true
	m.Update(promptMsg{
		kind:      promptUsername,
		request:   client.CredentialRequest{Username: "alice", Reason: client.RejectUsernameInUse},
		replyText: func(_ string, ok bool) { gotOK = ok },
	})
	if m.input.Value() != "alice" {
		t.Errorf("input = %q, want the previous username", m.input.Value())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if gotOK {
		t.Error("esc should decline")
	}
}

func TestNewPromptCancelsPrevious(t *testing.T) {
	m := New(&fakeBackend{})

	declined := false
	m.Update(promptMsg{kind: promptCertificate, replyBool: func(ok bool) { declined = !ok }})
	m.Update(promptMsg{kind: promptPassword, replyText: func(string, bool) {}})

	if !declined {
		t.Error("an open prompt should be declined when replaced")
	}
	if m.prompt.kind != promptPassword {
		t.Errorf("prompt kind = %v, want password", m.prompt.kind)
	}
}

func TestPrompter_DetachedDeclines(t *testing.T) {
	p := NewPrompter()

	accepted := true
	p.ReviewCertificate(client.CertificateReview{}, func(ok bool) { accepted = ok })
	if accepted {
		t.Error("detached prompter should decline certificates")
	}

	gotOK := true
	p.RequestPassword(client.CredentialRequest{}, func(_ string, ok bool) { gotOK = ok })
	if gotOK {
		t.Error("detached prompter should decline credential requests")
	}
}

func TestPrompter_Attached(t *testing.T) {
	p := NewPrompter()
	msgs := make(chan tea.Msg, 1)
	p.attach(func(msg tea.Msg) { msgs <- msg })

	p.RequestUsername(client.CredentialRequest{Username: "alice"}, func(string, bool) {})

	select {
	case msg := <-msgs:
		pm, ok := msg.(promptMsg)
		if !ok || pm.kind != promptUsername || pm.request.Username != "alice" {
			t.Errorf("delivered %#v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prompt was not delivered")
	}
}

func TestView(t *testing.T) {
	tree := channel.NewTree()
	root := uint32(0)
	tree.UpsertChannel(0, nil, "Root")
	tree.UpsertChannel(1, &root, "Lobby")
	tree.SetLocalSession(7)
	tree.UpsertUser(7, "alice", 1)

	b := &fakeBackend{
		state:      client.StateConnected,
		session:    client.Session{Host: "voice.example.org", Port: 64738, Username: "alice"},
		hasSession: true,
		tx:         true,
		mute:       true,
		tree:       tree,
	}
	m := New(b)
	press(m, tea.KeyMsg{Type: tea.KeySpace})

	view := m.View()
	for _, want := range []string{"Voicelink", "Connected", "alice@voice.example.org:64738", "TX", "mode: link", "muted", "holding: ptt", "Lobby", "alice"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}
