// Package tui is the interactive terminal front end.
//
// Terminals report key presses but not releases, so hold keys such as
// push-to-talk toggle: the first press is the down edge and the second
// press the up edge.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yllada/voicelink/activation"
	"github.com/yllada/voicelink/app"
	"github.com/yllada/voicelink/certstore"
	"github.com/yllada/voicelink/channel"
	"github.com/yllada/voicelink/client"
	"github.com/yllada/voicelink/common"
)

// maxLogLines bounds the event log kept in memory.
const maxLogLines = 200

// Backend is what the terminal UI drives. *app.App implements it.
type Backend interface {
	State() client.State
	Session() (client.Session, bool)
	SelfState() (mute, deaf bool)
	IsTransmitting() bool
	Mode() activation.Mode
	Tree() *channel.Tree

	PushToTalk(edge activation.Edge)
	AltPushToTalk(edge activation.Edge)
	CenterPosition(edge activation.Edge)
	PushToMute(edge activation.Edge)
	ChannelTrigger(index int, edge activation.Edge) error
	ToggleMode() activation.Mode
	ToggleMute()
	ToggleDeaf()
	Disconnect()
	Reconnect(ctx context.Context) error
}

// eventMsg carries an app.Event into the program.
type eventMsg app.Event

// Model is the bubbletea model of the client screen.
type Model struct {
	backend Backend

	width  int
	height int

	spinner spinner.Model
	input   textinput.Model
	prompt  *promptMsg
	details bool

	held []string
	logs []string
}

// New creates the model.
func New(backend Backend) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = connectingStyle

	in := textinput.New()
	in.CharLimit = 128
	in.Prompt = "> "

	return &Model{
		backend: backend,
		spinner: s,
		input:   in,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case eventMsg:
		m.handleEvent(app.Event(msg))
		return m, nil

	case promptMsg:
		return m, m.openPrompt(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.prompt != nil {
			return m.handlePromptKey(msg)
		}
		return m.handleKey(msg)
	}

	if m.prompt != nil && m.prompt.kind != promptCertificate {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleEvent(ev app.Event) {
	switch ev.Kind {
	case app.EventLog:
		m.appendLog(ev.Time.Format("15:04:05") + " " + ev.Text)
	case app.EventState:
		// activation is reset whenever a session ends
		if m.backend.State() != client.StateConnected {
			m.held = nil
		}
	}
}

func (m *Model) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

func (m *Model) openPrompt(p promptMsg) tea.Cmd {
	if m.prompt != nil {
		m.prompt.cancel()
	}
	m.prompt = &p
	m.details = false

	if p.kind == promptCertificate {
		m.input.Blur()
		return nil
	}
	m.input.Reset()
	if p.kind == promptPassword {
		m.input.EchoMode = textinput.EchoPassword
		m.input.EchoCharacter = '•'
		m.input.Placeholder = "password"
	} else {
		m.input.EchoMode = textinput.EchoNormal
		m.input.Placeholder = "username"
		m.input.SetValue(p.request.Username)
	}
	return m.input.Focus()
}

func (m *Model) closePrompt() {
	m.prompt = nil
	m.input.Reset()
	m.input.Blur()
}

func (m *Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.prompt
	if msg.String() == "ctrl+c" {
		p.cancel()
		m.closePrompt()
		return m, tea.Quit
	}

	if p.kind == promptCertificate {
		switch msg.String() {
		case "y", "Y":
			p.replyBool(true)
			m.appendLog("Certificate accepted")
			m.closePrompt()
		case "n", "N", "esc":
			p.replyBool(false)
			m.appendLog("Certificate rejected")
			m.closePrompt()
		case "v", "V":
			m.details = !m.details
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			return m, nil
		}
		p.replyText(value, true)
		m.closePrompt()
		return m, nil
	case tea.KeyEsc:
		p.replyText("", false)
		m.closePrompt()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		m.releaseAll()
		return m, tea.Quit
	case " ":
		m.toggleHold("ptt", m.backend.PushToTalk)
	case "a":
		m.toggleHold("alt", m.backend.AltPushToTalk)
	case "c":
		m.toggleHold("center", m.backend.CenterPosition)
	case "p":
		m.toggleHold("mute", m.backend.PushToMute)
	case "0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "*":
		index := 10
		if key != "*" {
			index = int(key[0] - '0')
		}
		m.toggleHold("trigger "+key, func(edge activation.Edge) {
			if err := m.backend.ChannelTrigger(index, edge); err != nil {
				m.appendLog(err.Error())
			}
		})
	case "m":
		m.backend.ToggleMode()
	case "M":
		m.backend.ToggleMute()
	case "D":
		m.backend.ToggleDeaf()
	case "x":
		m.backend.Disconnect()
	case "r":
		if err := m.backend.Reconnect(context.Background()); err != nil {
			m.appendLog("Reconnect: " + err.Error())
		}
	}
	return m, nil
}

// toggleHold sends the down edge on the first press of key and the up
// edge on the next.
func (m *Model) toggleHold(key string, press func(activation.Edge)) {
	for i, k := range m.held {
		if k == key {
			m.held = append(m.held[:i], m.held[i+1:]...)
			press(activation.Up)
			return
		}
	}
	m.held = append(m.held, key)
	press(activation.Down)
}

// releaseAll sends the up edge of every held key.
func (m *Model) releaseAll() {
	held := m.held
	m.held = nil
	for _, key := range held {
		switch {
		case key == "ptt":
			m.backend.PushToTalk(activation.Up)
		case key == "alt":
			m.backend.AltPushToTalk(activation.Up)
		case key == "center":
			m.backend.CenterPosition(activation.Up)
		case key == "mute":
			m.backend.PushToMute(activation.Up)
		case strings.HasPrefix(key, "trigger "):
			index := 10
			if d := strings.TrimPrefix(key, "trigger "); d != "*" {
				index = int(d[0] - '0')
			}
			m.backend.ChannelTrigger(index, activation.Up)
		}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	sections := []string{m.viewHeader()}
	if m.prompt != nil {
		sections = append(sections, m.viewPrompt())
	} else {
		sections = append(sections, m.viewTree())
	}
	sections = append(sections, m.viewLog(), m.viewHelp())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) viewHeader() string {
	state := m.backend.State()
	var status string
	switch state {
	case client.StateConnected:
		status = connectedStyle.Render("● " + state.String())
	case client.StateConnecting:
		status = m.spinner.View() + connectingStyle.Render(state.String())
	case client.StateAwaitingInput:
		status = connectingStyle.Render("? " + state.String())
	default:
		status = disconnectedStyle.Render("○ " + state.String())
	}

	server := dimStyle.Render("not connected")
	if s, ok := m.backend.Session(); ok {
		server = s.String()
	}
	line1 := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render(common.AppName), "  ", status, "  ", server)

	tx := idleStyle.Render("idle")
	if m.backend.IsTransmitting() {
		tx = transmitStyle.Render("TX")
	}
	parts := []string{tx, "mode: " + m.backend.Mode().String()}
	mute, deaf := m.backend.SelfState()
	switch {
	case deaf:
		parts = append(parts, warningStyle.Render("deafened"))
	case mute:
		parts = append(parts, warningStyle.Render("muted"))
	}
	if len(m.held) > 0 {
		held := append([]string(nil), m.held...)
		sort.Strings(held)
		parts = append(parts, dimStyle.Render("holding: "+strings.Join(held, ", ")))
	}

	return headerStyle.Render(line1 + "\n" + strings.Join(parts, "  "))
}

func (m *Model) viewTree() string {
	tree := m.backend.Tree()
	if tree == nil {
		return ""
	}
	local, hasLocal := tree.LocalSession()
	current, hasCurrent := uint32(0), false
	if hasLocal {
		current, hasCurrent = tree.CurrentChannel(local)
	}

	type row struct {
		ch    channel.Channel
		depth int
	}
	var rows []row
	tree.Walk(func(ch channel.Channel, depth int) {
		rows = append(rows, row{ch, depth})
	})
	if len(rows) == 0 {
		return dimStyle.Render("No channels")
	}

	var b strings.Builder
	for _, r := range rows {
		indent := strings.Repeat("  ", r.depth)
		name := r.ch.Name
		if name == "" {
			name = fmt.Sprintf("#%d", r.ch.ID)
		}
		if hasCurrent && r.ch.ID == current {
			b.WriteString(indent + currentChannelStyle.Render("▸ "+name) + "\n")
		} else {
			b.WriteString(indent + "  " + name + "\n")
		}
		for _, u := range tree.Users(r.ch.ID) {
			b.WriteString(indent + "    " + dimStyle.Render("• "+u.Name) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) viewPrompt() string {
	p := m.prompt
	var b strings.Builder

	switch p.kind {
	case promptCertificate:
		r := p.review
		b.WriteString(warningStyle.Render("Untrusted certificate") + "\n")
		fmt.Fprintf(&b, "The server %s presented a certificate that could not be verified.\n",
			common.HostPort(r.Host, r.Port))
		for _, err := range r.Errors {
			b.WriteString("  - " + err.Error() + "\n")
		}
		b.WriteString("\nDigest: " + certstore.FormatDigest(r.Digest) + "\n")
		if r.PinnedDigest != "" {
			b.WriteString(warningStyle.Render("The certificate changed since you last trusted it.") + "\n")
			b.WriteString("Previous: " + certstore.FormatDigest(r.PinnedDigest) + "\n")
		}
		if m.details && r.Certificate != nil {
			c := r.Certificate
			fmt.Fprintf(&b, "\nSubject: %s\nIssuer:  %s\nValid:   %s to %s\n",
				c.Subject.CommonName, c.Issuer.CommonName,
				c.NotBefore.Format("2006-01-02"), c.NotAfter.Format("2006-01-02"))
		}
		b.WriteString("\n" + dimStyle.Render("y accept · n reject · v details"))

	default:
		r := p.request
		what := "username"
		if p.kind == promptPassword {
			what = "password"
		}
		fmt.Fprintf(&b, "%s rejected the %s (%s).\n",
			common.HostPort(r.Host, r.Port), what, r.Reason)
		if r.Message != "" {
			b.WriteString(dimStyle.Render(r.Message) + "\n")
		}
		fmt.Fprintf(&b, "Enter a new %s:\n%s\n", what, m.input.View())
		b.WriteString(dimStyle.Render("enter submit · esc cancel"))
	}

	return promptStyle.Render(b.String())
}

func (m *Model) viewLog() string {
	n := 8
	if m.height > 0 {
		n = m.height / 4
	}
	lines := m.logs
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return "\n" + dimStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) viewHelp() string {
	return "\n" + dimStyle.Render(
		"space talk · a alt talk · c center · p push to mute · 0-9,* channel trigger · m mode · M mute · D deaf · x disconnect · r reconnect · q quit")
}
