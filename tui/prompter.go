package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yllada/voicelink/client"
)

type promptKind int

const (
	promptCertificate promptKind = iota
	promptUsername
	promptPassword
)

// promptMsg opens a modal prompt. Exactly one of the reply funcs is set.
type promptMsg struct {
	kind      promptKind
	review    client.CertificateReview
	request   client.CredentialRequest
	replyBool func(bool)
	replyText func(string, bool)
}

// cancel answers the prompt negatively.
func (p promptMsg) cancel() {
	if p.replyBool != nil {
		p.replyBool(false)
	}
	if p.replyText != nil {
		p.replyText("", false)
	}
}

// Prompter implements client.Prompter by opening modal prompts in the
// terminal UI. Until a program is attached every prompt is declined.
type Prompter struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

var _ client.Prompter = (*Prompter)(nil)

// NewPrompter creates a detached prompter.
func NewPrompter() *Prompter {
	return &Prompter{}
}

func (p *Prompter) attach(send func(tea.Msg)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.send = send
}

func (p *Prompter) detach() {
	p.attach(nil)
}

func (p *Prompter) deliver(msg promptMsg) {
	p.mu.Lock()
	send := p.send
	p.mu.Unlock()
	if send == nil {
		msg.cancel()
		return
	}
	// Send blocks until the program reads it; the supervisor must not wait.
	go send(msg)
}

// ReviewCertificate implements client.Prompter.
func (p *Prompter) ReviewCertificate(req client.CertificateReview, reply func(bool)) {
	p.deliver(promptMsg{kind: promptCertificate, review: req, replyBool: reply})
}

// RequestUsername implements client.Prompter.
func (p *Prompter) RequestUsername(req client.CredentialRequest, reply func(string, bool)) {
	p.deliver(promptMsg{kind: promptUsername, request: req, replyText: reply})
}

// RequestPassword implements client.Prompter.
func (p *Prompter) RequestPassword(req client.CredentialRequest, reply func(string, bool)) {
	p.deliver(promptMsg{kind: promptPassword, request: req, replyText: reply})
}
