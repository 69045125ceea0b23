package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/yllada/voicelink/certstore"
	"github.com/yllada/voicelink/client"
	"github.com/yllada/voicelink/common"
)

// TerminalPrompter implements client.Prompter by asking on the terminal.
// Prompts are answered one at a time on a background goroutine.
type TerminalPrompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
	fd  int
}

var _ client.Prompter = (*TerminalPrompter)(nil)

// NewTerminalPrompter reads answers from in and writes questions to out.
// Passwords are read without echo when in is a terminal.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &TerminalPrompter{in: bufio.NewReader(in), out: out, fd: fd}
}

func (p *TerminalPrompter) readLine() (string, bool) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimSpace(line), true
}

func (p *TerminalPrompter) readSecret() (string, bool) {
	if p.fd < 0 {
		return p.readLine()
	}
	secret, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		common.LogDebug("Failed to read password: %v", err)
		return "", false
	}
	return strings.TrimSpace(string(secret)), true
}

// ReviewCertificate implements client.Prompter.
func (p *TerminalPrompter) ReviewCertificate(req client.CertificateReview, reply func(bool)) {
	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		fmt.Fprintf(p.out, "\nThe certificate of %s could not be verified:\n", common.HostPort(req.Host, req.Port))
		for _, err := range req.Errors {
			fmt.Fprintf(p.out, "  - %v\n", err)
		}
		if c := req.Certificate; c != nil {
			fmt.Fprintf(p.out, "  Subject: %s\n  Issuer:  %s\n  Expires: %s\n",
				c.Subject.CommonName, c.Issuer.CommonName, c.NotAfter.Format("2006-01-02"))
		}
		fmt.Fprintf(p.out, "  Digest:  %s\n", certstore.FormatDigest(req.Digest))
		if req.PinnedDigest != "" {
			fmt.Fprintf(p.out, "  WARNING: the certificate changed. Previously trusted:\n           %s\n",
				certstore.FormatDigest(req.PinnedDigest))
		}
		fmt.Fprint(p.out, "Trust this certificate? [y/N]: ")

		answer, ok := p.readLine()
		reply(ok && (strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")))
	}()
}

// RequestUsername implements client.Prompter.
func (p *TerminalPrompter) RequestUsername(req client.CredentialRequest, reply func(string, bool)) {
	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		p.describeRejection(req, "username")
		fmt.Fprint(p.out, "New username (empty to cancel): ")
		username, ok := p.readLine()
		reply(username, ok && username != "")
	}()
}

// RequestPassword implements client.Prompter.
func (p *TerminalPrompter) RequestPassword(req client.CredentialRequest, reply func(string, bool)) {
	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		p.describeRejection(req, "password")
		fmt.Fprintf(p.out, "Password for %s (empty to cancel): ", common.CredentialKey(req.Username, req.Host, req.Port))
		password, ok := p.readSecret()
		reply(password, ok && password != "")
	}()
}

func (p *TerminalPrompter) describeRejection(req client.CredentialRequest, what string) {
	fmt.Fprintf(p.out, "\n%s rejected the %s (%s)", common.HostPort(req.Host, req.Port), what, req.Reason)
	if req.Message != "" {
		fmt.Fprintf(p.out, ": %s", req.Message)
	}
	fmt.Fprintln(p.out)
}
