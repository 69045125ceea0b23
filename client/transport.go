package client

import (
	"context"
	"crypto/x509"

	"github.com/yllada/voicelink/message"
)

// Transport carries one session at a time to a server.
type Transport interface {
	// Open starts connecting. Lifecycle events for this session are
	// reported through events from the transport's own goroutines.
	Open(session Session, events TransportEvents) error
	// Close asks the current session to end. It does not wait.
	Close() error
	// IsActive reports whether a session is open or opening.
	IsActive() bool
	// Wait blocks until the current session has fully torn down.
	Wait(ctx context.Context) error
	// Send queues an outbound message.
	Send(msg message.Message) error
	// VerifyErrors returns the certificate verification errors of the
	// last session, if its handshake failed on them.
	VerifyErrors() []error
	// PeerCertificates returns the chain the server offered in the last
	// session, leaf first.
	PeerCertificates() []*x509.Certificate
}

// TransportEvents receives lifecycle events from a Transport.
type TransportEvents interface {
	Connected()
	Disconnected(reason string)
	Rejected(code RejectReason, message string)
}

// TrustStore pins server certificate digests.
type TrustStore interface {
	Digest(host string, port int) (string, bool, error)
	SetDigest(host string, port int, digest string) error
}

// CertificateReview asks the user whether to trust a certificate that
// failed verification.
type CertificateReview struct {
	Host        string
	Port        int
	Digest      string
	Certificate *x509.Certificate
	Errors      []error
	// PinnedDigest is the digest stored for this server before, if any.
	// A non-empty value means the server's certificate changed.
	PinnedDigest string
}

// CredentialRequest asks the user for a replacement username or password.
type CredentialRequest struct {
	Host     string
	Port     int
	Username string
	Reason   RejectReason
	Message  string
}

// Prompter asks the user for decisions the supervisor cannot make alone.
//
// Each method must return promptly and deliver the answer by calling
// reply exactly once, from any goroutine. A reply that arrives after the
// supervisor moved on is ignored.
type Prompter interface {
	ReviewCertificate(req CertificateReview, reply func(accept bool))
	RequestUsername(req CredentialRequest, reply func(username string, ok bool))
	RequestPassword(req CredentialRequest, reply func(password string, ok bool))
}

// declinePrompter answers no to everything.
type declinePrompter struct{}

func (declinePrompter) ReviewCertificate(_ CertificateReview, reply func(bool)) {
	reply(false)
}

func (declinePrompter) RequestUsername(_ CredentialRequest, reply func(string, bool)) {
	reply("", false)
}

func (declinePrompter) RequestPassword(_ CredentialRequest, reply func(string, bool)) {
	reply("", false)
}
