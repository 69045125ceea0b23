// Package transport is the reference client.Transport: a TLS websocket
// control channel carrying JSON framed messages.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yllada/voicelink/certstore"
	"github.com/yllada/voicelink/channel"
	"github.com/yllada/voicelink/client"
	"github.com/yllada/voicelink/common"
	"github.com/yllada/voicelink/message"
)

// Options configures a Conn.
type Options struct {
	// Tree receives channel and user updates. Optional.
	Tree *channel.Tree
	// Trust supplies pinned digests for certificates that fail
	// verification against Roots.
	Trust client.TrustStore
	// Roots verifies server certificates. nil uses the system pool.
	Roots *x509.CertPool
	// Path is the websocket endpoint path, "/" by default.
	Path string
	// ConnectTimeout bounds dialing, TLS and the websocket upgrade together.
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	Logger           common.Logger
}

// Conn carries one session at a time. It implements client.Transport.
type Conn struct {
	opts Options
	log  common.Logger

	mu         sync.Mutex
	ws         *websocket.Conn
	active     bool
	closing    bool
	ready      bool
	done       chan struct{}
	verifyErrs []error
	chain      []*x509.Certificate

	writeMu sync.Mutex
}

var _ client.Transport = (*Conn)(nil)

// New creates an idle Conn.
func New(opts Options) *Conn {
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = common.ConnectionTimeout
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = common.HandshakeTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = common.PingInterval
	}
	if opts.Logger == nil {
		opts.Logger = common.WithComponent("transport")
	}
	return &Conn{opts: opts, log: opts.Logger}
}

// Open starts connecting to the session's server in the background.
func (c *Conn) Open(session client.Session, events client.TransportEvents) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return common.ErrAlreadyConnected
	}
	c.active = true
	c.closing = false
	c.ready = false
	c.ws = nil
	c.verifyErrs = nil
	c.chain = nil
	c.done = make(chan struct{})

	go c.run(session, events, c.done)
	return nil
}

// Close ends the current session. The session reports Disconnected("")
// once it has shut down.
func (c *Conn) Close() error {
	c.mu.Lock()
	if !c.active || c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		// still dialling; run notices closing once the dial returns
		return nil
	}
	c.writeMu.Lock()
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return ws.Close()
}

// IsActive reports whether a session is open or opening.
func (c *Conn) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Wait blocks until the current session's goroutine has exited.
func (c *Conn) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: waiting for session teardown", common.ErrTimeout)
		}
		return fmt.Errorf("%w: %v", common.ErrCancelled, ctx.Err())
	}
}

// Send writes msg to the server.
func (c *Conn) Send(msg message.Message) error {
	c.mu.Lock()
	ws := c.ws
	ready := c.ready && !c.closing
	c.mu.Unlock()
	if ws == nil || !ready {
		return common.ErrNotConnected
	}
	return c.write(ws, msg)
}

// VerifyErrors returns the certificate errors of the last session.
func (c *Conn) VerifyErrors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.verifyErrs...)
}

// PeerCertificates returns the chain offered in the last session.
func (c *Conn) PeerCertificates() []*x509.Certificate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*x509.Certificate(nil), c.chain...)
}

func (c *Conn) write(ws *websocket.Conn, msg message.Message) error {
	env, err := encode(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(common.WriteTimeout))
	if err := ws.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Type(), err)
	}
	return nil
}

// run owns one session from dial to teardown.
func (c *Conn) run(session client.Session, events client.TransportEvents, done chan struct{}) {
	reason := c.serve(session, events)

	if c.opts.Tree != nil {
		c.opts.Tree.Clear()
	}
	c.mu.Lock()
	c.ws = nil
	c.ready = false
	c.active = false
	c.mu.Unlock()

	events.Disconnected(reason)
	close(done)
}

// serve dials and reads until the session ends. It returns the disconnect
// reason, empty when the session was closed locally.
func (c *Conn) serve(session client.Session, events client.TransportEvents) string {
	u := url.URL{Scheme: "wss", Host: session.Address(), Path: c.opts.Path}
	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.HandshakeTimeout,
		TLSClientConfig:  c.tlsConfig(session),
	}

	c.log.Debug("Dialing %s", u.String())
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.ConnectTimeout)
	ws, _, err := dialer.DialContext(ctx, u.String(), nil)
	cancel()
	if err != nil {
		if c.isClosing() {
			return ""
		}
		return fmt.Errorf("%w: %v", common.ErrConnectionFailed, err).Error()
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		ws.Close()
		return ""
	}
	c.ws = ws
	c.mu.Unlock()
	defer ws.Close()

	if err := c.write(ws, message.Authenticate{Username: session.Username, Password: session.Password}); err != nil {
		return err.Error()
	}

	stopPing := c.keepAlive(ws)
	defer stopPing()

	for {
		var env envelope
		if err := ws.ReadJSON(&env); err != nil {
			if c.isClosing() {
				return ""
			}
			return err.Error()
		}
		msg, err := decode(env)
		if err != nil {
			c.log.Warn("Dropping malformed frame: %v", err)
			continue
		}
		c.dispatch(msg, events)
	}
}

func (c *Conn) dispatch(msg message.Message, events client.TransportEvents) {
	switch m := msg.(type) {
	case nil:
		return
	case message.ServerSync:
		if c.opts.Tree != nil {
			c.opts.Tree.SetLocalSession(m.Session)
		}
		if m.Welcome != "" {
			c.log.Info("Welcome message: %s", m.Welcome)
		}
		c.mu.Lock()
		c.ready = true
		c.mu.Unlock()
		events.Connected()
	case message.Reject:
		events.Rejected(client.ParseRejectReason(m.Reason), m.Message)
	default:
		if c.opts.Tree != nil {
			c.opts.Tree.Apply(msg)
		}
	}
}

// keepAlive pings the server and extends the read deadline on every pong.
func (c *Conn) keepAlive(ws *websocket.Conn) func() {
	deadline := func() time.Time { return time.Now().Add(2 * c.opts.PingInterval) }
	ws.SetReadDeadline(deadline())
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(deadline())
	})

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.writeMu.Lock()
				err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(common.WriteTimeout))
				c.writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()
	return func() { close(stop) }
}

func (c *Conn) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

// tlsConfig verifies the server against the configured roots and falls
// back to the digest pinned for this host and port.
func (c *Conn) tlsConfig(session client.Session) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		// standard verification happens in VerifyPeerCertificate
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return c.verify(session, rawCerts)
		},
	}
}

func (c *Conn) verify(session client.Session, rawCerts [][]byte) error {
	chain := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			c.recordVerifyFailure([]error{err}, nil)
			return fmt.Errorf("%w: %v", common.ErrCertificateUntrusted, err)
		}
		chain = append(chain, cert)
	}
	if len(chain) == 0 {
		err := errors.New("server offered no certificate")
		c.recordVerifyFailure([]error{err}, nil)
		return fmt.Errorf("%w: %v", common.ErrCertificateUntrusted, err)
	}

	intermediates := x509.NewCertPool()
	for _, cert := range chain[1:] {
		intermediates.AddCert(cert)
	}
	_, verifyErr := chain[0].Verify(x509.VerifyOptions{
		Roots:         c.opts.Roots,
		Intermediates: intermediates,
		DNSName:       session.Host,
	})
	if verifyErr == nil {
		return nil
	}

	digest := certstore.ComputeDigest(chain[0])
	errs := []error{verifyErr}
	if c.opts.Trust != nil {
		pinned, ok, err := c.opts.Trust.Digest(session.Host, session.Port)
		switch {
		case err != nil:
			c.log.Warn("Failed to read pinned certificate: %v", err)
		case ok && pinned == digest:
			c.log.Debug("Accepting pinned certificate for %s", session.Address())
			return nil
		case ok:
			errs = append(errs, common.ErrDigestMismatch)
		}
	}

	c.recordVerifyFailure(errs, chain)
	return fmt.Errorf("%w: %v", common.ErrCertificateUntrusted, verifyErr)
}

func (c *Conn) recordVerifyFailure(errs []error, chain []*x509.Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verifyErrs = errs
	c.chain = chain
}
