package client

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/yllada/voicelink/certstore"
	"github.com/yllada/voicelink/common"
	"github.com/yllada/voicelink/message"
)

// Common errors - re-exported from common package for convenience.
var (
	ErrNotConnected   = common.ErrNotConnected
	ErrInvalidAddress = common.ErrInvalidAddress
)

// Options configures a Supervisor.
type Options struct {
	Transport Transport
	Trust     TrustStore
	Prompter  Prompter
	// Credentials, when set, fills in remembered passwords.
	Credentials common.CredentialStore
	// RememberPasswords saves the password of every accepted session.
	RememberPasswords bool
	AutoReconnect     bool
	ReconnectDelay    time.Duration
	Clock             clock.Clock
	Logger            common.Logger
}

// Supervisor owns the connection lifecycle: it opens sessions, decides how
// to recover when one ends, and schedules automatic reconnects.
//
// Supervisor state changes only on its Loop. Methods named On* are the
// loop-side handlers and must be called from the loop; the other mutating
// methods post to it and return immediately. Getters are safe anywhere.
type Supervisor struct {
	loop        *Loop
	transport   Transport
	trust       TrustStore
	prompter    Prompter
	credentials common.CredentialStore
	clock       clock.Clock
	log         common.Logger
	delay       time.Duration
	remember    bool

	// loop-owned
	generation     uint64
	promptToken    uint64
	reconnectToken uint64
	reconnectTimer *clock.Timer
	lastReject     RejectReason
	lastRejectMsg  string
	resetHooks     []func()

	mu                 sync.RWMutex
	state              State
	session            Session
	hasSession         bool
	autoReconnect      bool
	reconnectScheduled bool
	selfMute           bool
	selfDeaf           bool

	onStateChange       func(old, new State)
	onConnected         func(Session)
	onDisconnected      func(Session, string)
	onRejected          func(RejectReason, string)
	onReconnectSchedule func(time.Duration)
}

// NewSupervisor creates a supervisor running on loop.
func NewSupervisor(loop *Loop, opts Options) *Supervisor {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = common.WithComponent("supervisor")
	}
	if opts.Prompter == nil {
		opts.Prompter = declinePrompter{}
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = common.ReconnectDelay
	}
	return &Supervisor{
		loop:          loop,
		transport:     opts.Transport,
		trust:         opts.Trust,
		prompter:      opts.Prompter,
		credentials:   opts.Credentials,
		clock:         opts.Clock,
		log:           opts.Logger,
		delay:         opts.ReconnectDelay,
		remember:      opts.RememberPasswords,
		autoReconnect: opts.AutoReconnect,
	}
}

// SetOnStateChange sets a callback for state transitions. It runs on the loop.
func (s *Supervisor) SetOnStateChange(callback func(old, new State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = callback
}

// SetOnConnected sets a callback for accepted sessions. It runs on the loop.
func (s *Supervisor) SetOnConnected(callback func(Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnected = callback
}

// SetOnDisconnected sets a callback for ended sessions. It runs on the loop.
func (s *Supervisor) SetOnDisconnected(callback func(session Session, reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnected = callback
}

// SetOnRejected sets a callback for server rejections. It runs on the loop.
func (s *Supervisor) SetOnRejected(callback func(code RejectReason, message string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRejected = callback
}

// SetOnReconnectScheduled sets a callback for armed reconnect timers.
func (s *Supervisor) SetOnReconnectScheduled(callback func(delay time.Duration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReconnectSchedule = callback
}

// AddSessionResetHook registers fn to run on the loop whenever a session
// ends, before any recovery decision.
func (s *Supervisor) AddSessionResetHook(fn func()) {
	s.loop.Post(func() {
		s.resetHooks = append(s.resetHooks, fn)
	})
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Session returns the current or most recent session.
func (s *Supervisor) Session() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, s.hasSession
}

// IsReconnectScheduled reports whether an automatic reconnect is pending.
func (s *Supervisor) IsReconnectScheduled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reconnectScheduled
}

// AutoReconnect reports whether automatic reconnects are enabled.
func (s *Supervisor) AutoReconnect() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoReconnect
}

// SetAutoReconnect enables or disables automatic reconnects. The flag is
// read when a session ends, so it applies to the current session too.
// Disabling also cancels a pending reconnect.
func (s *Supervisor) SetAutoReconnect(enabled bool) {
	s.mu.Lock()
	s.autoReconnect = enabled
	s.mu.Unlock()
	if !enabled {
		s.loop.Post(s.cancelReconnect)
	}
}

// Connect starts a new session to addr, tearing down the current one
// first. ctx bounds the wait for that teardown.
func (s *Supervisor) Connect(ctx context.Context, addr ServerAddress) error {
	if err := addr.Validate(); err != nil {
		return err
	}
	if !s.loop.Post(func() {
		s.connect(ctx, newSession(s.fillPassword(addr)))
	}) {
		return ErrLoopStopped
	}
	return nil
}

// Reconnect retries the most recent session immediately.
func (s *Supervisor) Reconnect(ctx context.Context) error {
	if _, ok := s.Session(); !ok {
		return ErrNotConnected
	}
	if !s.loop.Post(func() {
		if !s.hasCurrentSession() {
			return
		}
		s.connect(ctx, s.currentSession().retry())
	}) {
		return ErrLoopStopped
	}
	return nil
}

// Disconnect ends the current session and cancels any pending reconnect
// or prompt. It is idempotent.
func (s *Supervisor) Disconnect() {
	s.loop.Post(s.disconnect)
}

func (s *Supervisor) disconnect() {
	s.cancelReconnect()
	s.promptToken++

	if s.transport != nil && s.transport.IsActive() {
		if err := s.transport.Close(); err != nil {
			s.log.Warn("Error closing connection: %v", err)
		}
	}
	// events still in flight belong to the closed session
	s.generation++

	switch s.State() {
	case StateConnecting, StateConnected:
		s.log.Info("Disconnected from %s", s.currentSession())
		s.setState(StateDisconnected)
		s.runResetHooks()
		s.fireDisconnected(s.currentSession(), "")
	case StateAwaitingInput:
		s.setState(StateDisconnected)
	}
}

func (s *Supervisor) fillPassword(addr ServerAddress) ServerAddress {
	if addr.Password != "" || s.credentials == nil {
		return addr
	}
	password, err := s.credentials.Get(common.CredentialKey(addr.Username, addr.Host, addr.Port))
	if err == nil {
		addr.Password = password
	}
	return addr
}

// connect runs on the loop.
func (s *Supervisor) connect(ctx context.Context, session Session) {
	s.cancelReconnect()
	s.promptToken++

	if s.transport == nil {
		s.log.Error("No transport configured")
		return
	}

	prev := s.currentSession()
	prevState := s.State()
	wasActive := s.transport.IsActive()
	var teardownErr error
	if wasActive {
		s.log.Info("Closing %s before connecting to %s", prev, session)
		if err := s.transport.Close(); err != nil {
			s.log.Warn("Error closing connection: %v", err)
		}
		waitCtx, cancel := context.WithTimeout(ctx, common.TeardownTimeout)
		teardownErr = s.transport.Wait(waitCtx)
		cancel()
	}

	// events still queued belong to the previous session, which may have
	// ended on its own without its Disconnected reaching the loop yet
	s.generation++
	switch {
	case prevState == StateConnecting || prevState == StateConnected:
		s.setState(StateDisconnected)
		s.runResetHooks()
		s.fireDisconnected(prev, "")
	case wasActive:
		s.runResetHooks()
	}
	if teardownErr != nil {
		s.log.Error("Previous session did not shut down: %v", teardownErr)
		s.setState(StateDisconnected)
		return
	}

	s.lastReject = RejectNone
	s.lastRejectMsg = ""

	s.mu.Lock()
	s.session = session
	s.hasSession = true
	s.mu.Unlock()
	s.setState(StateConnecting)

	s.log.Info("Connecting to %s", session)
	events := &sessionEvents{sup: s, generation: s.generation}
	if err := s.transport.Open(session, events); err != nil {
		s.log.Error("Failed to open connection: %v", err)
		s.OnDisconnected(err.Error())
	}
}

// OnConnected handles the server accepting the current session.
func (s *Supervisor) OnConnected() {
	s.cancelReconnect()
	s.lastReject = RejectNone
	s.lastRejectMsg = ""

	session := s.currentSession()
	s.log.Info("Connected to %s", session)
	s.setState(StateConnected)

	mute, deaf := s.SelfState()
	if mute || deaf {
		s.send(message.SetSelfMuteDeaf{Mute: mute, Deaf: deaf})
	}

	if s.remember && s.credentials != nil && session.Password != "" {
		if err := s.credentials.Store(session.CredentialKey(), session.Password); err != nil {
			s.log.Warn("Failed to remember password: %v", err)
		}
	}

	s.mu.RLock()
	callback := s.onConnected
	s.mu.RUnlock()
	if callback != nil {
		callback(session)
	}
}

// OnRejected records why the server refused the current session.
func (s *Supervisor) OnRejected(code RejectReason, msg string) {
	s.lastReject = code
	s.lastRejectMsg = msg
	s.log.Warn("Server rejected %s: %s %s", s.currentSession(), code, msg)

	s.mu.RLock()
	callback := s.onRejected
	s.mu.RUnlock()
	if callback != nil {
		callback(code, msg)
	}
}

// OnDisconnected decides how to recover from the end of the current
// session: certificate review, credential re-entry, a delayed reconnect,
// or nothing.
func (s *Supervisor) OnDisconnected(reason string) {
	session := s.currentSession()
	if reason == "" {
		s.log.Info("Disconnected from %s", session)
	} else {
		s.log.Warn("Disconnected from %s: %s", session, reason)
	}

	s.setState(StateDisconnected)
	s.runResetHooks()
	s.fireDisconnected(session, reason)

	if s.transport != nil {
		if errs := s.transport.VerifyErrors(); len(errs) > 0 {
			s.reviewCertificate(session, errs)
			return
		}
	}

	switch {
	case s.lastReject.NeedsUsername():
		s.askUsername(session)
	case s.lastReject.NeedsPassword():
		s.askPassword(session)
	case s.AutoReconnect() && reason != "":
		s.scheduleReconnect(session)
	}
}

func (s *Supervisor) reviewCertificate(session Session, errs []error) {
	for _, err := range errs {
		s.log.Warn("Certificate verification failed for %s: %v", session.Address(), err)
	}
	chain := s.transport.PeerCertificates()
	if len(chain) == 0 {
		return
	}

	req := CertificateReview{
		Host:        session.Host,
		Port:        session.Port,
		Digest:      certstore.ComputeDigest(chain[0]),
		Certificate: chain[0],
		Errors:      errs,
	}
	if s.trust != nil {
		pinned, ok, err := s.trust.Digest(session.Host, session.Port)
		if err != nil {
			s.log.Warn("Failed to read stored certificate for %s: %v", session.Address(), err)
		} else if ok && pinned != req.Digest {
			req.PinnedDigest = pinned
		}
	}

	token := s.beginPrompt()
	s.prompter.ReviewCertificate(req, func(accept bool) {
		s.loop.Post(func() {
			if !s.endPrompt(token) {
				return
			}
			if !accept {
				s.log.Info("Certificate for %s rejected", session.Address())
				return
			}
			if s.trust == nil {
				s.log.Error("No certificate store configured")
				return
			}
			if err := s.trust.SetDigest(session.Host, session.Port, req.Digest); err != nil {
				s.log.Error("Failed to store certificate for %s: %v", session.Address(), err)
				return
			}
			s.log.Info("Trusting certificate %s for %s", certstore.FormatDigest(req.Digest), session.Address())
			s.connect(context.Background(), session.retry())
		})
	})
}

func (s *Supervisor) askUsername(session Session) {
	req := s.credentialRequest(session)
	token := s.beginPrompt()
	s.prompter.RequestUsername(req, func(username string, ok bool) {
		s.loop.Post(func() {
			if !s.endPrompt(token) || !ok || username == "" {
				return
			}
			s.connect(context.Background(), session.withUsername(username))
		})
	})
}

func (s *Supervisor) askPassword(session Session) {
	req := s.credentialRequest(session)
	token := s.beginPrompt()
	s.prompter.RequestPassword(req, func(password string, ok bool) {
		s.loop.Post(func() {
			if !s.endPrompt(token) || !ok || password == "" {
				return
			}
			s.connect(context.Background(), session.withPassword(password))
		})
	})
}

func (s *Supervisor) credentialRequest(session Session) CredentialRequest {
	return CredentialRequest{
		Host:     session.Host,
		Port:     session.Port,
		Username: session.Username,
		Reason:   s.lastReject,
		Message:  s.lastRejectMsg,
	}
}

// beginPrompt enters AwaitingInput and returns a token identifying the prompt.
func (s *Supervisor) beginPrompt() uint64 {
	s.promptToken++
	s.setState(StateAwaitingInput)
	return s.promptToken
}

// endPrompt reports whether token is still the outstanding prompt and, if
// so, returns to Disconnected.
func (s *Supervisor) endPrompt(token uint64) bool {
	if token != s.promptToken || s.State() != StateAwaitingInput {
		return false
	}
	s.setState(StateDisconnected)
	return true
}

func (s *Supervisor) scheduleReconnect(session Session) {
	s.cancelReconnect()
	token := s.reconnectToken

	s.log.Info("Reconnecting to %s in %v", session, s.delay)
	s.reconnectTimer = s.clock.AfterFunc(s.delay, func() {
		s.loop.Post(func() {
			if s.reconnectTimer == nil || token != s.reconnectToken {
				return
			}
			s.reconnectTimer = nil
			s.setReconnectScheduled(false)
			s.connect(context.Background(), session.retry())
		})
	})
	s.setReconnectScheduled(true)

	s.mu.RLock()
	callback := s.onReconnectSchedule
	s.mu.RUnlock()
	if callback != nil {
		callback(s.delay)
	}
}

// cancelReconnect stops a pending reconnect. A timer that already fired
// and queued its callback is invalidated by the token change.
func (s *Supervisor) cancelReconnect() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.reconnectToken++
	s.setReconnectScheduled(false)
}

func (s *Supervisor) setReconnectScheduled(v bool) {
	s.mu.Lock()
	s.reconnectScheduled = v
	s.mu.Unlock()
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	old := s.state
	s.state = state
	callback := s.onStateChange
	s.mu.Unlock()

	if old != state && callback != nil {
		callback(old, state)
	}
}

func (s *Supervisor) currentSession() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *Supervisor) hasCurrentSession() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasSession
}

func (s *Supervisor) runResetHooks() {
	for _, hook := range s.resetHooks {
		hook()
	}
}

func (s *Supervisor) fireDisconnected(session Session, reason string) {
	s.mu.RLock()
	callback := s.onDisconnected
	s.mu.RUnlock()
	if callback != nil {
		callback(session, reason)
	}
}

// Send forwards a message to the transport if a session is connected.
func (s *Supervisor) Send(msg message.Message) error {
	if s.State() != StateConnected || s.transport == nil {
		return ErrNotConnected
	}
	return s.transport.Send(msg)
}

func (s *Supervisor) send(msg message.Message) {
	if err := s.Send(msg); err != nil {
		s.log.Warn("Failed to send %s: %v", msg.Type(), err)
	}
}

// sessionEvents forwards one session's transport events to the loop and
// drops them once a newer session has started.
type sessionEvents struct {
	sup        *Supervisor
	generation uint64
}

func (e *sessionEvents) post(fn func()) {
	e.sup.loop.Post(func() {
		if e.generation != e.sup.generation {
			return
		}
		fn()
	})
}

func (e *sessionEvents) Connected() {
	e.post(e.sup.OnConnected)
}

func (e *sessionEvents) Disconnected(reason string) {
	e.post(func() { e.sup.OnDisconnected(reason) })
}

func (e *sessionEvents) Rejected(code RejectReason, msg string) {
	e.post(func() { e.sup.OnRejected(code, msg) })
}
