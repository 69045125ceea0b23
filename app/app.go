// Package app wires the Voicelink client together: the control loop, the
// connection supervisor, the activation controller, the channel tree and
// the stores they depend on.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/yllada/voicelink/activation"
	"github.com/yllada/voicelink/bookmark"
	"github.com/yllada/voicelink/certstore"
	"github.com/yllada/voicelink/channel"
	"github.com/yllada/voicelink/client"
	"github.com/yllada/voicelink/common"
	"github.com/yllada/voicelink/config"
	"github.com/yllada/voicelink/keyring"
	"github.com/yllada/voicelink/message"
	"github.com/yllada/voicelink/notify"
	"github.com/yllada/voicelink/transport"
)

// EventKind classifies an Event.
type EventKind int

const (
	// EventLog is a line for the user's event log.
	EventLog EventKind = iota
	// EventState reports a supervisor state change.
	EventState
	// EventTree reports a channel tree change.
	EventTree
)

// Event is delivered to subscribers for display.
type Event struct {
	Time time.Time
	Kind EventKind
	Text string
}

// Options configures an App. Zero fields are built from Config.
type Options struct {
	Config    *config.Config
	Prompter  client.Prompter
	Notifier  common.Notifier
	Trust     client.TrustStore
	Transport client.Transport
	// Tree must be the tree Transport feeds when Transport is set.
	Tree        *channel.Tree
	Credentials common.CredentialStore
	Bookmarks   *bookmark.Manager
	Clock       clock.Clock
}

// App owns one client instance.
type App struct {
	cfg       *config.Config
	loop      *client.Loop
	sup       *client.Supervisor
	ctrl      *activation.Controller
	mode      *activation.ModeSwitch
	tree      *channel.Tree
	transport client.Transport
	bookmarks *bookmark.Manager
	notifier  common.Notifier
	log       *common.ComponentLogger
	closers   []io.Closer

	mu          sync.RWMutex
	subscribers []func(Event)
}

// New builds an App. Stores that Options leaves nil are opened from
// the configuration.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	a := &App{
		cfg:  cfg,
		mode: &activation.ModeSwitch{},
		log:  common.WithComponent("app"),
	}

	trust := opts.Trust
	if trust == nil {
		path := cfg.TrustDB
		if path == "" {
			var err error
			if path, err = certstore.DefaultPath(); err != nil {
				return nil, err
			}
		}
		store, err := certstore.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open certificate store: %w", err)
		}
		a.closers = append(a.closers, store)
		trust = store
	}

	creds := opts.Credentials
	if creds == nil && cfg.RememberPasswords {
		store, err := keyring.New(keyring.Options{})
		if err != nil {
			a.log.Warn("Remembered passwords unavailable: %v", err)
		} else {
			a.log.Debug("Remembering passwords in the %s", store.Backend())
			creds = store
		}
	}

	a.bookmarks = opts.Bookmarks
	if a.bookmarks == nil {
		m, err := bookmark.NewManager("")
		if err != nil {
			a.Close()
			return nil, err
		}
		a.bookmarks = m
	}

	a.notifier = opts.Notifier
	if a.notifier == nil {
		n := notify.NewOrNop(cfg.ShowNotifications)
		if c, ok := n.(io.Closer); ok {
			a.closers = append(a.closers, c)
		}
		a.notifier = n
	}

	a.tree = opts.Tree
	if a.tree == nil {
		a.tree = channel.NewTree()
	}
	tr := opts.Transport
	if tr == nil {
		tr = transport.New(transport.Options{
			Tree:   a.tree,
			Trust:  trust,
			Logger: common.WithComponent("transport"),
		})
	}

	a.transport = tr

	a.loop = client.NewLoop()
	a.sup = client.NewSupervisor(a.loop, client.Options{
		Transport:         tr,
		Trust:             trust,
		Prompter:          opts.Prompter,
		Credentials:       creds,
		RememberPasswords: cfg.RememberPasswords,
		AutoReconnect:     cfg.AutoReconnect,
		ReconnectDelay:    cfg.ReconnectDelay,
		Clock:             opts.Clock,
		Logger:            common.WithComponent("supervisor"),
	})
	a.sup.InitSelfState(cfg.SelfMute, cfg.SelfDeaf)

	a.ctrl = activation.NewController(nil, a.tree, a.sup, a.mode)
	a.sup.AddSessionResetHook(a.ctrl.Reset)

	a.sup.SetOnStateChange(a.onStateChange)
	a.sup.SetOnConnected(a.onConnected)
	a.sup.SetOnDisconnected(a.onDisconnected)
	a.sup.SetOnRejected(a.onRejected)
	a.sup.SetOnReconnectScheduled(a.onReconnectScheduled)
	a.tree.SetOnChange(func() {
		a.emit(EventTree, "")
	})

	return a, nil
}

// Run drives the control loop until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	err := a.loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown ends the current session and waits for the transport to
// finish tearing down. The loop must still be running.
func (a *App) Shutdown(ctx context.Context) error {
	a.sup.Disconnect()
	if err := a.loop.Call(ctx, func() {}); err != nil {
		return err
	}
	return a.transport.Wait(ctx)
}

// Close disconnects and releases the stores the App opened.
func (a *App) Close() error {
	if a.sup != nil {
		a.sup.Disconnect()
	}
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Config returns the configuration in use.
func (a *App) Config() *config.Config { return a.cfg }

// Supervisor returns the connection supervisor.
func (a *App) Supervisor() *client.Supervisor { return a.sup }

// Controller returns the activation controller.
func (a *App) Controller() *activation.Controller { return a.ctrl }

// Tree returns the channel tree of the current session.
func (a *App) Tree() *channel.Tree { return a.tree }

// Bookmarks returns the bookmark manager.
func (a *App) Bookmarks() *bookmark.Manager { return a.bookmarks }

// Mode returns the current link/move mode.
func (a *App) Mode() activation.Mode { return a.mode.Mode() }

// State returns the connection state.
func (a *App) State() client.State { return a.sup.State() }

// Session returns the current or most recent session.
func (a *App) Session() (client.Session, bool) { return a.sup.Session() }

// SelfState returns the mute and deafen preference.
func (a *App) SelfState() (mute, deaf bool) { return a.sup.SelfState() }

// IsTransmitting reports whether any talk hotkey is held.
func (a *App) IsTransmitting() bool { return a.ctrl.State().IsTransmitting() }

// Subscribe registers fn for events. fn runs on the control loop or on a
// transport goroutine and should return quickly.
func (a *App) Subscribe(fn func(Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subscribers = append(a.subscribers, fn)
}

func (a *App) emit(kind EventKind, format string, args ...interface{}) {
	ev := Event{Time: time.Now(), Kind: kind, Text: fmt.Sprintf(format, args...)}
	a.mu.RLock()
	subs := append([]func(Event){}, a.subscribers...)
	a.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Resolve turns a bookmark name or server URL into an address. The
// returned bookmark is nil when target was a URL.
func (a *App) Resolve(target string) (client.ServerAddress, *bookmark.Bookmark, error) {
	target = strings.TrimSpace(target)
	if b, err := a.bookmarks.GetByName(target); err == nil {
		addr := client.ServerAddress{
			Host:     b.Host,
			Port:     b.Port,
			Username: b.Username,
			Channel:  b.Channel,
		}
		if addr.Username == "" {
			addr.Username = a.cfg.DefaultUsername
		}
		return addr, b, nil
	}

	addr, err := client.ParseServerURL(target)
	if err != nil {
		return client.ServerAddress{}, nil, err
	}
	if addr.Username == "" {
		addr.Username = a.cfg.DefaultUsername
	}
	return addr, nil, nil
}

// Connect resolves target and starts a session to it.
func (a *App) Connect(ctx context.Context, target string) error {
	addr, b, err := a.Resolve(target)
	if err != nil {
		return err
	}
	if err := a.sup.Connect(ctx, addr); err != nil {
		return err
	}
	if b != nil {
		if err := a.bookmarks.MarkUsed(b.ID); err != nil {
			a.log.Debug("Failed to mark bookmark %s used: %v", b.Name, err)
		}
	}
	return nil
}

// ConnectAddress starts a session to addr.
func (a *App) ConnectAddress(ctx context.Context, addr client.ServerAddress) error {
	if addr.Username == "" {
		addr.Username = a.cfg.DefaultUsername
	}
	return a.sup.Connect(ctx, addr)
}

// Reconnect retries the last session.
func (a *App) Reconnect(ctx context.Context) error {
	return a.sup.Reconnect(ctx)
}

// Disconnect ends the current session.
func (a *App) Disconnect() {
	a.sup.Disconnect()
}

// PushToTalk forwards a push-to-talk edge.
func (a *App) PushToTalk(edge activation.Edge) {
	a.loop.Post(func() { a.ctrl.OnPushToTalk(edge) })
}

// AltPushToTalk forwards an alternate push-to-talk edge.
func (a *App) AltPushToTalk(edge activation.Edge) {
	a.loop.Post(func() { a.ctrl.OnAltPushToTalk(edge) })
}

// CenterPosition forwards a center-position hotkey edge.
func (a *App) CenterPosition(edge activation.Edge) {
	a.loop.Post(func() { a.ctrl.OnCenterPosition(edge) })
}

// PushToMute forwards a push-to-mute edge.
func (a *App) PushToMute(edge activation.Edge) {
	a.loop.Post(func() { a.ctrl.OnPushToMute(edge) })
}

// ChannelTrigger decodes a channel link trigger index and forwards the edge.
func (a *App) ChannelTrigger(index int, edge activation.Edge) error {
	target, err := activation.DecodeTrigger(index)
	if err != nil {
		return err
	}
	a.loop.Post(func() { a.ctrl.OnChannelLinkTrigger(target, edge) })
	return nil
}

// ToggleMode flips between link and move mode.
func (a *App) ToggleMode() activation.Mode {
	m := a.mode.Toggle()
	a.emit(EventLog, "Channel triggers now %s", m)
	return m
}

// LinkWith permanently links the current channel with channel.
func (a *App) LinkWith(ctx context.Context, channel uint32) error {
	return a.call(ctx, func() error { return a.ctrl.LinkWith(channel) })
}

// UnlinkFrom removes the link between the current channel and channel.
func (a *App) UnlinkFrom(ctx context.Context, channel uint32) error {
	return a.call(ctx, func() error { return a.ctrl.UnlinkFrom(channel) })
}

// UnlinkAll removes every link of the current channel.
func (a *App) UnlinkAll(ctx context.Context) error {
	return a.call(ctx, a.ctrl.UnlinkAll)
}

func (a *App) call(ctx context.Context, fn func() error) error {
	var err error
	if callErr := a.loop.Call(ctx, func() { err = fn() }); callErr != nil {
		return callErr
	}
	return err
}

// ToggleMute flips self mute and saves the preference.
func (a *App) ToggleMute() {
	a.sup.ToggleSelfMute()
	a.loop.Post(a.saveSelfState)
}

// ToggleDeaf flips self deafen and saves the preference.
func (a *App) ToggleDeaf() {
	a.sup.ToggleSelfDeaf()
	a.loop.Post(a.saveSelfState)
}

func (a *App) saveSelfState() {
	mute, deaf := a.sup.SelfState()
	if a.cfg.SelfMute == mute && a.cfg.SelfDeaf == deaf {
		return
	}
	a.cfg.SelfMute = mute
	a.cfg.SelfDeaf = deaf
	if a.cfg.Path() == "" {
		return
	}
	if err := a.cfg.Save(); err != nil {
		a.log.Warn("Failed to save configuration: %v", err)
	}
}

func (a *App) onStateChange(_, state client.State) {
	a.emit(EventState, "%s", state)
}

func (a *App) onConnected(session client.Session) {
	a.emit(EventLog, "Connected to %s", session)
	notify.Connected(a.notifier, session.Address())
	a.joinDesiredChannel(session)
}

// joinDesiredChannel moves into the channel named by the session's path.
func (a *App) joinDesiredChannel(session client.Session) {
	if session.Channel == "" || session.Channel == "/" {
		return
	}
	id, ok := a.tree.FindPath(session.Channel)
	if !ok {
		a.log.Warn("Channel %s not found on %s", session.Channel, session.Address())
		a.emit(EventLog, "Channel %s not found", session.Channel)
		return
	}
	if err := a.sup.Send(message.MoveSelf{ChannelID: id}); err != nil {
		a.log.Warn("Failed to join %s: %v", session.Channel, err)
		return
	}
	a.emit(EventLog, "Joining %s", session.Channel)
}

func (a *App) onDisconnected(session client.Session, reason string) {
	if reason == "" {
		a.emit(EventLog, "Disconnected from %s", session.Address())
	} else {
		a.emit(EventLog, "Disconnected from %s: %s", session.Address(), reason)
	}
	notify.Disconnected(a.notifier, session.Address(), reason)
}

func (a *App) onRejected(code client.RejectReason, msg string) {
	text := code.String()
	if msg != "" {
		text = msg
	}
	a.emit(EventLog, "Server rejected the connection: %s", text)
	if s, ok := a.sup.Session(); ok {
		notify.Rejected(a.notifier, s.Address(), text)
	}
}

func (a *App) onReconnectScheduled(delay time.Duration) {
	a.emit(EventLog, "Reconnecting in %v", delay)
	if s, ok := a.sup.Session(); ok {
		notify.Reconnecting(a.notifier, s.Address(), delay)
	}
}
