package activation

import (
	"sync"
	"sync/atomic"

	"github.com/yllada/voicelink/common"
	"github.com/yllada/voicelink/message"
)

// Edge is a hotkey transition.
type Edge int

const (
	// Down is the edge where a hotkey becomes active.
	Down Edge = iota
	// Up is the edge where a hotkey is released.
	Up
)

func (e Edge) String() string {
	if e == Down {
		return "down"
	}
	return "up"
}

// Mode selects what channel link triggers do.
type Mode int32

const (
	// ModeLink makes triggers push-link the addressed channels while held.
	ModeLink Mode = iota
	// ModeMove makes triggers move the user into the addressed channel.
	ModeMove
)

func (m Mode) String() string {
	if m == ModeMove {
		return "move"
	}
	return "link"
}

// ModeSwitch holds the link/move mode. It is toggled from outside the
// controller and read on every trigger.
type ModeSwitch struct {
	v atomic.Int32
}

// Mode returns the current mode.
func (s *ModeSwitch) Mode() Mode {
	return Mode(s.v.Load())
}

// Set changes the mode.
func (s *ModeSwitch) Set(m Mode) {
	s.v.Store(int32(m))
}

// Toggle flips the mode and returns the new one.
func (s *ModeSwitch) Toggle() Mode {
	for {
		old := s.v.Load()
		next := int32(ModeMove)
		if Mode(old) == ModeMove {
			next = int32(ModeLink)
		}
		if s.v.CompareAndSwap(old, next) {
			return Mode(next)
		}
	}
}

// ModeReader reports the current link/move mode.
type ModeReader interface {
	Mode() Mode
}

// ChannelTree resolves channels relative to the local user.
// Channels are identified by their server id.
type ChannelTree interface {
	// LocalSession returns the local user's session id once the server
	// has assigned one.
	LocalSession() (uint32, bool)
	// CurrentChannel returns the channel a user session is in.
	CurrentChannel(session uint32) (uint32, bool)
	// Parent returns the parent of a channel. The root has none.
	Parent(channel uint32) (uint32, bool)
	// Subchannel returns the nth (0-based) child of a channel.
	Subchannel(channel uint32, n int) (uint32, bool)
	// Subchannels returns every child of a channel in display order.
	Subchannels(channel uint32) []uint32
}

// Controller turns hotkey edges into transmit intent and channel requests.
//
// All On* methods are expected to run on the client's control goroutine.
// The underlying State may be read from anywhere.
type Controller struct {
	state  *State
	tree   ChannelTree
	sender message.Sender
	mode   ModeReader
	log    common.Logger

	mu             sync.RWMutex
	pushToMute     bool
	centerPosition bool
}

// NewController creates a controller over state. mode may be nil, in which
// case triggers always act in link mode.
func NewController(state *State, tree ChannelTree, sender message.Sender, mode ModeReader) *Controller {
	if state == nil {
		state = &State{}
	}
	return &Controller{
		state:  state,
		tree:   tree,
		sender: sender,
		mode:   mode,
		log:    common.WithComponent("activation"),
	}
}

// State returns the transmit intent counters.
func (c *Controller) State() *State {
	return c.state
}

// Mode returns the current link/move mode.
func (c *Controller) Mode() Mode {
	if c.mode == nil {
		return ModeLink
	}
	return c.mode.Mode()
}

// IsPushToMute reports whether the momentary mute hotkey is held.
func (c *Controller) IsPushToMute() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pushToMute
}

// IsCenterPosition reports whether the center-position hotkey is held.
func (c *Controller) IsCenterPosition() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.centerPosition
}

func (c *Controller) push(edge Edge, alt bool) {
	if edge == Down {
		c.state.IncrementPush(alt)
	} else {
		c.state.DecrementPush(alt)
	}
}

// OnPushToTalk handles the plain push-to-talk hotkey.
func (c *Controller) OnPushToTalk(edge Edge) {
	c.push(edge, false)
}

// OnAltPushToTalk handles the alternate push-to-talk hotkey.
func (c *Controller) OnAltPushToTalk(edge Edge) {
	c.push(edge, true)
}

// OnCenterPosition forces the positional audio center while held. It also
// counts as an alternate push-to-talk hold.
func (c *Controller) OnCenterPosition(edge Edge) {
	c.mu.Lock()
	c.centerPosition = edge == Down
	c.mu.Unlock()
	c.push(edge, true)
}

// OnPushToMute mutes the microphone while held.
func (c *Controller) OnPushToMute(edge Edge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushToMute = edge == Down
}

// OnChannelLinkTrigger handles a channel link hotkey edge.
//
// Every edge counts as an alternate push-to-talk hold. With a session, move
// mode joins the addressed channel on the down edge, and link mode
// push-links the addressed channels on the down edge and push-unlinks them
// on the up edge. Targets that do not resolve send nothing.
func (c *Controller) OnChannelLinkTrigger(target Target, edge Edge) {
	c.push(edge, true)

	if c.tree == nil {
		return
	}
	session, ok := c.tree.LocalSession()
	if !ok {
		return
	}
	home, ok := c.tree.CurrentChannel(session)
	if !ok {
		return
	}

	single, hasSingle := c.resolve(home, target)

	if c.Mode() == ModeMove {
		if !hasSingle || edge != Down {
			return
		}
		c.log.Info("Joining channel %d", single)
		c.send(message.MoveSelf{ChannelID: single})
		return
	}

	kind := message.PushLink
	if edge == Up {
		kind = message.PushUnlink
	}
	var targets []uint32
	if target.Kind() == TargetAllSubchannels {
		targets = c.tree.Subchannels(home)
	} else if hasSingle {
		targets = []uint32{single}
	}
	if len(targets) == 0 {
		return
	}
	c.send(message.LinkChannels{SourceID: home, Targets: targets, Kind: kind})
}

// resolve returns the single channel a target addresses. All-sub-channel
// targets have none.
func (c *Controller) resolve(home uint32, target Target) (uint32, bool) {
	switch target.Kind() {
	case TargetParent:
		return c.tree.Parent(home)
	case TargetSibling:
		return c.tree.Subchannel(home, target.N()-1)
	default:
		return 0, false
	}
}

// LinkWith permanently links the current channel to channel.
func (c *Controller) LinkWith(channel uint32) error {
	return c.link(message.Link, channel)
}

// UnlinkFrom removes the link between the current channel and channel.
func (c *Controller) UnlinkFrom(channel uint32) error {
	return c.link(message.Unlink, channel)
}

// UnlinkAll removes every link of the current channel.
func (c *Controller) UnlinkAll() error {
	return c.link(message.UnlinkAll)
}

func (c *Controller) link(kind message.LinkKind, targets ...uint32) error {
	if c.tree == nil {
		return common.ErrNotConnected
	}
	session, ok := c.tree.LocalSession()
	if !ok {
		return common.ErrNotConnected
	}
	home, ok := c.tree.CurrentChannel(session)
	if !ok {
		return common.ErrNotConnected
	}
	if c.sender == nil {
		return common.ErrNotConnected
	}
	return c.sender.Send(message.LinkChannels{SourceID: home, Targets: targets, Kind: kind})
}

func (c *Controller) send(msg message.Message) {
	if c.sender == nil {
		return
	}
	if err := c.sender.Send(msg); err != nil {
		c.log.Debug("Dropped %s: %v", msg.Type(), err)
	}
}

// Reset releases every hold and momentary flag.
// The client calls it whenever the session ends.
func (c *Controller) Reset() {
	c.state.Reset()
	c.mu.Lock()
	c.pushToMute = false
	c.centerPosition = false
	c.mu.Unlock()
}
