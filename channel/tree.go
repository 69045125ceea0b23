// Package channel keeps the client's view of the server's channel tree and
// of which channel each connected user is in.
package channel

import (
	"sort"
	"strings"
	"sync"

	"github.com/yllada/voicelink/message"
)

// RootID is the id of the root channel.
const RootID uint32 = 0

// Channel is one node of the tree.
type Channel struct {
	ID        uint32
	Name      string
	Parent    uint32
	HasParent bool
}

// User is a connected user session.
type User struct {
	Session   uint32
	Name      string
	ChannelID uint32
}

// Tree is a thread-safe channel tree.
// The transport writes to it from its reader goroutine while the control
// loop and the terminal UI read it.
type Tree struct {
	mu       sync.RWMutex
	channels map[uint32]*Channel
	users    map[uint32]*User
	local    uint32
	hasLocal bool
	onChange func()
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{
		channels: make(map[uint32]*Channel),
		users:    make(map[uint32]*User),
	}
}

// SetOnChange sets a callback invoked after every modification.
func (t *Tree) SetOnChange(callback func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = callback
}

func (t *Tree) changed() {
	t.mu.RLock()
	callback := t.onChange
	t.mu.RUnlock()
	if callback != nil {
		callback()
	}
}

// Apply updates the tree from a server message. Other messages are ignored.
func (t *Tree) Apply(msg message.Message) {
	switch m := msg.(type) {
	case message.ChannelState:
		t.UpsertChannel(m.ChannelID, m.Parent, m.Name)
	case message.ChannelRemove:
		t.RemoveChannel(m.ChannelID)
	case message.UserState:
		if m.Removed {
			t.RemoveUser(m.Session)
		} else {
			t.UpsertUser(m.Session, m.Name, m.ChannelID)
		}
	}
}

// UpsertChannel adds or updates a channel. A nil parent keeps the current
// parent of an existing channel.
func (t *Tree) UpsertChannel(id uint32, parent *uint32, name string) {
	t.mu.Lock()
	ch, ok := t.channels[id]
	if !ok {
		ch = &Channel{ID: id}
		t.channels[id] = ch
	}
	if name != "" {
		ch.Name = name
	}
	if parent != nil && *parent != id {
		ch.Parent = *parent
		ch.HasParent = true
	}
	t.mu.Unlock()
	t.changed()
}

// RemoveChannel deletes a channel and its descendants. Users left in a
// deleted channel are moved to the root.
func (t *Tree) RemoveChannel(id uint32) {
	t.mu.Lock()
	removed := map[uint32]bool{}
	t.collect(id, removed)
	for cid := range removed {
		delete(t.channels, cid)
	}
	for _, u := range t.users {
		if removed[u.ChannelID] {
			u.ChannelID = RootID
		}
	}
	t.mu.Unlock()
	t.changed()
}

func (t *Tree) collect(id uint32, into map[uint32]bool) {
	if _, ok := t.channels[id]; !ok || into[id] {
		return
	}
	into[id] = true
	for _, child := range t.childrenLocked(id) {
		t.collect(child, into)
	}
}

// UpsertUser places a user session in a channel.
func (t *Tree) UpsertUser(session uint32, name string, channelID uint32) {
	t.mu.Lock()
	u, ok := t.users[session]
	if !ok {
		u = &User{Session: session}
		t.users[session] = u
	}
	if name != "" {
		u.Name = name
	}
	u.ChannelID = channelID
	t.mu.Unlock()
	t.changed()
}

// RemoveUser forgets a user session.
func (t *Tree) RemoveUser(session uint32) {
	t.mu.Lock()
	delete(t.users, session)
	t.mu.Unlock()
	t.changed()
}

// SetLocalSession records the session id the server assigned to us.
func (t *Tree) SetLocalSession(session uint32) {
	t.mu.Lock()
	t.local = session
	t.hasLocal = true
	t.mu.Unlock()
	t.changed()
}

// LocalSession returns our session id, if connected.
func (t *Tree) LocalSession() (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.local, t.hasLocal
}

// Clear drops every channel, user and the local session.
func (t *Tree) Clear() {
	t.mu.Lock()
	t.channels = make(map[uint32]*Channel)
	t.users = make(map[uint32]*User)
	t.local = 0
	t.hasLocal = false
	t.mu.Unlock()
	t.changed()
}

// Channel returns a copy of a channel.
func (t *Tree) Channel(id uint32) (Channel, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ch, ok := t.channels[id]
	if !ok {
		return Channel{}, false
	}
	return *ch, true
}

// CurrentChannel returns the channel a user session is in.
func (t *Tree) CurrentChannel(session uint32) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.users[session]
	if !ok {
		return 0, false
	}
	return u.ChannelID, true
}

// Parent returns the parent of a channel.
func (t *Tree) Parent(id uint32) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ch, ok := t.channels[id]
	if !ok || !ch.HasParent {
		return 0, false
	}
	if _, ok := t.channels[ch.Parent]; !ok {
		return 0, false
	}
	return ch.Parent, true
}

// Subchannel returns the nth (0-based) child of a channel in display order.
func (t *Tree) Subchannel(id uint32, n int) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	children := t.childrenLocked(id)
	if n < 0 || n >= len(children) {
		return 0, false
	}
	return children[n], true
}

// Subchannels returns the children of a channel in display order.
func (t *Tree) Subchannels(id uint32) []uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.childrenLocked(id)
}

// childrenLocked returns child ids sorted by name, then id.
func (t *Tree) childrenLocked(id uint32) []uint32 {
	var children []*Channel
	for _, ch := range t.channels {
		if ch.HasParent && ch.Parent == id && ch.ID != id {
			children = append(children, ch)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		a, b := strings.ToLower(children[i].Name), strings.ToLower(children[j].Name)
		if a != b {
			return a < b
		}
		return children[i].ID < children[j].ID
	})
	ids := make([]uint32, len(children))
	for i, ch := range children {
		ids[i] = ch.ID
	}
	return ids
}

// Users returns the users in a channel sorted by name.
func (t *Tree) Users(channelID uint32) []User {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var users []User
	for _, u := range t.users {
		if u.ChannelID == channelID {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].Session < users[j].Session
	})
	return users
}

// FindPath resolves a slash separated channel path such as "/Games/Chess"
// below the root. Matching is case-insensitive. An empty path is the root.
func (t *Tree) FindPath(path string) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.channels[RootID]; !ok {
		return 0, false
	}
	current := RootID
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		found := false
		for _, child := range t.childrenLocked(current) {
			if strings.EqualFold(t.channels[child].Name, part) {
				current = child
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return current, true
}

// Path returns the slash separated path of a channel below the root.
func (t *Tree) Path(id uint32) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var parts []string
	seen := map[uint32]bool{}
	for {
		ch, ok := t.channels[id]
		if !ok || seen[id] || !ch.HasParent {
			break
		}
		seen[id] = true
		parts = append([]string{ch.Name}, parts...)
		id = ch.Parent
	}
	return "/" + strings.Join(parts, "/")
}

// Walk visits the tree depth first from the root in display order.
// fn must not call back into the tree.
func (t *Tree) Walk(fn func(ch Channel, depth int)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.channels[RootID]; !ok {
		return
	}
	seen := map[uint32]bool{}
	var visit func(id uint32, depth int)
	visit = func(id uint32, depth int) {
		if seen[id] {
			return
		}
		seen[id] = true
		fn(*t.channels[id], depth)
		for _, child := range t.childrenLocked(id) {
			visit(child, depth+1)
		}
	}
	visit(RootID, 0)
}
