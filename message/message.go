// Package message defines the typed control messages exchanged with a
// voice server. Encoding them on the wire is the transport's job.
package message

import "fmt"

// Message is an outbound or inbound control message.
type Message interface {
	// Type returns the wire type name.
	Type() string
}

// Outbound message type names.
const (
	TypeAuthenticate    = "authenticate"
	TypeMoveSelf        = "move_self"
	TypeLinkChannels    = "link_channels"
	TypeSetSelfMuteDeaf = "set_self_mute_deaf"
)

// Inbound message type names.
const (
	TypeServerSync    = "server_sync"
	TypeReject        = "reject"
	TypeChannelState  = "channel_state"
	TypeChannelRemove = "channel_remove"
	TypeUserState     = "user_state"
)

// LinkKind selects what a LinkChannels request does.
type LinkKind int

const (
	// Link permanently links the source to the targets.
	Link LinkKind = iota
	// Unlink removes links between the source and the targets.
	Unlink
	// UnlinkAll removes every link of the source.
	UnlinkAll
	// PushLink links the targets while a hotkey is held.
	PushLink
	// PushUnlink releases a PushLink.
	PushUnlink
)

// String returns the wire name of the link kind.
func (k LinkKind) String() string {
	switch k {
	case Link:
		return "link"
	case Unlink:
		return "unlink"
	case UnlinkAll:
		return "unlink_all"
	case PushLink:
		return "push_link"
	case PushUnlink:
		return "push_unlink"
	default:
		return fmt.Sprintf("LinkKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k LinkKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *LinkKind) UnmarshalText(b []byte) error {
	for _, candidate := range []LinkKind{Link, Unlink, UnlinkAll, PushLink, PushUnlink} {
		if candidate.String() == string(b) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown link kind %q", string(b))
}

// Authenticate is sent right after the control channel opens.
type Authenticate struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// MoveSelf asks the server to move the local user to ChannelID.
type MoveSelf struct {
	ChannelID uint32 `json:"channel_id"`
}

// LinkChannels changes links between SourceID and Targets.
type LinkChannels struct {
	SourceID uint32   `json:"source_id"`
	Targets  []uint32 `json:"targets,omitempty"`
	Kind     LinkKind `json:"kind"`
}

// SetSelfMuteDeaf publishes the local user's mute and deafen state.
type SetSelfMuteDeaf struct {
	Mute bool `json:"mute"`
	Deaf bool `json:"deaf"`
}

// ServerSync completes the handshake and names the local session.
type ServerSync struct {
	Session uint32 `json:"session"`
	Welcome string `json:"welcome,omitempty"`
}

// Reject explains why the server refused the connection.
type Reject struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// ChannelState creates or updates a channel.
type ChannelState struct {
	ChannelID uint32  `json:"channel_id"`
	Parent    *uint32 `json:"parent,omitempty"`
	Name      string  `json:"name"`
}

// ChannelRemove deletes a channel.
type ChannelRemove struct {
	ChannelID uint32 `json:"channel_id"`
}

// UserState places a user session in a channel.
type UserState struct {
	Session   uint32 `json:"session"`
	Name      string `json:"name,omitempty"`
	ChannelID uint32 `json:"channel_id"`
	Removed   bool   `json:"removed,omitempty"`
}

func (Authenticate) Type() string    { return TypeAuthenticate }
func (MoveSelf) Type() string        { return TypeMoveSelf }
func (LinkChannels) Type() string    { return TypeLinkChannels }
func (SetSelfMuteDeaf) Type() string { return TypeSetSelfMuteDeaf }
func (ServerSync) Type() string      { return TypeServerSync }
func (Reject) Type() string          { return TypeReject }
func (ChannelState) Type() string    { return TypeChannelState }
func (ChannelRemove) Type() string   { return TypeChannelRemove }
func (UserState) Type() string       { return TypeUserState }

// Sender accepts outbound messages.
type Sender interface {
	Send(msg Message) error
}
