package client

import "strings"

// State is the supervisor's connection state.
type State int

const (
	// StateIdle means no connection has been attempted yet.
	StateIdle State = iota
	// StateConnecting means the transport is opening a session.
	StateConnecting
	// StateConnected means the server accepted the session.
	StateConnected
	// StateAwaitingInput means a certificate or credential prompt is open.
	StateAwaitingInput
	// StateDisconnected means the last session ended.
	StateDisconnected
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting..."
	case StateConnected:
		return "Connected"
	case StateAwaitingInput:
		return "Awaiting input"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// RejectReason is the structured reason a server refused a session.
type RejectReason int

const (
	RejectNone RejectReason = iota
	RejectInvalidUsername
	RejectUsernameInUse
	RejectWrongUserPassword
	RejectWrongServerPassword
	RejectOther
)

var rejectNames = map[RejectReason]string{
	RejectNone:                "none",
	RejectInvalidUsername:     "invalid_username",
	RejectUsernameInUse:       "username_in_use",
	RejectWrongUserPassword:   "wrong_user_password",
	RejectWrongServerPassword: "wrong_server_password",
	RejectOther:               "other",
}

// String returns the wire name of the reason.
func (r RejectReason) String() string {
	if name, ok := rejectNames[r]; ok {
		return name
	}
	return "other"
}

// ParseRejectReason maps a wire name to a RejectReason.
// Unknown non-empty names are RejectOther.
func ParseRejectReason(s string) RejectReason {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RejectNone
	}
	s = strings.ReplaceAll(s, "-", "_")
	for reason, name := range rejectNames {
		if name == s {
			return reason
		}
	}
	return RejectOther
}

// NeedsUsername reports whether the user should pick another username.
func (r RejectReason) NeedsUsername() bool {
	return r == RejectInvalidUsername || r == RejectUsernameInUse
}

// NeedsPassword reports whether the user should enter another password.
func (r RejectReason) NeedsPassword() bool {
	return r == RejectWrongUserPassword || r == RejectWrongServerPassword
}
