package client

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/yllada/voicelink/common"
)

// ServerAddress is what the user asks to connect to.
type ServerAddress struct {
	Host     string
	Port     int
	Username string
	Password string
	// Channel is a slash separated channel path to join after connecting.
	Channel string
}

// Validate checks that the address can be dialled.
func (a ServerAddress) Validate() error {
	if a.Host == "" {
		return fmt.Errorf("%w: missing host", common.ErrInvalidAddress)
	}
	if a.Port < 1 || a.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", common.ErrInvalidAddress, a.Port)
	}
	if a.Username == "" {
		return fmt.Errorf("%w: missing username", common.ErrInvalidAddress)
	}
	return nil
}

// Session is one connection attempt. A Session is never modified: every
// attempt, including retries with corrected credentials, gets a new one.
type Session struct {
	ID       string
	Host     string
	Port     int
	Username string
	Password string
	Channel  string
}

func newSession(addr ServerAddress) Session {
	return Session{
		ID:       uuid.NewString(),
		Host:     addr.Host,
		Port:     addr.Port,
		Username: addr.Username,
		Password: addr.Password,
		Channel:  addr.Channel,
	}
}

// Address returns host:port.
func (s Session) Address() string {
	return common.HostPort(s.Host, s.Port)
}

// CredentialKey is the key the session's password is remembered under.
func (s Session) CredentialKey() string {
	return common.CredentialKey(s.Username, s.Host, s.Port)
}

// String describes the session without its password.
func (s Session) String() string {
	return s.Username + "@" + s.Address()
}

// retry returns a fresh session with the same parameters.
func (s Session) retry() Session {
	next := s
	next.ID = uuid.NewString()
	return next
}

func (s Session) withUsername(username string) Session {
	next := s.retry()
	next.Username = username
	return next
}

func (s Session) withPassword(password string) Session {
	next := s.retry()
	next.Password = password
	return next
}
