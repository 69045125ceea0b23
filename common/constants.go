// Package common provides shared constants, types, and utilities
// used across the Voicelink client.
package common

import "time"

// Application metadata.
const (
	// AppID is the unique identifier for the application.
	AppID = "com.voicelink.client"
	// AppName is the display name of the application.
	AppName = "Voicelink"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "voicelink"
)

// File names used by the application.
const (
	BookmarksFileName   = "bookmarks.yaml"
	ConfigFileName      = "config.yaml"
	CredentialsFileName = ".credentials"
	TrustDBFileName     = "trust.db"
	LogFileName         = "voicelink.log"
)

// Server defaults.
const (
	// DefaultPort is the port used when a server address omits one.
	DefaultPort = 64738
	// URLScheme is the scheme accepted by ParseServerURL.
	URLScheme = "mumble"
)

// Default timeouts and intervals.
const (
	// ConnectionTimeout is the maximum time to wait for a connection.
	ConnectionTimeout = 30 * time.Second
	// ReconnectDelay is the delay before an automatic reconnect.
	ReconnectDelay = 10 * time.Second
	// TeardownTimeout bounds how long Connect waits for a previous session to close.
	TeardownTimeout = 5 * time.Second
	// HandshakeTimeout bounds the TLS and websocket handshake.
	HandshakeTimeout = 10 * time.Second
	// PingInterval is how often the transport pings the server.
	PingInterval = 15 * time.Second
	// WriteTimeout bounds a single control message write.
	WriteTimeout = 5 * time.Second
)

// Log levels accepted in the configuration file.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)
