// Package common provides shared constants, types, and utilities
// used across the Voicelink client.
package common

// CredentialStore defines the interface for remembered server passwords.
// Implementations may use the system keyring, encrypted files, etc.
type CredentialStore interface {
	// Store saves a password under key.
	Store(key, password string) error
	// Get retrieves the password saved under key.
	Get(key string) (string, error)
	// Delete removes the password saved under key.
	Delete(key string) error
}

// Notifier defines the interface for sending desktop notifications.
type Notifier interface {
	// Notify sends a notification with the given title and message.
	Notify(title, message string) error
	// NotifyWithIcon sends a notification with a custom icon.
	NotifyWithIcon(title, message, icon string) error
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}

// NopNotifier discards every notification.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(string, string) error { return nil }

// NotifyWithIcon implements Notifier.
func (NopNotifier) NotifyWithIcon(string, string, string) error { return nil }
