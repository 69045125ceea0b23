// Package common provides shared constants, types, and utilities
// used across the Voicelink client.
package common

import "errors"

// Sentinel errors for client operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Connection errors.
	ErrAlreadyConnected = errors.New("connection already active")
	ErrNotConnected     = errors.New("no active connection")
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrCancelled        = errors.New("operation cancelled")
	ErrInvalidAddress   = errors.New("invalid server address")

	// Certificate errors.
	ErrCertificateUntrusted = errors.New("server certificate failed verification")
	ErrDigestMismatch       = errors.New("server certificate differs from the stored one")
	ErrDigestNotFound       = errors.New("no stored certificate digest")

	// Bookmark errors.
	ErrBookmarkNotFound = errors.New("bookmark not found")
	ErrDuplicateName    = errors.New("bookmark name already exists")
	ErrInvalidBookmark  = errors.New("invalid bookmark data")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrCredentialStorage   = errors.New("failed to store credentials")
	ErrEncryption          = errors.New("encryption error")
	ErrDecryption          = errors.New("decryption error")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
