// Package common provides shared constants, types, utilities, and interfaces
// used throughout the Voicelink client.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: Application-wide constants like timeouts, file names and the default port
//   - Errors: Sentinel errors for consistent error handling across packages
//   - Interfaces: Abstractions for credential storage, notifications, and logging
//   - Logger: Leveled logging with component tags and rotated file output
//   - Utils: Config/data directory helpers and address formatting
//
// # Usage
//
//	import "github.com/yllada/voicelink/common"
//
//	delay := common.ReconnectDelay
//
//	log := common.WithComponent("supervisor")
//	log.Info("Connecting to %s", common.HostPort(host, port))
//
//	if errors.Is(err, common.ErrDigestMismatch) {
//	    // Ask the user before trusting the new certificate
//	}
package common
