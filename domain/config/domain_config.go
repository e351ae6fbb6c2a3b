package config

import "time"

// Domain limits and defaults for the context store and protocol server.
// These are invariants of the domain, not deployment tunables.
const (
	// Entry limits
	MaxTagCount      = 20
	MaxTagLength     = 64
	MaxContentBytes  = 256 * 1024
	MaxMetadataKeys  = 50
	MaxSummarizedIDs = 500

	// Query windows
	DefaultListLimit   = 50
	MaxListLimit       = 200
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100

	// Protocol defaults
	DefaultHeartbeatInterval = 30 * time.Second
	SendBufferSize           = 64
	MaxInboundMessageBytes   = 512 * 1024
)
