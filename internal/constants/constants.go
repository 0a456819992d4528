// Package constants holds shared tuning values for the server core, ring,
// and client packages.
package constants

import "time"

// MaxPayloadSize bounds a single message payload. The stepwise client
// rejects any advertised size above this without allocating. Wire layout
// constants (header size, byte order) live in internal/wire.
const MaxPayloadSize = 524_288_000

// Default configuration constants.
const (
	// DefaultMaxClients is the default fixed slot table size.
	DefaultMaxClients = 1024

	// DefaultMaxQueue is the default listen backlog.
	DefaultMaxQueue = 128

	// DefaultRingEntries is the minimum ring queue depth when max_clients
	// would otherwise produce zero.
	DefaultRingEntries = 1

	// InitialRequestCapacity is 4KB, the smallest pooled buffer size. Slots
	// do not preallocate request buffers and nothing sizes a buffer from
	// this constant; a slot's buffer is allocated when a payload read needs
	// more room than it has.
	InitialRequestCapacity = 4096
)

// Timing constants.
const (
	// IdleTimeout is how long a connection may sit in Idle before being
	// reaped, per §4.3.
	IdleTimeout = 1200 * time.Second

	// BindRetryDelay is a backoff interval for callers that retry a bind;
	// nothing in this module retries a failed bind.
	BindRetryDelay = 100 * time.Millisecond
)
