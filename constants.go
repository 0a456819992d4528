package netring

import (
	"github.com/ehrlich-b/go-netring/internal/constants"
	"github.com/ehrlich-b/go-netring/internal/wire"
)

// Re-export constants for the public API.
const (
	MaxPayloadSize         = constants.MaxPayloadSize
	DefaultMaxClients      = constants.DefaultMaxClients
	DefaultMaxQueue        = constants.DefaultMaxQueue
	DefaultRingEntries     = constants.DefaultRingEntries
	InitialRequestCapacity = constants.InitialRequestCapacity

	IdleTimeout    = constants.IdleTimeout
	BindRetryDelay = constants.BindRetryDelay

	HeaderSize = wire.HeaderSize
)
