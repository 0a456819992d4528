package netring

import (
	"github.com/ehrlich-b/go-netring/internal/bootstrap"
	"github.com/ehrlich-b/go-netring/internal/core"
	"github.com/ehrlich-b/go-netring/internal/interfaces"
	"github.com/ehrlich-b/go-netring/internal/ring"
)

// Settings configures a Networker's bootstrap per §4.2/§6: the listen
// address, backlog, and fixed slot table size.
type Settings struct {
	Host       string
	Port       uint16
	MaxQueue   uint16
	MaxClients uint16

	Logger   interfaces.Logger
	Observer interfaces.Observer
}

// Networker is the public server entry point: it owns the bound listening
// socket, the ring, and the per-cycle driver, and exposes the handoff API
// an application drives from outside Cycle.
type Networker struct {
	driver *core.Driver
}

// NewNetworker binds a listening socket and ring per settings and returns
// a Networker ready to Cycle. newRing selects the ring implementation;
// pass nil to use the platform default (ring.NewRing, io_uring on Linux).
func NewNetworker(settings Settings, newRing func(ring.Config) (ring.Ring, error)) (*Networker, error) {
	if newRing == nil {
		newRing = ring.NewRing
	}
	bound, err := bootstrap.Listen(bootstrap.Settings{
		Host:       settings.Host,
		Port:       settings.Port,
		MaxQueue:   settings.MaxQueue,
		MaxClients: settings.MaxClients,
	}, newRing)
	if err != nil {
		return nil, &Error{Op: "LISTEN", Slot: -1, Code: ErrCodeSocketSetup, Msg: err.Error(), Inner: err}
	}

	driver := core.NewDriver(core.Config{
		Ring:       bound.Ring,
		ListenFD:   bound.ListenFD,
		MaxClients: int(settings.MaxClients),
		Logger:     settings.Logger,
		Observer:   settings.Observer,
	})
	return &Networker{driver: driver}, nil
}

// Cycle runs exactly one pass of the accept/read/write/idle-reap
// scheduling algorithm. It may block waiting for at least one of the
// completions it just submitted, per §5's accepted head-of-line-blocking
// design.
func (n *Networker) Cycle() error {
	if err := n.driver.Cycle(); err != nil {
		return wrapDriverErr("CYCLE", -1, err)
	}
	return nil
}

// Close releases the ring and the listening socket.
func (n *Networker) Close() error {
	return n.driver.Close()
}

// Occupied reports how many slots are not NonExistent.
func (n *Networker) Occupied() int { return n.driver.Occupied() }

// Capacity is the fixed slot table size.
func (n *Networker) Capacity() int { return n.driver.Capacity() }
