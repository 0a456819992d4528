package netring

import (
	"net"
	"sync"

	"github.com/ehrlich-b/go-netring/internal/core"
	"github.com/ehrlich-b/go-netring/internal/ring"
	"github.com/ehrlich-b/go-netring/internal/wire"
)

// EchoApplication is a mock handoff-API driver for testing: it claims
// every Available slot and applies a response derived by a pluggable
// transform, tracking call counts for verification. It plays the same
// role the teacher's MockBackend plays for a Backend, but driving the
// Networker's handoff API instead of implementing an I/O interface.
type EchoApplication struct {
	mu          sync.Mutex
	transform   func(request []byte, comprAlg wire.CompressionAlgorithm) []byte
	claimCalls  int
	applyCalls  int
	killCalls   int
	lastRequest []byte
}

// NewEchoApplication creates an application that echoes each request back
// verbatim. Pass a transform to customize the response, e.g. for the
// GZIP/ZSTD decoding demonstrated in examples/netring-echo.
func NewEchoApplication(transform func([]byte, wire.CompressionAlgorithm) []byte) *EchoApplication {
	if transform == nil {
		transform = func(req []byte, _ wire.CompressionAlgorithm) []byte { return req }
	}
	return &EchoApplication{transform: transform}
}

// DriveOnce claims every currently Available slot on n and applies the
// transformed response, compr_alg always None on the way out. It returns
// the number of slots it drove.
func (a *EchoApplication) DriveOnce(n *Networker) (int, error) {
	driven := 0
	for {
		id, ok := n.GetAvailable()
		if !ok {
			return driven, nil
		}
		if err := n.Claim(id); err != nil {
			return driven, err
		}
		a.mu.Lock()
		a.claimCalls++
		a.mu.Unlock()

		req, comprAlg, err := n.Request(id)
		if err != nil {
			return driven, err
		}
		a.mu.Lock()
		a.lastRequest = append([]byte(nil), req...)
		a.mu.Unlock()

		resp := a.transform(req, comprAlg)
		if err := n.ApplyResponse(id, resp, wire.CompressionNone); err != nil {
			return driven, err
		}
		a.mu.Lock()
		a.applyCalls++
		a.mu.Unlock()
		driven++
	}
}

// Kill drives a Kill call through the handoff API, tracking it for
// verification.
func (a *EchoApplication) Kill(n *Networker, id int) error {
	a.mu.Lock()
	a.killCalls++
	a.mu.Unlock()
	return n.Kill(id)
}

// CallCounts returns how many times Claim/ApplyResponse/Kill were driven.
func (a *EchoApplication) CallCounts() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]int{
		"claim": a.claimCalls,
		"apply": a.applyCalls,
		"kill":  a.killCalls,
	}
}

// LastRequest returns a copy of the most recent claimed request payload.
func (a *EchoApplication) LastRequest() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]byte(nil), a.lastRequest...)
}

// LoopbackHarness wires a Networker to a real loopback TCP listener and a
// ring.LoopbackRing, for fast, deterministic, platform-independent tests
// that don't require a Linux io_uring-capable kernel.
type LoopbackHarness struct {
	Networker *Networker
	Addr      net.Addr

	listener net.Listener
}

// NewLoopback binds 127.0.0.1:0 and returns a harness ready to Cycle.
func NewLoopback(maxClients uint16) (*LoopbackHarness, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	tcpLn := ln.(*net.TCPListener)
	lnFile, err := tcpLn.File()
	if err != nil {
		ln.Close()
		return nil, err
	}

	depth := int(maxClients) * 4
	if depth < 4 {
		depth = 4
	}
	driver := core.NewDriver(core.Config{
		Ring:       ring.NewLoopbackRing(depth),
		ListenFD:   int(lnFile.Fd()),
		MaxClients: int(maxClients),
	})

	return &LoopbackHarness{
		Networker: &Networker{driver: driver},
		Addr:      ln.Addr(),
		listener:  ln,
	}, nil
}

// Close releases the harness's listener and Networker.
func (h *LoopbackHarness) Close() error {
	h.listener.Close()
	return h.Networker.Close()
}
