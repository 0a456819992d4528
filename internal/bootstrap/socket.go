// Package bootstrap parses server settings and performs the socket/bind/
// listen/ring sequence described in spec §4.2, rolling back every
// partially acquired resource on failure. Grounded on the teacher's
// ctrl.NewController, which opens a control fd and builds an io_uring on
// top of it with the same acquire-or-rollback discipline.
package bootstrap

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-netring/internal/ring"
)

// Settings mirrors spec §6's server settings: a dotted-quad IPv4 literal,
// a port, the listen backlog, and the slot table size.
type Settings struct {
	Host       string
	Port       uint16
	MaxQueue   uint16
	MaxClients uint16
}

// ParseHost validates that host is an ASCII dotted-quad IPv4 literal, per
// §9 ("the server accepts only IPv4 literals; hostname resolution is out
// of scope for the core").
func ParseHost(host string) (net.IP, error) {
	if len(host) > 15 {
		return nil, fmt.Errorf("bootstrap: host %q exceeds dotted-quad length", host)
	}
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bootstrap: host %q is not a dotted-quad IPv4 literal", host)
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("bootstrap: host %q is not a valid IPv4 literal", host)
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			return nil, fmt.Errorf("bootstrap: host %q has a non-numeric octet", host)
		}
	}
	return ip.To4(), nil
}

// Bound is the pair of resources Start needs to build the core Driver.
type Bound struct {
	ListenFD int
	Ring     ring.Ring
}

// Listen creates a TCP stream socket bound to (host, port) in listen mode
// with the given backlog, and a ring sized to at least maxClients entries
// (minimum 1). On any failure every previously acquired resource is
// released and a non-nil error is returned, per §4.2's rollback contract.
func Listen(settings Settings, newRing func(ring.Config) (ring.Ring, error)) (_ Bound, err error) {
	ip, err := ParseHost(settings.Host)
	if err != nil {
		return Bound{}, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return Bound{}, fmt.Errorf("bootstrap: socket: %w", err)
	}
	defer func() {
		if err != nil {
			unix.Close(fd)
		}
	}()

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return Bound{}, fmt.Errorf("bootstrap: setsockopt SO_REUSEADDR: %w", err)
	}

	addr := unix.SockaddrInet4{Port: int(settings.Port)}
	copy(addr.Addr[:], ip)
	if err = unix.Bind(fd, &addr); err != nil {
		return Bound{}, fmt.Errorf("bootstrap: bind: %w", err)
	}

	backlog := int(settings.MaxQueue)
	if backlog <= 0 {
		backlog = 1
	}
	if err = unix.Listen(fd, backlog); err != nil {
		return Bound{}, fmt.Errorf("bootstrap: listen: %w", err)
	}

	entries := uint32(settings.MaxClients)
	if entries == 0 {
		entries = 1
	}
	r, err := newRing(ring.Config{Entries: entries})
	if err != nil {
		return Bound{}, fmt.Errorf("bootstrap: ring init: %w", err)
	}

	return Bound{ListenFD: fd, Ring: r}, nil
}
