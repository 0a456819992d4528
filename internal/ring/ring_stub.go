//go:build !linux

package ring

import "fmt"

// NewLinuxRing is only available on Linux, where io_uring exists.
func NewLinuxRing(cfg Config) (Ring, error) {
	return nil, fmt.Errorf("ring: io_uring is only available on linux")
}

// NewRing creates the platform default Ring implementation. On non-Linux
// platforms callers must use NewLoopbackRing instead.
func NewRing(cfg Config) (Ring, error) {
	return nil, fmt.Errorf("ring: io_uring is only available on linux; use a loopback ring for tests")
}
