// Package ring provides a thin façade over a completion-based I/O
// submission/completion primitive (Linux io_uring), exposing just the
// operations the server core needs: accept a connection, read, write,
// close, submit a batch, and wait for one completion at a time.
package ring

import "errors"

// ErrRingFull is returned when the submission queue has no free slot. The
// core's at-most-one-in-flight-per-slot discipline should make this
// unreachable in normal operation.
var ErrRingFull = errors.New("ring: submission queue full")

// Result is a single completion queue entry, decoded enough for the core
// to pair it with the slot that authored it and learn the outcome.
type Result interface {
	// UserData returns the opaque tag the submission was made with.
	UserData() uint64
	// Value returns the raw result: non-negative is a byte count or fd,
	// negative is a -errno.
	Value() int32
}

// Ring is the server driver's only dependency on the underlying completion
// queue primitive. Every Prep* call stages a submission queue entry without
// making it visible to the kernel; Submit flushes all staged entries in one
// syscall; WaitOne blocks for exactly one completion at a time, mirroring
// the "submit the batch, then drain exactly as many completions as were
// submitted" discipline in §4.3 of the framing spec.
type Ring interface {
	// Close releases the ring and any resources it owns.
	Close() error

	// PrepAccept stages an accept on the given listening socket fd.
	PrepAccept(listenFD int, userData uint64) error

	// PrepRead stages a read of up to len(buf) bytes from fd.
	PrepRead(fd int, buf []byte, userData uint64) error

	// PrepWrite stages a write of buf to fd.
	PrepWrite(fd int, buf []byte, userData uint64) error

	// PrepClose stages a close of fd.
	PrepClose(fd int, userData uint64) error

	// Submit flushes all staged submissions to the kernel in one call and
	// returns how many were accepted.
	Submit() (int, error)

	// WaitOne blocks until at least one completion is available and
	// returns it. The caller must call Release on the returned Result
	// exactly once.
	WaitOne() (Result, error)

	// Release returns a consumed completion slot to the ring.
	Release(Result)
}

// Config parameterizes ring construction.
type Config struct {
	// Entries is the queue depth; the caller should size this to at least
	// MaxClients (minimum 1).
	Entries uint32
}
