//go:build linux

package ring

import (
	"fmt"
	"unsafe"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-netring/internal/logging"
)

// ioRing implements Ring on top of github.com/pawelgaczynski/giouring, a
// pure-Go io_uring binding. This is the real completion-based I/O path the
// server driver submits accepts/reads/writes/closes to.
type ioRing struct {
	ring    *giouring.Ring
	logger  *logging.Logger
	pending int
}

// NewLinuxRing creates an io_uring-backed Ring with the given queue depth.
func NewLinuxRing(cfg Config) (Ring, error) {
	entries := cfg.Entries
	if entries == 0 {
		entries = 1
	}

	r, err := giouring.CreateRing(entries)
	if err != nil {
		return nil, fmt.Errorf("ring: io_uring setup failed: %w", err)
	}

	return &ioRing{ring: r, logger: logging.Default()}, nil
}

func (r *ioRing) Close() error {
	if r.ring != nil {
		r.ring.QueueExit()
	}
	return nil
}

func (r *ioRing) getSQE() (*giouring.SubmissionQueueEntry, error) {
	sqe := r.ring.GetSQE()
	if sqe == nil {
		return nil, ErrRingFull
	}
	return sqe, nil
}

func (r *ioRing) PrepAccept(listenFD int, userData uint64) error {
	sqe, err := r.getSQE()
	if err != nil {
		return err
	}
	sqe.PrepareAccept(int32(listenFD), 0, 0, 0)
	sqe.UserData = userData
	r.pending++
	return nil
}

func (r *ioRing) PrepRead(fd int, buf []byte, userData uint64) error {
	sqe, err := r.getSQE()
	if err != nil {
		return err
	}
	var base uintptr
	if len(buf) > 0 {
		base = uintptr(unsafe.Pointer(&buf[0]))
	}
	sqe.PrepareRead(int32(fd), base, uint32(len(buf)), 0)
	sqe.UserData = userData
	r.pending++
	return nil
}

func (r *ioRing) PrepWrite(fd int, buf []byte, userData uint64) error {
	sqe, err := r.getSQE()
	if err != nil {
		return err
	}
	var base uintptr
	if len(buf) > 0 {
		base = uintptr(unsafe.Pointer(&buf[0]))
	}
	sqe.PrepareWrite(int32(fd), base, uint32(len(buf)), 0)
	sqe.UserData = userData
	r.pending++
	return nil
}

func (r *ioRing) PrepClose(fd int, userData uint64) error {
	sqe, err := r.getSQE()
	if err != nil {
		return err
	}
	sqe.PrepareClose(int32(fd))
	sqe.UserData = userData
	r.pending++
	return nil
}

func (r *ioRing) Submit() (int, error) {
	if r.pending == 0 {
		return 0, nil
	}
	n, err := r.ring.Submit()
	if err != nil {
		return int(n), fmt.Errorf("ring: submit failed: %w", err)
	}
	r.pending -= int(n)
	if r.pending < 0 {
		r.pending = 0
	}
	return int(n), nil
}

// ioResult wraps a completion queue entry.
type ioResult struct {
	cqe *giouring.CompletionQueueEvent
}

func (res *ioResult) UserData() uint64 { return res.cqe.UserData }
func (res *ioResult) Value() int32     { return res.cqe.Res }

func (r *ioRing) WaitOne() (Result, error) {
	cqe, err := r.ring.WaitCQE()
	if err != nil {
		return nil, fmt.Errorf("ring: wait completion failed: %w", err)
	}
	return &ioResult{cqe: cqe}, nil
}

func (r *ioRing) Release(res Result) {
	ir, ok := res.(*ioResult)
	if !ok || ir == nil {
		return
	}
	r.ring.SeenCQE(ir.cqe)
}

// NewRing creates the platform default Ring implementation.
func NewRing(cfg Config) (Ring, error) {
	return NewLinuxRing(cfg)
}
