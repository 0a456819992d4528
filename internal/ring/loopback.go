package ring

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// loopbackOp is one pending submission awaiting a worker goroutine.
type loopbackOp struct {
	op       wireOp
	fd       int
	buf      []byte
	userData uint64
}

type wireOp int

const (
	opAccept wireOp = iota
	opRead
	opWrite
	opClose
)

// LoopbackRing implements Ring using plain blocking syscalls dispatched to
// worker goroutines, one per submitted operation, with results delivered on
// a shared completion channel. It gives the exact Ring contract (stage,
// submit a batch, wait for completions one at a time, release) without
// requiring a real io_uring-capable kernel, so the server core and its
// tests run identically on any platform. This mirrors the teacher's
// NewStubRunner/stubLoop simulation mode, generalized from "do nothing and
// wait for cancellation" to "actually perform the syscall on a goroutine".
type LoopbackRing struct {
	pending     []loopbackOp
	completions chan Result
}

// NewLoopbackRing creates a LoopbackRing with the given completion buffer
// depth (should be at least the caller's max in-flight submissions).
func NewLoopbackRing(depth int) *LoopbackRing {
	if depth < 1 {
		depth = 1
	}
	return &LoopbackRing{completions: make(chan Result, depth)}
}

func (r *LoopbackRing) Close() error { return nil }

func (r *LoopbackRing) PrepAccept(listenFD int, userData uint64) error {
	r.pending = append(r.pending, loopbackOp{op: opAccept, fd: listenFD, userData: userData})
	return nil
}

func (r *LoopbackRing) PrepRead(fd int, buf []byte, userData uint64) error {
	r.pending = append(r.pending, loopbackOp{op: opRead, fd: fd, buf: buf, userData: userData})
	return nil
}

func (r *LoopbackRing) PrepWrite(fd int, buf []byte, userData uint64) error {
	r.pending = append(r.pending, loopbackOp{op: opWrite, fd: fd, buf: buf, userData: userData})
	return nil
}

func (r *LoopbackRing) PrepClose(fd int, userData uint64) error {
	r.pending = append(r.pending, loopbackOp{op: opClose, fd: fd, userData: userData})
	return nil
}

func (r *LoopbackRing) Submit() (int, error) {
	n := len(r.pending)
	for _, op := range r.pending {
		go r.run(op)
	}
	r.pending = r.pending[:0]
	return n, nil
}

func (r *LoopbackRing) run(op loopbackOp) {
	var value int32
	switch op.op {
	case opAccept:
		connFD, _, err := unix.Accept(op.fd)
		if err != nil {
			value = int32(-errnoOf(err))
		} else {
			value = int32(connFD)
		}
	case opRead:
		n, err := unix.Read(op.fd, op.buf)
		if err != nil {
			value = int32(-errnoOf(err))
		} else {
			value = int32(n)
		}
	case opWrite:
		n, err := unix.Write(op.fd, op.buf)
		if err != nil {
			value = int32(-errnoOf(err))
		} else {
			value = int32(n)
		}
	case opClose:
		if err := unix.Close(op.fd); err != nil {
			value = int32(-errnoOf(err))
		}
	}
	r.completions <- &loopbackResult{userData: op.userData, value: value}
}

func errnoOf(err error) int {
	if errno, ok := err.(unix.Errno); ok {
		return int(errno)
	}
	return int(unix.EIO)
}

func (r *LoopbackRing) WaitOne() (Result, error) {
	res, ok := <-r.completions
	if !ok {
		return nil, fmt.Errorf("ring: loopback completion channel closed")
	}
	return res, nil
}

func (r *LoopbackRing) Release(Result) {}

type loopbackResult struct {
	userData uint64
	value    int32
}

func (res *loopbackResult) UserData() uint64 { return res.userData }
func (res *loopbackResult) Value() int32     { return res.value }
