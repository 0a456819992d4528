// Package core implements the server driver: the per-cycle scheduler that
// walks a fixed slot table, stages ring submissions, and reaps completions
// in author-log order. It is the direct analogue of the teacher's
// queue.Runner, generalized from a single block-device queue's per-tag
// fetch/commit state machine to a TCP slot table's
// accept/read/write/idle state machine.
package core

import (
	"time"

	"github.com/ehrlich-b/go-netring/internal/wire"
)

// State is a slot's position in the per-cycle state machine. The original
// enum this was modeled on also defines a HeadersReaden tag that is never
// reached; it is intentionally absent here.
type State int

const (
	NonExistent State = iota
	Idle
	FinishedH
	Reading
	FinishedR
	Available
	Processing
	Ready
	WrittingSock
	FinishedWS
	Kill
)

func (s State) String() string {
	switch s {
	case NonExistent:
		return "NonExistent"
	case Idle:
		return "Idle"
	case FinishedH:
		return "FinishedH"
	case Reading:
		return "Reading"
	case FinishedR:
		return "FinishedR"
	case Available:
		return "Available"
	case Processing:
		return "Processing"
	case Ready:
		return "Ready"
	case WrittingSock:
		return "WrittingSock"
	case FinishedWS:
		return "FinishedWS"
	case Kill:
		return "Kill"
	default:
		return "Unknown"
	}
}

// Slot is one entry in the fixed client table: zero or one active TCP
// connection and the buffers/offsets needed to drive it through the wire
// protocol.
type Slot struct {
	ID    int
	Sock  int // fd, or -1 when NonExistent
	State State

	headerBuf  [wire.HeaderSize]byte
	ReqHeaders wire.MessageHeaders

	Request    []byte // owned; reused across messages
	RecvOffset int

	Response      []byte // owned; freshly allocated per apply_response
	ResponseSize  int
	WritevOffset int

	Activity time.Time
}

func newSlot(id int) *Slot {
	return &Slot{ID: id, Sock: -1, State: NonExistent}
}

// ensureRequestCapacity grows Request to at least n bytes, reusing the
// existing backing array when it already has room.
func (s *Slot) ensureRequestCapacity(n int) {
	if cap(s.Request) >= n {
		s.Request = s.Request[:n]
		return
	}
	buf := getBuffer(n)
	s.Request = buf
}

// release returns the slot's request buffer to the pool, drops the response
// buffer, clears offsets and headers, and unsets Sock. Called on any
// transition into NonExistent.
func (s *Slot) release() {
	s.Sock = -1
	if s.Request != nil {
		putBuffer(s.Request)
		s.Request = nil
	}
	s.Response = nil
	s.ResponseSize = 0
	s.RecvOffset = 0
	s.WritevOffset = 0
	s.ReqHeaders = wire.MessageHeaders{}
}

// reset zeroes a slot back to its freshly created NonExistent shape,
// preserving ID.
func (s *Slot) reset() {
	id := s.ID
	s.release()
	*s = Slot{ID: id, Sock: -1, State: NonExistent}
}
