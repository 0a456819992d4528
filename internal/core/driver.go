package core

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-netring/internal/constants"
	"github.com/ehrlich-b/go-netring/internal/interfaces"
	"github.com/ehrlich-b/go-netring/internal/ring"
	"github.com/ehrlich-b/go-netring/internal/wire"
)

// Sentinel errors surfaced by the handoff API. The root package maps these
// onto the structured *Error type with the matching -errno code.
var (
	ErrNotStarted        = errors.New("core: cycle called before start")
	ErrOutOfRange        = errors.New("core: client id out of range")
	ErrContractViolation = errors.New("core: slot not in required state")
)

// ringOp reuses wire.Operation's tag set (OpSocketAccept/OpRead/OpWrite/
// OpClose) to label what an author-log entry's submission was.
type ringOp = wire.Operation

const (
	opAccept = wire.OpSocketAccept
	opRead   = wire.OpRead
	opWrite  = wire.OpWrite
	opClose  = wire.OpClose
)

type authorEntry struct {
	slot        int
	op          ringOp
	submittedAt time.Time
}

// Driver is the per-cycle scheduler: it owns the fixed slot table, the
// author log, and the ring, and drives every slot through the state
// machine in Cycle. It is the direct generalization of the teacher's
// queue.Runner to a TCP slot table.
type Driver struct {
	ring     ring.Ring
	listenFD int
	slots    []*Slot
	author   []authorEntry
	logger   interfaces.Logger
	observer interfaces.Observer
	clock    func() time.Time
	started  bool
}

// Config parameterizes a Driver.
type Config struct {
	Ring       ring.Ring
	ListenFD   int
	MaxClients int
	Logger     interfaces.Logger
	Observer   interfaces.Observer
	Clock      func() time.Time // defaults to time.Now; tests may override
}

// NewDriver builds a Driver with a pre-allocated slot table of MaxClients
// entries, each NonExistent with id == index, per §4.2's start contract.
func NewDriver(cfg Config) *Driver {
	n := cfg.MaxClients
	if n <= 0 {
		n = constants.DefaultMaxClients
	}
	slots := make([]*Slot, n)
	for i := range slots {
		slots[i] = newSlot(i)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Driver{
		ring:     cfg.Ring,
		listenFD: cfg.ListenFD,
		slots:    slots,
		author:   make([]authorEntry, 0, n),
		logger:   cfg.Logger,
		observer: cfg.Observer,
		clock:    clock,
		started:  true,
	}
}

// Close releases the ring and the listening socket.
func (d *Driver) Close() error {
	var err error
	if d.ring != nil {
		err = d.ring.Close()
	}
	if d.listenFD >= 0 {
		unix.Close(d.listenFD)
	}
	return err
}

// Cycle runs exactly one pass of the §4.3 algorithm: Phase A prepares at
// most one submission per slot, Phase B submits the batch and drains
// exactly that many completions, pairing each with its author.
func (d *Driver) Cycle() error {
	if !d.started {
		return ErrNotStarted
	}
	now := d.clock()

	for i := range d.slots {
		if err := d.stepSlot(i, now); err != nil {
			return err
		}
	}

	if d.observer != nil {
		d.observer.ObserveQueueDepth(d.Occupied(), d.Capacity())
	}

	if len(d.author) == 0 {
		return nil
	}

	if _, err := d.ring.Submit(); err != nil {
		// Fatal ring error: propagated unchanged per §7 item 4.
		return fmt.Errorf("core: ring submit failed: %w", err)
	}

	for k := 0; k < len(d.author); k++ {
		res, err := d.ring.WaitOne()
		if err != nil {
			return fmt.Errorf("core: ring wait failed: %w", err)
		}
		idx := res.UserData()
		if idx < uint64(len(d.author)) {
			entry := d.author[idx]
			d.handleCompletion(entry, res.Value())
		} else if d.logger != nil {
			d.logger.Errorf("core: completion with out-of-range author index %d", idx)
		}
		d.ring.Release(res)
	}

	d.author = d.author[:0]
	return nil
}

// stepSlot advances one slot by Phase A of the algorithm, looping only for
// the mandated Finished_H -> Reading fall-through.
func (d *Driver) stepSlot(i int, now time.Time) error {
	s := d.slots[i]
	for {
		switch s.State {
		case NonExistent:
			return d.prepAccept(i)

		case Idle:
			if now.Sub(s.Activity) > constants.IdleTimeout {
				d.idleClose(i)
				return nil
			}
			return d.prepHeaderRead(i)

		case FinishedH:
			if s.RecvOffset == wire.HeaderSize {
				s.ReqHeaders = wire.Unmarshal(s.headerBuf[:])
				s.RecvOffset = 0
				s.State = Reading
				continue
			}
			s.State = Idle
			return nil

		case Reading:
			return d.prepPayloadRead(i)

		case FinishedR:
			if s.RecvOffset == int(s.ReqHeaders.Size) {
				s.RecvOffset = 0
				s.State = Available
			} else {
				s.State = Reading
			}
			return nil

		case Available, Processing:
			return nil

		case Ready:
			s.WritevOffset = 0
			s.Activity = now
			s.State = WrittingSock
			return nil

		case WrittingSock:
			return d.prepWrite(i)

		case FinishedWS:
			if s.WritevOffset >= s.ResponseSize {
				s.WritevOffset = 0
				s.State = Idle
			} else {
				s.State = WrittingSock
			}
			return nil

		case Kill:
			return d.prepKillClose(i)

		default:
			return fmt.Errorf("core: slot %d has invalid state %d", i, s.State)
		}
	}
}

// recordOrSkip records a successful submission in the author log. A
// ring-full error is swallowed (try again next cycle, unreachable in
// normal operation per ring.ErrRingFull's doc); any other error is fatal
// and propagates out of Cycle. ok reports whether the caller should
// proceed to advance the slot's state.
func (d *Driver) recordOrSkip(i int, op ringOp, err error) (ok bool, fatal error) {
	if err != nil {
		if errors.Is(err, ring.ErrRingFull) {
			return false, nil
		}
		return false, err
	}
	d.author = append(d.author, authorEntry{slot: i, op: op, submittedAt: d.clock()})
	return true, nil
}

func (d *Driver) prepAccept(i int) error {
	err := d.ring.PrepAccept(d.listenFD, uint64(len(d.author)))
	_, fatal := d.recordOrSkip(i, opAccept, err)
	return fatal
}

func (d *Driver) prepHeaderRead(i int) error {
	s := d.slots[i]
	n := wire.HeaderSize - s.RecvOffset
	err := d.ring.PrepRead(s.Sock, s.headerBuf[s.RecvOffset:s.RecvOffset+n], uint64(len(d.author)))
	ok, fatal := d.recordOrSkip(i, opRead, err)
	if fatal != nil || !ok {
		return fatal
	}
	s.State = FinishedH
	return nil
}

func (d *Driver) prepPayloadRead(i int) error {
	s := d.slots[i]
	need := int(s.ReqHeaders.Size)
	s.ensureRequestCapacity(need)
	n := need - s.RecvOffset
	err := d.ring.PrepRead(s.Sock, s.Request[s.RecvOffset:s.RecvOffset+n], uint64(len(d.author)))
	ok, fatal := d.recordOrSkip(i, opRead, err)
	if fatal != nil || !ok {
		return fatal
	}
	s.State = FinishedR
	return nil
}

func (d *Driver) prepWrite(i int) error {
	s := d.slots[i]
	n := s.ResponseSize - s.WritevOffset
	err := d.ring.PrepWrite(s.Sock, s.Response[s.WritevOffset:s.WritevOffset+n], uint64(len(d.author)))
	ok, fatal := d.recordOrSkip(i, opWrite, err)
	if fatal != nil || !ok {
		return fatal
	}
	s.State = FinishedWS
	return nil
}

func (d *Driver) prepKillClose(i int) error {
	s := d.slots[i]
	err := d.ring.PrepClose(s.Sock, uint64(len(d.author)))
	ok, fatal := d.recordOrSkip(i, opClose, err)
	if fatal != nil || !ok {
		return fatal
	}
	s.State = NonExistent
	s.release()
	return nil
}

// idleClose handles the Idle-timeout branch directly with a synchronous
// close rather than routing it through the ring. §4.3 marks this close
// fire-and-forget (not recorded in the author log), which on a real
// completion queue would leave a stray, unpaired CQE for a future WaitOne
// call to misattribute; closing synchronously here sidesteps that without
// changing the observable contract (the slot is NonExistent again within
// the same cycle either way).
func (d *Driver) idleClose(i int) {
	s := d.slots[i]
	if s.Sock >= 0 {
		unix.Close(s.Sock)
	}
	s.State = NonExistent
	s.release()
	if d.observer != nil {
		d.observer.ObserveClose("idle_timeout")
	}
}

func (d *Driver) handleCompletion(entry authorEntry, result int32) {
	slotIdx, op := entry.slot, entry.op
	if slotIdx < 0 || slotIdx >= len(d.slots) {
		return
	}
	s := d.slots[slotIdx]
	latencyNs := uint64(d.clock().Sub(entry.submittedAt).Nanoseconds())

	if result < 0 {
		s.State = Kill
		if d.observer != nil {
			switch op {
			case opRead:
				d.observer.ObserveRead(0, latencyNs, false)
			case opWrite:
				d.observer.ObserveWrite(0, latencyNs, false)
			}
			d.observer.ObserveClose("io_error")
		}
		return
	}

	switch op {
	case opRead:
		s.RecvOffset += int(result)
		if d.observer != nil {
			d.observer.ObserveRead(uint64(result), latencyNs, true)
		}
	case opWrite:
		s.WritevOffset += int(result)
		if d.observer != nil {
			d.observer.ObserveWrite(uint64(result), latencyNs, true)
		}
	case opAccept:
		id := s.ID
		s.reset()
		s.ID = id
		s.Sock = int(result)
		s.State = Idle
		s.Activity = d.clock()
		if d.observer != nil {
			d.observer.ObserveAccept()
		}
	case opClose:
		// No state mutation: the slot already moved to NonExistent when
		// the close was prepared.
	}
}

// GetAvailable returns the first slot in Available state, per §4.4.
func (d *Driver) GetAvailable() (int, bool) {
	for _, s := range d.slots {
		if s.State == Available {
			return s.ID, true
		}
	}
	return 0, false
}

// Claim transitions Available -> Processing for the given slot id.
func (d *Driver) Claim(id int) error {
	s, err := d.slotFor(id)
	if err != nil {
		return err
	}
	if s.State != Available {
		return ErrContractViolation
	}
	s.State = Processing
	return nil
}

// Request returns the claimed slot's request payload and the compression
// algorithm tag from its header. Requires Processing.
func (d *Driver) Request(id int) ([]byte, wire.CompressionAlgorithm, error) {
	s, err := d.slotFor(id)
	if err != nil {
		return nil, 0, err
	}
	if s.State != Processing {
		return nil, 0, ErrContractViolation
	}
	return s.Request, s.ReqHeaders.ComprAlg, nil
}

// ApplyResponse requires Processing, copies payload into a freshly framed
// buffer, and transitions the slot to Ready.
func (d *Driver) ApplyResponse(id int, payload []byte, comprAlg wire.CompressionAlgorithm) error {
	s, err := d.slotFor(id)
	if err != nil {
		return err
	}
	if s.State != Processing {
		return ErrContractViolation
	}
	total := wire.HeaderSize + len(payload)
	buf := getBuffer(total)
	wire.Marshal(wire.MessageHeaders{Size: uint64(len(payload)), ComprAlg: comprAlg}, buf[:wire.HeaderSize])
	copy(buf[wire.HeaderSize:], payload)
	s.Response = buf
	s.ResponseSize = total
	s.State = Ready
	return nil
}

// KillSlot transitions the slot to Kill, validated for range only.
func (d *Driver) KillSlot(id int) error {
	s, err := d.slotFor(id)
	if err != nil {
		return err
	}
	s.State = Kill
	return nil
}

func (d *Driver) slotFor(id int) (*Slot, error) {
	if id < 0 || id >= len(d.slots) {
		return nil, ErrOutOfRange
	}
	return d.slots[id], nil
}

// Occupied reports how many slots are not NonExistent, for the Observer's
// queue-depth gauge.
func (d *Driver) Occupied() int {
	n := 0
	for _, s := range d.slots {
		if s.State != NonExistent {
			n++
		}
	}
	return n
}

// Capacity is the fixed slot table size.
func (d *Driver) Capacity() int { return len(d.slots) }
