package netring

import (
	"net"
	"time"

	"github.com/ehrlich-b/go-netring/internal/constants"
	"github.com/ehrlich-b/go-netring/internal/wire"
)

// AsyncState is a stepwise client's position in the pc_async_step state
// machine described in §4.5.
type AsyncState int

const (
	Nothing AsyncState = iota
	InputHeaders
	InputPayload
	OutputHeaders
	OutputPayload
	Done
)

func (s AsyncState) String() string {
	switch s {
	case Nothing:
		return "Nothing"
	case InputHeaders:
		return "InputHeaders"
	case InputPayload:
		return "InputPayload"
	case OutputHeaders:
		return "OutputHeaders"
	case OutputPayload:
		return "OutputPayload"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// AsyncClient is the stepwise non-blocking framing peer. Each call to Step
// performs whatever forward progress is immediately available on conn and
// returns without waiting for the peer: a deadline one microsecond out is
// installed before every underlying Read/Write, so each call waits at most
// that long, the Go stand-in for the original's O_NONBLOCK fd plus EAGAIN.
type AsyncClient struct {
	conn  Conn
	state AsyncState

	reqHeaders wire.MessageHeaders
	input      []byte
	writeOffset int

	hdrBuf      [wire.HeaderSize]byte
	readHdrBuf  [wire.HeaderSize]byte
	respHeaders wire.MessageHeaders
	output      []byte
	readOffset  int

	timeout time.Duration
}

// NewAsyncClient wraps conn for stepwise, non-blocking driving.
func NewAsyncClient(conn Conn) *AsyncClient {
	return &AsyncClient{conn: conn}
}

// SetTimeout records the deadline the host event loop is expected to
// enforce; the stepwise client does not schedule timers itself, per §4.5.
func (a *AsyncClient) SetTimeout(d time.Duration) {
	a.timeout = d
}

// State reports the machine's current state.
func (a *AsyncClient) State() AsyncState {
	return a.state
}

func isWouldBlock(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// AsyncInput seeds the machine with an outbound request and performs one
// round of forward progress immediately. Only legal from Nothing or Done.
func (a *AsyncClient) AsyncInput(payload []byte, comprAlg wire.CompressionAlgorithm) error {
	if a.state != Nothing && a.state != Done {
		return NewError("ASYNC_INPUT", ErrCodeContractViolation, "async client busy")
	}
	a.reqHeaders = wire.MessageHeaders{Size: uint64(len(payload)), ComprAlg: comprAlg}
	a.input = payload
	a.writeOffset = 0
	a.readOffset = 0
	a.output = nil
	a.state = InputHeaders
	return a.Step()
}

// AsyncOutput is only legal in Done; it hands over a fresh copy of the
// received payload and headers and clears the machine back to Nothing.
func (a *AsyncClient) AsyncOutput() ([]byte, wire.MessageHeaders, error) {
	if a.state != Done {
		return nil, wire.MessageHeaders{}, NewError("ASYNC_OUTPUT", ErrCodeContractViolation, "async client not done")
	}
	out := make([]byte, len(a.output))
	copy(out, a.output)
	h := a.respHeaders
	a.output = nil
	a.input = nil
	a.state = Nothing
	return out, h, nil
}

// cancel resets the machine to Nothing on any negative underlying I/O
// result, per §4.5.
func (a *AsyncClient) cancel() {
	a.writeOffset = 0
	a.readOffset = 0
	a.state = Nothing
}

// Step drives the machine forward as far as it can go without blocking,
// folding zero-length transitions (a size-0 payload, a size-0 response)
// into the same call rather than requiring a separate no-op round trip.
func (a *AsyncClient) Step() error {
	for {
		switch a.state {
		case Nothing, Done:
			return nil

		case InputHeaders:
			wire.Marshal(a.reqHeaders, a.hdrBuf[:])
			if err := a.conn.SetWriteDeadline(time.Now().Add(time.Microsecond)); err != nil {
				return err
			}
			n, err := a.conn.Write(a.hdrBuf[a.writeOffset:wire.HeaderSize])
			a.writeOffset += n
			if err != nil {
				if isWouldBlock(err) {
					return nil
				}
				a.cancel()
				return err
			}
			if a.writeOffset == wire.HeaderSize {
				a.writeOffset = 0
				a.state = InputPayload
				continue
			}
			return nil

		case InputPayload:
			if len(a.input) == 0 {
				a.writeOffset = 0
				a.state = OutputHeaders
				continue
			}
			if err := a.conn.SetWriteDeadline(time.Now().Add(time.Microsecond)); err != nil {
				return err
			}
			n, err := a.conn.Write(a.input[a.writeOffset:])
			a.writeOffset += n
			if err != nil {
				if isWouldBlock(err) {
					return nil
				}
				a.cancel()
				return err
			}
			if a.writeOffset == len(a.input) {
				a.writeOffset = 0
				a.state = OutputHeaders
				continue
			}
			return nil

		case OutputHeaders:
			if err := a.conn.SetReadDeadline(time.Now().Add(time.Microsecond)); err != nil {
				return err
			}
			n, err := a.conn.Read(a.readHdrBuf[a.readOffset:wire.HeaderSize])
			a.readOffset += n
			if err != nil {
				if isWouldBlock(err) {
					return nil
				}
				a.cancel()
				return err
			}
			if a.readOffset == wire.HeaderSize {
				h := wire.Unmarshal(a.readHdrBuf[:])
				if h.Size > constants.MaxPayloadSize {
					a.cancel()
					return NewError("ASYNC_STEP", ErrCodeNoMemory, "advertised response size exceeds max payload")
				}
				a.respHeaders = h
				a.output = make([]byte, h.Size)
				a.readOffset = 0
				a.state = OutputPayload
				continue
			}
			return nil

		case OutputPayload:
			if len(a.output) == 0 {
				a.state = Done
				return nil
			}
			if err := a.conn.SetReadDeadline(time.Now().Add(time.Microsecond)); err != nil {
				return err
			}
			n, err := a.conn.Read(a.output[a.readOffset:])
			a.readOffset += n
			if err != nil {
				if isWouldBlock(err) {
					return nil
				}
				a.cancel()
				return err
			}
			if a.readOffset == len(a.output) {
				a.state = Done
			}
			return nil

		default:
			return nil
		}
	}
}
