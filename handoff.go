package netring

import "github.com/ehrlich-b/go-netring/internal/wire"

// GetAvailable returns the id of the first slot holding a complete,
// unclaimed request, per §4.4. The second return is false if none is
// ready.
func (n *Networker) GetAvailable() (int, bool) {
	return n.driver.GetAvailable()
}

// Claim transitions a slot from Available to Processing, handing
// ownership of its request buffer to the caller until ApplyResponse or
// Kill. Calling Claim on a slot not in Available returns a
// *Error{Code: ErrCodeContractViolation}.
func (n *Networker) Claim(id int) error {
	return wrapDriverErr("CLAIM", id, n.driver.Claim(id))
}

// Request returns the claimed slot's request payload. The returned slice
// is owned by the driver and is only valid until the next ApplyResponse
// or Kill call for this id.
func (n *Networker) Request(id int) ([]byte, wire.CompressionAlgorithm, error) {
	req, alg, err := n.driver.Request(id)
	if err != nil {
		return nil, 0, wrapDriverErr("REQUEST", id, err)
	}
	return req, alg, nil
}

// ApplyResponse frames payload and queues it for writing back to the
// slot's connection, transitioning Processing -> Ready. Calling
// ApplyResponse on a slot not in Processing returns a
// *Error{Code: ErrCodeContractViolation}.
func (n *Networker) ApplyResponse(id int, payload []byte, comprAlg wire.CompressionAlgorithm) error {
	return wrapDriverErr("APPLY_RESPONSE", id, n.driver.ApplyResponse(id, payload, comprAlg))
}

// Kill marks a slot for a forced close on the next Cycle, bypassing
// whatever state it is currently in.
func (n *Networker) Kill(id int) error {
	return wrapDriverErr("KILL", id, n.driver.KillSlot(id))
}
