// Package netring provides the main API for a completion-queue-driven TCP
// request/response server: bootstrap, the handoff API (GetAvailable/Claim/
// ApplyResponse/Kill), and blocking and stepwise clients.
package netring

import (
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/ehrlich-b/go-netring/internal/core"
	"github.com/ehrlich-b/go-netring/internal/ring"
)

// Error represents a structured netring error with context and errno mapping.
type Error struct {
	Op    string // Operation that failed (e.g., "CLAIM", "APPLY_RESPONSE")
	Slot  int    // Slot id (-1 if not applicable)
	Code  NetringErrorCode
	Sysno syscall.Errno // Kernel errno (0 if not applicable)
	Msg   string        // Human-readable message
	Inner error         // Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Slot >= 0 {
		parts = append(parts, fmt.Sprintf("slot=%d", e.Slot))
	}
	if e.Sysno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Sysno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("netring: %s (%s)", msg, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("netring: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support for code-only comparison.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if code, ok := target.(NetringErrorCode); ok {
		return e.Code == code
	}
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// Errno gives callers the -errno-style integer contract spec §6 describes:
// zero when no kernel errno applies, otherwise the negative errno value
// (e.g. -ENOMEM).
func (e *Error) Errno() int {
	if e.Sysno == 0 {
		return 0
	}
	return -int(e.Sysno)
}

// NetringErrorCode is a high-level error category, comparable with
// errors.Is independent of the specific message or errno.
type NetringErrorCode string

func (c NetringErrorCode) Error() string {
	return string(c)
}

const (
	// ErrCodeContractViolation marks a handoff call made outside its
	// required slot state (-ENOPKG per §6).
	ErrCodeContractViolation NetringErrorCode = "contract violation"
	// ErrCodeOutOfRange marks a slot id outside the table.
	ErrCodeOutOfRange NetringErrorCode = "slot id out of range"
	// ErrCodeSocketSetup marks a bind/listen/ring-init failure during
	// server bootstrap, or a failed client Dial/TLSDial.
	ErrCodeSocketSetup NetringErrorCode = "socket setup failed"
	// ErrCodeNoMemory marks an allocation failure (-ENOMEM per §6).
	ErrCodeNoMemory NetringErrorCode = "insufficient memory"
	// ErrCodeIO marks a raw syscall or ring I/O failure.
	ErrCodeIO NetringErrorCode = "I/O error"
	// ErrCodeNotStarted marks a Cycle call before Start.
	ErrCodeNotStarted NetringErrorCode = "networker not started"
)

// NewError creates a new structured error with no errno attached.
func NewError(op string, code NetringErrorCode, msg string) *Error {
	return &Error{Op: op, Slot: -1, Code: code, Msg: msg}
}

// NewSlotError creates a new structured error scoped to a slot id.
func NewSlotError(op string, slot int, code NetringErrorCode, msg string) *Error {
	return &Error{Op: op, Slot: slot, Code: code, Msg: msg}
}

// NewErrorWithErrno creates a new structured error carrying a kernel errno.
func NewErrorWithErrno(op string, code NetringErrorCode, errno syscall.Errno) *Error {
	return &Error{Op: op, Slot: -1, Code: code, Sysno: errno, Msg: errno.Error()}
}

// wrapDriverErr translates the internal/core sentinel errors (and any
// fatal ring error) into the structured *Error type, attaching the
// -errno-style code §6/§7 call for. It is the single place the root
// package crosses from the driver's plain sentinels into the public
// error taxonomy.
func wrapDriverErr(op string, slot int, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, core.ErrContractViolation):
		return &Error{Op: op, Slot: slot, Code: ErrCodeContractViolation, Sysno: syscall.ENOPKG, Msg: err.Error(), Inner: err}
	case errors.Is(err, core.ErrOutOfRange):
		return &Error{Op: op, Slot: slot, Code: ErrCodeOutOfRange, Msg: err.Error(), Inner: err}
	case errors.Is(err, core.ErrNotStarted):
		return &Error{Op: op, Slot: slot, Code: ErrCodeNotStarted, Msg: err.Error(), Inner: err}
	case errors.Is(err, ring.ErrRingFull):
		return &Error{Op: op, Slot: slot, Code: ErrCodeIO, Msg: err.Error(), Inner: err}
	default:
		code := ErrCodeIO
		var errno syscall.Errno
		if errors.As(err, &errno) {
			code = mapErrnoToCode(errno)
		}
		return &Error{Op: op, Slot: slot, Code: code, Sysno: errno, Msg: err.Error(), Inner: err}
	}
}

// mapErrnoToCode maps a raw syscall errno to a netring error code.
func mapErrnoToCode(errno syscall.Errno) NetringErrorCode {
	switch errno {
	case syscall.ENOMEM, syscall.ENOSPC:
		return ErrCodeNoMemory
	case syscall.ENONET, syscall.ENOTSOCK, syscall.EADDRINUSE, syscall.EADDRNOTAVAIL:
		return ErrCodeSocketSetup
	case syscall.ENOPKG:
		return ErrCodeContractViolation
	default:
		return ErrCodeIO
	}
}

// IsCode checks if an error matches a specific error code.
func IsCode(err error, code NetringErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsErrno checks if an error matches a specific errno.
func IsErrno(err error, errno syscall.Errno) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Sysno == errno
	}
	return false
}
