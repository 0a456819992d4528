package netring

import (
	"errors"
	"syscall"
	"testing"

	"github.com/ehrlich-b/go-netring/internal/core"
)

func TestStructuredError(t *testing.T) {
	err := NewError("CLAIM", ErrCodeContractViolation, "slot not available")

	if err.Op != "CLAIM" {
		t.Errorf("Expected Op=CLAIM, got %s", err.Op)
	}
	if err.Code != ErrCodeContractViolation {
		t.Errorf("Expected Code=ErrCodeContractViolation, got %s", err.Code)
	}

	expected := "netring: slot not available (op=CLAIM)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestSlotError(t *testing.T) {
	err := NewSlotError("APPLY_RESPONSE", 7, ErrCodeContractViolation, "not processing")

	if err.Slot != 7 {
		t.Errorf("Expected Slot=7, got %d", err.Slot)
	}

	expected := "netring: not processing (op=APPLY_RESPONSE, slot=7)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestErrorWithErrno(t *testing.T) {
	err := NewErrorWithErrno("LISTEN", ErrCodeSocketSetup, syscall.EADDRINUSE)

	if err.Sysno != syscall.EADDRINUSE {
		t.Errorf("Expected Sysno=EADDRINUSE, got %v", err.Sysno)
	}
	if err.Errno() != -int(syscall.EADDRINUSE) {
		t.Errorf("Errno() = %d, want %d", err.Errno(), -int(syscall.EADDRINUSE))
	}
}

func TestErrorErrnoZeroWhenUnset(t *testing.T) {
	err := NewError("CLAIM", ErrCodeContractViolation, "slot not available")
	if err.Errno() != 0 {
		t.Errorf("Errno() = %d, want 0", err.Errno())
	}
}

func TestWrapDriverErrContractViolation(t *testing.T) {
	err := wrapDriverErr("CLAIM", 3, core.ErrContractViolation)

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("wrapDriverErr did not produce *Error, got %T", err)
	}
	if e.Code != ErrCodeContractViolation {
		t.Errorf("Code = %s, want ErrCodeContractViolation", e.Code)
	}
	if e.Errno() != -int(syscall.ENOPKG) {
		t.Errorf("Errno() = %d, want %d", e.Errno(), -int(syscall.ENOPKG))
	}
	if !errors.Is(err, core.ErrContractViolation) {
		t.Error("wrapped error should unwrap to core.ErrContractViolation")
	}
}

func TestWrapDriverErrOutOfRange(t *testing.T) {
	err := wrapDriverErr("CLAIM", 999, core.ErrOutOfRange)

	if !IsCode(err, ErrCodeOutOfRange) {
		t.Error("expected ErrCodeOutOfRange")
	}
}

func TestWrapDriverErrNil(t *testing.T) {
	if wrapDriverErr("CLAIM", 0, nil) != nil {
		t.Error("wrapDriverErr(nil) should return nil")
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("TEST", ErrCodeIO, "boom")

	if !IsCode(err, ErrCodeIO) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrCodeNoMemory) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrCodeIO) {
		t.Error("IsCode should return false for nil error")
	}
}

func TestIsErrno(t *testing.T) {
	err := NewErrorWithErrno("TEST", ErrCodeIO, syscall.EIO)

	if !IsErrno(err, syscall.EIO) {
		t.Error("IsErrno should return true for matching errno")
	}
	if IsErrno(err, syscall.EPERM) {
		t.Error("IsErrno should return false for non-matching errno")
	}
	if IsErrno(nil, syscall.EIO) {
		t.Error("IsErrno should return false for nil error")
	}
}

func TestErrorIsByCode(t *testing.T) {
	a := &Error{Code: ErrCodeIO}
	b := &Error{Code: ErrCodeIO, Op: "OTHER"}

	if !errors.Is(a, b) {
		t.Error("errors with matching codes should satisfy errors.Is")
	}
	if errors.Is(a, ErrCodeNoMemory) {
		t.Error("errors.Is against a differing NetringErrorCode should be false")
	}
}

func TestErrnoMapping(t *testing.T) {
	testCases := []struct {
		errno    syscall.Errno
		expected NetringErrorCode
	}{
		{syscall.ENOMEM, ErrCodeNoMemory},
		{syscall.ENOSPC, ErrCodeNoMemory},
		{syscall.ENONET, ErrCodeSocketSetup},
		{syscall.ENOTSOCK, ErrCodeSocketSetup},
		{syscall.EADDRINUSE, ErrCodeSocketSetup},
		{syscall.ENOPKG, ErrCodeContractViolation},
		{syscall.EIO, ErrCodeIO},
	}

	for _, tc := range testCases {
		if code := mapErrnoToCode(tc.errno); code != tc.expected {
			t.Errorf("mapErrnoToCode(%v) = %s, want %s", tc.errno, code, tc.expected)
		}
	}
}
