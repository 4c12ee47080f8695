package typedarray

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is matched by every *ArgumentError.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrHostCall is matched by every *HostError.
	ErrHostCall = errors.New("host call failed")
	// ErrDisposed is returned by operations on a closed TypedArray or ArrayBuffer.
	ErrDisposed = errors.New("handle is disposed")
	// ErrMisaligned is matched by every *AlignmentError.
	ErrMisaligned = errors.New("byte count is not a multiple of the element width")
)

// ArgumentError reports a caller-side precondition violation. It is detected
// locally and the host is never called.
type ArgumentError struct {
	Op     string
	Arg    string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: invalid argument %q: %s", e.Op, e.Arg, e.Reason)
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// HostError is a failure reported by the host bridge. Code is never 0 and
// Message is the host's diagnostic text, unchanged.
//
// Bridges return a *HostError with Op left empty, the binding fills it in.
type HostError struct {
	Op      string
	Code    int
	Message string
}

func (e *HostError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *HostError) Is(target error) bool {
	return target == ErrHostCall
}

// AlignmentError is returned when the host reports a byte count for a bulk
// copy which is not a whole number of elements.
type AlignmentError struct {
	Op    string
	Bytes int
	Width int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("%s: host copied %d bytes, not a multiple of the element width %d", e.Op, e.Bytes, e.Width)
}

func (e *AlignmentError) Is(target error) bool {
	return target == ErrMisaligned
}

// CodeGoError is the code assigned to plain Go errors returned by a bridge.
const CodeGoError = -1

func hostError(op string, err error) *HostError {
	var he *HostError
	if errors.As(err, &he) {
		code := he.Code
		if code == 0 {
			code = CodeGoError
		}
		return &HostError{Op: op, Code: code, Message: he.Message}
	}
	return &HostError{Op: op, Code: CodeGoError, Message: err.Error()}
}
