package typedarray

// Ref is an opaque reference to an object in the host's handle table.
type Ref uint32

// Bridge is the host side of the binding. It owns the table mapping Refs to
// host objects and performs every element access and bulk copy.
//
// A failing call returns a *HostError with a non-zero Code and the host's
// diagnostic in Message. Other error types are accepted and treated as
// host failures with code CodeGoError.
//
// Except for Release, Bridge methods are called from one goroutine at a time.
// Release may be called from any goroutine, including a runtime cleanup.
type Bridge interface {
	// NewArray creates a zero-initialised array of kind with length elements.
	NewArray(kind Kind, length int) (Ref, error)

	// NewArrayBuffer creates a zero-filled buffer of byteLength bytes.
	NewArrayBuffer(byteLength int) (Ref, error)

	// NewView creates an array of kind over buffer starting at byteOffset.
	// A negative length means "up to the end of the buffer". The range must
	// lie within the buffer; the host enforces it.
	NewView(kind Kind, buffer Ref, byteOffset, length int) (Ref, error)

	// Kind returns the kind of the object ref points to.
	Kind(ref Ref) (Kind, error)

	// Length returns the element count of an array or the byte length of a buffer.
	Length(ref Ref) (int, error)

	// GetByIndex reads element idx. ok is false if the host slot is undefined.
	GetByIndex(ref Ref, idx int) (v float64, ok bool, err error)

	// SetByIndex writes element idx. If ok is false the slot is set to the
	// host's undefined value and v is ignored.
	SetByIndex(ref Ref, idx int, v float64, ok bool) error

	// CopyTo copies min(array length, count) elements of width bytes each
	// from the host array into dst and returns the number of bytes copied.
	// dst is only valid for the duration of the call.
	CopyTo(ref Ref, dst []byte, count, width int) (int, error)

	// CopyFrom copies min(array length, count) elements of width bytes each
	// from src into the start of the host array and returns the number of
	// bytes copied. src is only valid for the duration of the call.
	CopyFrom(ref Ref, src []byte, count, width int) (int, error)

	// Release drops the host's reference. Releasing an unknown Ref is a no-op.
	Release(ref Ref)
}
