// Package typedarray binds host-resident typed arrays (Int32Array,
// Float64Array, ...) to Go slices. Every operation is a single synchronous
// round trip through a Bridge; the package keeps no state besides the host
// reference.
package typedarray

import "runtime"

// TypedArray is a Go wrapper around one host typed array whose elements have
// the Go type T.
type TypedArray[T Element] struct {
	h *handle
}

type (
	Int8Array    = TypedArray[int8]
	Uint8Array   = TypedArray[uint8]
	Int16Array   = TypedArray[int16]
	Uint16Array  = TypedArray[uint16]
	Int32Array   = TypedArray[int32]
	Uint32Array  = TypedArray[uint32]
	Float32Array = TypedArray[float32]
	Float64Array = TypedArray[float64]
)

// Segment addresses Count elements of Array starting at Offset.
type Segment[T Element] struct {
	Array  []T
	Offset int
	Count  int
}

func newTypedArray[T Element](b Bridge, op string, opts []Option, create func(kind Kind) (Ref, error)) (*TypedArray[T], error) {
	if b == nil {
		return nil, &ArgumentError{Op: op, Arg: "bridge", Reason: "is nil"}
	}
	o := buildOptions(opts)
	kind := KindOf[T]()
	ref, err := create(kind)
	if err != nil {
		return nil, logFault(o.log.WithField("kind", kind.String()), op, err)
	}
	return &TypedArray[T]{h: newHandle(b, ref, kind, o)}, nil
}

// New asks the host for an empty array.
func New[T Element](b Bridge, opts ...Option) (*TypedArray[T], error) {
	return NewLength[T](b, 0, opts...)
}

// NewLength asks the host for a zero-initialised array of length elements.
func NewLength[T Element](b Bridge, length int, opts ...Option) (*TypedArray[T], error) {
	return newTypedArray[T](b, "new", opts, func(kind Kind) (Ref, error) {
		return b.NewArray(kind, length)
	})
}

// NewView creates an array over buf starting at byteOffset and extending to
// the end of the buffer.
func NewView[T Element](buf *ArrayBuffer, byteOffset int, opts ...Option) (*TypedArray[T], error) {
	return newView[T](buf, byteOffset, -1, opts)
}

// NewViewLength creates an array of length elements over buf starting at byteOffset.
func NewViewLength[T Element](buf *ArrayBuffer, byteOffset, length int, opts ...Option) (*TypedArray[T], error) {
	if length < 0 {
		return nil, &ArgumentError{Op: "newView", Arg: "length", Reason: "is negative"}
	}
	return newView[T](buf, byteOffset, length, opts)
}

func newView[T Element](buf *ArrayBuffer, byteOffset, length int, opts []Option) (*TypedArray[T], error) {
	const op = "newView"
	if buf == nil {
		return nil, &ArgumentError{Op: op, Arg: "buffer", Reason: "is nil"}
	}
	if err := buf.h.check(op); err != nil {
		return nil, err
	}
	a, err := newTypedArray[T](buf.h.bridge, op, opts, func(kind Kind) (Ref, error) {
		return buf.h.bridge.NewView(kind, buf.h.ref, byteOffset, length)
	})
	runtime.KeepAlive(buf.h)
	return a, err
}

// Wrap takes ownership of an existing host array reference. It is meant for
// marshalling layers that receive references from the host. The host's kind
// for ref must match T.
func Wrap[T Element](b Bridge, ref Ref, opts ...Option) (*TypedArray[T], error) {
	const op = "wrap"
	if b == nil {
		return nil, &ArgumentError{Op: op, Arg: "bridge", Reason: "is nil"}
	}
	o := buildOptions(opts)
	kind, err := b.Kind(ref)
	if err != nil {
		return nil, logFault(o.log.WithField("ref", ref), op, err)
	}
	want := KindOf[T]()
	if !kind.compatible(want) {
		return nil, &ArgumentError{Op: op, Arg: "ref", Reason: "host object is " + kind.String() + ", not " + want.String()}
	}
	return &TypedArray[T]{h: newHandle(b, ref, kind, o)}, nil
}

// FromSlice creates a host array of len(s) elements and copies s into it.
func FromSlice[T Element](b Bridge, s []T, opts ...Option) (*TypedArray[T], error) {
	if s == nil {
		return nil, &ArgumentError{Op: "fromSlice", Arg: "source", Reason: "slice is nil"}
	}
	a, err := NewLength[T](b, len(s), opts...)
	if err != nil {
		return nil, err
	}
	if _, err := a.CopyFrom(s); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Ref returns the host reference. It stays valid until Close.
func (a *TypedArray[T]) Ref() Ref {
	return a.h.ref
}

// Kind returns the host kind, which for []uint8 may be KindUint8Clamped.
func (a *TypedArray[T]) Kind() Kind {
	return a.h.kind
}

// Length returns the current element count as reported by the host.
func (a *TypedArray[T]) Length() (int, error) {
	return a.h.length("length")
}

func (a *TypedArray[T]) ByteLength() (int, error) {
	n, err := a.h.length("byteLength")
	return n * a.h.kind.Width(), err
}

// Get returns element i. ok is false if the host slot is undefined, which is
// what hosts report for an index outside the array.
func (a *TypedArray[T]) Get(i int) (v T, ok bool, err error) {
	const op = "get"
	if err = a.h.check(op); err != nil {
		return
	}
	f, ok, err := a.h.bridge.GetByIndex(a.h.ref, i)
	runtime.KeepAlive(a.h)
	if err != nil {
		return v, false, a.h.fault(op, err)
	}
	if !ok {
		return v, false, nil
	}
	return T(f), true, nil
}

// Set writes v at index i.
func (a *TypedArray[T]) Set(i int, v T) error {
	return a.set(i, float64(v), true)
}

// Unset writes the host's undefined value at index i. Typed arrays store it
// as 0 (integers) or NaN (floats).
func (a *TypedArray[T]) Unset(i int) error {
	return a.set(i, 0, false)
}

func (a *TypedArray[T]) set(i int, v float64, ok bool) error {
	const op = "set"
	if err := a.h.check(op); err != nil {
		return err
	}
	err := a.h.bridge.SetByIndex(a.h.ref, i, v, ok)
	runtime.KeepAlive(a.h)
	if err != nil {
		return a.h.fault(op, err)
	}
	return nil
}

// CopyTo copies min(Length(), len(dst)) elements into dst and returns the
// number of elements copied. On error the contents of dst are unspecified.
func (a *TypedArray[T]) CopyTo(dst []T) (int, error) {
	const op = "copyTo"
	if dst == nil {
		return 0, &ArgumentError{Op: op, Arg: "target", Reason: "slice is nil"}
	}
	if err := a.h.check(op); err != nil {
		return 0, err
	}
	width := a.h.kind.Width()
	n, err := borrow(dst, func(raw []byte) (int, error) {
		return a.h.bridge.CopyTo(a.h.ref, raw, len(dst), width)
	})
	runtime.KeepAlive(a.h)
	if err != nil {
		return 0, a.h.fault(op, err)
	}
	return a.elements(op, n)
}

// CopyFrom copies all of src into the start of the array.
func (a *TypedArray[T]) CopyFrom(src []T) (int, error) {
	return a.CopyFromRange(src, 0, len(src))
}

// CopyFromSegment copies seg into the start of the array.
func (a *TypedArray[T]) CopyFromSegment(seg Segment[T]) (int, error) {
	return a.CopyFromRange(seg.Array, seg.Offset, seg.Count)
}

// CopyFromRange copies src[offset:offset+count] into the start of the array
// and returns the number of elements copied. On error the contents of the
// host array are unspecified.
func (a *TypedArray[T]) CopyFromRange(src []T, offset, count int) (int, error) {
	const op = "copyFrom"
	if src == nil {
		return 0, &ArgumentError{Op: op, Arg: "source", Reason: "slice is nil"}
	}
	if offset < 0 || offset > len(src) {
		return 0, &ArgumentError{Op: op, Arg: "offset", Reason: "out of range"}
	}
	if count < 0 || count > len(src)-offset {
		return 0, &ArgumentError{Op: op, Arg: "count", Reason: "out of range"}
	}
	if err := a.h.check(op); err != nil {
		return 0, err
	}
	width := a.h.kind.Width()
	n, err := borrow(src[offset:offset+count], func(raw []byte) (int, error) {
		return a.h.bridge.CopyFrom(a.h.ref, raw, count, width)
	})
	runtime.KeepAlive(a.h)
	if err != nil {
		return 0, a.h.fault(op, err)
	}
	return a.elements(op, n)
}

// ToSlice returns a new slice holding a copy of the array.
func (a *TypedArray[T]) ToSlice() ([]T, error) {
	n, err := a.Length()
	if err != nil {
		return nil, err
	}
	out := make([]T, n)
	c, err := a.CopyTo(out)
	if err != nil {
		return nil, err
	}
	return out[:c], nil
}

// Close releases the host reference. Further calls fail with ErrDisposed.
// Closing twice is a no-op.
func (a *TypedArray[T]) Close() error {
	return a.h.close()
}

func (a *TypedArray[T]) elements(op string, n int) (int, error) {
	width := a.h.kind.Width()
	if n%width != 0 && !a.h.opts.truncate {
		return n / width, &AlignmentError{Op: op, Bytes: n, Width: width}
	}
	return n / width, nil
}
