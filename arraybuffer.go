package typedarray

// ArrayBuffer is a raw host byte buffer that typed arrays can view.
type ArrayBuffer struct {
	h *handle
}

// NewArrayBuffer asks the host for a zero-filled buffer of byteLength bytes.
func NewArrayBuffer(b Bridge, byteLength int, opts ...Option) (*ArrayBuffer, error) {
	const op = "newArrayBuffer"
	if b == nil {
		return nil, &ArgumentError{Op: op, Arg: "bridge", Reason: "is nil"}
	}
	o := buildOptions(opts)
	ref, err := b.NewArrayBuffer(byteLength)
	if err != nil {
		return nil, logFault(o.log.WithField("kind", KindArrayBuffer.String()), op, err)
	}
	return &ArrayBuffer{h: newHandle(b, ref, KindArrayBuffer, o)}, nil
}

// WrapArrayBuffer takes ownership of an existing host buffer reference.
func WrapArrayBuffer(b Bridge, ref Ref, opts ...Option) (*ArrayBuffer, error) {
	const op = "wrapArrayBuffer"
	if b == nil {
		return nil, &ArgumentError{Op: op, Arg: "bridge", Reason: "is nil"}
	}
	o := buildOptions(opts)
	kind, err := b.Kind(ref)
	if err != nil {
		return nil, logFault(o.log.WithField("ref", ref), op, err)
	}
	if kind != KindArrayBuffer {
		return nil, &ArgumentError{Op: op, Arg: "ref", Reason: "host object is " + kind.String()}
	}
	return &ArrayBuffer{h: newHandle(b, ref, kind, o)}, nil
}

func (b *ArrayBuffer) Ref() Ref {
	return b.h.ref
}

func (b *ArrayBuffer) ByteLength() (int, error) {
	return b.h.length("byteLength")
}

// Close releases the host reference. Views created from the buffer stay valid.
func (b *ArrayBuffer) Close() error {
	return b.h.close()
}
