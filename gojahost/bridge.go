package gojahost

import (
	"fmt"

	"github.com/dop251/goja"

	typedarray "github.com/dop251/goja_typedarray"
)

var _ typedarray.Bridge = (*Host)(nil)

func (h *Host) construct(kind typedarray.Kind, args ...interface{}) (typedarray.Ref, error) {
	ctor := h.vm.Get(kind.String())
	if ctor == nil || goja.IsUndefined(ctor) {
		return 0, &typedarray.HostError{Code: CodeMismatch, Message: fmt.Sprintf("ReferenceError: %s is not defined", kind)}
	}
	vals := make([]goja.Value, len(args))
	for i, a := range args {
		vals[i] = h.vm.ToValue(a)
	}
	obj, err := h.vm.New(ctor, vals...)
	if err != nil {
		return 0, fault(err)
	}
	return h.register(obj, kind), nil
}

func (h *Host) NewArray(kind typedarray.Kind, length int) (typedarray.Ref, error) {
	if !kind.IsArray() {
		return 0, &typedarray.HostError{Code: CodeMismatch, Message: fmt.Sprintf("TypeError: %s is not a typed array kind", kind)}
	}
	return h.construct(kind, length)
}

func (h *Host) NewArrayBuffer(byteLength int) (typedarray.Ref, error) {
	if byteLength < 0 {
		return 0, &typedarray.HostError{Code: CodeException, Message: fmt.Sprintf("RangeError: Invalid array buffer length %d", byteLength)}
	}
	ab := h.vm.NewArrayBuffer(make([]byte, byteLength))
	return h.register(h.vm.ToValue(ab).ToObject(h.vm), typedarray.KindArrayBuffer), nil
}

func (h *Host) NewView(kind typedarray.Kind, buffer typedarray.Ref, byteOffset, length int) (typedarray.Ref, error) {
	if !kind.IsArray() {
		return 0, &typedarray.HostError{Code: CodeMismatch, Message: fmt.Sprintf("TypeError: %s is not a typed array kind", kind)}
	}
	buf, err := h.lookup(buffer)
	if err != nil {
		return 0, err
	}
	if buf.kind != typedarray.KindArrayBuffer {
		return 0, &typedarray.HostError{Code: CodeMismatch, Message: fmt.Sprintf("TypeError: reference %d is %s, not an ArrayBuffer", buffer, buf.kind)}
	}
	if length < 0 {
		return h.construct(kind, buf.obj, byteOffset)
	}
	return h.construct(kind, buf.obj, byteOffset, length)
}

func (h *Host) Kind(ref typedarray.Ref) (typedarray.Kind, error) {
	e, err := h.lookup(ref)
	if err != nil {
		return typedarray.KindInvalid, err
	}
	return e.kind, nil
}

func (h *Host) Length(ref typedarray.Ref) (int, error) {
	e, err := h.lookup(ref)
	if err != nil {
		return 0, err
	}
	v, err := h.length(goja.Undefined(), e.obj)
	if err != nil {
		return 0, fault(err)
	}
	return int(v.ToInteger()), nil
}

func (h *Host) GetByIndex(ref typedarray.Ref, idx int) (float64, bool, error) {
	e, err := h.lookupArray(ref)
	if err != nil {
		return 0, false, err
	}
	v, err := h.get(goja.Undefined(), e.obj, h.vm.ToValue(idx))
	if err != nil {
		return 0, false, fault(err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, false, nil
	}
	return v.ToFloat(), true, nil
}

func (h *Host) SetByIndex(ref typedarray.Ref, idx int, v float64, ok bool) error {
	e, err := h.lookupArray(ref)
	if err != nil {
		return err
	}
	val := goja.Undefined()
	if ok {
		val = h.vm.ToValue(v)
	}
	if _, err := h.set(goja.Undefined(), e.obj, h.vm.ToValue(idx), val); err != nil {
		return fault(err)
	}
	return nil
}

// bytes returns the region of the backing buffer the array at e covers.
func (h *Host) bytes(e entry, width int) ([]byte, error) {
	if width != e.kind.Width() {
		return nil, &typedarray.HostError{Code: CodeMismatch, Message: fmt.Sprintf("TypeError: element width %d does not match %s", width, e.kind)}
	}
	v, err := h.view(goja.Undefined(), e.obj)
	if err != nil {
		return nil, fault(err)
	}
	parts := v.ToObject(h.vm)
	ab, ok := parts.Get("0").Export().(goja.ArrayBuffer)
	if !ok {
		return nil, &typedarray.HostError{Code: CodeMismatch, Message: fmt.Sprintf("TypeError: %s is not backed by an ArrayBuffer", e.kind)}
	}
	if ab.Detached() {
		return nil, &typedarray.HostError{Code: CodeException, Message: "TypeError: ArrayBuffer is detached"}
	}
	off := int(parts.Get("1").ToInteger())
	n := int(parts.Get("2").ToInteger())
	return ab.Bytes()[off : off+n], nil
}

func (h *Host) CopyTo(ref typedarray.Ref, dst []byte, count, width int) (int, error) {
	e, err := h.lookupArray(ref)
	if err != nil {
		return 0, err
	}
	src, err := h.bytes(e, width)
	if err != nil {
		return 0, err
	}
	n := min(len(src), count*width, len(dst))
	return copy(dst[:n], src[:n]), nil
}

func (h *Host) CopyFrom(ref typedarray.Ref, src []byte, count, width int) (int, error) {
	e, err := h.lookupArray(ref)
	if err != nil {
		return 0, err
	}
	dst, err := h.bytes(e, width)
	if err != nil {
		return 0, err
	}
	n := min(len(dst), count*width, len(src))
	return copy(dst[:n], src[:n]), nil
}

func (h *Host) Release(ref typedarray.Ref) {
	h.mu.Lock()
	_, ok := h.refs[ref]
	delete(h.refs, ref)
	h.mu.Unlock()
	if ok {
		h.log.WithField("ref", ref).Trace("released")
	}
}
