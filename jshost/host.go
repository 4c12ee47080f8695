//go:build js && wasm

// Package jshost implements typedarray.Bridge for programs compiled to
// WebAssembly and running inside a JavaScript engine, using syscall/js.
package jshost

import (
	"fmt"
	"sync"
	"syscall/js"

	typedarray "github.com/dop251/goja_typedarray"
)

const (
	CodeException = 1 // a JS exception was thrown
	CodeNoObject  = 3 // the Ref is not in the handle table
	CodeMismatch  = 4 // wrong object kind or element width for the operation
)

var (
	uint8Array  = js.Global().Get("Uint8Array")
	arrayBuffer = js.Global().Get("ArrayBuffer")
)

type entry struct {
	v    js.Value
	kind typedarray.Kind
}

// Host is a handle table of JS values. The zero value is not usable, call New.
type Host struct {
	mu   sync.Mutex
	refs map[typedarray.Ref]entry
	next typedarray.Ref
}

var _ typedarray.Bridge = (*Host)(nil)

func New() *Host {
	return &Host{refs: make(map[typedarray.Ref]entry)}
}

func (h *Host) register(v js.Value, kind typedarray.Kind) typedarray.Ref {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	if h.next == 0 {
		h.next++
	}
	h.refs[h.next] = entry{v: v, kind: kind}
	return h.next
}

func (h *Host) lookup(ref typedarray.Ref, array bool) (entry, error) {
	h.mu.Lock()
	e, ok := h.refs[ref]
	h.mu.Unlock()
	if !ok {
		return e, &typedarray.HostError{Code: CodeNoObject, Message: fmt.Sprintf("no host object for reference %d", ref)}
	}
	if array && !e.kind.IsArray() {
		return e, &typedarray.HostError{Code: CodeMismatch, Message: fmt.Sprintf("TypeError: reference %d is %s, not a typed array", ref, e.kind)}
	}
	return e, nil
}

// Adopt registers an existing typed array or ArrayBuffer.
func (h *Host) Adopt(v js.Value) (typedarray.Ref, typedarray.Kind, error) {
	if v.Type() != js.TypeObject {
		return 0, typedarray.KindInvalid, fmt.Errorf("jshost: %s is not an object: %w", v.Type(), typedarray.ErrInvalidArgument)
	}
	name := v.Get("constructor").Get("name").String()
	kind, ok := typedarray.KindByName(name)
	if !ok {
		return 0, typedarray.KindInvalid, fmt.Errorf("jshost: %s is not a typed array or ArrayBuffer: %w", name, typedarray.ErrInvalidArgument)
	}
	return h.register(v, kind), kind, nil
}

// Value returns the JS value behind ref.
func (h *Host) Value(ref typedarray.Ref) (js.Value, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.refs[ref]
	return e.v, ok
}

// try converts a JS exception thrown while running f into a host error.
func try(f func() error) (err error) {
	defer func() {
		if x := recover(); x != nil {
			if jsErr, ok := x.(js.Error); ok {
				err = &typedarray.HostError{Code: CodeException, Message: jsErr.Value.Call("toString").String()}
				return
			}
			panic(x)
		}
	}()
	return f()
}

func (h *Host) NewArray(kind typedarray.Kind, length int) (ref typedarray.Ref, err error) {
	if !kind.IsArray() {
		return 0, &typedarray.HostError{Code: CodeMismatch, Message: fmt.Sprintf("TypeError: %s is not a typed array kind", kind)}
	}
	err = try(func() error {
		ref = h.register(js.Global().Get(kind.String()).New(length), kind)
		return nil
	})
	return
}

func (h *Host) NewArrayBuffer(byteLength int) (ref typedarray.Ref, err error) {
	err = try(func() error {
		ref = h.register(arrayBuffer.New(byteLength), typedarray.KindArrayBuffer)
		return nil
	})
	return
}

func (h *Host) NewView(kind typedarray.Kind, buffer typedarray.Ref, byteOffset, length int) (ref typedarray.Ref, err error) {
	if !kind.IsArray() {
		return 0, &typedarray.HostError{Code: CodeMismatch, Message: fmt.Sprintf("TypeError: %s is not a typed array kind", kind)}
	}
	buf, err := h.lookup(buffer, false)
	if err != nil {
		return 0, err
	}
	if buf.kind != typedarray.KindArrayBuffer {
		return 0, &typedarray.HostError{Code: CodeMismatch, Message: fmt.Sprintf("TypeError: reference %d is %s, not an ArrayBuffer", buffer, buf.kind)}
	}
	err = try(func() error {
		ctor := js.Global().Get(kind.String())
		var v js.Value
		if length < 0 {
			v = ctor.New(buf.v, byteOffset)
		} else {
			v = ctor.New(buf.v, byteOffset, length)
		}
		ref = h.register(v, kind)
		return nil
	})
	return
}

func (h *Host) Kind(ref typedarray.Ref) (typedarray.Kind, error) {
	e, err := h.lookup(ref, false)
	return e.kind, err
}

func (h *Host) Length(ref typedarray.Ref) (int, error) {
	e, err := h.lookup(ref, false)
	if err != nil {
		return 0, err
	}
	if e.kind == typedarray.KindArrayBuffer {
		return e.v.Get("byteLength").Int(), nil
	}
	return e.v.Get("length").Int(), nil
}

func (h *Host) GetByIndex(ref typedarray.Ref, idx int) (v float64, ok bool, err error) {
	e, err := h.lookup(ref, true)
	if err != nil {
		return 0, false, err
	}
	err = try(func() error {
		val := e.v.Index(idx)
		if val.IsUndefined() || val.IsNull() {
			return nil
		}
		v, ok = val.Float(), true
		return nil
	})
	return
}

func (h *Host) SetByIndex(ref typedarray.Ref, idx int, v float64, ok bool) error {
	e, err := h.lookup(ref, true)
	if err != nil {
		return err
	}
	return try(func() error {
		if ok {
			e.v.SetIndex(idx, v)
		} else {
			e.v.SetIndex(idx, js.Undefined())
		}
		return nil
	})
}

// bytes returns a Uint8Array over the region the array at e covers.
func bytes(e entry, width int) (js.Value, int, error) {
	if width != e.kind.Width() {
		return js.Value{}, 0, &typedarray.HostError{Code: CodeMismatch, Message: fmt.Sprintf("TypeError: element width %d does not match %s", width, e.kind)}
	}
	n := e.v.Get("byteLength").Int()
	return uint8Array.New(e.v.Get("buffer"), e.v.Get("byteOffset"), n), n, nil
}

func (h *Host) CopyTo(ref typedarray.Ref, dst []byte, count, width int) (n int, err error) {
	e, err := h.lookup(ref, true)
	if err != nil {
		return 0, err
	}
	err = try(func() error {
		view, size, err := bytes(e, width)
		if err != nil {
			return err
		}
		n = min(size, count*width, len(dst))
		n = js.CopyBytesToGo(dst[:n], view)
		return nil
	})
	return
}

func (h *Host) CopyFrom(ref typedarray.Ref, src []byte, count, width int) (n int, err error) {
	e, err := h.lookup(ref, true)
	if err != nil {
		return 0, err
	}
	err = try(func() error {
		view, size, err := bytes(e, width)
		if err != nil {
			return err
		}
		n = min(size, count*width, len(src))
		n = js.CopyBytesToJS(view, src[:n])
		return nil
	})
	return
}

func (h *Host) Release(ref typedarray.Ref) {
	h.mu.Lock()
	delete(h.refs, ref)
	h.mu.Unlock()
}
