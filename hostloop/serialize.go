package hostloop

import (
	"github.com/dop251/goja"

	typedarray "github.com/dop251/goja_typedarray"
)

type serialBridge struct {
	loop  *EventLoop
	inner typedarray.Bridge
}

// Serialize returns a Bridge that runs every call of b on the loop goroutine.
// The loop must be running (see Start). Release is passed straight through
// since bridges already accept it from any goroutine.
func Serialize(loop *EventLoop, b typedarray.Bridge) typedarray.Bridge {
	return &serialBridge{loop: loop, inner: b}
}

func (s *serialBridge) NewArray(kind typedarray.Kind, length int) (ref typedarray.Ref, err error) {
	s.loop.Do(func(*goja.Runtime) {
		ref, err = s.inner.NewArray(kind, length)
	})
	return
}

func (s *serialBridge) NewArrayBuffer(byteLength int) (ref typedarray.Ref, err error) {
	s.loop.Do(func(*goja.Runtime) {
		ref, err = s.inner.NewArrayBuffer(byteLength)
	})
	return
}

func (s *serialBridge) NewView(kind typedarray.Kind, buffer typedarray.Ref, byteOffset, length int) (ref typedarray.Ref, err error) {
	s.loop.Do(func(*goja.Runtime) {
		ref, err = s.inner.NewView(kind, buffer, byteOffset, length)
	})
	return
}

func (s *serialBridge) Kind(ref typedarray.Ref) (kind typedarray.Kind, err error) {
	s.loop.Do(func(*goja.Runtime) {
		kind, err = s.inner.Kind(ref)
	})
	return
}

func (s *serialBridge) Length(ref typedarray.Ref) (n int, err error) {
	s.loop.Do(func(*goja.Runtime) {
		n, err = s.inner.Length(ref)
	})
	return
}

func (s *serialBridge) GetByIndex(ref typedarray.Ref, idx int) (v float64, ok bool, err error) {
	s.loop.Do(func(*goja.Runtime) {
		v, ok, err = s.inner.GetByIndex(ref, idx)
	})
	return
}

func (s *serialBridge) SetByIndex(ref typedarray.Ref, idx int, v float64, ok bool) (err error) {
	s.loop.Do(func(*goja.Runtime) {
		err = s.inner.SetByIndex(ref, idx, v, ok)
	})
	return
}

func (s *serialBridge) CopyTo(ref typedarray.Ref, dst []byte, count, width int) (n int, err error) {
	s.loop.Do(func(*goja.Runtime) {
		n, err = s.inner.CopyTo(ref, dst, count, width)
	})
	return
}

func (s *serialBridge) CopyFrom(ref typedarray.Ref, src []byte, count, width int) (n int, err error) {
	s.loop.Do(func(*goja.Runtime) {
		n, err = s.inner.CopyFrom(ref, src, count, width)
	})
	return
}

func (s *serialBridge) Release(ref typedarray.Ref) {
	s.inner.Release(ref)
}
