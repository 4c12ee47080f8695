package typedarray

import (
	"runtime"
	"unsafe"
)

// borrow pins s for the duration of fn and passes fn a byte view over its
// elements. The pin is released on every return path. fn must not retain raw.
func borrow[T Element](s []T, fn func(raw []byte) (int, error)) (int, error) {
	if len(s) == 0 {
		return fn(nil)
	}
	var pinner runtime.Pinner
	pinner.Pin(&s[0])
	defer pinner.Unpin()
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
	return fn(raw)
}
