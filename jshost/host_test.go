//go:build js && wasm

package jshost

import (
	"syscall/js"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	typedarray "github.com/dop251/goja_typedarray"
)

func TestRoundTrip(t *testing.T) {
	h := New()
	a, err := typedarray.FromSlice(h, []int32{1, -2, 3})
	require.NoError(t, err)
	defer a.Close()

	v, ok := h.Value(a.Ref())
	require.True(t, ok)
	assert.Equal(t, -2, v.Index(1).Int())

	v.SetIndex(2, 30)
	out := make([]int32, 3)
	n, err := a.CopyTo(out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int32{1, -2, 30}, out)
}

func TestAdopt(t *testing.T) {
	h := New()
	ref, kind, err := h.Adopt(js.Global().Get("Float32Array").New(2))
	require.NoError(t, err)
	assert.Equal(t, typedarray.KindFloat32, kind)

	f, err := typedarray.Wrap[float32](h, ref)
	require.NoError(t, err)
	require.NoError(t, f.Set(1, 0.5))
	s, err := f.ToSlice()
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5}, s)
	require.NoError(t, f.Close())

	_, _, err = h.Adopt(js.ValueOf(42))
	require.ErrorIs(t, err, typedarray.ErrInvalidArgument)
}

func TestHostErrors(t *testing.T) {
	h := New()
	_, err := h.Length(7)
	var he *typedarray.HostError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, CodeNoObject, he.Code)

	_, err = typedarray.NewLength[uint8](h, -1)
	require.ErrorIs(t, err, typedarray.ErrHostCall)
	require.ErrorAs(t, err, &he)
	assert.Equal(t, CodeException, he.Code)
	assert.Contains(t, he.Message, "RangeError")
}
