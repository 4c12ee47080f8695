package hostloop

import (
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	typedarray "github.com/dop251/goja_typedarray"
	"github.com/dop251/goja_typedarray/gojahost"
)

func TestRunWaitsForTimers(t *testing.T) {
	loop := New(nil)
	var result goja.Value
	loop.Run(func(vm *goja.Runtime) {
		_, err := vm.RunString(`
		var a = new Int32Array(3);
		setTimeout(function(i, v) { a[i] = v; }, 5, 1, 42);
		var t = setTimeout(function() { a[2] = -1; }, 10);
		clearTimeout(t);
		`)
		require.NoError(t, err)
	})
	loop.Run(func(vm *goja.Runtime) {
		result = vm.Get("a")
	})

	h, err := gojahost.New(loop.vm)
	require.NoError(t, err)
	ref, _, err := h.Adopt(result)
	require.NoError(t, err)
	a, err := typedarray.Wrap[int32](h, ref)
	require.NoError(t, err)
	s, err := a.ToSlice()
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 42, 0}, s)
}

func TestInterval(t *testing.T) {
	loop := New(nil)
	loop.Run(func(vm *goja.Runtime) {
		_, err := vm.RunString(`
		var count = 0;
		var i = setInterval(function() {
			if (++count === 3) {
				clearInterval(i);
			}
		}, 1);
		`)
		require.NoError(t, err)
	})
	loop.Run(func(vm *goja.Runtime) {
		assert.Equal(t, int64(3), vm.Get("count").ToInteger())
	})
}

func TestThrowingCallbackIsLogged(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	loop := New(nil, WithLogger(log))
	loop.Run(func(vm *goja.Runtime) {
		_, err := vm.RunString(`
		var after = false;
		setTimeout(function() { throw new Error("tick failed"); }, 1);
		setTimeout(function() { after = true; }, 5);
		`)
		require.NoError(t, err)
	})
	loop.Run(func(vm *goja.Runtime) {
		assert.True(t, vm.Get("after").ToBoolean())
	})

	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "callback failed", entries[0].Message)
	assert.Equal(t, "timeout", entries[0].Data["timer"])
	assert.Contains(t, entries[0].Data["error"].(error).Error(), "tick failed")
}

func TestDoRunsOnLoop(t *testing.T) {
	loop := New(nil)
	loop.Start()
	defer loop.Stop()

	var got int64
	loop.Do(func(vm *goja.Runtime) {
		v, err := vm.RunString(`6 * 7`)
		assert.NoError(t, err)
		got = v.ToInteger()
	})
	assert.Equal(t, int64(42), got)

	done := make(chan struct{})
	loop.RunOnLoop(func(vm *goja.Runtime) {
		close(done)
	})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestSerializeConcurrentAccess(t *testing.T) {
	loop := New(nil)
	loop.Start()
	defer loop.Stop()

	var h *gojahost.Host
	loop.Do(func(vm *goja.Runtime) {
		var err error
		h, err = gojahost.New(vm)
		assert.NoError(t, err)
	})
	require.NotNil(t, h)
	b := Serialize(loop, h)

	const workers, size = 8, 64
	arrays := make([]*typedarray.Float64Array, workers)
	for i := range arrays {
		a, err := typedarray.NewLength[float64](b, size)
		require.NoError(t, err)
		arrays[i] = a
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			src := make([]float64, size)
			for i := range src {
				src[i] = float64(w*size + i)
			}
			n, err := arrays[w].CopyFrom(src)
			assert.NoError(t, err)
			assert.Equal(t, size, n)
			assert.NoError(t, arrays[w].Set(0, -1))
			out, err := arrays[w].ToSlice()
			assert.NoError(t, err)
			src[0] = -1
			assert.Equal(t, src, out)
		}(w)
	}
	wg.Wait()

	for _, a := range arrays {
		require.NoError(t, a.Close())
	}
	assert.Zero(t, h.Len())
}

func TestSerializeViews(t *testing.T) {
	loop := New(nil)
	loop.Start()
	defer loop.Stop()

	var h *gojahost.Host
	loop.Do(func(vm *goja.Runtime) {
		var err error
		h, err = gojahost.New(vm)
		assert.NoError(t, err)
	})
	require.NotNil(t, h)
	b := Serialize(loop, h)

	buf, err := typedarray.NewArrayBuffer(b, 4)
	require.NoError(t, err)
	view, err := typedarray.NewViewLength[uint8](buf, 1, 2)
	require.NoError(t, err)
	require.NoError(t, view.Set(1, 200))
	v, ok, err := view.Get(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint8(200), v)
	assert.Equal(t, typedarray.KindUint8, view.Kind())

	all, err := typedarray.NewView[uint8](buf, 0)
	require.NoError(t, err)
	s, err := all.ToSlice()
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 0, 200, 0}, s)

	_, err = typedarray.Wrap[int32](b, view.Ref())
	require.ErrorIs(t, err, typedarray.ErrInvalidArgument)
}
