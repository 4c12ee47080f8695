// Package gojahost implements typedarray.Bridge on top of a goja runtime.
//
// The runtime is not goroutine-safe: apart from Release, a Host must only be
// used from the goroutine that runs the runtime. Use hostloop.Serialize to
// call it from elsewhere.
package gojahost

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"

	typedarray "github.com/dop251/goja_typedarray"
)

// Codes carried by the *typedarray.HostError values a Host returns.
const (
	CodeException   = 1 // a JS exception was thrown
	CodeInterrupted = 2 // the runtime was interrupted
	CodeNoObject    = 3 // the Ref is not in the handle table
	CodeMismatch    = 4 // wrong object kind or element width for the operation
)

const helpers = `({
	get: function(a, i) { return a[i]; },
	set: function(a, i, v) { a[i] = v; },
	length: function(a) { return a instanceof ArrayBuffer ? a.byteLength : a.length; },
	view: function(a) { return [a.buffer, a.byteOffset, a.byteLength]; },
	tag: function(a) {
		if (a instanceof ArrayBuffer) {
			return "ArrayBuffer";
		}
		if (ArrayBuffer.isView(a) && !(a instanceof DataView)) {
			return a[Symbol.toStringTag];
		}
		return undefined;
	}
})`

type entry struct {
	obj  *goja.Object
	kind typedarray.Kind
}

// Host keeps a handle table of goja objects and serves the bridge calls
// against them.
type Host struct {
	vm  *goja.Runtime
	log logrus.FieldLogger

	get, set, length, view, tag goja.Callable

	mu   sync.Mutex
	refs map[typedarray.Ref]entry
	next typedarray.Ref
}

type Option func(*Host)

func WithLogger(log logrus.FieldLogger) Option {
	return func(h *Host) {
		h.log = log
	}
}

// New creates a Host for vm. It evaluates a few helper functions in vm.
func New(vm *goja.Runtime, opts ...Option) (*Host, error) {
	h := &Host{
		vm:   vm,
		log:  logrus.StandardLogger(),
		refs: make(map[typedarray.Ref]entry),
	}
	for _, opt := range opts {
		opt(h)
	}
	v, err := vm.RunString(helpers)
	if err != nil {
		return nil, fmt.Errorf("gojahost: compiling helpers: %w", err)
	}
	obj := v.ToObject(vm)
	for name, dst := range map[string]*goja.Callable{
		"get":    &h.get,
		"set":    &h.set,
		"length": &h.length,
		"view":   &h.view,
		"tag":    &h.tag,
	} {
		fn, ok := goja.AssertFunction(obj.Get(name))
		if !ok {
			return nil, fmt.Errorf("gojahost: helper %s is not a function", name)
		}
		*dst = fn
	}
	return h, nil
}

// Runtime returns the runtime h operates on.
func (h *Host) Runtime() *goja.Runtime {
	return h.vm
}

func (h *Host) register(obj *goja.Object, kind typedarray.Kind) typedarray.Ref {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	if h.next == 0 {
		h.next++
	}
	ref := h.next
	h.refs[ref] = entry{obj: obj, kind: kind}
	h.log.WithField("ref", ref).WithField("kind", kind.String()).Trace("registered")
	return ref
}

func (h *Host) lookup(ref typedarray.Ref) (entry, error) {
	h.mu.Lock()
	e, ok := h.refs[ref]
	h.mu.Unlock()
	if !ok {
		return entry{}, &typedarray.HostError{Code: CodeNoObject, Message: fmt.Sprintf("no host object for reference %d", ref)}
	}
	return e, nil
}

func (h *Host) lookupArray(ref typedarray.Ref) (entry, error) {
	e, err := h.lookup(ref)
	if err != nil {
		return e, err
	}
	if !e.kind.IsArray() {
		return e, &typedarray.HostError{Code: CodeMismatch, Message: fmt.Sprintf("TypeError: reference %d is %s, not a typed array", ref, e.kind)}
	}
	return e, nil
}

// Adopt registers an existing typed array or ArrayBuffer and returns its
// reference along with its kind.
func (h *Host) Adopt(v goja.Value) (typedarray.Ref, typedarray.Kind, error) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return 0, typedarray.KindInvalid, fmt.Errorf("gojahost: %s is not an object: %w", describe(v), typedarray.ErrInvalidArgument)
	}
	tag, err := h.tag(goja.Undefined(), obj)
	if err != nil {
		return 0, typedarray.KindInvalid, fault(err)
	}
	kind, ok := typedarray.KindByName(tag.String())
	if !ok {
		return 0, typedarray.KindInvalid, fmt.Errorf("gojahost: %s is not a typed array or ArrayBuffer: %w", describe(v), typedarray.ErrInvalidArgument)
	}
	return h.register(obj, kind), kind, nil
}

// Object returns the goja object behind ref.
func (h *Host) Object(ref typedarray.Ref) (*goja.Object, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.refs[ref]
	return e.obj, ok
}

// Len returns the number of live references.
func (h *Host) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.refs)
}

func describe(v goja.Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}

// fault turns an error returned by goja into a host error.
func fault(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		msg := ex.Error()
		if val := ex.Value(); val != nil {
			msg = val.String()
		}
		return &typedarray.HostError{Code: CodeException, Message: msg}
	}
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		return &typedarray.HostError{Code: CodeInterrupted, Message: ie.Error()}
	}
	return err
}
