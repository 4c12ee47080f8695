package typedarray

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

type release struct {
	bridge Bridge
	ref    Ref
}

// handle ties a wrapper to one host reference. The reference is released by
// close or, if the wrapper is dropped while still open, by a runtime cleanup.
type handle struct {
	bridge  Bridge
	ref     Ref
	kind    Kind
	opts    options
	closed  atomic.Bool
	cleanup runtime.Cleanup
}

func newHandle(b Bridge, ref Ref, kind Kind, opts options) *handle {
	h := &handle{
		bridge: b,
		ref:    ref,
		kind:   kind,
		opts:   opts,
	}
	h.cleanup = runtime.AddCleanup(h, func(r release) {
		r.bridge.Release(r.ref)
	}, release{bridge: b, ref: ref})
	return h
}

func (h *handle) check(op string) error {
	if h.closed.Load() {
		return fmt.Errorf("%s: %s %d: %w", op, h.kind, h.ref, ErrDisposed)
	}
	return nil
}

func (h *handle) close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	h.cleanup.Stop()
	h.bridge.Release(h.ref)
	return nil
}

// logFault converts a bridge error into a *HostError and logs it.
func logFault(log logrus.FieldLogger, op string, err error) *HostError {
	he := hostError(op, err)
	log.WithFields(logrus.Fields{
		"op":   op,
		"code": he.Code,
	}).Debug(he.Message)
	return he
}

func (h *handle) fault(op string, err error) error {
	return logFault(h.opts.log.WithField("kind", h.kind.String()).WithField("ref", h.ref), op, err)
}

func (h *handle) length(op string) (int, error) {
	if err := h.check(op); err != nil {
		return 0, err
	}
	n, err := h.bridge.Length(h.ref)
	runtime.KeepAlive(h)
	if err != nil {
		return 0, h.fault(op, err)
	}
	return n, nil
}
