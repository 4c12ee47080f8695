// Package hostloop runs a goja runtime on a single goroutine and lets other
// goroutines reach it, either by queueing jobs or through Serialize, which
// turns any typedarray.Bridge into one that is safe to call concurrently.
package hostloop

import (
	"time"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"
)

// callback is a script function scheduled by setTimeout or setInterval.
type callback struct {
	fn        goja.Callable
	args      []goja.Value
	cancelled bool
}

type timer struct {
	callback
	timer *time.Timer
}

type interval struct {
	callback
	ticker   *time.Ticker
	stopChan chan struct{}
}

// EventLoop owns a runtime. Everything that touches the runtime, including
// timer callbacks, runs on the loop goroutine.
type EventLoop struct {
	vm      *goja.Runtime
	log     logrus.FieldLogger
	jobChan chan func()
	pending int32
	running bool
}

type Option func(*EventLoop)

// WithLogger sets where errors thrown by timer callbacks are reported.
func WithLogger(log logrus.FieldLogger) Option {
	return func(loop *EventLoop) {
		loop.log = log
	}
}

// New creates a loop around vm, or around a fresh runtime if vm is nil, and
// installs setTimeout, setInterval, clearTimeout and clearInterval.
func New(vm *goja.Runtime, opts ...Option) *EventLoop {
	if vm == nil {
		vm = goja.New()
	}

	loop := &EventLoop{
		vm:      vm,
		log:     logrus.StandardLogger(),
		jobChan: make(chan func()),
	}
	for _, opt := range opts {
		opt(loop)
	}

	vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		return loop.schedule(call, false)
	})
	vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		return loop.schedule(call, true)
	})
	vm.Set("clearTimeout", loop.clearTimeout)
	vm.Set("clearInterval", loop.clearInterval)

	return loop
}

func (loop *EventLoop) schedule(call goja.FunctionCall, repeating bool) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		return nil
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	cb := callback{fn: fn}
	if len(call.Arguments) > 2 {
		cb.args = call.Arguments[2:]
	}
	if repeating {
		return loop.vm.ToValue(loop.addInterval(cb, delay))
	}
	return loop.vm.ToValue(loop.addTimeout(cb, delay))
}

// Run calls fn, then keeps serving timers until none are pending.
// Do not call it while the loop is running in the background.
func (loop *EventLoop) Run(fn func(*goja.Runtime)) {
	fn(loop.vm)
	loop.running = true
	for loop.running && loop.pending > 0 {
		job, ok := <-loop.jobChan
		if !ok {
			break
		}
		job()
	}
}

// Start serves jobs on a new goroutine until Stop is called.
func (loop *EventLoop) Start() {
	go func() {
		loop.running = true
		for job := range loop.jobChan {
			job()
			if !loop.running {
				break
			}
		}
	}()
}

// Stop ends a loop started with Start. No jobs run after it returns.
// Pending timers are left alone.
func (loop *EventLoop) Stop() {
	loop.Do(func(*goja.Runtime) {
		loop.running = false
	})
}

// RunOnLoop queues fn to run on the loop goroutine. Jobs run in the order
// they were queued. vm and values derived from it must not escape fn.
func (loop *EventLoop) RunOnLoop(fn func(*goja.Runtime)) {
	loop.jobChan <- func() {
		fn(loop.vm)
	}
}

// Do runs fn on the loop goroutine and waits for it to return. It must not
// be called from the loop goroutine itself.
func (loop *EventLoop) Do(fn func(*goja.Runtime)) {
	done := make(chan struct{})
	loop.jobChan <- func() {
		defer close(done)
		fn(loop.vm)
	}
	<-done
}

// fire calls a script callback. A callback that throws does not stop the
// loop; the error is logged.
func (loop *EventLoop) fire(kind string, cb *callback) {
	if _, err := cb.fn(nil, cb.args...); err != nil {
		loop.log.WithField("timer", kind).WithError(err).Error("callback failed")
	}
}

func (loop *EventLoop) addTimeout(cb callback, delay time.Duration) *timer {
	t := &timer{callback: cb}
	t.timer = time.AfterFunc(delay, func() {
		loop.jobChan <- func() {
			if t.cancelled {
				return
			}
			t.cancelled = true
			loop.pending--
			loop.fire("timeout", &t.callback)
		}
	})
	loop.pending++
	return t
}

func (loop *EventLoop) addInterval(cb callback, every time.Duration) *interval {
	if every <= 0 {
		every = time.Millisecond
	}
	i := &interval{
		callback: cb,
		ticker:   time.NewTicker(every),
		stopChan: make(chan struct{}),
	}
	go i.tick(loop)
	loop.pending++
	return i
}

func (loop *EventLoop) clearTimeout(t *timer) {
	if t != nil && !t.cancelled {
		t.timer.Stop()
		t.cancelled = true
		loop.pending--
	}
}

func (loop *EventLoop) clearInterval(i *interval) {
	if i != nil && !i.cancelled {
		i.cancelled = true
		close(i.stopChan)
		loop.pending--
	}
}

func (i *interval) tick(loop *EventLoop) {
	defer i.ticker.Stop()
	job := func() {
		if !i.cancelled {
			loop.fire("interval", &i.callback)
		}
	}
	for {
		select {
		case <-i.stopChan:
			return
		case <-i.ticker.C:
			select {
			case loop.jobChan <- job:
			case <-i.stopChan:
				return
			}
		}
	}
}
