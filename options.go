package typedarray

import "github.com/sirupsen/logrus"

type Option interface {
	apply(*options)
}

type options struct {
	log      logrus.FieldLogger
	truncate bool
}

type funcOption struct {
	f func(*options)
}

func (fo *funcOption) apply(o *options) {
	fo.f(o)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

// WithLogger sets the logger host failures are reported to (at debug level).
// The default is logrus.StandardLogger().
func WithLogger(log logrus.FieldLogger) Option {
	return newFuncOption(func(o *options) {
		o.log = log
	})
}

// WithTruncatedCounts makes bulk copies round a host byte count down to whole
// elements instead of failing with ErrMisaligned.
func WithTruncatedCounts() Option {
	return newFuncOption(func(o *options) {
		o.truncate = true
	})
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&o)
		}
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	return o
}
