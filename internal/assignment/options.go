package assignment

import (
	"time"

	"github.com/phrazzld/taskboard-scheduler/internal/events"
	"github.com/phrazzld/taskboard-scheduler/internal/platform/metrics"
)

const defaultWorkers = 4

type options struct {
	workers int
	locker  Locker
	emitter events.EventEmitter
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Service or Reconciler.
type Option func(*options)

// WithWorkers bounds how many subscribers are served concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLocker replaces the in-process per-subscriber lock.
func WithLocker(l Locker) Option {
	return func(o *options) { o.locker = l }
}

// WithEmitter sets where assignment and completion events go.
func WithEmitter(e events.EventEmitter) Option {
	return func(o *options) { o.emitter = e }
}

// WithMetrics sets the collectors to record to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		workers: defaultWorkers,
		emitter: events.NopEmitter{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locker == nil {
		o.locker = NewLocalLocker()
	}
	return o
}
