package notifyqueue

import (
	"log/slog"

	"github.com/dmitrymomot/foundation/pkg/metrics"
	"github.com/dmitrymomot/foundation/pkg/runloop"
)

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger for the queue.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithCollector sets the metrics collector for the queue.
func WithCollector(c metrics.QueueCollector) Option {
	return func(q *Queue) {
		if c != nil {
			q.collector = c
		}
	}
}

// WithDefaultModes sets the modes given to entries enqueued without WithModes.
func WithDefaultModes(modes ...runloop.Mode) Option {
	return func(q *Queue) {
		if len(modes) > 0 {
			q.defaultModes = append([]runloop.Mode(nil), modes...)
		}
	}
}

// EnqueueOption configures a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	mask  CoalesceMask
	modes []runloop.Mode
}

// WithCoalesce drops or replaces buffered duplicates of the notification
// according to mask.
func WithCoalesce(mask CoalesceMask) EnqueueOption {
	return func(o *enqueueOptions) {
		o.mask = mask
	}
}

// WithModes restricts idle delivery to the given run loop modes.
func WithModes(modes ...runloop.Mode) EnqueueOption {
	return func(o *enqueueOptions) {
		if len(modes) > 0 {
			o.modes = append([]runloop.Mode(nil), modes...)
		}
	}
}
