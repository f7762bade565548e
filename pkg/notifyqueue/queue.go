package notifyqueue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/foundation/pkg/logger"
	"github.com/dmitrymomot/foundation/pkg/metrics"
	"github.com/dmitrymomot/foundation/pkg/notification"
	"github.com/dmitrymomot/foundation/pkg/runloop"
)

// Queue buffers notifications and posts them to a Center when the run loop it
// is attached to reaches a safe point (PostASAP) or is about to idle
// (PostWhenIdle). ASAP and WhenIdle entries form two independent FIFO
// sub-queues, and both only drain while the loop runs in one of the entry's
// modes.
//
// A Queue belongs to one run loop and must only be used from the goroutine
// driving that loop. Other goroutines hand work over with RunLoop.Perform.
//
// Entries whose modes never match the loop's mode stay buffered
// indefinitely; there is no starvation bound.
type Queue struct {
	center       notification.Center
	asap         []Entry
	idle         []Entry
	defaultModes []runloop.Mode
	detach       func()
	logger       *slog.Logger
	collector    metrics.QueueCollector
}

// New creates a queue that posts to center.
func New(center notification.Center, opts ...Option) *Queue {
	q := &Queue{
		center:       center,
		defaultModes: []runloop.Mode{runloop.DefaultMode},
		logger:       slog.Default(),
		collector:    metrics.Noop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds n to the queue.
//
// PostNow delivers immediately and leaves the buffer untouched. For the other
// styles, duplicates selected by WithCoalesce are dealt with first: the
// earliest duplicate in the same sub-queue is replaced in place by n, and all
// remaining duplicates in either sub-queue are removed. Without a duplicate to
// replace, n is appended to the tail of its sub-queue.
func (q *Queue) Enqueue(ctx context.Context, n notification.Notification, style PostingStyle, opts ...EnqueueOption) {
	o := enqueueOptions{
		mask:  CoalesceNone,
		modes: q.defaultModes,
	}
	for _, opt := range opts {
		opt(&o)
	}

	switch style {
	case PostNow:
		q.collector.IncEnqueued(style.String())
		q.deliver(ctx, n, style)
		return
	case PostASAP, PostWhenIdle:
	default:
		q.logger.LogAttrs(ctx, slog.LevelWarn, "unknown posting style, using asap",
			logger.Component("notifyqueue"),
			logger.Notification(n.Name()),
			logger.PostingStyle(style.String()),
		)
		style = PostASAP
	}

	entry := Entry{
		Notification: n,
		Style:        style,
		Mask:         o.mask,
		Modes:        o.modes,
	}

	own, other := &q.asap, &q.idle
	if style == PostWhenIdle {
		own, other = &q.idle, &q.asap
	}

	replaced := false
	if o.mask != CoalesceNone {
		var dropped int
		*own, replaced, dropped = coalesce(*own, entry)
		dropped += removeMatching(other, n, o.mask)
		if replaced {
			dropped++
		}
		for range dropped {
			q.collector.IncCoalesced()
		}
	}
	if !replaced {
		*own = append(*own, entry)
	}

	q.collector.IncEnqueued(style.String())
	q.reportPending()
}

// DequeueMatching removes every buffered entry that matches n under mask,
// without delivering it. No match is a no-op.
func (q *Queue) DequeueMatching(n notification.Notification, mask CoalesceMask) {
	if mask == CoalesceNone {
		return
	}
	removed := removeMatching(&q.asap, n, mask) + removeMatching(&q.idle, n, mask)
	if removed > 0 {
		q.reportPending()
	}
}

// Len returns the number of buffered entries in both sub-queues.
func (q *Queue) Len() int {
	return len(q.asap) + len(q.idle)
}

// Pending returns a copy of the buffered entries for style, in delivery order.
func (q *Queue) Pending(style PostingStyle) []Entry {
	switch style {
	case PostASAP:
		return append([]Entry(nil), q.asap...)
	case PostWhenIdle:
		return append([]Entry(nil), q.idle...)
	default:
		return nil
	}
}

// SafePoint drains the ASAP entries eligible in mode. It implements
// runloop.Observer.
func (q *Queue) SafePoint(ctx context.Context, mode runloop.Mode) {
	q.drain(ctx, &q.asap, mode)
}

// BeforeWaiting drains the ASAP entries eligible in mode, then the WhenIdle
// entries eligible in mode, each in order. It implements runloop.Observer.
func (q *Queue) BeforeWaiting(ctx context.Context, mode runloop.Mode) {
	q.drain(ctx, &q.asap, mode)
	q.drain(ctx, &q.idle, mode)
}

// Attach subscribes the queue to rl, replacing any previous attachment.
func (q *Queue) Attach(rl *runloop.RunLoop) {
	q.Detach()
	q.detach = rl.AddObserver(q)
}

// Detach unsubscribes the queue from its run loop, if any.
func (q *Queue) Detach() {
	if q.detach != nil {
		q.detach()
		q.detach = nil
	}
}

// drain delivers the entries of sub that are eligible in mode and keeps the
// rest in order. Entries are taken out of the buffer before delivery; anything
// enqueued by observers during delivery waits for the next signal.
func (q *Queue) drain(ctx context.Context, sub *[]Entry, mode runloop.Mode) {
	if len(*sub) == 0 {
		return
	}

	var batch []Entry
	kept := make([]Entry, 0, len(*sub))
	for _, e := range *sub {
		if e.EligibleIn(mode) {
			batch = append(batch, e)
		} else {
			kept = append(kept, e)
		}
	}
	if len(batch) == 0 {
		return
	}
	*sub = kept
	q.reportPending()

	q.logger.LogAttrs(ctx, slog.LevelDebug, "draining notifications",
		logger.Component("notifyqueue"),
		logger.PostingStyle(batch[0].Style.String()),
		logger.Mode(string(mode)),
		logger.Count(len(batch)),
	)

	for _, e := range batch {
		q.deliver(ctx, e.Notification, e.Style)
	}
}

func (q *Queue) deliver(ctx context.Context, n notification.Notification, style PostingStyle) {
	if q.center != nil {
		q.center.Post(ctx, n)
	}
	q.collector.IncDelivered(style.String())
}

func (q *Queue) reportPending() {
	q.collector.SetPending(PostASAP.String(), len(q.asap))
	q.collector.SetPending(PostWhenIdle.String(), len(q.idle))
}

// coalesce replaces the first duplicate of e in entries with e and drops the
// rest. It reports whether a replacement happened and how many were dropped.
func coalesce(entries []Entry, e Entry) ([]Entry, bool, int) {
	out := entries[:0]
	replaced := false
	dropped := 0
	for _, cur := range entries {
		if !Matches(cur.Notification, e.Notification, e.Mask) {
			out = append(out, cur)
			continue
		}
		if !replaced {
			out = append(out, e)
			replaced = true
			continue
		}
		dropped++
	}
	clear(entries[len(out):])
	return out, replaced, dropped
}

func removeMatching(entries *[]Entry, n notification.Notification, mask CoalesceMask) int {
	out := (*entries)[:0]
	removed := 0
	for _, cur := range *entries {
		if Matches(cur.Notification, n, mask) {
			removed++
			continue
		}
		out = append(out, cur)
	}
	clear((*entries)[len(out):])
	*entries = out
	return removed
}

var (
	defaultMu    sync.Mutex
	defaultQueue *Queue
	loopQueues   = map[*runloop.RunLoop]*Queue{}
)

// ForLoop returns the queue associated with rl, creating one bound to
// notification.DefaultCenter on first use.
func ForLoop(rl *runloop.RunLoop) *Queue {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return forLoopLocked(rl)
}

func forLoopLocked(rl *runloop.RunLoop) *Queue {
	if q, ok := loopQueues[rl]; ok {
		return q
	}
	q := New(notification.DefaultCenter())
	q.Attach(rl)
	loopQueues[rl] = q
	return q
}

// Default returns the process-wide queue: the one set with SetDefault, or
// the queue of runloop.Main. It is meant for top-level convenience; pass
// queues explicitly wherever possible.
func Default() *Queue {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultQueue == nil {
		defaultQueue = forLoopLocked(runloop.Main())
	}
	return defaultQueue
}

// SetDefault replaces the process-wide queue. Nil resets it.
func SetDefault(q *Queue) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultQueue = q
}

// Forget drops the queue associated with rl and detaches it.
func Forget(rl *runloop.RunLoop) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if q, ok := loopQueues[rl]; ok {
		q.Detach()
		delete(loopQueues, rl)
		if defaultQueue == q {
			defaultQueue = nil
		}
	}
}
