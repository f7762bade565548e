// Package notifyqueue buffers notifications and posts them to a center when
// the run loop the queue is attached to reaches a safe point or is about to
// wait for work.
//
// # Posting styles
//
//   - PostNow delivers immediately and never touches the buffer.
//   - PostASAP delivers at the next safe point of the run loop.
//   - PostWhenIdle delivers when the run loop is about to wait.
//
// Buffered entries of either style are delivered only while the loop runs in
// one of the entry's modes (WithModes, default runloop.DefaultMode).
//
// ASAP entries always drain before WhenIdle entries. Within a style, entries
// are delivered in enqueue order.
//
// # Coalescing
//
// WithCoalesce deduplicates against entries already buffered. CoalesceOnName
// matches by notification name, CoalesceOnSender by sender identity, and both
// bits together require both to match. The first duplicate in the same style
// is replaced in place; all other duplicates are removed.
//
//	rl := runloop.New()
//	q := notifyqueue.New(notification.DefaultCenter())
//	q.Attach(rl)
//
//	q.Enqueue(ctx, notification.New("DocumentChanged", doc, nil), notifyqueue.PostWhenIdle,
//		notifyqueue.WithCoalesce(notifyqueue.CoalesceOnName|notifyqueue.CoalesceOnSender),
//	)
//
// # Concurrency
//
// A Queue is owned by the goroutine driving its run loop and is not safe for
// concurrent use. Other goroutines enqueue through RunLoop.Perform:
//
//	rl.Perform(func(ctx context.Context) {
//		q.Enqueue(ctx, n, notifyqueue.PostASAP)
//	})
//
// ForLoop and Default give every run loop a lazily created queue bound to the
// default center. Prefer passing queues explicitly.
package notifyqueue
