// Package runloop provides a cooperative, single-goroutine scheduling context
// that emits two signals to its observers: a safe point after each unit of
// work, and a before-waiting signal when it is about to go idle in a mode.
//
// The loop owns no deferred state itself. Components such as the notification
// queue subscribe with AddObserver and decide what to do on each signal.
//
//	loop := runloop.New()
//	q := notifyqueue.New(center)
//	q.Attach(loop)
//
//	go func() { _ = loop.Run(ctx, runloop.DefaultMode) }()
//
//	loop.Perform(func(ctx context.Context) {
//	    q.Enqueue(ctx, n, notifyqueue.PostWhenIdle)
//	})
//
// Perform is the hand-off point for other goroutines; everything else runs on
// the goroutine driving Run or RunOnce.
package runloop
