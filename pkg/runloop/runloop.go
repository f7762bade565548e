package runloop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/foundation/pkg/logger"
)

// Mode tags what a run loop is currently doing. Idle-time work can be
// restricted to a set of modes.
type Mode string

// DefaultMode is the mode used when callers do not pick one.
const DefaultMode Mode = "default"

// Observer receives the two scheduling signals a run loop emits.
type Observer interface {
	// SafePoint fires after each unit of work run in mode, when it is safe
	// to run deferred callbacks.
	SafePoint(ctx context.Context, mode Mode)
	// BeforeWaiting fires when the loop has no pending work and is about to
	// block waiting for more while running in mode.
	BeforeWaiting(ctx context.Context, mode Mode)
}

type registration struct {
	id       uint64
	observer Observer
}

// RunLoop is a cooperative scheduling context. Work is handed to it with
// Perform from any goroutine and executed by the single goroutine that calls
// Run or RunOnce. Observers are called on that goroutine.
type RunLoop struct {
	mu        sync.Mutex
	work      []func(context.Context)
	observers []registration
	nextID    uint64
	mode      Mode
	wake      chan struct{}
	logger    *slog.Logger
}

// Option configures a RunLoop.
type Option func(*RunLoop)

// WithLogger sets the logger used to report panicking work items.
func WithLogger(l *slog.Logger) Option {
	return func(rl *RunLoop) {
		if l != nil {
			rl.logger = l
		}
	}
}

// New creates an idle run loop.
func New(opts ...Option) *RunLoop {
	rl := &RunLoop{
		mode:   DefaultMode,
		wake:   make(chan struct{}, 1),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// AddObserver subscribes o to the loop's signals. The returned function
// unsubscribes it and is safe to call more than once.
func (rl *RunLoop) AddObserver(o Observer) (remove func()) {
	rl.mu.Lock()
	rl.nextID++
	id := rl.nextID
	rl.observers = append(rl.observers, registration{id: id, observer: o})
	rl.mu.Unlock()

	return func() {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		for i, r := range rl.observers {
			if r.id == id {
				rl.observers = append(rl.observers[:i:i], rl.observers[i+1:]...)
				return
			}
		}
	}
}

// Perform schedules fn to run on the loop's goroutine. It is the only method
// intended to be called from other goroutines while the loop is running.
func (rl *RunLoop) Perform(fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	rl.mu.Lock()
	rl.work = append(rl.work, fn)
	rl.mu.Unlock()

	select {
	case rl.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of work items waiting to run.
func (rl *RunLoop) Pending() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.work)
}

// CurrentMode returns the mode of the current or most recent pass.
func (rl *RunLoop) CurrentMode() Mode {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.mode
}

// RunOnce performs a single pass in mode: every work item queued at the start
// of the pass runs in order with a SafePoint signal after each. If nothing was
// queued meanwhile, observers then get BeforeWaiting. It returns the number of
// work items executed.
func (rl *RunLoop) RunOnce(ctx context.Context, mode Mode) int {
	if mode == "" {
		mode = DefaultMode
	}

	rl.mu.Lock()
	rl.mode = mode
	batch := rl.work
	rl.work = nil
	rl.mu.Unlock()

	for _, fn := range batch {
		rl.execute(ctx, fn)
		for _, o := range rl.snapshot() {
			o.SafePoint(ctx, mode)
		}
	}

	if len(batch) == 0 {
		// Deferred work enqueued outside any work item still gets its safe point.
		for _, o := range rl.snapshot() {
			o.SafePoint(ctx, mode)
		}
	}

	if rl.Pending() == 0 {
		for _, o := range rl.snapshot() {
			o.BeforeWaiting(ctx, mode)
		}
	}

	return len(batch)
}

// Run drives the loop in mode until ctx is done, blocking while there is no
// work. It returns ctx.Err().
func (rl *RunLoop) Run(ctx context.Context, mode Mode) error {
	for {
		rl.RunOnce(ctx, mode)
		if rl.Pending() > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rl.wake:
		}
	}
}

func (rl *RunLoop) snapshot() []Observer {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	out := make([]Observer, len(rl.observers))
	for i, r := range rl.observers {
		out[i] = r.observer
	}
	return out
}

func (rl *RunLoop) execute(ctx context.Context, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			rl.logger.LogAttrs(ctx, slog.LevelError, "run loop work item panicked",
				logger.Component("runloop"),
				logger.Mode(string(rl.CurrentMode())),
				logger.Error(fmt.Errorf("panic: %v", r)),
			)
		}
	}()
	fn(ctx)
}

var (
	mainMu   sync.Mutex
	mainLoop *RunLoop
)

// Main returns the process-wide run loop, creating it on first use. It is
// meant for top-level convenience; components should receive a *RunLoop.
func Main() *RunLoop {
	mainMu.Lock()
	defer mainMu.Unlock()
	if mainLoop == nil {
		mainLoop = New()
	}
	return mainLoop
}

// SetMain replaces the process-wide run loop. Nil resets it.
func SetMain(rl *RunLoop) {
	mainMu.Lock()
	defer mainMu.Unlock()
	mainLoop = rl
}
