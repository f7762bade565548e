package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/foundation/pkg/logger"
)

// Center is the publish target the queue delivers to.
// Posting to a center with no observers is a no-op.
type Center interface {
	Post(ctx context.Context, n Notification)
}

// ObserverFunc is invoked for every notification matching its registration.
type ObserverFunc func(ctx context.Context, n Notification)

type observer struct {
	id     uuid.UUID
	name   string
	sender any
	fn     ObserverFunc
}

func (o *observer) matches(n Notification) bool {
	if o.name != "" && o.name != n.name {
		return false
	}
	if o.sender != nil && !SameSender(o.sender, n.sender) {
		return false
	}
	return true
}

// MemoryCenter is an in-process observer registry.
// All methods are safe for concurrent use.
type MemoryCenter struct {
	mu        sync.RWMutex
	observers []*observer
	logger    *slog.Logger
}

// CenterOption configures a MemoryCenter.
type CenterOption func(*MemoryCenter)

// WithCenterLogger sets the logger used to report observer panics.
func WithCenterLogger(l *slog.Logger) CenterOption {
	return func(c *MemoryCenter) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewMemoryCenter creates an empty center.
func NewMemoryCenter(opts ...CenterOption) *MemoryCenter {
	c := &MemoryCenter{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddObserver registers fn for notifications named name posted by sender.
// An empty name matches every name and a nil sender matches every sender.
// The returned id is passed to RemoveObserver.
func (c *MemoryCenter) AddObserver(name string, sender any, fn ObserverFunc) uuid.UUID {
	o := &observer{
		id:     uuid.New(),
		name:   name,
		sender: sender,
		fn:     fn,
	}

	c.mu.Lock()
	c.observers = append(c.observers, o)
	c.mu.Unlock()

	return o.id
}

// RemoveObserver unregisters an observer. Unknown ids are ignored.
func (c *MemoryCenter) RemoveObserver(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, o := range c.observers {
		if o.id == id {
			c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered observers.
func (c *MemoryCenter) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.observers)
}

// Post synchronously calls every matching observer in registration order.
// Observers may add or remove observers; changes apply to the next Post.
func (c *MemoryCenter) Post(ctx context.Context, n Notification) {
	c.mu.RLock()
	matched := make([]*observer, 0, len(c.observers))
	for _, o := range c.observers {
		if o.matches(n) {
			matched = append(matched, o)
		}
	}
	c.mu.RUnlock()

	for _, o := range matched {
		c.call(ctx, o, n)
	}
}

func (c *MemoryCenter) call(ctx context.Context, o *observer, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "notification observer panicked",
				logger.Component("notification"),
				logger.Notification(n.name),
				slog.String("observer_id", o.id.String()),
				logger.Error(fmt.Errorf("panic: %v", r)),
			)
		}
	}()
	o.fn(ctx, n)
}

var (
	defaultCenterMu sync.Mutex
	defaultCenter   Center
)

// DefaultCenter returns the process-wide center, creating a MemoryCenter on
// first use. Prefer passing a Center explicitly; this is for top-level wiring.
func DefaultCenter() Center {
	defaultCenterMu.Lock()
	defer defaultCenterMu.Unlock()
	if defaultCenter == nil {
		defaultCenter = NewMemoryCenter()
	}
	return defaultCenter
}

// SetDefaultCenter replaces the process-wide center. Passing nil resets it so
// the next DefaultCenter call creates a fresh one.
func SetDefaultCenter(c Center) {
	defaultCenterMu.Lock()
	defer defaultCenterMu.Unlock()
	defaultCenter = c
}
