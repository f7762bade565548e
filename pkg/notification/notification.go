package notification

import (
	"fmt"
	"maps"
	"reflect"
)

// Notification is an immutable (name, sender, payload) value passed from
// producers through the queue to a Center.
type Notification struct {
	name    string
	sender  any
	payload map[string]any
}

// New builds a notification. The payload map is copied, so later changes to
// the caller's map are not observed.
func New(name string, sender any, payload map[string]any) Notification {
	return Notification{
		name:    name,
		sender:  sender,
		payload: maps.Clone(payload),
	}
}

// Name returns the notification name.
func (n Notification) Name() string { return n.name }

// Sender returns the object that posted the notification, or nil.
func (n Notification) Sender() any { return n.sender }

// Payload returns a copy of the payload, or nil when there is none.
func (n Notification) Payload() map[string]any { return maps.Clone(n.payload) }

// Value returns a single payload value.
func (n Notification) Value(key string) (any, bool) {
	v, ok := n.payload[key]
	return v, ok
}

func (n Notification) String() string {
	return fmt.Sprintf("notification(%s, sender=%v, payload=%d keys)", n.name, n.sender, len(n.payload))
}

// SameSender reports whether a and b refer to the same sender.
// Reference types compare by address; other comparable values compare with ==.
// A nil sender only matches nil.
func SameSender(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}

	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return a == b
}
