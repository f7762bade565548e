package notifyqueue

import (
	"slices"

	"github.com/dmitrymomot/foundation/pkg/notification"
	"github.com/dmitrymomot/foundation/pkg/runloop"
)

// PostingStyle decides when a queued notification may be delivered.
type PostingStyle int

const (
	// PostWhenIdle delivers when the run loop is about to wait in one of the
	// entry's modes.
	PostWhenIdle PostingStyle = iota + 1
	// PostASAP delivers at the next safe point of the run loop.
	PostASAP
	// PostNow delivers synchronously inside Enqueue and is never buffered.
	PostNow
)

func (s PostingStyle) String() string {
	switch s {
	case PostWhenIdle:
		return "when_idle"
	case PostASAP:
		return "asap"
	case PostNow:
		return "now"
	default:
		return "unknown"
	}
}

// CoalesceMask selects which fields must be equal for two notifications to
// be treated as duplicates.
type CoalesceMask uint8

const (
	CoalesceNone     CoalesceMask = 0
	CoalesceOnName   CoalesceMask = 1 << 0
	CoalesceOnSender CoalesceMask = 1 << 1
)

// Matches reports whether a and b are duplicates under mask. Name equality is
// required when CoalesceOnName is set and sender identity when
// CoalesceOnSender is set. CoalesceNone never matches.
func Matches(a, b notification.Notification, mask CoalesceMask) bool {
	if mask&(CoalesceOnName|CoalesceOnSender) == 0 {
		return false
	}
	if mask&CoalesceOnName != 0 && a.Name() != b.Name() {
		return false
	}
	if mask&CoalesceOnSender != 0 && !notification.SameSender(a.Sender(), b.Sender()) {
		return false
	}
	return true
}

// Entry is a buffered notification together with its scheduling attributes.
type Entry struct {
	Notification notification.Notification
	Style        PostingStyle
	Mask         CoalesceMask
	Modes        []runloop.Mode
}

// EligibleIn reports whether the entry may be delivered while the loop runs in mode.
func (e Entry) EligibleIn(mode runloop.Mode) bool {
	return slices.Contains(e.Modes, mode)
}
