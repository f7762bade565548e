// Package notification holds the notification value type and the Center that
// queued notifications are ultimately posted to.
//
// A Notification is an immutable (name, sender, payload) tuple. Senders are
// compared by identity with SameSender, which is also what the queue's
// coalescing uses.
//
// MemoryCenter is a small observer registry:
//
//	center := notification.NewMemoryCenter()
//	id := center.AddObserver("DocumentDidSave", nil, func(ctx context.Context, n notification.Notification) {
//	    // react
//	})
//	defer center.RemoveObserver(id)
//
//	center.Post(ctx, notification.New("DocumentDidSave", doc, nil))
//
// DefaultCenter and SetDefaultCenter expose a replaceable process-wide
// instance for convenience entry points.
package notification
