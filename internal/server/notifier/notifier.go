// Package notifier broadcasts finished compile runs to SSE listeners.
package notifier

import "sync"

// Notifier broadcasts run IDs to all subscribed listeners.
// Each listener holds at most one pending run ID; a newer run replaces an
// unread one.
type Notifier struct {
	mu        sync.Mutex
	listeners map[chan string]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives run IDs as runs complete.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe() chan string {
	ch := make(chan string, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan string) {
	n.mu.Lock()
	if _, ok := n.listeners[ch]; ok {
		delete(n.listeners, ch)
		close(ch)
	}
	n.mu.Unlock()
}

// Broadcast sends runID to all listeners without blocking.
func (n *Notifier) Broadcast(runID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.listeners {
		select {
		case <-ch:
		default:
		}
		ch <- runID
	}
}

// Len returns the number of subscribed listeners.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}
