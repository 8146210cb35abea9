// Package connectivity observes whether the remote store is reachable and
// kicks off a sync each time it becomes reachable.
package connectivity

import (
	"sync"
)

// Probe reports reachability and notifies subscribers on every change.
type Probe interface {
	Reachable() bool
	// OnReachabilityChange registers handler and returns a function that
	// removes it.
	OnReachabilityChange(handler func(reachable bool)) (unsubscribe func())
}

// notifier keeps the current state and the subscriber list shared by the
// probe implementations.
type notifier struct {
	mu        sync.Mutex
	reachable bool
	nextID    int
	handlers  map[int]func(bool)
}

func (n *notifier) Reachable() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reachable
}

func (n *notifier) OnReachabilityChange(handler func(bool)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handlers == nil {
		n.handlers = make(map[int]func(bool))
	}
	id := n.nextID
	n.nextID++
	n.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.handlers, id)
			n.mu.Unlock()
		})
	}
}

// set stores the new state and, when it differs from the old one, calls
// every handler outside the lock. It reports whether the state changed.
func (n *notifier) set(reachable bool) bool {
	n.mu.Lock()
	if n.reachable == reachable {
		n.mu.Unlock()
		return false
	}
	n.reachable = reachable
	handlers := make([]func(bool), 0, len(n.handlers))
	for _, h := range n.handlers {
		handlers = append(handlers, h)
	}
	n.mu.Unlock()

	for _, h := range handlers {
		h(reachable)
	}
	return true
}

// Manual is a Probe driven by explicit calls, for tests and for forcing a
// client offline.
type Manual struct {
	notifier
}

var _ Probe = (*Manual)(nil)

func NewManual(reachable bool) *Manual {
	m := &Manual{}
	m.reachable = reachable
	return m
}

// Set changes the reachability and notifies subscribers on a transition.
func (m *Manual) Set(reachable bool) {
	m.set(reachable)
}
