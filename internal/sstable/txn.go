// txn.go implements the transaction tracker collaborator: the orchestrator
// registers itself with an external transaction tracker before any file is
// created so that a crash leaves no untracked temp files.
package sstable

import "sync"

// TransactionTracker is notified of every writer's lifecycle so a crash
// mid-build can be detected and cleaned up: a writer registered but never
// reporting commit or abort indicates an untracked temp file set.
type TransactionTracker interface {
	// TrackNew registers a writer's descriptor before any of its files are
	// created.
	TrackNew(descriptor Descriptor)

	// NotifyCommit reports that descriptor's writer committed successfully.
	NotifyCommit(descriptor Descriptor)

	// NotifyAbort reports that descriptor's writer aborted.
	NotifyAbort(descriptor Descriptor)
}

// InMemoryTransactionTracker is the default TransactionTracker: it keeps an
// in-memory set of generations currently tracked as "in flight" (registered
// but not yet committed or aborted), useful for tests and for a process
// that performs its own startup-time temp-file sweep.
type InMemoryTransactionTracker struct {
	mu       sync.Mutex
	inFlight map[int64]Descriptor
	aborted  map[int64]Descriptor
}

// NewInMemoryTransactionTracker constructs an empty tracker.
func NewInMemoryTransactionTracker() *InMemoryTransactionTracker {
	return &InMemoryTransactionTracker{
		inFlight: make(map[int64]Descriptor),
		aborted:  make(map[int64]Descriptor),
	}
}

// TrackNew implements TransactionTracker.
func (t *InMemoryTransactionTracker) TrackNew(descriptor Descriptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight[descriptor.Generation] = descriptor
}

// NotifyCommit implements TransactionTracker.
func (t *InMemoryTransactionTracker) NotifyCommit(descriptor Descriptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, descriptor.Generation)
}

// NotifyAbort implements TransactionTracker.
func (t *InMemoryTransactionTracker) NotifyAbort(descriptor Descriptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, descriptor.Generation)
	t.aborted[descriptor.Generation] = descriptor
}

// InFlight returns the generations currently registered but not yet
// resolved, for tests asserting no writer was left untracked.
func (t *InMemoryTransactionTracker) InFlight() []Descriptor {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Descriptor, 0, len(t.inFlight))
	for _, d := range t.inFlight {
		out = append(out, d)
	}
	return out
}

// WasAborted reports whether generation was ever reported aborted, for
// tests asserting the tracker observed the abort notification.
func (t *InMemoryTransactionTracker) WasAborted(generation int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.aborted[generation]
	return ok
}
