package sstable

import (
	"testing"

	"github.com/aalhour/sstablewriter/internal/vfs"
)

func TestInMemoryTransactionTrackerLifecycle(t *testing.T) {
	tracker := NewInMemoryTransactionTracker()
	desc := NewDescriptor("/tmp/x", "ks", "tbl", "me", 7)

	tracker.TrackNew(desc)
	inFlight := tracker.InFlight()
	if len(inFlight) != 1 || inFlight[0].Generation != 7 {
		t.Fatalf("InFlight() = %v, want one entry for generation 7", inFlight)
	}

	tracker.NotifyCommit(desc)
	if len(tracker.InFlight()) != 0 {
		t.Fatal("InFlight() should be empty after NotifyCommit")
	}
	if tracker.WasAborted(7) {
		t.Fatal("a committed generation must not be reported as aborted")
	}
}

func TestInMemoryTransactionTrackerRecordsAbort(t *testing.T) {
	tracker := NewInMemoryTransactionTracker()
	desc := NewDescriptor("/tmp/x", "ks", "tbl", "me", 9)

	tracker.TrackNew(desc)
	tracker.NotifyAbort(desc)

	if len(tracker.InFlight()) != 0 {
		t.Fatal("InFlight() should be empty after NotifyAbort")
	}
	if !tracker.WasAborted(9) {
		t.Fatal("WasAborted(9) should be true after NotifyAbort")
	}
}

func TestTableWriterTracksAndNotifiesCommit(t *testing.T) {
	tracker := NewInMemoryTransactionTracker()
	desc := NewDescriptor(t.TempDir(), "ks", "tbl", "me", 1)

	w, err := NewTableWriter(vfs.Default(), desc, nil, WithTransactionTracker(tracker))
	if err != nil {
		t.Fatalf("NewTableWriter: %v", err)
	}

	if len(tracker.InFlight()) != 1 {
		t.Fatal("descriptor should be tracked as in-flight once the writer is constructed")
	}

	if _, err := w.Append([]byte("a"), simplePartition("v")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if len(tracker.InFlight()) != 0 {
		t.Fatal("descriptor should no longer be in-flight after commit")
	}
	if tracker.WasAborted(desc.Generation) {
		t.Fatal("a committed writer must not be reported as aborted")
	}
}
