package sstable

import (
	"bytes"
	"fmt"
	"testing"
)

func TestIndexSummaryBuilderSamplesOnInterval(t *testing.T) {
	b := NewIndexSummaryBuilder(4, 4, 128)
	for i := 0; i < 16; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		b.MaybeAddEntry(key, int64(i*10), int64(i*10+10), int64(i*20+20))
	}
	// Partitions 0, 4, 8, 12 fall on the stride (count % interval == 0).
	if got, want := b.SampleCount(), 4; got != want {
		t.Fatalf("SampleCount() = %d, want %d", got, want)
	}
}

func TestIndexSummaryBuilderBoundaryToleratesInterleaving(t *testing.T) {
	// Scenario: markIndexSynced and markDataSynced arrive in arbitrary order
	// relative to each other; the boundary must still only advance once both
	// sides cover a given sample.
	b := NewIndexSummaryBuilder(1, 1, 128)
	b.MaybeAddEntry([]byte("a"), 0, 10, 10)
	b.MaybeAddEntry([]byte("b"), 10, 20, 30)
	b.MaybeAddEntry([]byte("c"), 20, 30, 50)

	if _, ok := b.Boundary(); ok {
		t.Fatal("no sync yet, Boundary() should report ok=false")
	}

	// Data races ahead of index.
	b.MarkDataSynced(50)
	if _, ok := b.Boundary(); ok {
		t.Fatal("data synced but index not, boundary must not advance")
	}

	// Index catches up to the first sample only.
	b.MarkIndexSynced(10)
	boundary, ok := b.Boundary()
	if !ok {
		t.Fatal("expected a boundary after first sample is covered on both sides")
	}
	if !bytes.Equal(boundary.LastKey, []byte("a")) {
		t.Fatalf("boundary.LastKey = %q, want %q", boundary.LastKey, "a")
	}

	// Index now covers everything.
	b.MarkIndexSynced(30)
	boundary, ok = b.Boundary()
	if !ok || !bytes.Equal(boundary.LastKey, []byte("c")) {
		t.Fatalf("boundary.LastKey = %q, want %q (ok=%v)", boundary.LastKey, "c", ok)
	}
}

func TestIndexSummaryBuilderMarkRestorePersistsCounters(t *testing.T) {
	// This pins the chosen resolution of the mark/reset Open Question:
	// Mark/Restore persists and restores the running counters rather than
	// forbidding Mark after the first sample.
	b := NewIndexSummaryBuilder(1, 1, 128)
	b.MaybeAddEntry([]byte("a"), 0, 10, 10)

	m := b.Mark()
	if m.count != 1 || m.numSamples != 1 {
		t.Fatalf("Mark() = %+v, want count=1 numSamples=1", m)
	}

	b.MaybeAddEntry([]byte("b"), 10, 20, 20)
	b.MaybeAddEntry([]byte("c"), 20, 30, 30)
	if got := b.SampleCount(); got != 3 {
		t.Fatalf("SampleCount() before restore = %d, want 3", got)
	}

	b.Restore(m)
	if got := b.SampleCount(); got != 1 {
		t.Fatalf("SampleCount() after restore = %d, want 1", got)
	}

	// Appending again after restore must sample against the restored count,
	// not a reset-to-zero count; with interval=1 every partition samples
	// regardless, but count itself must have rewound.
	b.MaybeAddEntry([]byte("b2"), 10, 20, 20)
	if got := b.SampleCount(); got != 2 {
		t.Fatalf("SampleCount() after restore+append = %d, want 2", got)
	}
}

func TestIndexSummaryBuilderIndexIntervalThinsAtBuild(t *testing.T) {
	// minIndexInterval=1 collects densely; indexInterval=4 should thin the
	// retained set to roughly a quarter of the dense sample count at Build
	// time, rather than being ignored.
	b := NewIndexSummaryBuilder(1, 4, 1000)
	for i := 0; i < 40; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		b.MaybeAddEntry(key, int64(i*10), int64(i*10+10), int64(i*20+20))
	}
	if got, want := b.SampleCount(), 40; got != want {
		t.Fatalf("SampleCount() = %d, want %d (dense collection at minIndexInterval)", got, want)
	}

	summary := b.Build([]byte("k000"), []byte("k039"), nil)
	if got, want := len(summary.Entries), 10; got != want {
		t.Fatalf("Build() with indexInterval=4*minIndexInterval kept %d entries, want %d", got, want)
	}
}

func TestIndexSummaryBuilderIndexIntervalCappedByBaseSamplingLevel(t *testing.T) {
	b := NewIndexSummaryBuilder(1, 2, 5)
	for i := 0; i < 40; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		b.MaybeAddEntry(key, int64(i*10), int64(i*10+10), int64(i*20+20))
	}
	summary := b.Build([]byte("k000"), []byte("k039"), nil)
	if got, want := len(summary.Entries), 5; got != want {
		t.Fatalf("Build() kept %d entries, want %d (capped by baseSamplingLevel)", got, want)
	}
}

func TestDownsampleKeepsWithinTargetAndOrder(t *testing.T) {
	samples := make([]SummaryEntry, 100)
	for i := range samples {
		samples[i] = SummaryEntry{Key: []byte(fmt.Sprintf("k%03d", i)), IndexOffset: int64(i)}
	}

	level, kept := downsample(samples, 10)
	if len(kept) != 10 {
		t.Fatalf("downsample kept %d entries, want 10", len(kept))
	}
	if level < 1 {
		t.Fatalf("downsample level = %d, want >= 1", level)
	}
	for i := 1; i < len(kept); i++ {
		if bytes.Compare(kept[i-1].Key, kept[i].Key) >= 0 {
			t.Fatalf("downsample must preserve key order, got %q then %q", kept[i-1].Key, kept[i].Key)
		}
	}
}

func TestDownsampleNoOpBelowTarget(t *testing.T) {
	samples := []SummaryEntry{{Key: []byte("a")}, {Key: []byte("b")}}
	level, kept := downsample(samples, 128)
	if len(kept) != 2 {
		t.Fatalf("downsample kept %d entries, want 2 (below target, no drop)", len(kept))
	}
	if level != 128 {
		t.Fatalf("downsample level = %d, want 128 (full sampling level) when n <= target", level)
	}
}

func TestIndexSummaryBuilderBuildWithBoundaryTruncates(t *testing.T) {
	b := NewIndexSummaryBuilder(1, 1, 128)
	b.MaybeAddEntry([]byte("a"), 0, 10, 10)
	b.MaybeAddEntry([]byte("b"), 10, 20, 20)
	b.MaybeAddEntry([]byte("c"), 20, 30, 30)

	boundary := ReadableBoundary{LastKey: []byte("b"), IndexLength: 20, DataLength: 20, SummaryEntryCount: 2}
	summary := b.Build([]byte("a"), []byte("c"), &boundary)

	if len(summary.Entries) != 2 {
		t.Fatalf("Build with boundary kept %d entries, want 2", len(summary.Entries))
	}
	if !bytes.Equal(summary.LastKey, []byte("b")) {
		t.Fatalf("Build with boundary LastKey = %q, want %q", summary.LastKey, "b")
	}
}
