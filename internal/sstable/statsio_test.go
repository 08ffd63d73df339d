package sstable

import (
	"bytes"
	"os"
	"testing"

	"github.com/aalhour/sstablewriter/internal/vfs"
)

func TestWriteStatsMetadataThenReadRoundtrips(t *testing.T) {
	desc := testDescriptor(t)
	sink, err := OpenSink(vfs.Default(), desc, Statistics)
	if err != nil {
		t.Fatalf("OpenSink: %v", err)
	}

	projector := newStatsProjector()
	projector.OpenPartition([]byte("a"), LiveDeletionTime)
	projector.ObserveRow([][]byte{[]byte("c1")}, 3, 100, -1, 0)
	projector.ClosePartition(50)
	stats := projector.Finalize([]byte("a"), []byte("z"), 42)

	if err := WriteStatsMetadata(sink, stats, 3); err != nil {
		t.Fatalf("WriteStatsMetadata: %v", err)
	}
	if err := sink.PrepareToCommit(); err != nil {
		t.Fatalf("PrepareToCommit: %v", err)
	}
	if err := sink.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	raw, err := os.ReadFile(desc.Path(Statistics))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	got, _, err := ReadStatsMetadata(raw)
	if err != nil {
		t.Fatalf("ReadStatsMetadata: %v", err)
	}

	if !bytes.Equal(got.FirstKey, []byte("a")) || !bytes.Equal(got.LastKey, []byte("z")) {
		t.Fatalf("roundtrip FirstKey/LastKey = %q/%q, want a/z", got.FirstKey, got.LastKey)
	}
	if got.MinTimestamp != 100 || got.MaxTimestamp != 100 {
		t.Fatalf("roundtrip timestamp = [%d, %d], want [100, 100]", got.MinTimestamp, got.MaxTimestamp)
	}
	if got.TotalCells != 3 {
		t.Fatalf("roundtrip TotalCells = %d, want 3", got.TotalCells)
	}
	if got.RepairedAt != 42 {
		t.Fatalf("roundtrip RepairedAt = %d, want 42", got.RepairedAt)
	}
}
