package sstable

// DeletionTime is the partition- or range-tombstone-level deletion marker:
// the wall-clock instant the delete happened, and the local (GC grace)
// deletion time used to decide when tombstones may be purged.
type DeletionTime struct {
	MarkedForDeleteAt int64
	LocalDeletionTime uint32
}

// LiveDeletionTime is the zero-value DeletionTime, meaning "not deleted".
var LiveDeletionTime = DeletionTime{MarkedForDeleteAt: 0, LocalDeletionTime: 0}

// Live reports whether d represents "not deleted".
func (d DeletionTime) Live() bool {
	return d == LiveDeletionTime
}

// Supersedes reports whether d is a strictly later deletion than other,
// used when folding two deletion times covering overlapping ranges (e.g. a
// partition-level deletion and an overlapping range tombstone).
func (d DeletionTime) Supersedes(other DeletionTime) bool {
	return d.MarkedForDeleteAt > other.MarkedForDeleteAt
}

// TombstoneBound marks whether a RangeTombstoneMarker opens or closes a
// deleted clustering range.
type TombstoneBound int

const (
	// BoundOpen begins a deleted clustering range.
	BoundOpen TombstoneBound = iota
	// BoundClose ends a deleted clustering range.
	BoundClose
)

// RangeTombstoneMarker is a boundary marker observed by the stats-collecting
// projector as it streams a partition's rows: it demarcates the start or end
// of a deleted clustering range and carries the deletion time in effect at
// that boundary.
type RangeTombstoneMarker struct {
	Bound            TombstoneBound
	ClusteringValues [][]byte
	Deletion         DeletionTime
}

// ColumnIndexBlock describes one in-partition index block: the clustering
// range it covers, its byte offset and width within the partition, and
// whether a range tombstone is still open at the block's end boundary.
type ColumnIndexBlock struct {
	FirstClustering         [][]byte
	LastClustering          [][]byte
	OffsetWithinPartition   int64
	Width                   int64
	OpenTombstoneAtBoundary DeletionTime
}

// ColumnIndex is the row-serializer's report of how a partition's rows were
// laid out: either a small number of blocks with per-block summaries, or a
// signal (HasFullInlined) that the whole partition was small enough to be
// described inline in the RowIndexEntry without per-block detail.
type ColumnIndex struct {
	Blocks         []ColumnIndexBlock
	HasFullInlined bool
}

// RowIndexEntry is the primary-index record for one partition: its starting
// offset in the data file, the partition-level deletion time, and the
// column index describing in-partition layout.
type RowIndexEntry struct {
	Offset       int64
	DeletionTime DeletionTime
	Index        ColumnIndex
}

// IsIndexed reports whether this entry carries a multi-block column index
// (a "wide" partition) rather than being small enough to inline.
func (e RowIndexEntry) IsIndexed() bool {
	return !e.Index.HasFullInlined && len(e.Index.Blocks) > 0
}

// PromotedSize estimates the serialized size of the RowIndexEntry, used by
// callers deciding whether a partition exceeds the large-partition warning
// threshold at the row level (the dominant cost is usually the data bytes,
// but a RowIndexEntry with many column-index blocks also contributes).
func (e RowIndexEntry) PromotedSize() int64 {
	const perBlockOverhead = 32
	return int64(len(e.Index.Blocks)) * perBlockOverhead
}
