// partition.go defines the partition-content collaborator boundary: row and
// cell encoding is treated as an opaque row-serialization collaborator, so
// TableWriter only ever sees a PartitionIterator and hands it to a
// RowSerializer — it never inspects cell payloads itself.
package sstable

// Row is one clustering row within a partition, as the row-serialization
// collaborator sees it. Cell payload encoding itself is out of scope; Row
// only carries the fields the stats projector and column index need.
type Row struct {
	Clustering        [][]byte
	CellCount         int
	Timestamp         int64
	TTL               int32
	LocalDeletionTime uint32
	// Payload is the already-encoded cell data for this row, written
	// verbatim by the row serializer. Its internal format is the opaque
	// collaborator's concern.
	Payload []byte
}

// PartitionItem is one item yielded by a PartitionIterator: either a Row or
// a RangeTombstoneMarker, never both.
type PartitionItem struct {
	Row       *Row
	Tombstone *RangeTombstoneMarker
}

// PartitionIterator streams one partition's content: its partition-level
// deletion time, then a sequence of rows and range-tombstone boundary
// markers in clustering order.
type PartitionIterator interface {
	// PartitionDeletion returns the partition-level deletion time. Safe to
	// call at any point during iteration; it does not advance the cursor.
	PartitionDeletion() DeletionTime

	// Next returns the next item, or ok=false once the partition is
	// exhausted.
	Next() (item PartitionItem, ok bool)
}

// SlicePartitionIterator is a PartitionIterator over a fixed, in-memory
// slice of items, used by tests and by simple in-process callers that have
// already materialized a partition.
type SlicePartitionIterator struct {
	Deletion DeletionTime
	Items    []PartitionItem
	pos      int
}

// PartitionDeletion implements PartitionIterator.
func (it *SlicePartitionIterator) PartitionDeletion() DeletionTime {
	return it.Deletion
}

// Next implements PartitionIterator.
func (it *SlicePartitionIterator) Next() (PartitionItem, bool) {
	if it.pos >= len(it.Items) {
		return PartitionItem{}, false
	}
	item := it.Items[it.pos]
	it.pos++
	return item, true
}

// peekIterator wraps a PartitionIterator, eagerly pulling its first item so
// Append can tell whether a partition is empty (no rows, no range
// tombstones) before committing any bytes to the data sink.
type peekIterator struct {
	inner    PartitionIterator
	first    PartitionItem
	hasFirst bool
	consumed bool
}

func newPeekIterator(inner PartitionIterator) *peekIterator {
	item, ok := inner.Next()
	return &peekIterator{inner: inner, first: item, hasFirst: ok}
}

// Empty reports whether the partition has no partition-level deletion and no
// rows or range tombstones at all.
func (p *peekIterator) Empty(deletion DeletionTime) bool {
	return deletion.Live() && !p.hasFirst
}

func (p *peekIterator) PartitionDeletion() DeletionTime {
	return p.inner.PartitionDeletion()
}

func (p *peekIterator) Next() (PartitionItem, bool) {
	if !p.consumed {
		p.consumed = true
		return p.first, p.hasFirst
	}
	return p.inner.Next()
}

// projectingIterator wraps a PartitionIterator, observing every row and
// range-tombstone marker as it passes through unchanged so the stats
// projector can fold them into aggregated statistics.
type projectingIterator struct {
	inner     PartitionIterator
	projector *statsProjector
	key       []byte
	opened    bool
}

func newProjectingIterator(key []byte, inner PartitionIterator, projector *statsProjector) *projectingIterator {
	return &projectingIterator{inner: inner, projector: projector, key: key}
}

func (p *projectingIterator) PartitionDeletion() DeletionTime {
	d := p.inner.PartitionDeletion()
	if !p.opened {
		p.projector.OpenPartition(p.key, d)
		p.opened = true
	}
	return d
}

func (p *projectingIterator) Next() (PartitionItem, bool) {
	item, ok := p.inner.Next()
	if !ok {
		return item, false
	}
	switch {
	case item.Row != nil:
		p.projector.ObserveRow(item.Row.Clustering, item.Row.CellCount, item.Row.Timestamp, item.Row.TTL, item.Row.LocalDeletionTime)
	case item.Tombstone != nil:
		p.projector.ObserveRangeTombstoneMarker(*item.Tombstone)
	}
	return item, true
}
