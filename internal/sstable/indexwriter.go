// indexwriter.go implements the Index Writer (C4): it owns the primary
// index sink and drives the summary and Bloom filter from the same
// per-partition event stream, and runs the Open -> Preparing -> Prepared ->
// Committed|Aborted state machine.
package sstable

import (
	"github.com/aalhour/sstablewriter/internal/vfs"
)

// indexWriterState is the C4 state machine. Transitions only move forward;
// Aborted is reachable from any pre-committed state.
type indexWriterState int

const (
	indexOpen indexWriterState = iota
	indexPreparing
	indexPrepared
	indexCommitted
	indexAborted
)

// IndexWriter owns the primary-index sink and the Bloom filter and summary
// builders it feeds on every accepted partition. It does not hold an
// implicit handle to its enclosing TableWriter; TableWriter passes it
// whatever shared state it needs (the descriptor and whether a Filter
// component is declared) at construction.
type IndexWriter struct {
	descriptor Descriptor
	hasFilter  bool
	indexSink  *SequentialSink
	bloom      *BloomFilterBuilder
	summary    *IndexSummaryBuilder
	state      indexWriterState
	firstKey   []byte
	lastKey    []byte
}

// NewIndexWriter opens the primary index sink and constructs the Bloom
// filter and summary builders.
func NewIndexWriter(fs vfs.FS, descriptor Descriptor, hasFilter bool, bloom *BloomFilterBuilder, summary *IndexSummaryBuilder) (*IndexWriter, error) {
	sink, err := OpenSink(fs, descriptor, PrimaryIndex)
	if err != nil {
		return nil, err
	}
	return &IndexWriter{
		descriptor: descriptor,
		hasFilter:  hasFilter,
		indexSink:  sink,
		bloom:      bloom,
		summary:    summary,
	}, nil
}

// Append drives the per-partition event sequence: add the key to the Bloom
// filter, append the (key, RowIndexEntry) record to the index sink, and
// feed the summary builder.
func (w *IndexWriter) Append(key []byte, entry RowIndexEntry, dataEnd int64) error {
	if w.state != indexOpen {
		return ErrBuilderFinished
	}

	w.bloom.Add(key)

	indexStart := w.indexSink.FilePointer()

	buf := AppendKey(nil, key)
	buf = EncodeRowIndexEntry(buf, entry)
	if err := w.indexSink.Write(buf); err != nil {
		return err
	}

	indexEnd := w.indexSink.FilePointer()
	w.summary.MaybeAddEntry(key, indexStart, indexEnd, dataEnd)

	if w.firstKey == nil {
		w.firstKey = append([]byte(nil), key...)
	}
	w.lastKey = append([]byte(nil), key...)

	return nil
}

// FilePointer returns the primary index sink's logical offset.
func (w *IndexWriter) FilePointer() int64 {
	return w.indexSink.FilePointer()
}

// SetPostFlushListener registers cb against the index sink's sync.
func (w *IndexWriter) SetPostFlushListener(cb PostFlushListener) {
	w.indexSink.SetPostFlushListener(cb)
}

// Sync fsyncs the index sink without closing it, used by openFinalEarly to
// hand off a reader before commit completes.
func (w *IndexWriter) Sync() error {
	return w.indexSink.Sync()
}

// indexMark snapshots the index sink and summary builder state for a joint
// rewind with the data sink.
type indexMark struct {
	indexMark   int64
	summaryMark summaryMark
	firstKey    []byte
	lastKey     []byte
}

// Mark captures a joint rewind point across the index sink and the summary
// builder's running counters.
func (w *IndexWriter) Mark() indexMark {
	return indexMark{indexMark: w.indexSink.Mark(), summaryMark: w.summary.Mark(), firstKey: w.firstKey, lastKey: w.lastKey}
}

// ResetAndTruncate rewinds the index sink, restores the summary builder's
// running counters, and restores the first/last key to m. The Bloom filter
// is not rewound: stale entries are harmless false positives.
func (w *IndexWriter) ResetAndTruncate(m indexMark) error {
	if err := w.indexSink.ResetAndTruncate(m.indexMark); err != nil {
		return err
	}
	w.summary.Restore(m.summaryMark)
	w.firstKey, w.lastKey = m.firstKey, m.lastKey
	return nil
}

// FirstKey and LastKey report the first/last accepted partition key.
func (w *IndexWriter) FirstKey() []byte { return w.firstKey }
func (w *IndexWriter) LastKey() []byte  { return w.lastKey }

// Summary exposes the underlying summary builder, used by TableWriter to
// build an IndexSummary at prepare/early-open time.
func (w *IndexWriter) Summary() *IndexSummaryBuilder {
	return w.summary
}

// SharedBloomFilter returns a reference-counted handle over the Bloom
// filter under construction, for readers produced by openEarly/
// openFinalEarly.
func (w *IndexWriter) SharedBloomFilter() *SharedBloomFilter {
	return w.bloom.SharedCopy()
}

// PrepareToCommit serializes and fsyncs the filter (if declared), then
// flushes and fsyncs the index sink. It does not build or write the
// summary; TableWriter.PrepareToCommit does that after the index has been
// committed.
func (w *IndexWriter) PrepareToCommit(fs vfs.FS, filterSink *SequentialSink) error {
	if w.state == indexCommitted {
		return nil
	}
	if w.state == indexAborted {
		return ErrBuilderAborted
	}
	w.state = indexPreparing

	var acc errAccumulator

	if w.hasFilter {
		acc.add(w.bloom.Serialize(filterSink))
		acc.add(filterSink.PrepareToCommit())
	}

	acc.add(w.indexSink.PrepareToCommit())

	if acc.failed() {
		return acc.err()
	}
	w.state = indexPrepared
	return nil
}

// Commit renames the index file (and the filter file, if declared) to their
// final names.
func (w *IndexWriter) Commit(filterSink *SequentialSink) error {
	if w.state == indexCommitted {
		return nil
	}
	var acc errAccumulator
	acc.add(w.indexSink.Commit())
	if w.hasFilter {
		acc.add(filterSink.Commit())
	}
	if acc.failed() {
		return acc.err()
	}
	w.state = indexCommitted
	return nil
}

// Abort is valid from any pre-committed state; it deletes the index file
// (and the filter file, if declared).
func (w *IndexWriter) Abort(filterSink *SequentialSink) error {
	if w.state == indexCommitted {
		return nil
	}
	var acc errAccumulator
	acc.add(w.indexSink.Abort())
	if w.hasFilter && filterSink != nil {
		acc.add(filterSink.Abort())
	}
	w.state = indexAborted
	return acc.err()
}
