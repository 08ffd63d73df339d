// writer.go implements the Table Writer Orchestrator (C5): it accepts
// partitions, coordinates C1 (the data sink) and C4 (the index writer),
// collects statistics, publishes readers early and finally, and executes
// the transactional commit across every component sink.
package sstable

import (
	"bytes"
	"fmt"

	"github.com/aalhour/sstablewriter/internal/config"
	"github.com/aalhour/sstablewriter/internal/logging"
	"github.com/aalhour/sstablewriter/internal/vfs"
)

// writerState is TableWriter's top-level lifecycle state.
type writerState int

const (
	writerOpen writerState = iota
	writerPreparing
	writerPrepared
	writerCommitted
	writerAborted
)

// writerMark is the joint rewind point captured by Mark, spanning the data
// sink and the index writer (which in turn spans the primary index sink and
// the summary builder's running counters).
type writerMark struct {
	dataMark  int64
	indexMark indexMark
}

// TableWriter is the SSTable builder's public entry point: append partitions
// in sorted key order, optionally rewind, optionally publish early readers,
// and finally commit or abort.
//
// Not safe for concurrent use: append, mark, resetAndTruncate,
// prepareToCommit, commit, and abort must all be invoked from a single
// goroutine.
type TableWriter struct {
	descriptor    Descriptor
	fs            vfs.FS
	cfg           *config.WriterConfig
	logger        logging.Logger
	partitioner   Partitioner
	tracker       TransactionTracker
	rowSerializer RowSerializer
	expectedKeys  int64

	data        *DataSink
	index       *IndexWriter
	filterSink  *SequentialSink
	summarySink *SequentialSink
	statsSink   *SequentialSink
	tocSink     *SequentialSink

	projector *statsProjector

	firstKey    []byte
	lastKey     []byte
	hasAppended bool
	finalStats  *StatsMetadata

	mark  *writerMark
	state writerState
}

// Option configures optional TableWriter collaborators.
type Option func(*TableWriter)

// WithPartitioner overrides the default Murmur3Partitioner.
func WithPartitioner(p Partitioner) Option {
	return func(w *TableWriter) { w.partitioner = p }
}

// WithTransactionTracker overrides the default InMemoryTransactionTracker.
func WithTransactionTracker(t TransactionTracker) Option {
	return func(w *TableWriter) { w.tracker = t }
}

// WithRowSerializer overrides the default row-serialization collaborator.
func WithRowSerializer(rs RowSerializer) Option {
	return func(w *TableWriter) { w.rowSerializer = rs }
}

// WithLogger overrides the default logger.
func WithLogger(l logging.Logger) Option {
	return func(w *TableWriter) { w.logger = l }
}

// WithExpectedKeys overrides the Bloom filter's expected-partition-count
// estimate (default 1, i.e. "unknown"). Callers that know the number of
// partitions a table will hold — or a close estimate, such as the input
// row count of a flush or compaction — should always set this: a filter
// sized for n=1 saturates almost immediately and MayContain degrades
// toward returning true for every lookup.
func WithExpectedKeys(n int64) Option {
	return func(w *TableWriter) { w.expectedKeys = n }
}

// NewTableWriter registers descriptor with the transaction tracker and opens
// every component sink. Registration happens before any file is created so
// a crash leaves no untracked temp files.
func NewTableWriter(fs vfs.FS, descriptor Descriptor, cfg *config.WriterConfig, opts ...Option) (*TableWriter, error) {
	if cfg == nil {
		cfg = config.DefaultWriterConfig()
	}

	w := &TableWriter{
		descriptor:    descriptor,
		fs:            fs,
		cfg:           cfg,
		logger:        logging.OrDefault(nil),
		partitioner:   Murmur3Partitioner{},
		tracker:       NewInMemoryTransactionTracker(),
		rowSerializer: NewDefaultRowSerializer(int64(cfg.CompressionChunkKB) * 1024),
		expectedKeys:  cfg.ExpectedKeys,
		projector:     newStatsProjector(),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.tracker.TrackNew(descriptor)

	data, err := OpenDataSink(fs, descriptor, cfg.Compression, cfg.ChecksumType, cfg.CompressionChunkKB*1024)
	if err != nil {
		return nil, err
	}
	w.data = data

	filterSink, err := OpenSink(fs, descriptor, Filter)
	if err != nil {
		return nil, err
	}
	w.filterSink = filterSink

	bloom := NewBloomFilterBuilder(w.expectedKeys, cfg.FilterFPChance, cfg.FilterLegacyHashOrder)
	summary := NewIndexSummaryBuilder(cfg.MinIndexInterval, cfg.IndexInterval, cfg.BaseSamplingLevel)

	index, err := NewIndexWriter(fs, descriptor, true, bloom, summary)
	if err != nil {
		return nil, err
	}
	w.index = index

	w.data.SetPostFlushListener(func(offset int64) { summary.MarkDataSynced(offset) })
	w.index.SetPostFlushListener(func(offset int64) { summary.MarkIndexSynced(offset) })

	statsSink, err := OpenSink(fs, descriptor, Statistics)
	if err != nil {
		return nil, err
	}
	w.statsSink = statsSink

	tocSink, err := OpenSink(fs, descriptor, Toc)
	if err != nil {
		return nil, err
	}
	w.tocSink = tocSink

	return w, nil
}

// Append appends one partition. It returns (nil, nil) if the key exceeds
// the u16 length limit or the iterator yields no content — a logged skip,
// never an error. Any I/O fault surfaces as a *WriteError.
func (w *TableWriter) Append(key []byte, iter PartitionIterator) (*RowIndexEntry, error) {
	if w.state != writerOpen {
		return nil, ErrBuilderFinished
	}

	if len(key) > maxKeyLength {
		w.logger.Errorf(logging.NSSSTable+"%v: length=%d max=%d, skipping partition", ErrOversizedKey, len(key), maxKeyLength)
		return nil, nil
	}

	if w.hasAppended && bytes.Compare(key, w.lastKey) < 0 {
		return nil, fmt.Errorf("sstable: keys must be appended in strictly non-decreasing order: %q < %q", key, w.lastKey)
	}

	peeked := newPeekIterator(iter)
	rawDeletion := peeked.PartitionDeletion()
	if peeked.Empty(rawDeletion) {
		w.logger.Errorf(logging.NSSSTable+"%v: skipping partition key=%x", ErrEmptyPartition, key)
		return nil, nil
	}

	startPosition := w.data.FilePointer()

	projected := newProjectingIterator(key, peeked, w.projector)
	partitionDeletion := projected.PartitionDeletion()

	header := AppendKey(nil, key)
	header = appendDeletionTime(header, partitionDeletion)
	if err := w.data.Write(header); err != nil {
		return nil, err
	}

	columnIndex, err := w.rowSerializer.WriteAndBuildIndex(projected, w.data)
	if err != nil {
		return nil, err
	}

	dataEnd := w.data.FilePointer()
	rowSize := dataEnd - startPosition

	if rowSize > w.cfg.LargePartitionWarningBytes {
		w.logger.Warnf(logging.NSSSTable+"large partition: key=%x size=%d bytes", key, rowSize)
	}

	entry := RowIndexEntry{Offset: startPosition, DeletionTime: partitionDeletion, Index: columnIndex}

	if err := w.index.Append(key, entry, dataEnd); err != nil {
		return nil, err
	}
	w.projector.ClosePartition(rowSize)

	if !w.hasAppended {
		w.firstKey = append([]byte(nil), key...)
	}
	w.lastKey = append([]byte(nil), key...)
	w.hasAppended = true

	return &entry, nil
}

// Mark captures a joint rewind point across the data and index sinks.
func (w *TableWriter) Mark() {
	m := writerMark{dataMark: w.data.Mark(), indexMark: w.index.Mark()}
	w.mark = &m
}

// ResetAndTruncate rewinds to the last Mark, discarding every partition
// appended since. The Bloom filter is not rewound (stale filter entries are
// harmless); the readable boundary is pulled back only if it pointed past
// the last summary sample that survives the rewind.
func (w *TableWriter) ResetAndTruncate() error {
	if w.mark == nil {
		return fmt.Errorf("sstable: resetAndTruncate called without a preceding mark")
	}
	if err := w.data.ResetAndTruncate(w.mark.dataMark); err != nil {
		return err
	}
	if err := w.index.ResetAndTruncate(w.mark.indexMark); err != nil {
		return err
	}
	w.lastKey = w.index.LastKey()
	w.hasAppended = w.index.FirstKey() != nil
	return nil
}

// OpenEarly builds a reader bounded by the current readable boundary, or
// returns (nil, nil) if no boundary has been reached yet (no sync has
// happened since the writer opened).
func (w *TableWriter) OpenEarly() (*OpenedReader, error) {
	boundary, ok := w.index.Summary().Boundary()
	if !ok {
		return nil, nil
	}
	return w.buildReader(&boundary, ReasonEarly)
}

// OpenFinalEarly fsyncs the data and index sinks without closing them and
// returns a reader over their entire current contents, used to hand off a
// reader before commit completes.
func (w *TableWriter) OpenFinalEarly() (*OpenedReader, error) {
	if err := w.data.Sync(); err != nil {
		return nil, err
	}
	if err := w.index.Sync(); err != nil {
		return nil, err
	}
	return w.buildReader(nil, ReasonEarly)
}

func (w *TableWriter) buildReader(boundary *ReadableBoundary, reason OpenReason) (*OpenedReader, error) {
	dataLen := w.data.OnDiskFilePointer()
	indexLen := w.index.FilePointer()
	lastKey := w.lastKey
	if boundary != nil {
		dataLen = boundary.DataLength
		indexLen = boundary.IndexLength
		lastKey = boundary.LastKey
	}

	dataFile, err := w.fs.OpenRandomAccess(w.data.Path())
	if err != nil {
		return nil, err
	}
	indexFile, err := w.fs.OpenRandomAccess(w.index.indexSink.Path())
	if err != nil {
		_ = dataFile.Close()
		return nil, err
	}

	summary := w.index.Summary().Build(w.firstKey, lastKey, boundary)

	return &OpenedReader{
		Descriptor: w.descriptor,
		Reason:     reason,
		Data:       NewSegmentedFileView(dataFile, dataLen),
		Index:      NewSegmentedFileView(indexFile, indexLen),
		Summary:    summary,
		Filter:     w.index.SharedBloomFilter(),
		Stats:      w.projector.stats,
		FirstKey:   w.firstKey,
		LastKey:    lastKey,
	}, nil
}

// PrepareToCommit runs steps 1-5 of the transactional commit pipeline:
// flush and fsync the filter, then the index (renaming it to its final
// name), then build and write the summary, then flush and fsync the data
// file and its sidecars (renaming them), then write the statistics. Any
// failure aborts every sink and returns the accumulated error.
func (w *TableWriter) PrepareToCommit() error {
	if w.state == writerPrepared || w.state == writerCommitted {
		return nil
	}
	if w.state == writerAborted {
		return ErrBuilderAborted
	}
	w.state = writerPreparing

	var acc errAccumulator

	// Step 1+2: filter flush+sync, index truncate+sync+rename.
	if err := w.index.PrepareToCommit(w.fs, w.filterSink); err != nil {
		acc.add(err)
	} else {
		acc.add(w.index.Commit(w.filterSink))
	}

	// Step 3: summary built over the full accumulated set and written.
	summary := w.index.Summary().Build(w.firstKey, w.lastKey, nil)
	summarySink, err := OpenSink(w.fs, w.descriptor, Summary)
	if err != nil {
		acc.add(err)
	} else {
		w.summarySink = summarySink
		segmentSnapshot := []int64{w.data.OnDiskFilePointer(), w.index.FilePointer()}
		acc.add(WriteIndexSummary(summarySink, summary, segmentSnapshot))
		acc.add(summarySink.PrepareToCommit())
		acc.add(summarySink.Commit())
	}

	// Step 4: data file (and its Crc/CompressionInfo/Digest sidecars)
	// prepared and renamed.
	acc.add(w.data.PrepareToCommit())
	acc.add(w.data.Commit())

	// Step 5: statistics serialized and fsynced.
	w.finalStats = w.projector.Finalize(w.firstKey, w.lastKey, 0)
	acc.add(WriteStatsMetadata(w.statsSink, w.finalStats, w.cfg.FormatVersion))
	acc.add(w.statsSink.PrepareToCommit())
	acc.add(w.statsSink.Commit())

	if acc.failed() {
		_ = w.abortSinks()
		w.state = writerAborted
		w.tracker.NotifyAbort(w.descriptor)
		return acc.err()
	}

	w.state = writerPrepared
	return nil
}

// Commit runs step 6 (write and rename the table-of-contents) and step 7
// (fsync the parent directory). The SSTable is considered committed once
// the TOC is renamed even if the final directory fsync fails.
func (w *TableWriter) Commit() error {
	if w.state == writerCommitted {
		return nil
	}
	if w.state != writerPrepared {
		if err := w.PrepareToCommit(); err != nil {
			return err
		}
	}

	kinds := []ComponentKind{Data, PrimaryIndex, Summary, Filter, Statistics}
	if w.data.HasCompressionInfo() {
		kinds = append(kinds, CompressionInfo)
	} else {
		kinds = append(kinds, Crc)
	}
	kinds = append(kinds, Toc)

	if err := WriteTOC(w.tocSink, kinds); err != nil {
		_ = w.abortSinks()
		w.state = writerAborted
		w.tracker.NotifyAbort(w.descriptor)
		return err
	}
	if err := w.tocSink.PrepareToCommit(); err != nil {
		_ = w.abortSinks()
		w.state = writerAborted
		w.tracker.NotifyAbort(w.descriptor)
		return err
	}
	if err := w.tocSink.Commit(); err != nil {
		_ = w.abortSinks()
		w.state = writerAborted
		w.tracker.NotifyAbort(w.descriptor)
		return err
	}

	w.state = writerCommitted
	w.tracker.NotifyCommit(w.descriptor)

	dirErr := w.fs.SyncDir(w.descriptor.Directory)
	return dirErr
}

// Abort closes and unlinks every component's temp file. It is valid from
// any pre-committed state.
func (w *TableWriter) Abort() error {
	if w.state == writerCommitted {
		return nil
	}
	err := w.abortSinks()
	w.state = writerAborted
	w.tracker.NotifyAbort(w.descriptor)
	return err
}

func (w *TableWriter) abortSinks() error {
	var acc errAccumulator
	acc.add(w.data.Abort())
	acc.add(w.index.Abort(w.filterSink))
	if w.summarySink != nil {
		acc.add(w.summarySink.Abort())
	}
	acc.add(w.statsSink.Abort())
	acc.add(w.tocSink.Abort())
	return acc.err()
}

// Descriptor returns the writer's descriptor.
func (w *TableWriter) Descriptor() Descriptor {
	return w.descriptor
}
