// summary.go implements the Index Summary Builder (C2): the sparse sampled
// index over the primary index, and the readable-boundary bookkeeping that
// lets the writer expose an early-open reader over a durable prefix.
package sstable

// SummaryEntry is one sampled (key, primary-index offset) pair.
type SummaryEntry struct {
	Key         []byte
	IndexOffset int64
}

// IndexSummary is the built, possibly-downsampled sparse index handed to a
// reader.
type IndexSummary struct {
	SamplingLevel     int
	MinIndexInterval  int
	FullSamplingLevel int
	Entries           []SummaryEntry
	FirstKey          []byte
	LastKey           []byte
}

// ReadableBoundary is the durable frontier: the largest prefix of appended
// partitions for which both data and index bytes have been fsynced.
type ReadableBoundary struct {
	LastKey           []byte
	IndexLength       int64
	DataLength        int64
	SummaryEntryCount int
}

// summaryOffsetPair is the parallel (indexEnd, dataEnd) record kept next to
// each sample, used to compute the readable boundary.
type summaryOffsetPair struct {
	indexEnd int64
	dataEnd  int64
}

// IndexSummaryBuilder maintains the running sample set, the synced-offset
// watermarks, and the readable boundary as partitions are appended.
//
// This implementation persists and restores the running partition count
// across Mark/Restore rather than forbidding Mark after the first sample —
// see DESIGN.md for the rationale.
type IndexSummaryBuilder struct {
	minIndexInterval  int
	indexInterval     int
	baseSamplingLevel int

	count   int64 // partitions observed via maybeAddEntry so far
	samples []SummaryEntry
	offsets []summaryOffsetPair

	syncedIndexOffset int64
	syncedDataOffset  int64
	boundaryIdx       int // index into samples/offsets of the current boundary, -1 if none
}

// NewIndexSummaryBuilder constructs a builder sampling every
// minIndexInterval-th partition as partitions are appended (the densest the
// summary will ever be), and downsampling at Build time toward the nominal
// indexInterval: the ratio indexInterval/minIndexInterval determines how
// much of the dense sample set is thinned out, capped so the retained
// count never exceeds baseSamplingLevel entries. indexInterval is clamped
// to minIndexInterval when smaller, since the summary cannot be sampled
// denser than it was collected.
func NewIndexSummaryBuilder(minIndexInterval, indexInterval, baseSamplingLevel int) *IndexSummaryBuilder {
	if minIndexInterval < 1 {
		minIndexInterval = 1
	}
	if indexInterval < minIndexInterval {
		indexInterval = minIndexInterval
	}
	if baseSamplingLevel < 1 {
		baseSamplingLevel = 1
	}
	return &IndexSummaryBuilder{
		minIndexInterval:  minIndexInterval,
		indexInterval:     indexInterval,
		baseSamplingLevel: baseSamplingLevel,
		boundaryIdx:       -1,
	}
}

// MaybeAddEntry records partition number b.count and, if it falls on the
// sampling stride, appends (key, indexStart) to the sample set along with
// the (indexEnd, dataEnd) pair used to later compute the readable boundary.
func (b *IndexSummaryBuilder) MaybeAddEntry(key []byte, indexStart, indexEnd, dataEnd int64) {
	if b.count%int64(b.minIndexInterval) == 0 {
		keyCopy := append([]byte(nil), key...)
		b.samples = append(b.samples, SummaryEntry{Key: keyCopy, IndexOffset: indexStart})
		b.offsets = append(b.offsets, summaryOffsetPair{indexEnd: indexEnd, dataEnd: dataEnd})
	}
	b.count++
}

// MarkIndexSynced records the latest durable offset of the primary index
// file, advancing the readable boundary if the data side has caught up.
func (b *IndexSummaryBuilder) MarkIndexSynced(offset int64) {
	if offset > b.syncedIndexOffset {
		b.syncedIndexOffset = offset
	}
	b.advanceBoundary()
}

// MarkDataSynced records the latest durable offset of the data file,
// advancing the readable boundary if the index side has caught up.
func (b *IndexSummaryBuilder) MarkDataSynced(offset int64) {
	if offset > b.syncedDataOffset {
		b.syncedDataOffset = offset
	}
	b.advanceBoundary()
}

// advanceBoundary finds the largest sample entry whose (indexEnd, dataEnd)
// pair is fully covered by the synced watermarks, regardless of the order
// markIndexSynced/markDataSynced were called in.
func (b *IndexSummaryBuilder) advanceBoundary() {
	next := b.boundaryIdx
	for i := next + 1; i < len(b.offsets); i++ {
		if b.offsets[i].indexEnd <= b.syncedIndexOffset && b.offsets[i].dataEnd <= b.syncedDataOffset {
			next = i
		} else {
			break
		}
	}
	b.boundaryIdx = next
}

// Boundary reports the current readable boundary, or ok=false if no sample
// has yet been fully synced on both sides.
func (b *IndexSummaryBuilder) Boundary() (boundary ReadableBoundary, ok bool) {
	if b.boundaryIdx < 0 {
		return ReadableBoundary{}, false
	}
	entry := b.samples[b.boundaryIdx]
	offs := b.offsets[b.boundaryIdx]
	return ReadableBoundary{
		LastKey:           entry.Key,
		IndexLength:       offs.indexEnd,
		DataLength:        offs.dataEnd,
		SummaryEntryCount: b.boundaryIdx + 1,
	}, true
}

// summaryMark snapshots the running state for a later Restore: the chosen
// resolution persists and restores the counters rather than forbidding Mark
// after the first sample (see DESIGN.md).
type summaryMark struct {
	count      int64
	numSamples int
}

// Mark snapshots the builder's running state.
func (b *IndexSummaryBuilder) Mark() summaryMark {
	return summaryMark{count: b.count, numSamples: len(b.samples)}
}

// Restore rewinds the builder to a previously captured Mark, discarding any
// samples recorded after it. The synced-offset watermarks are kept; the
// readable boundary is pulled back to the last retained sample if it
// pointed past it.
func (b *IndexSummaryBuilder) Restore(m summaryMark) {
	b.count = m.count
	b.samples = b.samples[:m.numSamples]
	b.offsets = b.offsets[:m.numSamples]
	if b.boundaryIdx >= m.numSamples {
		b.boundaryIdx = m.numSamples - 1
	}
}

// SampleCount returns the number of samples recorded so far (before
// downsampling).
func (b *IndexSummaryBuilder) SampleCount() int {
	return len(b.samples)
}

// Build produces an IndexSummary over the full accumulated sample set
// (finalize), or over the prefix covered by boundary when non-nil (early
// open).
func (b *IndexSummaryBuilder) Build(firstKey, lastKey []byte, boundary *ReadableBoundary) IndexSummary {
	samples := b.samples
	if boundary != nil {
		n := boundary.SummaryEntryCount
		if n > len(samples) {
			n = len(samples)
		}
		samples = samples[:n]
		lastKey = boundary.LastKey
	}

	level, kept := downsample(samples, b.downsampleTarget(len(samples)))

	return IndexSummary{
		SamplingLevel:     level,
		MinIndexInterval:  b.minIndexInterval,
		FullSamplingLevel: b.baseSamplingLevel,
		Entries:           kept,
		FirstKey:          firstKey,
		LastKey:           lastKey,
	}
}

// downsampleTarget computes how many of n densely-collected samples to keep
// at Build time, thinning the set by indexInterval/minIndexInterval so the
// retained entries approximate the nominal indexInterval spacing, capped at
// baseSamplingLevel.
func (b *IndexSummaryBuilder) downsampleTarget(n int) int {
	factor := b.indexInterval / b.minIndexInterval
	if factor < 1 {
		factor = 1
	}
	target := (n + factor - 1) / factor
	if target > b.baseSamplingLevel {
		target = b.baseSamplingLevel
	}
	if target < 1 {
		target = 1
	}
	return target
}

// downsample reduces samples to at most target entries by deterministically
// dropping every Nth entry in a round-robin pattern (evenly-spaced index
// selection), preserving key order. It reports the resulting sampling level
// (target when no downsampling was needed, else the proportional level
// max(1, target*target/n)).
func downsample(samples []SummaryEntry, target int) (level int, kept []SummaryEntry) {
	n := len(samples)
	if target < 1 {
		target = 1
	}
	if n <= target {
		out := make([]SummaryEntry, n)
		copy(out, samples)
		return target, out
	}

	kept = make([]SummaryEntry, target)
	for i := 0; i < target; i++ {
		kept[i] = samples[i*n/target]
	}
	level = max(1, target*target/n)
	return level, kept
}
