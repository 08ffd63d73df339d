// stats.go implements StatsMetadata and the stats-collecting projector: a
// streaming wrapper observing every row and range-tombstone marker as it
// passes from the row-serialization collaborator into the data sink,
// folding them into aggregated per-table statistics.
package sstable

import "bytes"

// histogramBucketCount bounds the number of log-scale buckets kept per
// estimated histogram: enough resolution to be useful without storing one
// bucket per observed value.
const histogramBucketCount = 90

// Histogram is a simple log-scale estimated histogram: bucket i holds the
// count of observed values in [boundary(i-1), boundary(i)), where
// boundaries grow geometrically. It never allocates more than
// histogramBucketCount int64 counters.
type Histogram struct {
	counts [histogramBucketCount]int64
}

// Add records one observation.
func (h *Histogram) Add(value int64) {
	h.counts[bucketFor(value)]++
}

// bucketFor maps value to a bucket index by doubling thresholds starting at
// 1, clamped to the last bucket for very large values.
func bucketFor(value int64) int {
	if value < 1 {
		return 0
	}
	bucket := 0
	threshold := int64(1)
	for bucket < histogramBucketCount-1 && value >= threshold {
		threshold *= 2
		bucket++
	}
	return bucket
}

// Buckets returns a copy of the bucket counts, in increasing-threshold
// order.
func (h *Histogram) Buckets() [histogramBucketCount]int64 {
	return h.counts
}

// StatsMetadata aggregates the per-partition numbers recorded for a table.
// It is built incrementally by the projector and serialized once at
// finalize.
type StatsMetadata struct {
	MinTimestamp int64
	MaxTimestamp int64

	MinTTL int32
	MaxTTL int32

	MinLocalDeletionTime uint32
	MaxLocalDeletionTime uint32

	EstimatedPartitionSize Histogram
	EstimatedCellCount     Histogram

	MinClusteringValues [][]byte
	MaxClusteringValues [][]byte

	TotalCells int64
	RepairedAt int64

	FirstKey []byte
	LastKey  []byte

	observed bool
}

func newStatsMetadata() *StatsMetadata {
	return &StatsMetadata{
		MinTimestamp:         int64(1)<<63 - 1,
		MaxTimestamp:         -(int64(1) << 63),
		MinTTL:               int32(1)<<31 - 1,
		MaxTTL:               -(int32(1) << 31),
		MinLocalDeletionTime: ^uint32(0),
		MaxLocalDeletionTime: 0,
	}
}

// statsProjector streams rows and range-tombstone markers through unchanged
// while folding their statistics into a StatsMetadata.
type statsProjector struct {
	stats            *StatsMetadata
	cellsInPartition int64
	partitionOpen    bool
}

func newStatsProjector() *statsProjector {
	return &statsProjector{stats: newStatsMetadata()}
}

// OpenPartition records the partition-level deletion time observed at the
// start of a partition.
func (p *statsProjector) OpenPartition(key []byte, deletion DeletionTime) {
	p.partitionOpen = true
	p.cellsInPartition = 0
	if !deletion.Live() {
		p.observeTimestamp(deletion.MarkedForDeleteAt)
		p.observeLocalDeletionTime(deletion.LocalDeletionTime)
	}
}

// ObserveRow folds one row's cell count, timestamp, TTL, and clustering
// values into the running aggregates.
func (p *statsProjector) ObserveRow(clustering [][]byte, cellCount int, timestamp int64, ttl int32, localDeletionTime uint32) {
	p.cellsInPartition += int64(cellCount)
	p.stats.TotalCells += int64(cellCount)
	p.stats.EstimatedCellCount.Add(int64(cellCount))
	p.observeTimestamp(timestamp)
	p.observeTTL(ttl)
	p.observeLocalDeletionTime(localDeletionTime)
	p.observeClustering(clustering)
}

// ObserveRangeTombstoneMarker folds a boundary marker's deletion time into
// the running aggregates. Boundary markers contribute both their start and
// end deletion times, so this is called once per marker regardless of
// BoundOpen/BoundClose.
func (p *statsProjector) ObserveRangeTombstoneMarker(marker RangeTombstoneMarker) {
	p.observeTimestamp(marker.Deletion.MarkedForDeleteAt)
	p.observeLocalDeletionTime(marker.Deletion.LocalDeletionTime)
	p.observeClustering(marker.ClusteringValues)
}

// ClosePartition records the partition's serialized size in bytes as one
// EstimatedPartitionSize sample and resets for the next partition. The
// per-partition cell total is not recorded here; EstimatedCellCount gets
// one sample per row from ObserveRow.
func (p *statsProjector) ClosePartition(rowSize int64) {
	p.stats.EstimatedPartitionSize.Add(rowSize)
	p.partitionOpen = false
}

func (p *statsProjector) observeTimestamp(ts int64) {
	if ts == 0 {
		return
	}
	p.stats.observed = true
	if ts < p.stats.MinTimestamp {
		p.stats.MinTimestamp = ts
	}
	if ts > p.stats.MaxTimestamp {
		p.stats.MaxTimestamp = ts
	}
}

func (p *statsProjector) observeTTL(ttl int32) {
	if ttl == 0 {
		return
	}
	if ttl < p.stats.MinTTL {
		p.stats.MinTTL = ttl
	}
	if ttl > p.stats.MaxTTL {
		p.stats.MaxTTL = ttl
	}
}

func (p *statsProjector) observeLocalDeletionTime(t uint32) {
	if t == 0 {
		return
	}
	if t < p.stats.MinLocalDeletionTime {
		p.stats.MinLocalDeletionTime = t
	}
	if t > p.stats.MaxLocalDeletionTime {
		p.stats.MaxLocalDeletionTime = t
	}
}

func (p *statsProjector) observeClustering(values [][]byte) {
	if len(values) == 0 {
		return
	}
	if p.stats.MinClusteringValues == nil || compareClusteringValues(values, p.stats.MinClusteringValues) < 0 {
		p.stats.MinClusteringValues = values
	}
	if p.stats.MaxClusteringValues == nil || compareClusteringValues(values, p.stats.MaxClusteringValues) > 0 {
		p.stats.MaxClusteringValues = values
	}
}

// compareClusteringValues compares two clustering tuples component-wise,
// shorter-prefix-first (matching the usual "column exists" convention for a
// partially-specified clustering key).
func compareClusteringValues(a, b [][]byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := bytes.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// Finalize stamps the first/last key and returns the accumulated stats.
func (p *statsProjector) Finalize(firstKey, lastKey []byte, repairedAt int64) *StatsMetadata {
	if !p.stats.observed {
		p.stats.MinTimestamp = 0
		p.stats.MaxTimestamp = 0
		p.stats.MinTTL = 0
		p.stats.MaxTTL = 0
		p.stats.MinLocalDeletionTime = 0
	}
	p.stats.FirstKey = firstKey
	p.stats.LastKey = lastKey
	p.stats.RepairedAt = repairedAt
	return p.stats
}
