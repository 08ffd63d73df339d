// statsio.go serializes StatsMetadata into the Statistics component file as
// a typed map of MetadataKind to blob (Validation, Stats, Compaction,
// Header), each blob independently length-prefixed so a future on-disk
// version can add or reorder kinds.
package sstable

import (
	"fmt"

	"github.com/aalhour/sstablewriter/internal/encoding"
)

// MetadataKind identifies one blob within the Statistics component's typed
// map.
type MetadataKind uint8

const (
	// MetadataValidation records the partitioner and format version used to
	// validate compatibility on reopen.
	MetadataValidation MetadataKind = iota
	// MetadataStats records the StatsMetadata aggregates.
	MetadataStats
	// MetadataCompaction records repair/ancestor bookkeeping consumed by
	// compaction (out of scope here beyond RepairedAt, already part of Stats).
	MetadataCompaction
	// MetadataHeader records the first/last key and format version.
	MetadataHeader
)

// WriteStatsMetadata serializes stats as the Statistics component's typed
// map and writes it to sink.
func WriteStatsMetadata(sink *SequentialSink, stats *StatsMetadata, formatVersion int) error {
	var buf []byte
	buf = encoding.AppendVarint32(buf, 2) // two blobs: Header, Stats

	headerBlob := encodeHeaderBlob(stats, formatVersion)
	buf = append(buf, byte(MetadataHeader))
	buf = encoding.AppendLengthPrefixedSlice(buf, headerBlob)

	statsBlob := encodeStatsBlob(stats)
	buf = append(buf, byte(MetadataStats))
	buf = encoding.AppendLengthPrefixedSlice(buf, statsBlob)

	return sink.Write(buf)
}

func encodeHeaderBlob(stats *StatsMetadata, formatVersion int) []byte {
	var buf []byte
	buf = encoding.AppendVarint32(buf, uint32(formatVersion))
	buf = encoding.AppendLengthPrefixedSlice(buf, stats.FirstKey)
	buf = encoding.AppendLengthPrefixedSlice(buf, stats.LastKey)
	return buf
}

func encodeStatsBlob(stats *StatsMetadata) []byte {
	var buf []byte
	buf = encoding.AppendVarsignedint64(buf, stats.MinTimestamp)
	buf = encoding.AppendVarsignedint64(buf, stats.MaxTimestamp)
	buf = encoding.AppendVarsignedint64(buf, int64(stats.MinTTL))
	buf = encoding.AppendVarsignedint64(buf, int64(stats.MaxTTL))
	buf = encoding.AppendVarint32(buf, stats.MinLocalDeletionTime)
	buf = encoding.AppendVarint32(buf, stats.MaxLocalDeletionTime)
	buf = encoding.AppendVarsignedint64(buf, stats.TotalCells)
	buf = encoding.AppendVarsignedint64(buf, stats.RepairedAt)
	buf = appendClusteringValues(buf, stats.MinClusteringValues)
	buf = appendClusteringValues(buf, stats.MaxClusteringValues)
	for _, c := range stats.EstimatedPartitionSize.Buckets() {
		buf = encoding.AppendVarsignedint64(buf, c)
	}
	for _, c := range stats.EstimatedCellCount.Buckets() {
		buf = encoding.AppendVarsignedint64(buf, c)
	}
	return buf
}

// ReadStatsMetadata parses the Statistics component's typed map produced by
// WriteStatsMetadata.
func ReadStatsMetadata(data []byte) (*StatsMetadata, int, error) {
	s := encoding.NewSlice(data)
	blobCount, ok := s.GetVarint32()
	if !ok {
		return nil, 0, fmt.Errorf("sstable: truncated statistics blob count")
	}

	stats := &StatsMetadata{}
	for range blobCount {
		kindByte, ok := s.GetBytes(1)
		if !ok {
			return nil, 0, fmt.Errorf("sstable: truncated statistics blob kind")
		}
		blob, ok := s.GetLengthPrefixedSlice()
		if !ok {
			return nil, 0, fmt.Errorf("sstable: truncated statistics blob")
		}
		switch MetadataKind(kindByte[0]) {
		case MetadataHeader:
			if err := decodeHeaderBlob(blob, stats); err != nil {
				return nil, 0, err
			}
		case MetadataStats:
			if err := decodeStatsBlob(blob, stats); err != nil {
				return nil, 0, err
			}
		}
	}

	return stats, len(data) - s.Remaining(), nil
}

func decodeHeaderBlob(blob []byte, stats *StatsMetadata) error {
	s := encoding.NewSlice(blob)
	if _, ok := s.GetVarint32(); !ok {
		return fmt.Errorf("sstable: truncated header blob version")
	}
	firstKey, ok := s.GetLengthPrefixedSlice()
	if !ok {
		return fmt.Errorf("sstable: truncated header blob first key")
	}
	lastKey, ok := s.GetLengthPrefixedSlice()
	if !ok {
		return fmt.Errorf("sstable: truncated header blob last key")
	}
	stats.FirstKey = firstKey
	stats.LastKey = lastKey
	return nil
}

func decodeStatsBlob(blob []byte, stats *StatsMetadata) error {
	s := encoding.NewSlice(blob)

	minTS, ok := s.GetVarsignedint64()
	if !ok {
		return fmt.Errorf("sstable: truncated stats blob")
	}
	maxTS, ok := s.GetVarsignedint64()
	if !ok {
		return fmt.Errorf("sstable: truncated stats blob")
	}
	minTTL, ok := s.GetVarsignedint64()
	if !ok {
		return fmt.Errorf("sstable: truncated stats blob")
	}
	maxTTL, ok := s.GetVarsignedint64()
	if !ok {
		return fmt.Errorf("sstable: truncated stats blob")
	}
	minLDT, ok := s.GetVarint32()
	if !ok {
		return fmt.Errorf("sstable: truncated stats blob")
	}
	maxLDT, ok := s.GetVarint32()
	if !ok {
		return fmt.Errorf("sstable: truncated stats blob")
	}
	totalCells, ok := s.GetVarsignedint64()
	if !ok {
		return fmt.Errorf("sstable: truncated stats blob")
	}
	repairedAt, ok := s.GetVarsignedint64()
	if !ok {
		return fmt.Errorf("sstable: truncated stats blob")
	}

	minClustering, err := readClusteringValues(s)
	if err != nil {
		return err
	}
	maxClustering, err := readClusteringValues(s)
	if err != nil {
		return err
	}

	var partitionSizeHist, cellCountHist Histogram
	for i := range partitionSizeHist.counts {
		v, ok := s.GetVarsignedint64()
		if !ok {
			return fmt.Errorf("sstable: truncated stats blob partition size histogram")
		}
		partitionSizeHist.counts[i] = v
	}
	for i := range cellCountHist.counts {
		v, ok := s.GetVarsignedint64()
		if !ok {
			return fmt.Errorf("sstable: truncated stats blob cell count histogram")
		}
		cellCountHist.counts[i] = v
	}

	stats.MinTimestamp = minTS
	stats.MaxTimestamp = maxTS
	stats.MinTTL = int32(minTTL)
	stats.MaxTTL = int32(maxTTL)
	stats.MinLocalDeletionTime = minLDT
	stats.MaxLocalDeletionTime = maxLDT
	stats.TotalCells = totalCells
	stats.RepairedAt = repairedAt
	stats.MinClusteringValues = minClustering
	stats.MaxClusteringValues = maxClustering
	stats.EstimatedPartitionSize = partitionSizeHist
	stats.EstimatedCellCount = cellCountHist
	return nil
}
