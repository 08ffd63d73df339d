// rowserializer.go provides the default RowSerializer: a
// WriteAndBuildIndex(iter, dataSink) -> ColumnIndex collaborator. Its on-the-wire row/cell format is deliberately simple
// since row encoding is treated as an opaque, pluggable concern — the part
// this subsystem owns is the column-index block boundaries it reports back
// to the caller.
package sstable

import (
	"github.com/aalhour/sstablewriter/internal/encoding"
)

const (
	unitRow       = byte(0x01)
	unitTombstone = byte(0x02)
	unitEnd       = byte(0x00)
)

// RowSerializer streams a partition's rows and range-tombstone markers into
// dataSink, returning the column index describing in-partition layout.
type RowSerializer interface {
	WriteAndBuildIndex(iter PartitionIterator, dataSink *DataSink) (ColumnIndex, error)
}

// DefaultRowSerializer is a minimal RowSerializer: each unit is a one-byte
// tag followed by its fields, terminated by an end-of-partition marker.
// Partitions whose encoded size stays under BlockSizeBytes are reported
// inline (HasFullInlined); larger partitions are split into column-index
// blocks every BlockSizeBytes of encoded output.
type DefaultRowSerializer struct {
	// BlockSizeBytes is the encoded-size threshold at which a new column
	// index block begins. Zero selects a reasonable default.
	BlockSizeBytes int64
}

// NewDefaultRowSerializer constructs a DefaultRowSerializer with the given
// block size.
func NewDefaultRowSerializer(blockSizeBytes int64) *DefaultRowSerializer {
	if blockSizeBytes <= 0 {
		blockSizeBytes = 64 * 1024
	}
	return &DefaultRowSerializer{BlockSizeBytes: blockSizeBytes}
}

// WriteAndBuildIndex implements RowSerializer.
func (s *DefaultRowSerializer) WriteAndBuildIndex(iter PartitionIterator, dataSink *DataSink) (ColumnIndex, error) {
	startOffset := dataSink.FilePointer()

	var blocks []ColumnIndexBlock
	blockStartOffset := startOffset
	var blockFirst, blockLast [][]byte
	var openTombstone DeletionTime

	flushBlock := func(endOffset int64) {
		if blockFirst == nil {
			return
		}
		blocks = append(blocks, ColumnIndexBlock{
			FirstClustering:         blockFirst,
			LastClustering:          blockLast,
			OffsetWithinPartition:   blockStartOffset - startOffset,
			Width:                   endOffset - blockStartOffset,
			OpenTombstoneAtBoundary: openTombstone,
		})
		blockFirst, blockLast = nil, nil
		blockStartOffset = endOffset
	}

	for {
		item, ok := iter.Next()
		if !ok {
			break
		}

		var unit []byte
		var clustering [][]byte

		switch {
		case item.Row != nil:
			unit = encodeRowUnit(item.Row)
			clustering = item.Row.Clustering
		case item.Tombstone != nil:
			unit = encodeTombstoneUnit(item.Tombstone)
			clustering = item.Tombstone.ClusteringValues
			openTombstone = item.Tombstone.Deletion
		default:
			continue
		}

		if err := dataSink.Write(unit); err != nil {
			return ColumnIndex{}, err
		}

		if blockFirst == nil {
			blockFirst = clustering
		}
		blockLast = clustering

		if dataSink.FilePointer()-blockStartOffset >= s.BlockSizeBytes {
			flushBlock(dataSink.FilePointer())
		}
	}

	if err := dataSink.Write([]byte{unitEnd}); err != nil {
		return ColumnIndex{}, err
	}
	flushBlock(dataSink.FilePointer())

	if len(blocks) <= 1 {
		return ColumnIndex{HasFullInlined: true}, nil
	}
	return ColumnIndex{Blocks: blocks}, nil
}

func encodeRowUnit(r *Row) []byte {
	buf := []byte{unitRow}
	buf = appendClusteringValues(buf, r.Clustering)
	buf = encoding.AppendVarint32(buf, uint32(r.CellCount))
	buf = encoding.AppendVarsignedint64(buf, r.Timestamp)
	buf = encoding.AppendVarsignedint64(buf, int64(r.TTL))
	buf = encoding.AppendVarint32(buf, r.LocalDeletionTime)
	buf = encoding.AppendLengthPrefixedSlice(buf, r.Payload)
	return buf
}

func encodeTombstoneUnit(m *RangeTombstoneMarker) []byte {
	buf := []byte{unitTombstone, byte(m.Bound)}
	buf = appendClusteringValues(buf, m.ClusteringValues)
	buf = appendDeletionTime(buf, m.Deletion)
	return buf
}
