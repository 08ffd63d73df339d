// encode.go serializes RowIndexEntry records for the primary index file as
// a concatenation of (u16-prefixed key, serialized RowIndexEntry) records,
// built on the varint/length-prefixed encoding primitives in
// internal/encoding.
package sstable

import (
	"fmt"

	"github.com/aalhour/sstablewriter/internal/encoding"
)

// AppendKey appends key with a u16 length prefix, the on-disk convention for
// both the data file's partition header and the primary index's key field.
func AppendKey(dst []byte, key []byte) []byte {
	dst = encoding.AppendFixed16(dst, uint16(len(key)))
	return append(dst, key...)
}

// ReadKey reads a u16-length-prefixed key from src, returning the key bytes
// and the number of bytes consumed.
func ReadKey(src []byte) (key []byte, n int, err error) {
	s := encoding.NewSlice(src)
	length, ok := s.GetFixed16()
	if !ok {
		return nil, 0, fmt.Errorf("sstable: truncated key length prefix")
	}
	b, ok := s.GetBytes(int(length))
	if !ok {
		return nil, 0, fmt.Errorf("sstable: truncated key (want %d bytes)", length)
	}
	return b, len(src) - s.Remaining(), nil
}

func appendDeletionTime(dst []byte, d DeletionTime) []byte {
	dst = encoding.AppendVarsignedint64(dst, d.MarkedForDeleteAt)
	dst = encoding.AppendVarint32(dst, d.LocalDeletionTime)
	return dst
}

func readDeletionTime(s *encoding.Slice) (DeletionTime, error) {
	markedAt, ok := s.GetVarsignedint64()
	if !ok {
		return DeletionTime{}, fmt.Errorf("sstable: truncated deletion time")
	}
	localAt, ok := s.GetVarint32()
	if !ok {
		return DeletionTime{}, fmt.Errorf("sstable: truncated deletion time")
	}
	return DeletionTime{MarkedForDeleteAt: markedAt, LocalDeletionTime: localAt}, nil
}

func appendClusteringValues(dst []byte, values [][]byte) []byte {
	dst = encoding.AppendVarint32(dst, uint32(len(values)))
	for _, v := range values {
		dst = encoding.AppendLengthPrefixedSlice(dst, v)
	}
	return dst
}

func readClusteringValues(s *encoding.Slice) ([][]byte, error) {
	count, ok := s.GetVarint32()
	if !ok {
		return nil, fmt.Errorf("sstable: truncated clustering value count")
	}
	values := make([][]byte, count)
	for i := range values {
		v, ok := s.GetLengthPrefixedSlice()
		if !ok {
			return nil, fmt.Errorf("sstable: truncated clustering value")
		}
		values[i] = v
	}
	return values, nil
}

func appendColumnIndexBlock(dst []byte, b ColumnIndexBlock) []byte {
	dst = appendClusteringValues(dst, b.FirstClustering)
	dst = appendClusteringValues(dst, b.LastClustering)
	dst = encoding.AppendVarsignedint64(dst, b.OffsetWithinPartition)
	dst = encoding.AppendVarsignedint64(dst, b.Width)
	dst = appendDeletionTime(dst, b.OpenTombstoneAtBoundary)
	return dst
}

func readColumnIndexBlock(s *encoding.Slice) (ColumnIndexBlock, error) {
	var b ColumnIndexBlock
	var err error
	if b.FirstClustering, err = readClusteringValues(s); err != nil {
		return b, err
	}
	if b.LastClustering, err = readClusteringValues(s); err != nil {
		return b, err
	}
	offset, ok := s.GetVarsignedint64()
	if !ok {
		return b, fmt.Errorf("sstable: truncated column index block offset")
	}
	width, ok := s.GetVarsignedint64()
	if !ok {
		return b, fmt.Errorf("sstable: truncated column index block width")
	}
	b.OffsetWithinPartition = offset
	b.Width = width
	if b.OpenTombstoneAtBoundary, err = readDeletionTime(s); err != nil {
		return b, err
	}
	return b, nil
}

// EncodeRowIndexEntry serializes entry, appending it to dst.
func EncodeRowIndexEntry(dst []byte, entry RowIndexEntry) []byte {
	dst = encoding.AppendVarsignedint64(dst, entry.Offset)
	dst = appendDeletionTime(dst, entry.DeletionTime)

	inlined := byte(0)
	if entry.Index.HasFullInlined {
		inlined = 1
	}
	dst = append(dst, inlined)

	dst = encoding.AppendVarint32(dst, uint32(len(entry.Index.Blocks)))
	for _, b := range entry.Index.Blocks {
		dst = appendColumnIndexBlock(dst, b)
	}
	return dst
}

// DecodeRowIndexEntry decodes a RowIndexEntry from src, returning the
// number of bytes consumed.
func DecodeRowIndexEntry(src []byte) (RowIndexEntry, int, error) {
	s := encoding.NewSlice(src)
	var entry RowIndexEntry
	var err error

	offset, ok := s.GetVarsignedint64()
	if !ok {
		return entry, 0, fmt.Errorf("sstable: truncated row index entry offset")
	}
	entry.Offset = offset

	if entry.DeletionTime, err = readDeletionTime(s); err != nil {
		return entry, 0, err
	}

	inlined, ok := s.GetBytes(1)
	if !ok {
		return entry, 0, fmt.Errorf("sstable: truncated row index entry inlined flag")
	}
	entry.Index.HasFullInlined = inlined[0] != 0

	blockCount, ok := s.GetVarint32()
	if !ok {
		return entry, 0, fmt.Errorf("sstable: truncated row index entry block count")
	}
	entry.Index.Blocks = make([]ColumnIndexBlock, blockCount)
	for i := range entry.Index.Blocks {
		b, err := readColumnIndexBlock(s)
		if err != nil {
			return entry, 0, err
		}
		entry.Index.Blocks[i] = b
	}

	return entry, len(src) - s.Remaining(), nil
}
