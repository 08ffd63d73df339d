// summaryio.go serializes IndexSummary into the Summary component file as a
// header (samplingLevel, minIndexInterval, fullSamplingLevel, entryCount)
// followed by an offsets table, then a packed keys region, then first key
// and last key, then the segmented-file builder snapshot needed for reopen.
package sstable

import (
	"fmt"

	"github.com/aalhour/sstablewriter/internal/encoding"
)

// WriteIndexSummary serializes summary, plus the segmented-file builder
// offsets a reopen needs to reconstruct the data/index file layout, to
// sink.
func WriteIndexSummary(sink *SequentialSink, summary IndexSummary, segmentOffsets []int64) error {
	var buf []byte
	buf = encoding.AppendVarint32(buf, uint32(summary.SamplingLevel))
	buf = encoding.AppendVarint32(buf, uint32(summary.MinIndexInterval))
	buf = encoding.AppendVarint32(buf, uint32(summary.FullSamplingLevel))
	buf = encoding.AppendVarint32(buf, uint32(len(summary.Entries)))

	for _, e := range summary.Entries {
		buf = encoding.AppendVarsignedint64(buf, e.IndexOffset)
	}
	for _, e := range summary.Entries {
		buf = encoding.AppendLengthPrefixedSlice(buf, e.Key)
	}

	buf = encoding.AppendLengthPrefixedSlice(buf, summary.FirstKey)
	buf = encoding.AppendLengthPrefixedSlice(buf, summary.LastKey)

	buf = encoding.AppendVarint32(buf, uint32(len(segmentOffsets)))
	for _, off := range segmentOffsets {
		buf = encoding.AppendVarsignedint64(buf, off)
	}

	return sink.Write(buf)
}

// ReadIndexSummary parses the Summary component produced by
// WriteIndexSummary.
func ReadIndexSummary(data []byte) (IndexSummary, []int64, error) {
	s := encoding.NewSlice(data)

	samplingLevel, ok := s.GetVarint32()
	if !ok {
		return IndexSummary{}, nil, fmt.Errorf("sstable: truncated summary header")
	}
	minIndexInterval, ok := s.GetVarint32()
	if !ok {
		return IndexSummary{}, nil, fmt.Errorf("sstable: truncated summary header")
	}
	fullSamplingLevel, ok := s.GetVarint32()
	if !ok {
		return IndexSummary{}, nil, fmt.Errorf("sstable: truncated summary header")
	}
	entryCount, ok := s.GetVarint32()
	if !ok {
		return IndexSummary{}, nil, fmt.Errorf("sstable: truncated summary header")
	}

	offsets := make([]int64, entryCount)
	for i := range offsets {
		v, ok := s.GetVarsignedint64()
		if !ok {
			return IndexSummary{}, nil, fmt.Errorf("sstable: truncated summary offsets table")
		}
		offsets[i] = v
	}

	entries := make([]SummaryEntry, entryCount)
	for i := range entries {
		key, ok := s.GetLengthPrefixedSlice()
		if !ok {
			return IndexSummary{}, nil, fmt.Errorf("sstable: truncated summary keys region")
		}
		entries[i] = SummaryEntry{Key: key, IndexOffset: offsets[i]}
	}

	firstKey, ok := s.GetLengthPrefixedSlice()
	if !ok {
		return IndexSummary{}, nil, fmt.Errorf("sstable: truncated summary first key")
	}
	lastKey, ok := s.GetLengthPrefixedSlice()
	if !ok {
		return IndexSummary{}, nil, fmt.Errorf("sstable: truncated summary last key")
	}

	segmentCount, ok := s.GetVarint32()
	if !ok {
		return IndexSummary{}, nil, fmt.Errorf("sstable: truncated summary segment snapshot")
	}
	segments := make([]int64, segmentCount)
	for i := range segments {
		v, ok := s.GetVarsignedint64()
		if !ok {
			return IndexSummary{}, nil, fmt.Errorf("sstable: truncated summary segment snapshot")
		}
		segments[i] = v
	}

	summary := IndexSummary{
		SamplingLevel:     int(samplingLevel),
		MinIndexInterval:  int(minIndexInterval),
		FullSamplingLevel: int(fullSamplingLevel),
		Entries:           entries,
		FirstKey:          firstKey,
		LastKey:           lastKey,
	}
	return summary, segments, nil
}
