// reader.go exposes the minimal reader-construction handles this package
// produces: segmented-file views over data and index, the index summary,
// the shared Bloom filter, and stats metadata. Key lookup, iteration, and
// query planning are explicitly out of scope for a table writer.
package sstable

import (
	"github.com/aalhour/sstablewriter/internal/vfs"
)

// OpenReason records why a reader was constructed, since Early readers (from
// openEarly or openFinalEarly) have different freshness guarantees than a
// Final reader opened after commit.
type OpenReason int

const (
	// ReasonEarly means the reader was produced by openEarly or
	// openFinalEarly before the writer committed.
	ReasonEarly OpenReason = iota
	// ReasonFinal means the reader was produced after a successful commit.
	ReasonFinal
)

// SegmentedFileView is a bounded, random-access view over a (possibly
// compressed) component file: reads are only permitted within [0, Length),
// the durable prefix the view was constructed over.
type SegmentedFileView struct {
	file   vfs.RandomAccessFile
	length int64
}

// NewSegmentedFileView wraps file, bounding reads to the first length
// bytes.
func NewSegmentedFileView(file vfs.RandomAccessFile, length int64) *SegmentedFileView {
	return &SegmentedFileView{file: file, length: length}
}

// ReadAt reads len(p) bytes starting at off, failing if the read would
// cross the view's durable length bound.
func (v *SegmentedFileView) ReadAt(p []byte, off int64) (int, error) {
	if off+int64(len(p)) > v.length {
		return 0, ErrReadBeyondBoundary
	}
	return v.file.ReadAt(p, off)
}

// Length returns the view's durable length bound.
func (v *SegmentedFileView) Length() int64 {
	return v.length
}

// Close releases the underlying file handle.
func (v *SegmentedFileView) Close() error {
	return v.file.Close()
}

// ErrReadBeyondBoundary is returned by SegmentedFileView.ReadAt when a read
// would extend past the view's durable length bound.
var ErrReadBeyondBoundary = newSentinelError("sstable: read beyond segmented-file view boundary")

func newSentinelError(msg string) error { return sentinelError(msg) }

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

// OpenedReader is the set of handles a reader needs, frozen at the moment
// of construction: segmented views over the durable prefixes of data and
// index, the (possibly boundary-restricted) summary, a shared Bloom filter
// handle, and the accumulated stats known at that point.
type OpenedReader struct {
	Descriptor Descriptor
	Reason     OpenReason

	Data  *SegmentedFileView
	Index *SegmentedFileView

	Summary IndexSummary
	Filter  *SharedBloomFilter
	Stats   *StatsMetadata

	FirstKey []byte
	LastKey  []byte
}

// Close releases the reader's file views and drops its Bloom filter
// reference.
func (r *OpenedReader) Close() error {
	var acc errAccumulator
	if r.Data != nil {
		acc.add(r.Data.Close())
	}
	if r.Index != nil {
		acc.add(r.Index.Close())
	}
	if r.Filter != nil {
		r.Filter.Release()
	}
	return acc.err()
}
