// datasink.go layers compression and a checksum sidecar on top of a plain
// SequentialSink to implement the Data component's write path: uncompressed
// data gets a parallel Crc file with one checksum per buffer-sized chunk
// (a Sync before the end writes the pending bytes as a shorter chunk);
// compressed data gets a CompressionInfo sidecar recording per-chunk
// (uncompressed offset, compressed offset) pairs plus the codec and chunk
// size, with the checksum embedded per chunk instead.
package sstable

import (
	"encoding/binary"

	"github.com/aalhour/sstablewriter/internal/checksum"
	"github.com/aalhour/sstablewriter/internal/compression"
	"github.com/aalhour/sstablewriter/internal/vfs"
)

const (
	compressionInfoHeaderLen = 5  // codec (1 byte) + chunkSize (4 bytes)
	compressionInfoEntryLen  = 20 // uncompressedOffset (8) + compressedOffset (8) + crc (4)
	crcHeaderLen             = 5  // chunkSize (4 bytes) + checksumType (1 byte)
	crcEntryLen              = 4
)

// chunkOffsetEntry records the uncompressed/compressed offsets at a chunk
// boundary, used both to build the CompressionInfo sidecar and to know how
// far to truncate every sidecar on ResetAndTruncate.
type chunkOffsetEntry struct {
	uncompressed int64
	compressed   int64
}

// DataSink is the Data component's sink: a SequentialSink for the (possibly
// compressed) byte stream, plus whichever checksum sidecar the configured
// compression type requires, plus a whole-file Digest accumulator.
type DataSink struct {
	data     *SequentialSink
	crc      *SequentialSink // non-nil iff compressionType == NoCompression
	compInfo *SequentialSink // non-nil iff compressionType != NoCompression
	digest   *SequentialSink

	compressionType compression.Type
	checksumType    checksum.Type
	chunkSize       int

	plaintext   []byte // full mirror of bytes written since open/last reset, for chunking + digest
	pendingFrom int64  // offset into plaintext where the next unflushed chunk begins
	chunks      []chunkOffsetEntry

	logicalPos int64
}

// OpenDataSink opens the Data sink and whichever sidecar the compression
// type requires.
func OpenDataSink(fs vfs.FS, descriptor Descriptor, compressionType compression.Type, checksumType checksum.Type, chunkSizeBytes int) (*DataSink, error) {
	if chunkSizeBytes <= 0 {
		chunkSizeBytes = 64 * 1024
	}

	data, err := OpenSink(fs, descriptor, Data)
	if err != nil {
		return nil, err
	}

	ds := &DataSink{
		data:            data,
		compressionType: compressionType,
		checksumType:    checksumType,
		chunkSize:       chunkSizeBytes,
	}

	if compressionType == compression.NoCompression {
		crc, err := OpenSink(fs, descriptor, Crc)
		if err != nil {
			return nil, err
		}
		ds.crc = crc
		header := make([]byte, crcHeaderLen)
		binary.BigEndian.PutUint32(header, uint32(chunkSizeBytes))
		header[4] = byte(checksumType)
		if err := ds.crc.Write(header); err != nil {
			return nil, err
		}
	} else {
		compInfo, err := OpenSink(fs, descriptor, CompressionInfo)
		if err != nil {
			return nil, err
		}
		ds.compInfo = compInfo
		header := make([]byte, compressionInfoHeaderLen)
		header[0] = byte(compressionType)
		binary.BigEndian.PutUint32(header[1:], uint32(chunkSizeBytes))
		if err := ds.compInfo.Write(header); err != nil {
			return nil, err
		}
	}

	digest, err := OpenSink(fs, descriptor, Digest)
	if err != nil {
		return nil, err
	}
	ds.digest = digest

	return ds, nil
}

// Write appends data to the logical (uncompressed) stream, flushing full
// chunks to the underlying compressed/checksummed sink as they fill.
func (ds *DataSink) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	ds.plaintext = append(ds.plaintext, data...)
	ds.logicalPos += int64(len(data))

	for int64(len(ds.plaintext))-ds.pendingFrom >= int64(ds.chunkSize) {
		if err := ds.flushChunk(ds.pendingFrom + int64(ds.chunkSize)); err != nil {
			return err
		}
	}
	return nil
}

// flushChunk compresses (if configured) and writes plaintext[pendingFrom:to]
// to the underlying sink, recording a chunk offset entry and advancing
// pendingFrom to to.
func (ds *DataSink) flushChunk(to int64) error {
	chunk := ds.plaintext[ds.pendingFrom:to]

	if ds.compressionType == compression.NoCompression {
		compressedOffsetBefore := ds.data.OnDiskFilePointer()
		if err := ds.data.Write(chunk); err != nil {
			return err
		}
		crcValue := checksum.ComputeChecksum(ds.checksumType, chunk, 0)
		crcBytes := make([]byte, crcEntryLen)
		binary.BigEndian.PutUint32(crcBytes, crcValue)
		if err := ds.crc.Write(crcBytes); err != nil {
			return err
		}
		ds.chunks = append(ds.chunks, chunkOffsetEntry{uncompressed: to, compressed: compressedOffsetBefore + int64(len(chunk))})
	} else {
		compressed, err := compression.Compress(ds.compressionType, chunk)
		if err != nil {
			return NewWriteError(Data, ds.data.Path(), err)
		}
		if compressed == nil {
			// Incompressible: store the chunk verbatim.
			compressed = chunk
		}
		uncompressedOffsetBefore := ds.pendingFrom
		compressedOffsetBefore := ds.data.OnDiskFilePointer()
		entry := make([]byte, compressionInfoEntryLen)
		binary.BigEndian.PutUint64(entry[0:8], uint64(uncompressedOffsetBefore))
		binary.BigEndian.PutUint64(entry[8:16], uint64(compressedOffsetBefore))
		binary.BigEndian.PutUint32(entry[16:20], checksum.ComputeChecksum(ds.checksumType, compressed, 0))
		if err := ds.compInfo.Write(entry); err != nil {
			return err
		}
		if err := ds.data.Write(compressed); err != nil {
			return err
		}
		ds.chunks = append(ds.chunks, chunkOffsetEntry{uncompressed: to, compressed: compressedOffsetBefore + int64(len(compressed))})
	}

	ds.pendingFrom = to
	return nil
}

// FilePointer returns the logical (uncompressed) byte offset of the next
// write.
func (ds *DataSink) FilePointer() int64 {
	return ds.logicalPos
}

// OnDiskFilePointer returns the physical on-disk position of the underlying
// (possibly compressed) sink, reflecting only fully-flushed chunks.
func (ds *DataSink) OnDiskFilePointer() int64 {
	return ds.data.OnDiskFilePointer()
}

// Mark captures the current logical position.
func (ds *DataSink) Mark() int64 {
	return ds.logicalPos
}

// ResetAndTruncate discards every logical byte written after mark,
// truncating the underlying data sink and its checksum sidecar to match.
func (ds *DataSink) ResetAndTruncate(mark int64) error {
	keep := 0
	for keep < len(ds.chunks) && ds.chunks[keep].uncompressed <= mark {
		keep++
	}
	ds.chunks = ds.chunks[:keep]

	physicalTruncate := int64(0)
	if keep > 0 {
		physicalTruncate = ds.chunks[keep-1].compressed
	}
	if err := ds.data.ResetAndTruncate(physicalTruncate); err != nil {
		return err
	}

	if ds.crc != nil {
		if err := ds.crc.ResetAndTruncate(int64(crcHeaderLen + keep*crcEntryLen)); err != nil {
			return err
		}
	}
	if ds.compInfo != nil {
		if err := ds.compInfo.ResetAndTruncate(int64(compressionInfoHeaderLen + keep*compressionInfoEntryLen)); err != nil {
			return err
		}
	}

	pendingFrom := int64(0)
	if keep > 0 {
		pendingFrom = ds.chunks[keep-1].uncompressed
	}
	ds.plaintext = ds.plaintext[:mark]
	ds.pendingFrom = pendingFrom
	ds.logicalPos = mark
	return nil
}

// SetPostFlushListener registers cb against the underlying data sink's
// sync, which is what advances the data half of the readable boundary.
func (ds *DataSink) SetPostFlushListener(cb PostFlushListener) {
	ds.data.SetPostFlushListener(cb)
}

// Sync writes any pending partial chunk to the data sink as a chunk of its
// own (shorter than chunkSize), then flushes and fsyncs the data sink and
// its sidecar, so the on-disk data covers every byte written so far.
func (ds *DataSink) Sync() error {
	if int64(len(ds.plaintext)) > ds.pendingFrom {
		if err := ds.flushChunk(int64(len(ds.plaintext))); err != nil {
			return err
		}
	}
	if err := ds.data.Sync(); err != nil {
		return err
	}
	if ds.crc != nil {
		return ds.crc.Sync()
	}
	return ds.compInfo.Sync()
}

// PrepareToCommit flushes the final partial chunk, finalizes the checksum
// sidecar, writes the whole-file Digest, and fsyncs everything.
func (ds *DataSink) PrepareToCommit() error {
	if int64(len(ds.plaintext)) > ds.pendingFrom {
		if err := ds.flushChunk(int64(len(ds.plaintext))); err != nil {
			return err
		}
	}

	digestValue := checksum.XXH3_64bits(ds.plaintext)
	if err := ds.digest.Write(checksum.EncodeDigest(digestValue)); err != nil {
		return err
	}

	var acc errAccumulator
	acc.add(ds.data.PrepareToCommit())
	if ds.crc != nil {
		acc.add(ds.crc.PrepareToCommit())
	} else {
		acc.add(ds.compInfo.PrepareToCommit())
	}
	acc.add(ds.digest.PrepareToCommit())
	return acc.err()
}

// Commit renames the data sink and its sidecars to their final names.
func (ds *DataSink) Commit() error {
	var acc errAccumulator
	acc.add(ds.data.Commit())
	if ds.crc != nil {
		acc.add(ds.crc.Commit())
	} else {
		acc.add(ds.compInfo.Commit())
	}
	acc.add(ds.digest.Commit())
	return acc.err()
}

// Abort closes and unlinks the data sink and its sidecars.
func (ds *DataSink) Abort() error {
	var acc errAccumulator
	acc.add(ds.data.Abort())
	if ds.crc != nil {
		acc.add(ds.crc.Abort())
	} else {
		acc.add(ds.compInfo.Abort())
	}
	acc.add(ds.digest.Abort())
	return acc.err()
}

// HasCompressionInfo reports whether this sink emits a CompressionInfo
// sidecar (true) or a Crc sidecar (false).
func (ds *DataSink) HasCompressionInfo() bool {
	return ds.compInfo != nil
}

// Path returns the data file's current path.
func (ds *DataSink) Path() string {
	return ds.data.Path()
}
