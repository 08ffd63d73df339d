// sink.go implements the Sequential File Sink (C1): a buffered,
// mark/rewindable append-only byte sink with an explicit two-phase
// (prepare/commit/abort) lifecycle. Every other component file (PrimaryIndex,
// Summary, Filter, Statistics, Crc, CompressionInfo, Digest, Toc) is backed
// by one of these; Data additionally layers compression and a checksum
// sidecar on top (see datasink.go).
package sstable

import (
	"bufio"

	"github.com/aalhour/sstablewriter/internal/vfs"
)

// sinkState tracks where a SequentialSink is in its lifecycle.
type sinkState int

const (
	sinkOpen sinkState = iota
	sinkCommitted
	sinkAborted
)

// PostFlushListener is invoked with the last-flushed logical offset after
// every successful sync.
type PostFlushListener func(flushedOffset int64)

// SequentialSink is an append-only, buffered, mark/rewindable byte sink for
// a single component file, with a temp-name-until-commit lifecycle.
//
// Not safe for concurrent use: append/mark/resetAndTruncate/prepareToCommit/
// commit/abort are called from the single writer goroutine only — the
// write path is single-threaded per writer.
type SequentialSink struct {
	fs        vfs.FS
	kind      ComponentKind
	tempPath  string
	finalPath string

	file vfs.WritableFile
	buf  *bufio.Writer

	logicalPos int64 // next-write offset, i.e. bytes accepted so far
	flushedPos int64 // bytes handed to the OS (post bufio.Writer.Flush)

	listener PostFlushListener

	state sinkState
	err   error
}

// OpenSink creates kind's temp file under fs and returns a sink ready to
// accept writes.
func OpenSink(fs vfs.FS, descriptor Descriptor, kind ComponentKind) (*SequentialSink, error) {
	tempPath := descriptor.TempPath(kind)
	f, err := fs.Create(tempPath)
	if err != nil {
		return nil, NewWriteError(kind, tempPath, err)
	}
	return &SequentialSink{
		fs:        fs,
		kind:      kind,
		tempPath:  tempPath,
		finalPath: descriptor.Path(kind),
		file:      f,
		buf:       bufio.NewWriterSize(f, 64*1024),
	}, nil
}

// Write appends data to the sink. It never writes partially: on any error
// the sink is poisoned and the error (wrapped in a WriteError) is returned
// from this and every subsequent call.
func (s *SequentialSink) Write(data []byte) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	n, err := s.buf.Write(data)
	s.logicalPos += int64(n)
	if err != nil {
		s.err = NewWriteError(s.kind, s.tempPath, err)
		return s.err
	}
	return nil
}

func (s *SequentialSink) checkWritable() error {
	if s.err != nil {
		return s.err
	}
	switch s.state {
	case sinkCommitted:
		return ErrBuilderFinished
	case sinkAborted:
		return ErrBuilderAborted
	}
	return nil
}

// FilePointer returns the logical (uncompressed) byte offset of the next
// write.
func (s *SequentialSink) FilePointer() int64 {
	return s.logicalPos
}

// OnDiskFilePointer returns the physical on-disk position. For an
// uncompressed SequentialSink this equals FilePointer.
func (s *SequentialSink) OnDiskFilePointer() int64 {
	return s.logicalPos
}

// Mark captures the current logical position for a later ResetAndTruncate.
func (s *SequentialSink) Mark() int64 {
	return s.logicalPos
}

// ResetAndTruncate discards every byte written after mark. The physical
// file is truncated to the corresponding on-disk length; nothing written
// after mark remains observable once this returns.
func (s *SequentialSink) ResetAndTruncate(mark int64) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		s.err = NewWriteError(s.kind, s.tempPath, err)
		return s.err
	}
	if err := s.file.Truncate(mark); err != nil {
		s.err = NewWriteError(s.kind, s.tempPath, err)
		return s.err
	}
	s.logicalPos = mark
	s.flushedPos = min(s.flushedPos, mark)
	s.buf.Reset(s.file)
	return nil
}

// SetPostFlushListener registers cb to be invoked with the last-flushed
// logical offset after each Sync.
func (s *SequentialSink) SetPostFlushListener(cb PostFlushListener) {
	s.listener = cb
}

// Sync flushes buffered data to the OS, fsyncs, and invokes the post-flush
// listener with the newly durable offset.
func (s *SequentialSink) Sync() error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		s.err = NewWriteError(s.kind, s.tempPath, err)
		return s.err
	}
	if err := s.file.Sync(); err != nil {
		s.err = NewWriteError(s.kind, s.tempPath, err)
		return s.err
	}
	s.flushedPos = s.logicalPos
	if s.listener != nil {
		s.listener(s.flushedPos)
	}
	return nil
}

// PrepareToCommit flushes the tail and fsyncs. It is idempotent once the
// sink has already committed (a no-op), but is not re-invocable after
// Abort.
func (s *SequentialSink) PrepareToCommit() error {
	if s.state == sinkCommitted {
		return nil
	}
	if s.state == sinkAborted {
		return ErrBuilderAborted
	}
	if s.err != nil {
		return s.err
	}
	return s.Sync()
}

// Commit closes the temp file and renames it to its final name. The parent
// directory fsync that makes the rename durable is the caller's
// responsibility (TableWriter.Commit performs it once, after every
// component's rename has succeeded).
func (s *SequentialSink) Commit() error {
	if s.state == sinkCommitted {
		return nil
	}
	if s.state == sinkAborted {
		return ErrBuilderAborted
	}
	if s.err != nil {
		return s.err
	}
	if err := s.file.Close(); err != nil {
		return NewWriteError(s.kind, s.tempPath, err)
	}
	if err := s.fs.Rename(s.tempPath, s.finalPath); err != nil {
		return NewWriteError(s.kind, s.finalPath, err)
	}
	s.state = sinkCommitted
	return nil
}

// Abort closes and unlinks the temp file. Valid from any pre-commit state.
func (s *SequentialSink) Abort() error {
	if s.state == sinkCommitted {
		return nil
	}
	_ = s.file.Close()
	err := s.fs.Remove(s.tempPath)
	s.state = sinkAborted
	if err != nil && !s.fs.Exists(s.tempPath) {
		// Already gone: not an error for abort purposes.
		return nil
	}
	return NewWriteError(s.kind, s.tempPath, err)
}

// Path returns the sink's current path: the temp path until Commit, the
// final path after.
func (s *SequentialSink) Path() string {
	if s.state == sinkCommitted {
		return s.finalPath
	}
	return s.tempPath
}
