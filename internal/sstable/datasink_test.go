package sstable

import (
	"bytes"
	"os"
	"testing"

	"github.com/aalhour/sstablewriter/internal/checksum"
	"github.com/aalhour/sstablewriter/internal/compression"
	"github.com/aalhour/sstablewriter/internal/vfs"
)

func TestDataSinkUncompressedWritesCrcSidecarNotCompressionInfo(t *testing.T) {
	desc := testDescriptor(t)
	ds, err := OpenDataSink(vfs.Default(), desc, compression.NoCompression, checksum.TypeCRC32C, 8)
	if err != nil {
		t.Fatalf("OpenDataSink: %v", err)
	}
	if ds.HasCompressionInfo() {
		t.Fatal("uncompressed DataSink must not report HasCompressionInfo")
	}

	payload := bytes.Repeat([]byte("x"), 100)
	if err := ds.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := ds.PrepareToCommit(); err != nil {
		t.Fatalf("PrepareToCommit: %v", err)
	}
	if err := ds.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := os.Stat(desc.Path(Crc)); err != nil {
		t.Fatalf("Crc sidecar should exist: %v", err)
	}
	if _, err := os.Stat(desc.Path(CompressionInfo)); !os.IsNotExist(err) {
		t.Fatalf("CompressionInfo sidecar must not exist for uncompressed data, stat err = %v", err)
	}

	data, err := os.ReadFile(desc.Path(Data))
	if err != nil {
		t.Fatalf("ReadFile(Data): %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("data file content mismatch: got %d bytes, want %d", len(data), len(payload))
	}
}

func TestDataSinkCompressedWritesCompressionInfoNotCrc(t *testing.T) {
	desc := testDescriptor(t)
	ds, err := OpenDataSink(vfs.Default(), desc, compression.SnappyCompression, checksum.TypeXXH3, 8)
	if err != nil {
		t.Fatalf("OpenDataSink: %v", err)
	}
	if !ds.HasCompressionInfo() {
		t.Fatal("compressed DataSink must report HasCompressionInfo")
	}

	if err := ds.Write(bytes.Repeat([]byte("y"), 64)); err != nil {
		t.Fatal(err)
	}
	if err := ds.PrepareToCommit(); err != nil {
		t.Fatalf("PrepareToCommit: %v", err)
	}
	if err := ds.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := os.Stat(desc.Path(CompressionInfo)); err != nil {
		t.Fatalf("CompressionInfo sidecar should exist: %v", err)
	}
	if _, err := os.Stat(desc.Path(Crc)); !os.IsNotExist(err) {
		t.Fatalf("Crc sidecar must not exist for compressed data, stat err = %v", err)
	}
}

func TestDataSinkResetAndTruncateDiscardsTail(t *testing.T) {
	desc := testDescriptor(t)
	ds, err := OpenDataSink(vfs.Default(), desc, compression.NoCompression, checksum.TypeCRC32C, 4)
	if err != nil {
		t.Fatalf("OpenDataSink: %v", err)
	}
	defer ds.Abort()

	if err := ds.Write([]byte("abcd")); err != nil { // fills one full chunk
		t.Fatal(err)
	}
	mark := ds.Mark()
	if err := ds.Write([]byte("efgh")); err != nil {
		t.Fatal(err)
	}
	if got := ds.FilePointer(); got != 8 {
		t.Fatalf("FilePointer() = %d, want 8", got)
	}

	if err := ds.ResetAndTruncate(mark); err != nil {
		t.Fatalf("ResetAndTruncate: %v", err)
	}
	if got := ds.FilePointer(); got != mark {
		t.Fatalf("FilePointer() after reset = %d, want %d", got, mark)
	}

	if err := ds.Write([]byte("ZZZZ")); err != nil {
		t.Fatal(err)
	}
	if err := ds.PrepareToCommit(); err != nil {
		t.Fatalf("PrepareToCommit: %v", err)
	}
	if err := ds.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	data, err := os.ReadFile(desc.Path(Data))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "abcdZZZZ" {
		t.Fatalf("data file content = %q, want %q", data, "abcdZZZZ")
	}
}

func TestDataSinkDigestCoversFullPlaintext(t *testing.T) {
	desc := testDescriptor(t)
	ds, err := OpenDataSink(vfs.Default(), desc, compression.NoCompression, checksum.TypeCRC32C, 1024)
	if err != nil {
		t.Fatalf("OpenDataSink: %v", err)
	}
	payload := []byte("digest-me")
	if err := ds.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := ds.PrepareToCommit(); err != nil {
		t.Fatalf("PrepareToCommit: %v", err)
	}
	if err := ds.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	digestBytes, err := os.ReadFile(desc.Path(Digest))
	if err != nil {
		t.Fatalf("ReadFile(Digest): %v", err)
	}
	want := checksum.EncodeDigest(checksum.XXH3_64bits(payload))
	if !bytes.Equal(digestBytes, want) {
		t.Fatalf("digest mismatch: got %x want %x", digestBytes, want)
	}
}
