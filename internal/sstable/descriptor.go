package sstable

import (
	"fmt"
	"path/filepath"
)

// ComponentKind identifies one of the files that make up an SSTable
// generation.
type ComponentKind int

const (
	// Data holds the concatenated partition blocks.
	Data ComponentKind = iota
	// PrimaryIndex maps partition keys to their offset in Data.
	PrimaryIndex
	// Summary is the sparsely sampled in-memory index over PrimaryIndex.
	Summary
	// Filter is the Bloom filter bit array.
	Filter
	// Statistics holds the aggregated StatsMetadata.
	Statistics
	// CompressionInfo records per-chunk offsets when Data is compressed.
	// Mutually exclusive with Crc.
	CompressionInfo
	// Crc records one checksum (of the configured checksum type) per
	// uncompressed Data chunk. Mutually exclusive with CompressionInfo.
	Crc
	// Digest is a whole-file checksum of Data.
	Digest
	// Toc lists the component kinds present for this generation.
	Toc
)

// String returns the human-readable name used in file names and TOC
// entries.
func (k ComponentKind) String() string {
	switch k {
	case Data:
		return "Data"
	case PrimaryIndex:
		return "Index"
	case Summary:
		return "Summary"
	case Filter:
		return "Filter"
	case Statistics:
		return "Statistics"
	case CompressionInfo:
		return "CompressionInfo"
	case Crc:
		return "CRC"
	case Digest:
		return "Digest"
	case Toc:
		return "TOC"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// extension returns the on-disk file extension for this component kind.
// Toc is a plain text listing; every other component is a binary blob.
func (k ComponentKind) extension() string {
	if k == Toc {
		return "txt"
	}
	return "db"
}

// tempSuffix is appended to every component's file name until the writer
// commits.
const tempSuffix = "-tmp"

// Descriptor is the immutable identity of one SSTable generation: the
// directory it lives in, the keyspace/table it belongs to, the on-disk
// format version, and the generation number. File paths for every component
// kind are derived from it.
type Descriptor struct {
	Directory  string
	Keyspace   string
	Table      string
	Version    string
	Generation int64
}

// NewDescriptor constructs a Descriptor for a fresh generation.
func NewDescriptor(directory, keyspace, table, version string, generation int64) Descriptor {
	return Descriptor{
		Directory:  directory,
		Keyspace:   keyspace,
		Table:      table,
		Version:    version,
		Generation: generation,
	}
}

// baseName returns the component-kind-free file stem:
// "<keyspace>-<table>-<version>-<generation>".
func (d Descriptor) baseName() string {
	return fmt.Sprintf("%s-%s-%s-%d", d.Keyspace, d.Table, d.Version, d.Generation)
}

// FileName returns the final (non-temp) file name for kind.
func (d Descriptor) FileName(kind ComponentKind) string {
	return fmt.Sprintf("%s-%s.%s", d.baseName(), kind, kind.extension())
}

// TempFileName returns the temporary file name used while kind is being
// written, before commit renames it to FileName.
func (d Descriptor) TempFileName(kind ComponentKind) string {
	return d.FileName(kind) + tempSuffix
}

// Path returns the absolute final path for kind.
func (d Descriptor) Path(kind ComponentKind) string {
	return filepath.Join(d.Directory, d.FileName(kind))
}

// TempPath returns the absolute temporary path for kind.
func (d Descriptor) TempPath(kind ComponentKind) string {
	return filepath.Join(d.Directory, d.TempFileName(kind))
}
