// Package config implements configuration-file parsing for the SSTable
// writer.
//
// This package is internal and not part of the public API.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aalhour/sstablewriter/internal/checksum"
	"github.com/aalhour/sstablewriter/internal/compression"
	"github.com/aalhour/sstablewriter/internal/vfs"
)

// WriterConfig holds the tunables that govern a single table-writer build:
// sampling cadence for the index summary, Bloom filter sizing, compression,
// and the on-disk format version.
type WriterConfig struct {
	// IndexInterval is the nominal number of partitions between retained
	// summary entries. The summary is always sampled densely at
	// MinIndexInterval while appending, then thinned at build time by the
	// ratio IndexInterval/MinIndexInterval so the retained spacing
	// approximates this value; it is clamped to MinIndexInterval if set
	// smaller.
	IndexInterval int

	// MinIndexInterval is the floor the summary builder will not downsample
	// below.
	MinIndexInterval int

	// BaseSamplingLevel bounds the number of entries retained in the final
	// downsampled summary.
	BaseSamplingLevel int

	// ExpectedKeys is the estimated number of partitions the table will
	// hold, used with FilterFPChance to size the Bloom filter
	// (expectedKeys, FilterFPChance) -> (m, k). Callers that know the real
	// partition count up front (or a close estimate, e.g. from a prior
	// flush or compaction's input size) should set this; a table built
	// with too low an estimate saturates its filter and degrades toward
	// returning true for every lookup.
	ExpectedKeys int64

	// FilterFPChance is the target false-positive rate used to size the
	// Bloom filter (expectedKeys, FilterFPChance) -> (m, k).
	FilterFPChance float64

	// FilterLegacyHashOrder selects the legacy byte-order convention for
	// Bloom filter probe hashing, kept for format-version compatibility.
	FilterLegacyHashOrder bool

	// LargePartitionWarningBytes is the row-size threshold above which
	// TableWriter.Append logs a warning.
	LargePartitionWarningBytes int64

	// Compression selects the data-file codec.
	Compression compression.Type

	// CompressionChunkKB is the chunk size, in KiB, used to frame compressed
	// chunks in the CompressionInfo sidecar.
	CompressionChunkKB int

	// FormatVersion gates the on-disk layout of the summary and filter
	// files.
	FormatVersion int

	// ChecksumType selects the per-chunk checksum algorithm for the Crc
	// sidecar and the whole-file Digest.
	ChecksumType checksum.Type
}

// DefaultWriterConfig returns the configuration used when no config file is
// supplied.
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		IndexInterval:              128,
		MinIndexInterval:           128,
		BaseSamplingLevel:          128,
		ExpectedKeys:               1,
		FilterFPChance:             0.01,
		FilterLegacyHashOrder:      false,
		LargePartitionWarningBytes: 100 * 1024 * 1024,
		Compression:                compression.NoCompression,
		CompressionChunkKB:         64,
		FormatVersion:              1,
		ChecksumType:               checksum.TypeCRC32C,
	}
}

// ParseConfigFile reads and parses a writer config file from fs.
func ParseConfigFile(fs vfs.FS, path string) (*WriterConfig, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ParseConfig(f)
}

// ParseConfig parses a writer config from r. Unrecognized keys are ignored;
// malformed values keep the default for that field.
func ParseConfig(r io.Reader) (*WriterConfig, error) {
	cfg := DefaultWriterConfig()

	scanner := bufio.NewScanner(r)
	section := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = line[1 : len(line)-1]
			continue
		}

		if section != "TableOptions" {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "index_interval":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.IndexInterval = v
			}
		case "min_index_interval":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.MinIndexInterval = v
			}
		case "expected_keys":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				cfg.ExpectedKeys = v
			}
		case "base_sampling_level":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.BaseSamplingLevel = v
			}
		case "filter_fp_chance":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				cfg.FilterFPChance = v
			}
		case "filter_legacy_hash_order":
			if v, err := strconv.ParseBool(value); err == nil {
				cfg.FilterLegacyHashOrder = v
			}
		case "large_partition_warning_bytes":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				cfg.LargePartitionWarningBytes = v
			}
		case "compression":
			cfg.Compression = StringToCompressionType(value)
		case "compression_chunk_kb":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.CompressionChunkKB = v
			}
		case "format_version":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.FormatVersion = v
			}
		case "checksum_type":
			cfg.ChecksumType = StringToChecksumType(value)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// StringToCompressionType converts a config-file compression name to a
// compression.Type, defaulting to NoCompression for unrecognized names.
func StringToCompressionType(s string) compression.Type {
	switch s {
	case "none":
		return compression.NoCompression
	case "snappy":
		return compression.SnappyCompression
	case "deflate":
		return compression.ZlibCompression
	case "lz4":
		return compression.LZ4Compression
	case "lz4hc":
		return compression.LZ4HCCompression
	case "zstd":
		return compression.ZstdCompression
	default:
		return compression.NoCompression
	}
}

// StringToChecksumType converts a config-file checksum name to a
// checksum.Type, defaulting to CRC32C for unrecognized names.
func StringToChecksumType(s string) checksum.Type {
	switch s {
	case "none":
		return checksum.TypeNoChecksum
	case "crc32c":
		return checksum.TypeCRC32C
	case "xxh3":
		return checksum.TypeXXH3
	default:
		return checksum.TypeCRC32C
	}
}
