package config

import (
	"strings"
	"testing"

	"github.com/aalhour/sstablewriter/internal/checksum"
	"github.com/aalhour/sstablewriter/internal/compression"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	want := DefaultWriterConfig()
	if *cfg != *want {
		t.Errorf("ParseConfig(empty) = %+v, want %+v", cfg, want)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	input := `
# comment line

[TableOptions]
index_interval = 64
min_index_interval = 32
base_sampling_level = 256
expected_keys = 500000
filter_fp_chance = 0.001
filter_legacy_hash_order = true
large_partition_warning_bytes = 1048576
compression = lz4
compression_chunk_kb = 32
format_version = 2
checksum_type = xxh3
`
	cfg, err := ParseConfig(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if cfg.IndexInterval != 64 {
		t.Errorf("IndexInterval = %d, want 64", cfg.IndexInterval)
	}
	if cfg.MinIndexInterval != 32 {
		t.Errorf("MinIndexInterval = %d, want 32", cfg.MinIndexInterval)
	}
	if cfg.BaseSamplingLevel != 256 {
		t.Errorf("BaseSamplingLevel = %d, want 256", cfg.BaseSamplingLevel)
	}
	if cfg.ExpectedKeys != 500000 {
		t.Errorf("ExpectedKeys = %d, want 500000", cfg.ExpectedKeys)
	}
	if cfg.FilterFPChance != 0.001 {
		t.Errorf("FilterFPChance = %v, want 0.001", cfg.FilterFPChance)
	}
	if !cfg.FilterLegacyHashOrder {
		t.Error("FilterLegacyHashOrder = false, want true")
	}
	if cfg.LargePartitionWarningBytes != 1048576 {
		t.Errorf("LargePartitionWarningBytes = %d, want 1048576", cfg.LargePartitionWarningBytes)
	}
	if cfg.Compression != compression.LZ4Compression {
		t.Errorf("Compression = %v, want LZ4", cfg.Compression)
	}
	if cfg.CompressionChunkKB != 32 {
		t.Errorf("CompressionChunkKB = %d, want 32", cfg.CompressionChunkKB)
	}
	if cfg.FormatVersion != 2 {
		t.Errorf("FormatVersion = %d, want 2", cfg.FormatVersion)
	}
	if cfg.ChecksumType != checksum.TypeXXH3 {
		t.Errorf("ChecksumType = %v, want XXH3", cfg.ChecksumType)
	}
}

func TestParseConfigIgnoresUnknownSection(t *testing.T) {
	input := `
[DBOptions]
index_interval = 999

[TableOptions]
index_interval = 64
`
	cfg, err := ParseConfig(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.IndexInterval != 64 {
		t.Errorf("IndexInterval = %d, want 64 (DBOptions section should be ignored)", cfg.IndexInterval)
	}
}

func TestStringToCompressionType(t *testing.T) {
	cases := map[string]compression.Type{
		"none":    compression.NoCompression,
		"snappy":  compression.SnappyCompression,
		"deflate": compression.ZlibCompression,
		"lz4":     compression.LZ4Compression,
		"lz4hc":   compression.LZ4HCCompression,
		"zstd":    compression.ZstdCompression,
		"bogus":   compression.NoCompression,
	}
	for name, want := range cases {
		if got := StringToCompressionType(name); got != want {
			t.Errorf("StringToCompressionType(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestStringToChecksumType(t *testing.T) {
	cases := map[string]checksum.Type{
		"none":   checksum.TypeNoChecksum,
		"crc32c": checksum.TypeCRC32C,
		"xxh3":   checksum.TypeXXH3,
		"bogus":  checksum.TypeCRC32C,
	}
	for name, want := range cases {
		if got := StringToChecksumType(name); got != want {
			t.Errorf("StringToChecksumType(%q) = %v, want %v", name, got, want)
		}
	}
}
