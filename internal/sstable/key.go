package sstable

import (
	"bytes"
	"math"

	"github.com/aalhour/sstablewriter/internal/checksum"
)

// maxKeyLength is the largest raw key length the writer will accept: it
// must fit in an unsigned 16-bit length prefix.
const maxKeyLength = math.MaxUint16

// DecoratedKey pairs a raw partition key with its partitioner-derived
// ordering token. Keys compare by token first, then by raw bytes, matching
// the ordering a real partitioner-backed ring uses.
type DecoratedKey struct {
	Token uint64
	Key   []byte
}

// Compare orders a before b: by Token, then by raw key bytes.
func (a DecoratedKey) Compare(b DecoratedKey) int {
	if a.Token != b.Token {
		if a.Token < b.Token {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.Key, b.Key)
}

// Partitioner decorates raw partition keys with an ordering token and
// compares tokens. It is an external collaborator: the writer never
// hardcodes a specific partitioner's hash.
type Partitioner interface {
	// Decorate derives a DecoratedKey from a raw partition key.
	Decorate(key []byte) DecoratedKey

	// CompareTokens orders two tokens, returning <0, 0, or >0.
	CompareTokens(a, b uint64) int
}

// Murmur3Partitioner is the default Partitioner. Its token function is a
// stand-in derived from the key via XXH3 (the partitioner's exact hash is a
// pluggable collaborator per the row-serialization boundary; this is not
// bit-compatible with any specific production ring, only internally
// consistent).
type Murmur3Partitioner struct{}

// Decorate implements Partitioner.
func (Murmur3Partitioner) Decorate(key []byte) DecoratedKey {
	return DecoratedKey{Token: checksum.XXH3_64bits(key), Key: key}
}

// CompareTokens implements Partitioner.
func (Murmur3Partitioner) CompareTokens(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ByteOrderedPartitioner orders keys lexicographically by their raw bytes.
// It is deterministic and human-readable, useful for tests that want a
// predictable ordering independent of a hash function.
type ByteOrderedPartitioner struct{}

// Decorate implements Partitioner. The token is always 0, so every pair of
// keys ties on Token and DecoratedKey.Compare falls through to the raw byte
// comparison.
func (ByteOrderedPartitioner) Decorate(key []byte) DecoratedKey {
	return DecoratedKey{Token: 0, Key: key}
}

// CompareTokens implements Partitioner. ByteOrderedPartitioner does not use
// the token for ordering, so all tokens compare equal here; callers must
// still compare the DecoratedKey's raw bytes, which DecoratedKey.Compare
// does automatically once tokens tie.
func (ByteOrderedPartitioner) CompareTokens(a, b uint64) int {
	return 0
}

// CompareKeys decorates and orders two raw keys under p, used by components
// that only see raw key bytes (e.g. the Bloom filter, which hashes keys
// directly rather than their tokens).
func CompareKeys(p Partitioner, a, b []byte) int {
	da, db := p.Decorate(a), p.Decorate(b)
	return da.Compare(db)
}
