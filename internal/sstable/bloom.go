// bloom.go implements the Bloom Filter Builder (C3). Sizing follows the
// classic formula (m = -n*ln(p)/(ln2)^2, k = (m/n)*ln2) driven by
// expectedKeys/falsePositiveChance, per the filter's contract with the Index
// Writer (C4). The probe-position technique — splitting one 64-bit key hash
// into two 32-bit halves and re-probing with a golden-ratio stride — carries
// over a cache-line Bloom filter's hashing scheme, adapted here to a filter
// sized from (expectedKeys, fpChance) rather than bits-per-key.
package sstable

import (
	"math"
	"sync/atomic"

	"github.com/aalhour/sstablewriter/internal/checksum"
)

// goldenRatio32 is the odd 32-bit multiplicative constant used to derive an
// independent re-probe step from a hash value, the same constant the
// teacher's FastLocalBloom probing uses.
const goldenRatio32 = 0x9e3779b9

// BloomFilterBuilder accumulates partition-key hashes into a bit array
// sized for expectedKeys at falsePositiveChance. It is single-writer: add
// must not be called concurrently with serialize or sharedCopy.
type BloomFilterBuilder struct {
	bits            []byte
	numBits         uint64
	numHashes       int
	legacyHashOrder bool
	numKeys         int
}

// NewBloomFilterBuilder sizes a filter for expectedKeys keys at
// falsePositiveChance false-positive rate, using the classic Bloom filter
// formula. legacyHashOrder selects the byte-order convention used when
// probing (kept for format-version compatibility with older generations).
func NewBloomFilterBuilder(expectedKeys int64, falsePositiveChance float64, legacyHashOrder bool) *BloomFilterBuilder {
	if expectedKeys < 1 {
		expectedKeys = 1
	}
	if falsePositiveChance <= 0 {
		falsePositiveChance = 0.01
	}
	if falsePositiveChance >= 1 {
		falsePositiveChance = 0.999
	}

	numBits, numHashes := bloomSizing(expectedKeys, falsePositiveChance)

	return &BloomFilterBuilder{
		bits:            make([]byte, (numBits+7)/8),
		numBits:         numBits,
		numHashes:       numHashes,
		legacyHashOrder: legacyHashOrder,
	}
}

// bloomSizing computes (m, k) from (n, p) via the classic Bloom filter
// formula: m = -n*ln(p)/(ln2)^2, k = (m/n)*ln2, rounded to usable integers.
func bloomSizing(n int64, p float64) (m uint64, k int) {
	ln2 := math.Ln2
	mf := -float64(n) * math.Log(p) / (ln2 * ln2)
	if mf < 64 {
		mf = 64
	}
	m = (uint64(mf) + 7) / 8 * 8 // round up to a byte boundary

	kf := (mf / float64(n)) * ln2
	k = int(math.Round(kf))
	if k < 1 {
		k = 1
	}
	if k > 30 {
		k = 30
	}
	return m, k
}

// NumKeys returns the number of keys added so far.
func (b *BloomFilterBuilder) NumKeys() int {
	return b.numKeys
}

// EstimatedSize returns the serialized size in bytes.
func (b *BloomFilterBuilder) EstimatedSize() int {
	return len(b.bits) + bloomHeaderLen
}

// Add inserts key's hash into the filter. The filter is never shrunk or
// rewound; a rewind leaves harmless extra positives.
func (b *BloomFilterBuilder) Add(key []byte) {
	h := checksum.XXH3_64bits(key)
	b.addHash(h)
	b.numKeys++
}

func (b *BloomFilterBuilder) addHash(h uint64) {
	hi, lo := bloomHashHalves(h, b.legacyHashOrder)
	probe := lo
	for i := 0; i < b.numHashes; i++ {
		bit := probe % b.numBits
		b.bits[bit/8] |= 1 << (bit % 8)
		probe += hi
		hi += goldenRatio32
	}
}

// bloomHashHalves splits a 64-bit hash into two 32-bit halves used to derive
// independent probe positions without re-hashing per probe. legacyHashOrder
// swaps which half seeds the base probe vs. the step, matching an older
// on-disk format's convention.
func bloomHashHalves(h uint64, legacyHashOrder bool) (step, base uint64) {
	upper := uint32(h >> 32)
	lower := uint32(h)
	if legacyHashOrder {
		return uint64(lower), uint64(upper)
	}
	return uint64(upper), uint64(lower)
}

// MayContain reports whether key might have been added. False negatives are
// impossible; false positives are expected at approximately the configured
// rate.
func (b *BloomFilterBuilder) MayContain(key []byte) bool {
	h := checksum.XXH3_64bits(key)
	hi, lo := bloomHashHalves(h, b.legacyHashOrder)
	probe := lo
	for i := 0; i < b.numHashes; i++ {
		bit := probe % b.numBits
		if b.bits[bit/8]&(1<<(bit%8)) == 0 {
			return false
		}
		probe += hi
		hi += goldenRatio32
	}
	return true
}

// bloomHeaderLen is the fixed header size written ahead of the bit array:
// numHashes (1 byte), legacyHashOrder flag (1 byte), numBits (8 bytes).
const bloomHeaderLen = 10

// Serialize writes the filter's header and bit array to sink.
func (b *BloomFilterBuilder) Serialize(sink *SequentialSink) error {
	header := make([]byte, bloomHeaderLen)
	header[0] = byte(b.numHashes)
	if b.legacyHashOrder {
		header[1] = 1
	}
	for i := range 8 {
		header[2+i] = byte(b.numBits >> (8 * i))
	}
	if err := sink.Write(header); err != nil {
		return err
	}
	return sink.Write(b.bits)
}

// SharedBloomFilter is a reference-counted handle over a built Bloom
// filter's bit array, suitable for handing to readers produced by
// openEarly/openFinalEarly without copying the underlying bytes. The final
// drop frees the filter.
type SharedBloomFilter struct {
	refs *atomic.Int32
	b    *BloomFilterBuilder
}

// SharedCopy returns a new reference-counted handle onto b whose refcount
// starts at 1. Handles from separate SharedCopy calls do not share a
// refcount; only Clone adds to an existing handle's count. Each handle
// returned must eventually be released with Release.
func (b *BloomFilterBuilder) SharedCopy() *SharedBloomFilter {
	return newSharedBloomFilter(b)
}

func newSharedBloomFilter(b *BloomFilterBuilder) *SharedBloomFilter {
	refs := &atomic.Int32{}
	refs.Store(1)
	return &SharedBloomFilter{refs: refs, b: b}
}

// Clone increments the refcount and returns another handle over the same
// filter, used when a second reader is constructed from an already-shared
// handle.
func (s *SharedBloomFilter) Clone() *SharedBloomFilter {
	s.refs.Add(1)
	return &SharedBloomFilter{refs: s.refs, b: s.b}
}

// MayContain reports whether key might be in the filter. It is valid to
// call until Release drops the last reference.
func (s *SharedBloomFilter) MayContain(key []byte) bool {
	return s.b.MayContain(key)
}

// Release decrements the refcount. The underlying bit array becomes
// eligible for garbage collection once the last handle is released: Go has
// no manual free, so the final release simply drops the builder's
// reference and lets the GC reclaim it.
func (s *SharedBloomFilter) Release() {
	if s.refs.Add(-1) < 0 {
		panic("sstable: SharedBloomFilter released more times than acquired")
	}
	s.b = nil
}

// RefCount returns the current number of outstanding handles, for tests.
func (s *SharedBloomFilter) RefCount() int32 {
	return s.refs.Load()
}
