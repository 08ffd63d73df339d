package sstable

import (
	"fmt"
	"testing"
)

func TestBloomFilterBuilderNoFalseNegatives(t *testing.T) {
	b := NewBloomFilterBuilder(1000, 0.01, false)
	keys := make([][]byte, 1000)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("key-%04d", i))
		b.Add(keys[i])
	}
	for _, k := range keys {
		if !b.MayContain(k) {
			t.Fatalf("MayContain(%q) = false, want true (false negatives are impossible)", k)
		}
	}
}

func TestBloomFilterBuilderFalsePositiveRateIsReasonable(t *testing.T) {
	const n = 5000
	const fpChance = 0.01
	b := NewBloomFilterBuilder(n, fpChance, false)
	for i := 0; i < n; i++ {
		b.Add([]byte(fmt.Sprintf("present-%05d", i)))
	}

	falsePositives := 0
	const trials = 20000
	for i := 0; i < trials; i++ {
		if b.MayContain([]byte(fmt.Sprintf("absent-%05d", i))) {
			falsePositives++
		}
	}
	rate := float64(falsePositives) / float64(trials)
	// Allow generous slack: a 10x margin over the configured rate still
	// catches a badly broken sizing formula without being flaky.
	if rate > fpChance*10 {
		t.Fatalf("observed false positive rate %.4f far exceeds configured %.4f", rate, fpChance)
	}
}

func TestBloomFilterBuilderLegacyHashOrderDiffers(t *testing.T) {
	key := []byte("some-partition-key")

	a := NewBloomFilterBuilder(100, 0.01, false)
	a.Add(key)

	b := NewBloomFilterBuilder(100, 0.01, true)
	b.Add(key)

	// Both must still find their own key.
	if !a.MayContain(key) || !b.MayContain(key) {
		t.Fatal("both hash orders must find the key they inserted")
	}
}

func TestSharedBloomFilterRefCounting(t *testing.T) {
	b := NewBloomFilterBuilder(10, 0.01, false)
	b.Add([]byte("a"))

	shared := b.SharedCopy()
	if got := shared.RefCount(); got != 1 {
		t.Fatalf("RefCount() = %d, want 1", got)
	}

	clone := shared.Clone()
	if got := shared.RefCount(); got != 2 {
		t.Fatalf("RefCount() after Clone = %d, want 2", got)
	}

	if !clone.MayContain([]byte("a")) {
		t.Fatal("clone should see the same bit array")
	}

	clone.Release()
	if got := shared.RefCount(); got != 1 {
		t.Fatalf("RefCount() after one Release = %d, want 1", got)
	}

	shared.Release()
	if got := shared.RefCount(); got != 0 {
		t.Fatalf("RefCount() after final Release = %d, want 0", got)
	}
}

func TestSharedBloomFilterReleasePastZeroPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic releasing past zero refs")
		}
	}()
	b := NewBloomFilterBuilder(10, 0.01, false)
	shared := b.SharedCopy()
	shared.Release()
	shared.Release()
}

func TestBloomSizingHonorsExtremes(t *testing.T) {
	m, k := bloomSizing(1, 0.5)
	if m == 0 || k < 1 {
		t.Fatalf("bloomSizing(1, 0.5) = (%d, %d), want positive values", m, k)
	}
	if m%8 != 0 {
		t.Fatalf("bloomSizing must round m up to a byte boundary, got %d", m)
	}

	_, k = bloomSizing(1_000_000, 0.0000001)
	if k > 30 {
		t.Fatalf("bloomSizing must clamp k to 30, got %d", k)
	}
}
