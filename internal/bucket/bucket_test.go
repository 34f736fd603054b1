package bucket

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_KnownValues(t *testing.T) {
	// Hand-computed: h = h*31 + charCode.
	tests := []struct {
		key  string
		want int
	}{
		{"", 0},
		{"a", 97},
		{"ab", 97*31 + 98},   // 3105
		{"abc", 3105*31 + 99}, // 96354
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Hash(tt.key), "Hash(%q)", tt.key)
	}
}

func TestHash_SurrogatePairs(t *testing.T) {
	// Supplementary characters hash as two UTF-16 code units, matching
	// charCode-based implementations. U+1F600 encodes as D83D DE00:
	// h = 0xD83D; h = h*31 + 0xDE00.
	assert.Equal(t, 55357*31+56832, Hash("\U0001F600"))
	// BMP characters are a single unit.
	assert.Equal(t, 233, Hash("é"))
	// Mixed ASCII and supplementary.
	assert.Equal(t, (97*31+55357)*31+56832, Hash("a\U0001F600"))
}

func TestHash_NonNegative(t *testing.T) {
	// Long keys overflow the 32-bit accumulator; the result must still
	// be non-negative.
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("user-%d-some-long-suffix-to-force-overflow", i)
		if h := Hash(key); h < 0 {
			t.Fatalf("Hash(%q) = %d, want non-negative", key, h)
		}
	}
}

func TestHash_Deterministic(t *testing.T) {
	for _, key := range []string{"user-123", "events.creation", "anon-9f2c"} {
		assert.Equal(t, Hash(key), Hash(key), "Hash(%q) not stable", key)
	}
}

func TestBucket_Range(t *testing.T) {
	for i := 0; i < 5000; i++ {
		b := Bucket(fmt.Sprintf("user-%d", i), 100)
		if b < 0 || b >= 100 {
			t.Fatalf("Bucket out of range: %d", b)
		}
	}
}

func TestBucket_ZeroModulus(t *testing.T) {
	assert.Equal(t, 0, Bucket("anything", 0))
	assert.Equal(t, 0, Bucket("anything", -5))
}

func TestBucket_Distribution(t *testing.T) {
	// With modulus 100, the lower half of buckets should capture roughly
	// half of a large sample of distinct keys.
	total := 10000
	lower := 0
	for i := 0; i < total; i++ {
		if Bucket(fmt.Sprintf("user-%d", i), 100) < 50 {
			lower++
		}
	}
	pct := float64(lower) / float64(total) * 100
	if pct < 45 || pct > 55 {
		t.Errorf("expected ~50%% of keys below bucket 50, got %.2f%%", pct)
	}
}
