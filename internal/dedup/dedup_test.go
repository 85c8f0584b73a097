package dedup

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSimilar(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		h1, h2      string
		maxDistance int
		want        bool
	}{
		{name: "one apart within budget", h1: "1010", h2: "1011", maxDistance: 1, want: true},
		{name: "one apart over budget", h1: "1010", h2: "1011", maxDistance: 0, want: false},
		{name: "length mismatch", h1: "101", h2: "1011", maxDistance: 2, want: false},
		{name: "length mismatch with huge budget", h1: "101", h2: "1011", maxDistance: 100, want: false},
		{name: "identical", h1: "abcd", h2: "abcd", maxDistance: 0, want: true},
		{name: "empty left", h1: "", h2: "1", maxDistance: 5, want: false},
		{name: "both empty", h1: "", h2: "", maxDistance: 5, want: false},
		{name: "all differ", h1: "0000", h2: "1111", maxDistance: 4, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsSimilar(tc.h1, tc.h2, tc.maxDistance))
			assert.Equal(t, tc.want, IsSimilar(tc.h2, tc.h1, tc.maxDistance))
		})
	}
}

func TestDistance(t *testing.T) {
	t.Parallel()

	d, ok := Distance("10101", "00111")
	require.True(t, ok)
	assert.Equal(t, 2, d)

	_, ok = Distance("1", "10")
	assert.False(t, ok)
}

func TestIsDuplicate(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := HashedItem{ID: "a", PostTime: base, SemanticHash: "1010"}
	near := HashedItem{ID: "b", PostTime: base.Add(30 * time.Second), SemanticHash: "1011"}
	late := HashedItem{ID: "c", PostTime: base.Add(2 * time.Hour), SemanticHash: "1010"}
	noTime := HashedItem{ID: "d", SemanticHash: "1010"}
	noHash := HashedItem{ID: "e", PostTime: base}

	window := int64(time.Minute / time.Millisecond)

	assert.True(t, IsDuplicate(a, near, 1, window))
	assert.False(t, IsDuplicate(a, near, 0, window), "hash gate")
	assert.False(t, IsDuplicate(a, late, 64, window), "time gate ignores identical hashes")
	assert.True(t, IsDuplicate(a, late, 0, int64(2*time.Hour/time.Millisecond)), "gap equal to window is inside")
	assert.False(t, IsDuplicate(a, noTime, 4, window))
	assert.False(t, IsDuplicate(a, noHash, 4, window))
}

func TestIsDuplicateSymmetric(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	items := []HashedItem{
		{ID: "a", PostTime: base, SemanticHash: "0000"},
		{ID: "b", PostTime: base.Add(time.Minute), SemanticHash: "0001"},
		{ID: "c", PostTime: base.Add(-time.Hour), SemanticHash: "0011"},
		{ID: "d", PostTime: base.Add(time.Hour), SemanticHash: "001"},
		{ID: "e", SemanticHash: "0000"},
	}
	for _, left := range items {
		for _, right := range items {
			for _, d := range []int{0, 1, 2, 4} {
				for _, w := range []int64{0, 60_000, 3_600_000, 7_200_000} {
					assert.Equal(t, IsDuplicate(left, right, d, w), IsDuplicate(right, left, d, w),
						"left=%s right=%s d=%d w=%d", left.ID, right.ID, d, w)
				}
			}
		}
	}
}

func TestClassifierExplain(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Classifier{MaxDistance: 1, Window: time.Hour}

	got := c.Explain(
		HashedItem{ID: "a", PostTime: base, SemanticHash: "1100"},
		HashedItem{ID: "b", PostTime: base.Add(2 * time.Hour), SemanticHash: "1101"},
	)
	assert.Equal(t, Compare{Similar: true, Comparable: true, Distance: 1}, got)
}

func TestWindowMatch(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Classifier{MaxDistance: 1, Window: 10 * time.Minute}
	items := []HashedItem{
		{ID: "late", PostTime: base.Add(9 * time.Minute), SemanticHash: "1111"},
		{ID: "early", PostTime: base.Add(-5 * time.Minute), SemanticHash: "1110"},
		{ID: "far", PostTime: base.Add(-time.Hour), SemanticHash: "1111"},
		{ID: "other", PostTime: base, SemanticHash: "0000"},
		{ID: "nohash", PostTime: base},
	}
	w := NewWindow(c, items)
	assert.Equal(t, 4, w.Len())

	candidate := HashedItem{ID: "new", PostTime: base, SemanticHash: "1111"}
	assert.Equal(t, []string{"early", "late"}, w.Match(candidate))
	assert.Equal(t, w.Match(candidate), slices.Sorted(slices.Values(c.Match(candidate, items))))

	self := HashedItem{ID: "late", PostTime: base.Add(9 * time.Minute), SemanticHash: "1111"}
	assert.NotContains(t, w.Match(self), "late")

	assert.Nil(t, w.Match(HashedItem{ID: "x", SemanticHash: "1111"}))
}

func TestWindowMatchAgreesWithClassifierAtEdge(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Classifier{MaxDistance: 0, Window: 10 * time.Minute}
	items := []HashedItem{
		{ID: "inside-before", PostTime: base.Add(-10*time.Minute - 500*time.Microsecond), SemanticHash: "11"},
		{ID: "last-before", PostTime: base.Add(-10*time.Minute - time.Millisecond + time.Nanosecond), SemanticHash: "11"},
		{ID: "outside-before", PostTime: base.Add(-10*time.Minute - time.Millisecond), SemanticHash: "11"},
		{ID: "inside-after", PostTime: base.Add(10*time.Minute + 999*time.Microsecond), SemanticHash: "11"},
		{ID: "outside-after", PostTime: base.Add(10*time.Minute + time.Millisecond), SemanticHash: "11"},
	}
	candidate := HashedItem{ID: "new", PostTime: base, SemanticHash: "11"}

	w := NewWindow(c, items)
	assert.Equal(t, []string{"last-before", "inside-before", "inside-after"}, w.Match(candidate))
	assert.ElementsMatch(t, c.Match(candidate, items), w.Match(candidate))
	assert.Equal(t, 10*time.Minute+time.Millisecond-time.Nanosecond, c.Reach())
}

func TestWindowPairsAndGroups(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Classifier{MaxDistance: 0, Window: time.Hour}
	w := NewWindow(c, []HashedItem{
		{ID: "c", PostTime: base.Add(40 * time.Minute), SemanticHash: "11"},
		{ID: "a", PostTime: base, SemanticHash: "11"},
		{ID: "b", PostTime: base.Add(30 * time.Minute), SemanticHash: "11"},
		{ID: "d", PostTime: base.Add(3 * time.Hour), SemanticHash: "11"},
		{ID: "e", PostTime: base.Add(10 * time.Minute), SemanticHash: "00"},
	})

	pairs := w.Pairs()
	assert.Equal(t, []Pair{{Left: "a", Right: "b"}, {Left: "a", Right: "c"}, {Left: "b", Right: "c"}}, pairs)

	groups := Groups(pairs)
	assert.Equal(t, []string{"b", "c"}, groups["a"])
	assert.Equal(t, []string{"a", "b"}, groups["c"])
	assert.NotContains(t, groups, "d")
}

func TestSemanticHash(t *testing.T) {
	t.Parallel()

	h := SemanticHash("Acme launches orbital drone platform")
	require.Len(t, h, HashBits)
	assert.Equal(t, "", strings.Trim(h, "01"))

	assert.Equal(t, h, SemanticHash("  ACME launches   orbital drone platform!"), "normalization")
	assert.Equal(t, "", SemanticHash("  ... "))
	assert.NotEqual(t, h, SemanticHash("Quarterly earnings beat expectations for regional banks"))
}
