package dedup

import (
	"sort"
	"time"
)

// HashedItem is the part of a feed item the classifier looks at.
type HashedItem struct {
	ID           string    `json:"id"`
	PostTime     time.Time `json:"post_time"`
	SemanticHash string    `json:"semantic_hash"`
}

// Comparable reports whether the item has both a post time and a hash.
func (it HashedItem) Comparable() bool {
	return !it.PostTime.IsZero() && it.SemanticHash != ""
}

// IsDuplicate reports whether a and b were posted at most maxWindowMillis
// apart and their hashes are at most maxDistance apart. Items missing a post
// time or a hash are never duplicates.
func IsDuplicate(a, b HashedItem, maxDistance int, maxWindowMillis int64) bool {
	if !a.Comparable() || !b.Comparable() {
		return false
	}
	if gapMillis(a.PostTime, b.PostTime) > maxWindowMillis {
		return false
	}
	return IsSimilar(a.SemanticHash, b.SemanticHash, maxDistance)
}

func gapMillis(a, b time.Time) int64 {
	gap := a.Sub(b).Milliseconds()
	if gap < 0 {
		return -gap
	}
	return gap
}

// Classifier carries a similarity threshold and window so callers configure
// them once.
type Classifier struct {
	MaxDistance int
	Window      time.Duration
}

func (c Classifier) windowMillis() int64 {
	return c.Window.Milliseconds()
}

// Reach is the largest post time gap that IsDuplicate still accepts. Gaps
// are compared in whole milliseconds, so it runs to the end of the last
// millisecond inside Window.
func (c Classifier) Reach() time.Duration {
	return time.Duration(c.windowMillis()+1)*time.Millisecond - 1
}

// IsDuplicate applies the package-level IsDuplicate with c's settings.
func (c Classifier) IsDuplicate(a, b HashedItem) bool {
	return IsDuplicate(a, b, c.MaxDistance, c.windowMillis())
}

// Compare is the outcome of comparing two items, for callers that want to
// explain a decision.
type Compare struct {
	Duplicate   bool `json:"duplicate"`
	Similar     bool `json:"similar"`
	Comparable  bool `json:"comparable"`
	Distance    int  `json:"distance"`
	WithinRange bool `json:"within_window"`
}

// Explain reports each gate separately. Duplicate matches IsDuplicate.
func (c Classifier) Explain(a, b HashedItem) Compare {
	var out Compare
	out.Distance, out.Comparable = Distance(a.SemanticHash, b.SemanticHash)
	out.Similar = out.Comparable && out.Distance <= c.MaxDistance
	if !a.PostTime.IsZero() && !b.PostTime.IsZero() {
		out.WithinRange = gapMillis(a.PostTime, b.PostTime) <= c.windowMillis()
	}
	out.Duplicate = c.IsDuplicate(a, b)
	return out
}

// Match returns the ids of the items in pool that duplicate candidate, in
// pool order. An item never matches itself by id.
func (c Classifier) Match(candidate HashedItem, pool []HashedItem) []string {
	var ids []string
	for _, other := range pool {
		if other.ID == candidate.ID {
			continue
		}
		if c.IsDuplicate(candidate, other) {
			ids = append(ids, other.ID)
		}
	}
	return ids
}

// Pair is two duplicate items, Left posted no later than Right.
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Window holds comparable items ordered by post time so a candidate is only
// compared against items inside the similarity window.
type Window struct {
	classifier Classifier
	items      []HashedItem
}

// NewWindow copies the comparable items and sorts them by post time.
func NewWindow(c Classifier, items []HashedItem) *Window {
	kept := make([]HashedItem, 0, len(items))
	for _, it := range items {
		if it.Comparable() {
			kept = append(kept, it)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].PostTime.Before(kept[j].PostTime)
	})
	return &Window{classifier: c, items: kept}
}

// Len returns the number of comparable items held.
func (w *Window) Len() int {
	return len(w.items)
}

// Match returns the ids of held items that duplicate candidate, oldest first.
func (w *Window) Match(candidate HashedItem) []string {
	if !candidate.Comparable() {
		return nil
	}
	from := candidate.PostTime.Add(-w.classifier.Reach())
	start := sort.Search(len(w.items), func(i int) bool {
		return !w.items[i].PostTime.Before(from)
	})

	var ids []string
	for _, other := range w.items[start:] {
		if gapMillis(other.PostTime, candidate.PostTime) > w.classifier.windowMillis() {
			if other.PostTime.After(candidate.PostTime) {
				break
			}
			continue
		}
		if other.ID == candidate.ID {
			continue
		}
		if w.classifier.IsDuplicate(candidate, other) {
			ids = append(ids, other.ID)
		}
	}
	return ids
}

// Pairs returns every duplicate pair among the held items, sweeping the
// sorted items with a trailing window.
func (w *Window) Pairs() []Pair {
	var pairs []Pair
	windowMillis := w.classifier.windowMillis()
	for i := range w.items {
		for j := i + 1; j < len(w.items); j++ {
			if gapMillis(w.items[j].PostTime, w.items[i].PostTime) > windowMillis {
				break
			}
			if w.items[i].ID == w.items[j].ID {
				continue
			}
			if w.classifier.IsDuplicate(w.items[i], w.items[j]) {
				pairs = append(pairs, Pair{Left: w.items[i].ID, Right: w.items[j].ID})
			}
		}
	}
	return pairs
}

// Groups folds Pairs into duplicate sets: each id maps to the other ids it
// was paired with, sorted.
func Groups(pairs []Pair) map[string][]string {
	linked := make(map[string]map[string]struct{})
	link := func(from, to string) {
		set, ok := linked[from]
		if !ok {
			set = make(map[string]struct{})
			linked[from] = set
		}
		set[to] = struct{}{}
	}
	for _, p := range pairs {
		link(p.Left, p.Right)
		link(p.Right, p.Left)
	}

	out := make(map[string][]string, len(linked))
	for id, set := range linked {
		ids := make([]string, 0, len(set))
		for other := range set {
			ids = append(ids, other)
		}
		sort.Strings(ids)
		out[id] = ids
	}
	return out
}
