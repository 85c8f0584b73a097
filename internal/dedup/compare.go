// Package dedup decides whether two feed items are near duplicates from their
// semantic hashes and post times.
package dedup

// Distance returns the Hamming distance between two semantic hashes, counted
// over byte positions. ok is false when either hash is empty or their lengths
// differ, since such hashes come from different schemes.
func Distance(h1, h2 string) (distance int, ok bool) {
	if h1 == "" || h2 == "" || len(h1) != len(h2) {
		return 0, false
	}
	for i := 0; i < len(h1); i++ {
		if h1[i] != h2[i] {
			distance++
		}
	}
	return distance, true
}

// IsSimilar reports whether two hashes are comparable and at most maxDistance
// apart.
func IsSimilar(h1, h2 string, maxDistance int) bool {
	distance, ok := Distance(h1, h2)
	return ok && distance <= maxDistance
}
