package services

// sequenceRatio computes a similarity ratio in [0,1] between two strings
// using the Ratcliff-Obershelp longest-matching-block algorithm: recursively
// find the longest common block, count its length on both sides of the
// recursion, and return 2*M/T where M is total matched characters and T the
// combined length. Operates on runes so multi-byte text compares sanely.
func sequenceRatio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}

	// Positions of each rune in b, for the inner-loop lookup.
	b2j := make(map[rune][]int, len(rb))
	for j, r := range rb {
		b2j[r] = append(b2j[r], j)
	}

	matches := 0
	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(ra), 0, len(rb)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		bestI, bestJ, bestSize := findLongestMatch(ra, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if bestSize == 0 {
			continue
		}
		matches += bestSize
		queue = append(queue,
			span{s.alo, bestI, s.blo, bestJ},
			span{bestI + bestSize, s.ahi, bestJ + bestSize, s.bhi})
	}

	return 2.0 * float64(matches) / float64(total)
}

// findLongestMatch locates the longest block common to a[alo:ahi] and
// b[blo:bhi], where b is represented by its rune-position index. j2len maps
// an end position in b to the length of the match ending there; carrying it
// across rows keeps the scan O(len(a) * avg occurrences).
func findLongestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) (int, int, int) {
	bestI, bestJ, bestSize := alo, blo, 0
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		newJ2len := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > bestSize {
				bestI, bestJ, bestSize = i-k+1, j-k+1, k
			}
		}
		j2len = newJ2len
	}
	return bestI, bestJ, bestSize
}
