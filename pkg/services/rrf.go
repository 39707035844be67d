package services

// rrfFuseK is the standard reciprocal-rank-fusion constant. It dampens the
// advantage of rank-1 results so agreement across rank lists outweighs a
// single list's top position.
const rrfFuseK = 60

// rrfFuse combines several rank lists into one score per id:
// sum over lists of 1/(k+rank), rank counted from 1. Ids missing from a list
// simply contribute nothing for that list.
func rrfFuse(rankings [][]string) map[string]float64 {
	scores := make(map[string]float64)
	for _, ranking := range rankings {
		for i, id := range ranking {
			scores[id] += 1.0 / float64(rrfFuseK+i+1)
		}
	}
	return scores
}
