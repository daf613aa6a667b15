// ABOUTME: Reciprocal rank fusion over ranked asset-id lists
// ABOUTME: Absent ids take the worst rank of that list so shared hits win
package retrieval

import "sort"

// rrfConstant dampens the contribution of low ranks
const rrfConstant = 10

// RRFFusion merges any number of rank lists into one ranking of at most k ids.
// Each input list is ordered best first.
func RRFFusion(k int, rankLists ...[]int) []int {
	rankMaps := make([]map[int]int, len(rankLists))
	for i, list := range rankLists {
		ranks := make(map[int]int, len(list))
		for rank, id := range list {
			ranks[id] = rank
		}
		rankMaps[i] = ranks
	}

	scores := map[int]float64{}
	for _, ranks := range rankMaps {
		for id := range ranks {
			if _, ok := scores[id]; ok {
				continue
			}
			var score float64
			for _, m := range rankMaps {
				rank, ok := m[id]
				if !ok {
					rank = len(m)
				}
				score += 1.0 / float64(rank+rrfConstant)
			}
			scores[id] = score
		}
	}

	ids := make([]int, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})

	if k > 0 && len(ids) > k {
		ids = ids[:k]
	}
	return ids
}
