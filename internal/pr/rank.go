package pr

import "sort"

// SortByRank orders prs ascending by RankKey. The ripest, most actionable
// PRs end up at the end of the slice; callers advance from there backward.
func SortByRank(prs []*PR) {
	sort.SliceStable(prs, func(i, j int) bool {
		return prs[i].RankKey().Less(prs[j].RankKey())
	})
}
