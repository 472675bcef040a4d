package pr

import (
	"testing"

	"github.com/landbot/landbot/internal/remote"
	"github.com/stretchr/testify/assert"
)

func TestSortByRank_RipestLast(t *testing.T) {
	rules := testRules()
	bad := newTestPR(rules, "sha1")
	bad.HeadComments = []Comment{comment("bob", "r-")}
	bad.Number = 1

	tested := newTestPR(rules, "sha2")
	tested.HeadComments = []Comment{comment("alice", "r+")}
	tested.SelfStatuses = []remote.Status{{State: remote.StatusSuccess}}
	tested.Number = 2

	approved := newTestPR(rules, "sha3")
	approved.HeadComments = []Comment{comment("alice", "r+")}
	approved.Number = 3

	prs := []*PR{tested, bad, approved}
	SortByRank(prs)

	assert.Equal(t, bad, prs[0])
	assert.Equal(t, tested, prs[len(prs)-1])
}
