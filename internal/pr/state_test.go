package pr

import (
	"testing"
	"time"

	"github.com/landbot/landbot/internal/remote"
	"github.com/stretchr/testify/assert"
)

func testRules() Rules {
	return Rules{
		BotUser:           "landbot",
		Reviewers:         []string{"alice", "bob"},
		ApprovalTokens:    []string{"r+", "r=me"},
		DisapprovalTokens: []string{"r-"},
	}
}

func newTestPR(rules Rules, headSHA string) *PR {
	return &PR{
		PullRequest: remote.PullRequest{
			Number:    42,
			HeadSHA:   headSHA,
			TargetRef: "main",
		},
		matcher: NewMatcher(rules),
	}
}

func comment(author, body string) remote.Comment {
	now := time.Now()
	return remote.Comment{CreatedAt: now, UpdatedAt: now, Author: author, Body: body}
}

func TestState_Unreviewed(t *testing.T) {
	p := newTestPR(testRules(), "abc1234")
	assert.Equal(t, StateUnreviewed, p.State())
}

func TestState_Discussing(t *testing.T) {
	p := newTestPR(testRules(), "abc1234")
	p.HeadComments = []remote.Comment{comment("alice", "looks fine so far")}
	assert.Equal(t, StateDiscussing, p.State())
}

func TestState_Approved(t *testing.T) {
	p := newTestPR(testRules(), "abc1234")
	p.HeadComments = []remote.Comment{comment("alice", "r+")}
	assert.Equal(t, StateApproved, p.State())
}

func TestState_Pending_WhenPendingExceedsRetries(t *testing.T) {
	p := newTestPR(testRules(), "abc1234")
	p.HeadComments = []remote.Comment{comment("alice", "r+")}
	p.SelfStatuses = []remote.Status{{State: remote.StatusPending}}
	assert.Equal(t, StatePending, p.State())
}

func TestState_RetryForgivesOnePending(t *testing.T) {
	p := newTestPR(testRules(), "abc1234")
	p.HeadComments = []remote.Comment{
		comment("alice", "r+"),
		comment("alice", "@landbot: retry"),
	}
	p.SelfStatuses = []remote.Status{{State: remote.StatusPending}}
	assert.Equal(t, StateApproved, p.State(), "one retry should forgive one pending status")
}

func TestState_Tested(t *testing.T) {
	p := newTestPR(testRules(), "abc1234")
	p.HeadComments = []remote.Comment{comment("alice", "r+")}
	p.SelfStatuses = []remote.Status{{State: remote.StatusSuccess}}
	assert.Equal(t, StateTested, p.State())
}

func TestState_Stale(t *testing.T) {
	p := newTestPR(testRules(), "abc1234")
	f := false
	p.Mergeable = &f
	assert.Equal(t, StateStale, p.State())
}

func TestState_StaleOverriddenBySuccessStatus(t *testing.T) {
	// mergeable==false still wins over "no verdict" but loses to a success
	// status, per the top-to-bottom rule order.
	p := newTestPR(testRules(), "abc1234")
	f := false
	p.Mergeable = &f
	p.SelfStatuses = []remote.Status{{State: remote.StatusSuccess}}
	assert.Equal(t, StateTested, p.State())
}

func TestState_DisapprovalIsBad(t *testing.T) {
	p := newTestPR(testRules(), "abc1234")
	p.HeadComments = []remote.Comment{
		comment("alice", "r+"),
		comment("bob", "r-"),
	}
	assert.Equal(t, StateBad, p.State())
}

func TestState_BadWhenFailuresExceedRetries(t *testing.T) {
	p := newTestPR(testRules(), "abc1234")
	p.HeadComments = []remote.Comment{comment("alice", "r+")}
	p.SelfStatuses = []remote.Status{{State: remote.StatusFailure}}
	assert.Equal(t, StateBad, p.State())
}

func TestState_RetryForgivesOneFailure(t *testing.T) {
	p := newTestPR(testRules(), "abc1234")
	p.HeadComments = []remote.Comment{
		comment("alice", "r+"),
		comment("alice", "@landbot: retry"),
	}
	p.SelfStatuses = []remote.Status{{State: remote.StatusFailure}}
	assert.Equal(t, StateApproved, p.State())
}

func TestState_Closed(t *testing.T) {
	p := newTestPR(testRules(), "abc1234")
	p.Closed = true
	p.HeadComments = []remote.Comment{comment("bob", "r-")} // even a disapproval loses to closed
	assert.Equal(t, StateClosed, p.State())
}

func TestState_Determinism(t *testing.T) {
	// property 2: state is a pure function of loaded inputs.
	p := newTestPR(testRules(), "abc1234")
	p.HeadComments = []remote.Comment{comment("alice", "r+")}
	s1 := p.State()
	s2 := p.State()
	assert.Equal(t, s1, s2)
}

func TestRankKey_TotalOrder(t *testing.T) {
	a := RankKey{State: StateApproved, Priority: 0, NegNum: -1}
	b := RankKey{State: StateApproved, Priority: 0, NegNum: -2}
	assert.True(t, a.Less(b) != b.Less(a), "distinct keys must strictly order")
}

func TestRankKey_HigherPriorityRanksLater(t *testing.T) {
	low := RankKey{State: StateApproved, Priority: 0, NegNum: -1}
	high := RankKey{State: StateApproved, Priority: 5, NegNum: -1}
	assert.True(t, low.Less(high), "higher priority should sort later (preferred, picked from the end)")
}

func TestRankKey_OlderPRRanksLaterOnTie(t *testing.T) {
	newer := RankKey{State: StateApproved, Priority: 0, NegNum: -10}
	older := RankKey{State: StateApproved, Priority: 0, NegNum: -3}
	assert.True(t, newer.Less(older), "older (lower) PR number should sort later (preferred)")
}

func TestRankKey_RipestStateSortsLast(t *testing.T) {
	bad := RankKey{State: StateBad}
	tested := RankKey{State: StateTested}
	assert.True(t, bad.Less(tested))
}
