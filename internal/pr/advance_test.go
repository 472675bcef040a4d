package pr

import (
	"context"
	"testing"

	"github.com/landbot/landbot/internal/ci"
	"github.com/landbot/landbot/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAggregator(client *remote.MockClient, rules Rules) *ci.Aggregator {
	return ci.NewAggregator(&ci.CommitStatusBackend{Lister: client, SelfUser: rules.BotUser})
}

func setupApprovedPR(t *testing.T, client *remote.MockClient, rules Rules) *PR {
	t.Helper()
	client.Refs["main"] = "maintip000"
	client.PRs[42] = remote.PullRequest{
		Number: 42, HeadSHA: "head1234567", TargetRef: "main",
		SrcOwner: "alice", SrcRepo: "widget", SrcRef: "feature",
		Title: "add widget support",
	}
	client.CommitComments["head1234567"] = []remote.Comment{comment("alice", "r+")}

	p, err := Load(context.Background(), client, rules, client.PRs[42])
	require.NoError(t, err)
	require.Equal(t, StateApproved, p.State())
	return p
}

func TestAdvance_Approved_PostsTrialMergeAndPendingStatus(t *testing.T) {
	client := remote.NewMockClient()
	rules := testRules()
	p := setupApprovedPR(t, client, rules)

	out, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)
	assert.Equal(t, ActionApprovedReset, out.Action)

	require.Len(t, client.MergeCalls, 1)
	assert.Equal(t, p.TestRef, client.MergeCalls[0].Base)
	assert.Equal(t, "head1234567", client.MergeCalls[0].Head)

	require.Len(t, client.PostedStatuses, 1)
	assert.Equal(t, remote.StatusPending, client.PostedStatuses[0].Status.State)
	assert.Contains(t, client.PostedStatuses[0].Status.Description, "running tests for candidate ")

	assert.Len(t, client.PostedComments, 2, "saw-approval comment plus confirmation comment")
}

func TestAdvance_Approved_CreatesTestRefIfAbsent(t *testing.T) {
	client := remote.NewMockClient()
	rules := testRules()
	p := setupApprovedPR(t, client, rules)

	_, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)

	tip, ok := client.Refs[p.TestRef]
	require.True(t, ok)
	assert.NotEmpty(t, tip)
}

func TestAdvance_Approved_MergeFailureRecordsErrorStatus(t *testing.T) {
	client := remote.NewMockClient()
	rules := testRules()
	p := setupApprovedPR(t, client, rules)
	client.MergeErr = assertErr("bitrot")

	out, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)
	assert.Equal(t, ActionApprovedFailed, out.Action)
	require.Len(t, client.PostedStatuses, 1)
	assert.Equal(t, remote.StatusError, client.PostedStatuses[0].Status.State)
}

func TestAdvance_Pending_WaitsWhileCIRunning(t *testing.T) {
	client := remote.NewMockClient()
	rules := testRules()
	p := setupApprovedPR(t, client, rules)
	_, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)

	p, err = Load(context.Background(), client, rules, client.PRs[42])
	require.NoError(t, err)
	require.Equal(t, StatePending, p.State())

	out, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)
	assert.Equal(t, ActionPendingWait, out.Action)
}

func TestAdvance_Pending_CISuccessPostsSuccessStatus(t *testing.T) {
	client := remote.NewMockClient()
	rules := testRules()
	p := setupApprovedPR(t, client, rules)
	_, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)

	p, err = Load(context.Background(), client, rules, client.PRs[42])
	require.NoError(t, err)
	candidate := RecoverCandidate(p)
	require.NotEmpty(t, candidate)

	// Another CI system posts a passing platform status on the candidate.
	client.Statuses[candidate] = append(client.Statuses[candidate], remote.Status{
		Creator: "ci-bot", State: remote.StatusSuccess, TargetURL: "https://ci.example/build/1",
	})

	out, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)
	assert.Equal(t, ActionCISuccess, out.Action)

	posted := client.Statuses["head1234567"]
	last := posted[len(posted)-1]
	assert.Equal(t, remote.StatusSuccess, last.State)
	assert.Equal(t, "all tests passed", last.Description)
}

func TestAdvance_Pending_CIFailurePostsFailureStatus(t *testing.T) {
	client := remote.NewMockClient()
	rules := testRules()
	p := setupApprovedPR(t, client, rules)
	_, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)

	p, err = Load(context.Background(), client, rules, client.PRs[42])
	require.NoError(t, err)
	candidate := RecoverCandidate(p)

	client.Statuses[candidate] = append(client.Statuses[candidate], remote.Status{
		Creator: "ci-bot", State: remote.StatusFailure, TargetURL: "https://ci.example/build/1",
	})

	out, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)
	assert.Equal(t, ActionCIFailure, out.Action)

	posted := client.Statuses["head1234567"]
	last := posted[len(posted)-1]
	assert.Equal(t, remote.StatusFailure, last.State)
}

func TestAdvance_Pending_StaleCandidateRestartsFromApproved(t *testing.T) {
	client := remote.NewMockClient()
	rules := testRules()
	p := setupApprovedPR(t, client, rules)
	_, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)

	// target moves underneath the trial merge.
	client.Refs["main"] = "newmaintip"

	p, err = Load(context.Background(), client, rules, client.PRs[42])
	require.NoError(t, err)

	mergeCallsBefore := len(client.MergeCalls)
	out, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)
	assert.Equal(t, ActionPendingStale, out.Action)
	assert.Greater(t, len(client.MergeCalls), mergeCallsBefore, "a fresh trial merge must be posted")
}

func TestAdvance_Tested_FastForwardsAndCloses(t *testing.T) {
	client := remote.NewMockClient()
	rules := testRules()
	p := setupApprovedPR(t, client, rules)
	_, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)

	p, err = Load(context.Background(), client, rules, client.PRs[42])
	require.NoError(t, err)
	candidate := RecoverCandidate(p)
	client.Statuses[candidate] = append(client.Statuses[candidate], remote.Status{
		Creator: "ci-bot", State: remote.StatusSuccess,
	})
	_, err = Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)

	p, err = Load(context.Background(), client, rules, client.PRs[42])
	require.NoError(t, err)
	require.Equal(t, StateTested, p.State())

	out, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)
	assert.Equal(t, ActionLanded, out.Action)
	assert.Equal(t, candidate, client.Refs["main"])
	assert.Contains(t, client.ClosedPRs, 42)
}

func TestAdvance_Tested_FastForwardRejectionRecordsError(t *testing.T) {
	client := remote.NewMockClient()
	rules := testRules()
	p := setupApprovedPR(t, client, rules)
	_, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)

	p, err = Load(context.Background(), client, rules, client.PRs[42])
	require.NoError(t, err)
	candidate := RecoverCandidate(p)
	client.Statuses[candidate] = append(client.Statuses[candidate], remote.Status{
		Creator: "ci-bot", State: remote.StatusSuccess,
	})
	_, err = Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)

	p, err = Load(context.Background(), client, rules, client.PRs[42])
	require.NoError(t, err)

	client.UpdateRefErr = assertErr("non-fast-forward")

	out, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)
	assert.Equal(t, ActionLandRejected, out.Action)
	assert.NotContains(t, client.ClosedPRs, 42)

	posted := client.Statuses["head1234567"]
	last := posted[len(posted)-1]
	assert.Equal(t, remote.StatusError, last.State)
}

func TestAdvance_Tested_WaitsForMergeOptIn(t *testing.T) {
	client := remote.NewMockClient()
	rules := testRules()
	rules.NoAutoMerge = true
	p := setupApprovedPR(t, client, rules)
	_, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)

	p, err = Load(context.Background(), client, rules, client.PRs[42])
	require.NoError(t, err)
	candidate := RecoverCandidate(p)
	client.Statuses[candidate] = append(client.Statuses[candidate], remote.Status{
		Creator: "ci-bot", State: remote.StatusSuccess,
	})
	_, err = Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)

	p, err = Load(context.Background(), client, rules, client.PRs[42])
	require.NoError(t, err)

	out, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)
	assert.Equal(t, ActionTestedWaitOptIn, out.Action)
	assert.NotContains(t, client.ClosedPRs, 42)

	client.PullComments[42] = []remote.Comment{comment("alice", "@landbot: merge")}
	p, err = Load(context.Background(), client, rules, client.PRs[42])
	require.NoError(t, err)

	out, err = Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)
	assert.Equal(t, ActionLanded, out.Action)
}

func TestAdvance_Idempotence_NoOpStatesReturnSameObservableState(t *testing.T) {
	// property 1: running advance twice with no external changes produces
	// the same remote observable state after the second run.
	client := remote.NewMockClient()
	rules := testRules()
	p := setupApprovedPR(t, client, rules)
	_, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)

	p, err = Load(context.Background(), client, rules, client.PRs[42])
	require.NoError(t, err)

	statusesBefore := len(client.Statuses["head1234567"])
	commentsBefore := len(client.PostedComments)

	out, err := Advance(context.Background(), client, newAggregator(client, rules), rules, p)
	require.NoError(t, err)
	assert.Equal(t, ActionPendingWait, out.Action)
	assert.Equal(t, statusesBefore, len(client.Statuses["head1234567"]))
	assert.Equal(t, commentsBefore, len(client.PostedComments))
}

type testErr string

func (e testErr) Error() string { return string(e) }

func assertErr(s string) error { return testErr(s) }
