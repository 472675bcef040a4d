package pr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/landbot/landbot/internal/ci"
	"github.com/landbot/landbot/internal/remote"
)

// Action identifies which branch of the advancement protocol a call to
// Advance took, for logging and assertions.
type Action string

const (
	ActionNone            Action = "no-op"
	ActionApprovedReset   Action = "approved-reset"  // posted trial merge + pending status
	ActionApprovedFailed  Action = "approved-failed" // server-side merge itself failed
	ActionPendingWait     Action = "pending-wait"    // CI still running
	ActionPendingStale    Action = "pending-stale"   // candidate stale, restarted from approved
	ActionCISuccess       Action = "ci-success"
	ActionCIFailure       Action = "ci-failure"
	ActionTestedWaitOptIn Action = "tested-wait-opt-in"
	ActionLanded          Action = "landed"
	ActionLandRejected    Action = "land-rejected"
)

// Outcome describes the single step Advance performed. Tests assert on
// this instead of re-deriving it from mock call logs.
type Outcome struct {
	Action    Action
	Candidate string
	Detail    string
}

// Advance performs at most one forward step for pr, chosen by its current
// state. It returns after the first remote-mutating step (or immediately
// for a no-op); the caller's next invocation observes the effect via a
// fresh Load and continues.
func Advance(ctx context.Context, client remote.Client, aggregator *ci.Aggregator, rules Rules, p *PR) (Outcome, error) {
	switch p.State() {
	case StateUnreviewed, StateDiscussing:
		return Outcome{Action: ActionNone, Detail: "no verdict yet"}, nil

	case StateApproved:
		return advanceApproved(ctx, client, rules, p)

	case StatePending:
		return advancePending(ctx, client, aggregator, rules, p)

	case StateTested:
		return advanceTested(ctx, client, rules, p)

	default:
		// BAD, STALE, CLOSED never reach here via the reconciler's filter,
		// but Advance is defined for them as a no-op so it is safe to call
		// directly (e.g. from tests).
		return Outcome{Action: ActionNone, Detail: "terminal or adverse state"}, nil
	}
}

// advanceApproved implements the APPROVED step: reset test_ref, trial
// merge, pending status, confirmation comments. Also used to "restart from
// APPROVED" when a PENDING/TESTED candidate turns out stale.
func advanceApproved(ctx context.Context, client remote.Client, rules Rules, p *PR) (Outcome, error) {
	approvers := p.Approvers()

	sawComment := fmt.Sprintf(
		":pray: Testing candidate for %s: starting trial merge of %s onto %s (approved by %s).",
		p.Describe(), shortSHA(p.HeadSHA), p.TestRef, strings.Join(approvers, ", "),
	)
	if err := client.PostCommitComment(ctx, p.HeadSHA, sawComment); err != nil {
		return Outcome{}, fmt.Errorf("pr #%d: posting approval comment: %w", p.Number, err)
	}

	if err := resetTestRef(ctx, client, p.TestRef, p.TargetRef); err != nil {
		return Outcome{}, fmt.Errorf("pr #%d: resetting %s to %s: %w", p.Number, p.TestRef, p.TargetRef, err)
	}

	msg := mergeCommitMessage(p, approvers)
	result, err := client.Merge(ctx, p.TestRef, p.HeadSHA, msg)
	if err != nil {
		failComment := fmt.Sprintf(
			":umbrella: Merging %s into %s failed — %s likely needs a rebase onto %s.",
			shortSHA(p.HeadSHA), p.TestRef, p.Describe(), p.TargetRef,
		)
		if cErr := client.PostCommitComment(ctx, p.HeadSHA, failComment); cErr != nil {
			return Outcome{}, fmt.Errorf("pr #%d: posting merge-failure comment: %w", p.Number, cErr)
		}
		if sErr := client.PostStatus(ctx, p.HeadSHA, remote.Status{
			State:       remote.StatusError,
			Description: fmt.Sprintf("merge failed: %v", err),
			Creator:     rules.BotUser,
		}); sErr != nil {
			return Outcome{}, fmt.Errorf("pr #%d: posting merge-failure status: %w", p.Number, sErr)
		}
		return Outcome{Action: ActionApprovedFailed, Detail: err.Error()}, nil
	}

	pendingDesc := fmt.Sprintf("running tests for candidate %s", result.SHA)
	if err := client.PostStatus(ctx, p.HeadSHA, remote.Status{
		State:       remote.StatusPending,
		Description: pendingDesc,
		TargetURL:   rules.CommitURL(result.SHA),
		Creator:     rules.BotUser,
	}); err != nil {
		return Outcome{}, fmt.Errorf("pr #%d: posting pending status: %w", p.Number, err)
	}

	confirmComment := fmt.Sprintf(
		":hourglass: Trial merge %s posted; running tests for candidate %s.",
		shortSHA(result.SHA), result.SHA,
	)
	if err := client.PostCommitComment(ctx, p.HeadSHA, confirmComment); err != nil {
		return Outcome{}, fmt.Errorf("pr #%d: posting confirmation comment: %w", p.Number, err)
	}

	return Outcome{Action: ActionApprovedReset, Candidate: result.SHA}, nil
}

// resetTestRef force-moves test_ref to target_ref's current tip, creating
// it first if it doesn't exist.
func resetTestRef(ctx context.Context, client remote.Client, testRef, targetRef string) error {
	targetTip, err := client.GetRefSHA(ctx, targetRef)
	if err != nil {
		return fmt.Errorf("reading target ref %s: %w", targetRef, err)
	}

	_, err = client.GetRefSHA(ctx, testRef)
	switch {
	case err == nil:
		return client.UpdateRef(ctx, testRef, targetTip, true)
	case isRefNotFound(err):
		return client.CreateRef(ctx, testRef, targetTip)
	default:
		return err
	}
}

func isRefNotFound(err error) bool {
	return errors.Is(err, remote.ErrRefNotFound)
}

func mergeCommitMessage(p *PR, approvers []string) string {
	return fmt.Sprintf(
		"Merge pull request #%d from %s/%s\n\n%s\n\nReviewed-by: %s",
		p.Number, p.SrcOwner, p.SrcRef, p.Title, strings.Join(approvers, ", "),
	)
}

// advancePending implements the PENDING step: recover the candidate,
// verify freshness, restart from APPROVED if stale, else query CI.
func advancePending(ctx context.Context, client remote.Client, aggregator *ci.Aggregator, rules Rules, p *PR) (Outcome, error) {
	candidate := RecoverCandidate(p)
	if candidate == "" {
		// Neither recovery source yields a candidate; implicitly demote by
		// restarting the trial merge as if freshly approved.
		return advanceApproved(ctx, client, rules, p)
	}

	fresh, err := isFresh(ctx, client, candidate, p.TargetRef, p.HeadSHA)
	if err != nil {
		return Outcome{}, fmt.Errorf("pr #%d: checking freshness of %s: %w", p.Number, candidate, err)
	}
	if !fresh {
		out, err := advanceApproved(ctx, client, rules, p)
		out.Action = ActionPendingStale
		return out, err
	}

	result, err := aggregator.Aggregate(ctx, candidate)
	if err != nil {
		return Outcome{}, fmt.Errorf("pr #%d: aggregating CI for %s: %w", p.Number, candidate, err)
	}

	switch result.Verdict {
	case ci.VerdictPass:
		comment := fmt.Sprintf(":sunny: Tests passed for %s.\n\n%s", p.Describe(), formatURLs(result.Principal, result.Auxiliary))
		if err := client.PostCommitComment(ctx, p.HeadSHA, comment); err != nil {
			return Outcome{}, fmt.Errorf("pr #%d: posting success comment: %w", p.Number, err)
		}
		if err := client.PostStatus(ctx, p.HeadSHA, remote.Status{
			State:       remote.StatusSuccess,
			Description: "all tests passed",
			TargetURL:   firstOrEmpty(result.Principal),
			Creator:     rules.BotUser,
		}); err != nil {
			return Outcome{}, fmt.Errorf("pr #%d: posting success status: %w", p.Number, err)
		}
		return Outcome{Action: ActionCISuccess, Candidate: candidate}, nil

	case ci.VerdictFail:
		comment := fmt.Sprintf(":rain_cloud: Tests failed for %s.\n\n%s", p.Describe(), formatURLs(result.Principal, result.Auxiliary))
		if err := client.PostCommitComment(ctx, p.HeadSHA, comment); err != nil {
			return Outcome{}, fmt.Errorf("pr #%d: posting failure comment: %w", p.Number, err)
		}
		if err := client.PostStatus(ctx, p.HeadSHA, remote.Status{
			State:       remote.StatusFailure,
			Description: "tests failed",
			TargetURL:   firstOrEmpty(result.Principal),
			Creator:     rules.BotUser,
		}); err != nil {
			return Outcome{}, fmt.Errorf("pr #%d: posting failure status: %w", p.Number, err)
		}
		return Outcome{Action: ActionCIFailure, Candidate: candidate}, nil

	default: // waiting
		return Outcome{Action: ActionPendingWait, Candidate: candidate}, nil
	}
}

// isFresh reports whether candidate is still a valid trial merge: its
// commit must have exactly two parents, one equal to target_ref's current
// tip, the other equal to head_sha.
func isFresh(ctx context.Context, client remote.Client, candidate, targetRef, headSHA string) (bool, error) {
	targetTip, err := client.GetRefSHA(ctx, targetRef)
	if err != nil {
		return false, fmt.Errorf("reading target ref %s: %w", targetRef, err)
	}
	parents, err := client.GetCommitParents(ctx, candidate)
	if err != nil {
		return false, fmt.Errorf("reading parents of %s: %w", candidate, err)
	}
	if len(parents) != 2 {
		return false, nil
	}
	a, b := parents[0], parents[1]
	return (a == targetTip && b == headSHA) || (a == headSHA && b == targetTip), nil
}

// advanceTested implements the TESTED step: optional merge-opt-in gate,
// freshness re-check, fast-forward, optional cleanup, close.
func advanceTested(ctx context.Context, client remote.Client, rules Rules, p *PR) (Outcome, error) {
	if rules.NoAutoMerge && !p.matcher.hasMergeOptIn(p.PullComments) {
		return Outcome{Action: ActionTestedWaitOptIn, Detail: "waiting for @" + rules.BotUser + ": merge"}, nil
	}

	candidate := RecoverCandidate(p)
	if candidate == "" {
		return advanceApproved(ctx, client, rules, p)
	}

	fresh, err := isFresh(ctx, client, candidate, p.TargetRef, p.HeadSHA)
	if err != nil {
		return Outcome{}, fmt.Errorf("pr #%d: checking freshness of %s: %w", p.Number, candidate, err)
	}
	if !fresh {
		out, err := advanceApproved(ctx, client, rules, p)
		out.Action = ActionPendingStale
		return out, err
	}

	if err := client.UpdateRef(ctx, p.TargetRef, candidate, false); err != nil {
		rejectComment := fmt.Sprintf(
			":construction: Fast-forwarding %s to %s for %s was rejected — %s moved underneath it; please re-approve.",
			p.TargetRef, shortSHA(candidate), p.Describe(), p.TargetRef,
		)
		if cErr := client.PostCommitComment(ctx, p.HeadSHA, rejectComment); cErr != nil {
			return Outcome{}, fmt.Errorf("pr #%d: posting land-rejected comment: %w", p.Number, cErr)
		}
		if sErr := client.PostStatus(ctx, p.HeadSHA, remote.Status{
			State:       remote.StatusError,
			Description: fmt.Sprintf("fast-forward rejected: %v", err),
			Creator:     rules.BotUser,
		}); sErr != nil {
			return Outcome{}, fmt.Errorf("pr #%d: posting land-rejected status: %w", p.Number, sErr)
		}
		return Outcome{Action: ActionLandRejected, Candidate: candidate, Detail: err.Error()}, nil
	}

	if rules.DeleteTestRef {
		_ = client.DeleteRef(ctx, p.TestRef) // missing ref is benign
	}
	if rules.DeleteSourceBranch && p.SrcOwner == rules.Owner && p.SrcRepo == rules.Repo {
		_ = client.DeleteRef(ctx, p.SrcRef)
	}

	if err := client.ClosePullRequest(ctx, p.Number); err != nil {
		// The platform may have auto-closed the PR on fast-forward; this
		// is expected, so the error is swallowed.
		_ = err
	}

	return Outcome{Action: ActionLanded, Candidate: candidate}, nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func firstOrEmpty(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

func formatURLs(principal, auxiliary []string) string {
	var b strings.Builder
	for _, u := range principal {
		fmt.Fprintf(&b, "%s\n", u)
	}
	if len(auxiliary) > 0 {
		b.WriteString("\nAuxiliary:\n")
		for _, u := range auxiliary {
			fmt.Fprintf(&b, "%s\n", u)
		}
	}
	return b.String()
}
