package pr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/landbot/landbot/internal/remote"
)

// Load fetches every observable input for one open PR and returns its
// model: head commit, comments on both streams, self-authored statuses,
// check-runs, and the mergeability hint. Everything is loaded eagerly up
// front so the rest of the package can work from a single immutable
// snapshot.
func Load(ctx context.Context, client remote.Client, rules Rules, summary remote.PullRequest) (*PR, error) {
	full, err := client.GetPullRequest(ctx, summary.Number)
	if err != nil {
		return nil, fmt.Errorf("pr #%d: loading mergeability: %w", summary.Number, err)
	}

	headComments, err := client.ListCommitComments(ctx, full.HeadSHA)
	if err != nil {
		return nil, fmt.Errorf("pr #%d: loading head comments: %w", full.Number, err)
	}
	pullComments, err := client.ListPullComments(ctx, full.Number)
	if err != nil {
		return nil, fmt.Errorf("pr #%d: loading pull comments: %w", full.Number, err)
	}
	statuses, err := client.ListStatuses(ctx, full.HeadSHA)
	if err != nil {
		return nil, fmt.Errorf("pr #%d: loading statuses: %w", full.Number, err)
	}
	checks, err := client.ListCheckRuns(ctx, full.HeadSHA)
	if err != nil {
		return nil, fmt.Errorf("pr #%d: loading check runs: %w", full.Number, err)
	}

	rawHeadComments := filterIgnored(rules, headComments)
	headComments = unedited(filterToReviewers(rules, rawHeadComments))
	pullComments = filterIgnored(rules, pullComments)

	selfStatuses := make([]remote.Status, 0, len(statuses))
	for _, s := range statuses {
		if s.Creator == rules.BotUser {
			selfStatuses = append(selfStatuses, s)
		}
	}

	testRef := DeriveTestRef(rules, full.Number, full.SrcRef)
	tip, err := client.GetRefSHA(ctx, testRef)
	if err != nil {
		if !errors.Is(err, remote.ErrRefNotFound) {
			return nil, fmt.Errorf("pr #%d: reading test ref %s: %w", full.Number, testRef, err)
		}
		tip = ""
	}

	return &PR{
		PullRequest:     full,
		TestRef:         testRef,
		TestRefTip:      tip,
		HeadComments:    headComments,
		RawHeadComments: rawHeadComments,
		PullComments:    pullComments,
		SelfStatuses:    selfStatuses,
		CheckRuns:       checks,
		matcher:         NewMatcher(rules),
	}, nil
}

// filterToReviewers drops head comments from non-reviewers; only a
// reviewer's comments on the head commit carry any verdict weight.
func filterToReviewers(r Rules, comments []remote.Comment) []remote.Comment {
	out := make([]remote.Comment, 0, len(comments))
	for _, c := range comments {
		if r.isReviewer(c.Author) {
			out = append(out, c)
		}
	}
	return out
}

// DeriveTestRef computes test_ref: either the configured global name, or
// the per-PR derivation "<bot>-integration-<num>-<ref>".
func DeriveTestRef(r Rules, num int, srcRef string) string {
	if r.GlobalTestRef != "" {
		return r.GlobalTestRef
	}
	return fmt.Sprintf("%s-integration-%d-%s", r.BotUser, num, strings.TrimPrefix(srcRef, "refs/heads/"))
}
