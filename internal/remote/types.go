// Package remote defines the capability the core reconciler uses to talk to
// a hosted code-review platform, independent of whether the destination
// repository lives on GitHub or GitLab.
package remote

import (
	"context"
	"time"
)

// PullRequest describes the observable state of a single open pull request
// (or merge request) on the destination repository.
type PullRequest struct {
	Number     int
	Title      string
	Body       string
	HeadSHA    string
	TargetRef  string
	SrcOwner   string
	SrcRepo    string
	SrcRef     string
	Closed     bool
	Mergeable  *bool // nil means "unknown"; treated as truthy unless explicitly false
}

// Comment is a single (timestamp, author, body) tuple, whether it came from
// a commit's comment thread, a pull-request thread, or an issue thread.
type Comment struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	Author    string
	Body      string
}

// Edited reports whether the comment was modified after creation. Edited
// head comments are never treated as approvals/disapprovals/signals.
func (c Comment) Edited() bool {
	return !c.UpdatedAt.Equal(c.CreatedAt)
}

// StatusState is the tri-plus-one state of a commit status, mirroring the
// hosting platform's own vocabulary.
type StatusState string

const (
	StatusPending StatusState = "pending"
	StatusSuccess StatusState = "success"
	StatusFailure StatusState = "failure"
	StatusError   StatusState = "error"
)

// Status is a single commit status, scoped to whoever posted it.
type Status struct {
	State       StatusState
	Description string
	TargetURL   string
	Creator     string
	CreatedAt   time.Time
}

// MergeResult is returned by a server-side merge of one ref into another.
type MergeResult struct {
	SHA string
}

// Client is the full set of remote operations the core consumes. It is
// deliberately small and synchronous: every method may block on network I/O
// and should honor ctx cancellation/deadline.
type Client interface {
	// ListOpenPullRequests returns every open PR on the destination repo,
	// paginating internally as needed.
	ListOpenPullRequests(ctx context.Context) ([]PullRequest, error)

	// GetPullRequest re-fetches a single PR, used to read the fresh
	// mergeable hint (the list endpoint often omits it).
	GetPullRequest(ctx context.Context, num int) (PullRequest, error)

	// ListCommitComments returns comments attached to a specific commit SHA
	// on the destination repository (these are the "head comments" that
	// carry reviewer verdicts).
	ListCommitComments(ctx context.Context, sha string) ([]Comment, error)

	// ListPullComments returns the PR thread and its associated issue
	// thread, combined.
	ListPullComments(ctx context.Context, num int) ([]Comment, error)

	// ListStatuses returns every commit status posted on sha, across all
	// creators; callers filter to self-authored ones.
	ListStatuses(ctx context.Context, sha string) ([]Status, error)

	// ListCheckRuns returns check-run results for sha (may be unsupported
	// by some backends, in which case it returns an empty slice, nil).
	ListCheckRuns(ctx context.Context, sha string) ([]CheckRun, error)

	// PostStatus posts a new commit status as the bot's own identity.
	PostStatus(ctx context.Context, sha string, s Status) error

	// PostCommitComment posts a new comment on a commit.
	PostCommitComment(ctx context.Context, sha, body string) error

	// GetRefSHA returns the current tip SHA of a branch ref, or ErrRefNotFound.
	GetRefSHA(ctx context.Context, ref string) (string, error)

	// CreateRef creates a new branch ref pointing at sha.
	CreateRef(ctx context.Context, ref, sha string) error

	// UpdateRef moves an existing branch ref to sha. If force is false the
	// platform rejects non-fast-forward updates.
	UpdateRef(ctx context.Context, ref, sha string, force bool) error

	// DeleteRef deletes a branch ref; a missing ref is not an error.
	DeleteRef(ctx context.Context, ref string) error

	// Merge performs a server-side merge of head into base, returning the
	// merge commit SHA.
	Merge(ctx context.Context, base, head, commitMessage string) (MergeResult, error)

	// ClosePullRequest closes a PR explicitly.
	ClosePullRequest(ctx context.Context, num int) error

	// ListCollaborators lists the repository's collaborators/members.
	ListCollaborators(ctx context.Context) ([]string, error)

	// GetCommitParents returns the parent SHAs of a commit, used by the
	// freshness check to verify a candidate merge's parents are still
	// {current target tip, head_sha}.
	GetCommitParents(ctx context.Context, sha string) ([]string, error)
}

// CheckRun is one check-suite result as reported by a platform-native
// checks API.
type CheckRun struct {
	Name       string
	Completed  bool
	Conclusion string // "success", "failure", or any other completed conclusion
}
