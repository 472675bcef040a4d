package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gogitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabClient implements Client against the GitLab REST API, so the core
// reconciler is not tied to a single hosting platform.
type GitLabClient struct {
	gl        *gogitlab.Client
	projectID string
	owner     string
	repo      string
	self      string
}

// NewGitLabClient builds a GitLabClient authenticated with token, scoped to
// the owner/repo project path. host, if non-empty, points at a self-managed
// GitLab instance.
func NewGitLabClient(ctx context.Context, token, owner, repo, host string) (*GitLabClient, error) {
	var gl *gogitlab.Client
	var err error
	if host != "" {
		gl, err = gogitlab.NewClient(token, gogitlab.WithBaseURL(host+"/api/v4"))
	} else {
		gl, err = gogitlab.NewClient(token)
	}
	if err != nil {
		return nil, fmt.Errorf("remote: creating gitlab client: %w", err)
	}

	user, _, err := gl.Users.CurrentUser(gogitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("remote: resolving authenticated user: %w", err)
	}

	return &GitLabClient{gl: gl, projectID: owner + "/" + repo, owner: owner, repo: repo, self: user.Username}, nil
}

// Self returns the username this client authenticates and posts statuses as.
func (c *GitLabClient) Self() string { return c.self }

var _ Client = (*GitLabClient)(nil)

func (c *GitLabClient) ListOpenPullRequests(ctx context.Context) ([]PullRequest, error) {
	opts := &gogitlab.ListProjectMergeRequestsOptions{
		State:       gogitlab.Ptr("opened"),
		ListOptions: gogitlab.ListOptions{PerPage: 100},
	}
	var out []PullRequest
	for {
		var mrs []*gogitlab.BasicMergeRequest
		err := withRetryGL(func() error {
			var e error
			mrs, _, e = c.gl.MergeRequests.ListProjectMergeRequests(c.projectID, opts, gogitlab.WithContext(ctx))
			return e
		})
		if err != nil {
			return nil, fmt.Errorf("remote: listing merge requests: %w", err)
		}
		for _, mr := range mrs {
			out = append(out, c.fromBasicMR(mr))
		}
		if len(mrs) < opts.PerPage {
			break
		}
		opts.Page++
	}
	return out, nil
}

func (c *GitLabClient) GetPullRequest(ctx context.Context, num int) (PullRequest, error) {
	var mr *gogitlab.MergeRequest
	err := withRetryGL(func() error {
		var e error
		mr, _, e = c.gl.MergeRequests.GetMergeRequest(c.projectID, num, nil, gogitlab.WithContext(ctx))
		return e
	})
	if err != nil {
		return PullRequest{}, fmt.Errorf("remote: getting merge request !%d: %w", num, err)
	}
	pr := c.fromBasicMR(&mr.BasicMergeRequest)
	mergeable := mr.MergeStatus == "can_be_merged"
	pr.Mergeable = &mergeable
	return pr, nil
}

func (c *GitLabClient) fromBasicMR(mr *gogitlab.BasicMergeRequest) PullRequest {
	return PullRequest{
		Number:    mr.IID,
		Title:     mr.Title,
		Body:      mr.Description,
		HeadSHA:   mr.SHA,
		TargetRef: mr.TargetBranch,
		SrcOwner:  c.owner,
		SrcRepo:   c.repo,
		SrcRef:    mr.SourceBranch,
		Closed:    mr.State == "closed" || mr.State == "merged",
	}
}

func (c *GitLabClient) ListCommitComments(ctx context.Context, sha string) ([]Comment, error) {
	var out []Comment
	opts := &gogitlab.GetCommitCommentsOptions{PerPage: 100}
	for {
		var notes []*gogitlab.CommitComment
		err := withRetryGL(func() error {
			var e error
			notes, _, e = c.gl.Commits.GetCommitComments(c.projectID, sha, opts, gogitlab.WithContext(ctx))
			return e
		})
		if err != nil {
			return nil, fmt.Errorf("remote: listing commit comments on %s: %w", sha, err)
		}
		for _, n := range notes {
			out = append(out, Comment{Author: n.Author.Username, Body: n.Note})
		}
		if len(notes) < opts.PerPage {
			break
		}
		opts.Page++
	}
	return out, nil
}

func (c *GitLabClient) ListPullComments(ctx context.Context, num int) ([]Comment, error) {
	var out []Comment
	opts := &gogitlab.ListMergeRequestNotesOptions{PerPage: gogitlab.Ptr(100), Page: gogitlab.Ptr(1)}
	for {
		var notes []*gogitlab.Note
		err := withRetryGL(func() error {
			var e error
			notes, _, e = c.gl.Notes.ListMergeRequestNotes(c.projectID, num, opts, gogitlab.WithContext(ctx))
			return e
		})
		if err != nil {
			return nil, fmt.Errorf("remote: listing merge request notes on !%d: %w", num, err)
		}
		for _, n := range notes {
			out = append(out, Comment{
				CreatedAt: *n.CreatedAt,
				UpdatedAt: *n.UpdatedAt,
				Author:    n.Author.Username,
				Body:      n.Body,
			})
		}
		if len(notes) < *opts.PerPage {
			break
		}
		*opts.Page = *opts.Page + 1
	}
	return out, nil
}

func (c *GitLabClient) ListStatuses(ctx context.Context, sha string) ([]Status, error) {
	var out []Status
	opts := &gogitlab.GetCommitStatusesOptions{PerPage: 100}
	for {
		var statuses []*gogitlab.CommitStatus
		err := withRetryGL(func() error {
			var e error
			statuses, _, e = c.gl.Commits.GetCommitStatuses(c.projectID, sha, opts, gogitlab.WithContext(ctx))
			return e
		})
		if err != nil {
			return nil, fmt.Errorf("remote: listing commit statuses on %s: %w", sha, err)
		}
		for _, s := range statuses {
			out = append(out, Status{
				State:       mapGLState(s.Status),
				Description: s.Description,
				TargetURL:   s.TargetURL,
				Creator:     s.Author.Username,
			})
		}
		if len(statuses) < opts.PerPage {
			break
		}
		opts.Page++
	}
	return out, nil
}

func mapGLState(s string) StatusState {
	switch s {
	case "success":
		return StatusSuccess
	case "failed":
		return StatusFailure
	case "canceled":
		return StatusError
	default:
		return StatusPending
	}
}

// ListCheckRuns has no GitLab equivalent to GitHub's checks API; GitLab
// surfaces the same information as commit statuses, which ListStatuses
// already covers, so this always returns an empty result.
func (c *GitLabClient) ListCheckRuns(ctx context.Context, sha string) ([]CheckRun, error) {
	return nil, nil
}

func (c *GitLabClient) PostStatus(ctx context.Context, sha string, s Status) error {
	return withRetryGL(func() error {
		_, _, err := c.gl.Commits.SetCommitStatus(c.projectID, sha, &gogitlab.SetCommitStatusOptions{
			State:       gogitlab.BuildStateValue(string(fromStatusState(s.State))),
			Description: gogitlab.Ptr(s.Description),
			TargetURL:   gogitlab.Ptr(s.TargetURL),
		}, gogitlab.WithContext(ctx))
		return err
	})
}

func fromStatusState(s StatusState) StatusState {
	if s == StatusFailure {
		return "failed"
	}
	return s
}

func (c *GitLabClient) PostCommitComment(ctx context.Context, sha, body string) error {
	return withRetryGL(func() error {
		_, _, err := c.gl.Commits.PostCommitComment(c.projectID, sha, &gogitlab.PostCommitCommentOptions{
			Note: gogitlab.Ptr(body),
		}, gogitlab.WithContext(ctx))
		return err
	})
}

func (c *GitLabClient) GetRefSHA(ctx context.Context, ref string) (string, error) {
	var branch *gogitlab.Branch
	err := withRetryGL(func() error {
		var e error
		branch, _, e = c.gl.Branches.GetBranch(c.projectID, ref, gogitlab.WithContext(ctx))
		return e
	})
	if err != nil {
		if isGL404(err) {
			return "", fmt.Errorf("%w: %s: %v", ErrRefNotFound, ref, err)
		}
		return "", fmt.Errorf("remote: getting branch %s: %w", ref, err)
	}
	return branch.Commit.ID, nil
}

func (c *GitLabClient) CreateRef(ctx context.Context, ref, sha string) error {
	return withRetryGL(func() error {
		_, _, err := c.gl.Branches.CreateBranch(c.projectID, &gogitlab.CreateBranchOptions{
			Branch: gogitlab.Ptr(ref),
			Ref:    gogitlab.Ptr(sha),
		}, gogitlab.WithContext(ctx))
		return err
	})
}

// UpdateRef has no direct GitLab equivalent (branches are not a movable
// pointer you PATCH); the only way to relocate a branch tip is to delete
// and recreate it. GitLab cannot natively reject a non-fast-forward branch
// relocation the way GitHub's ref PATCH does, so a non-force update checks
// first: it goes ahead only when the branch's current tip is sha itself or
// one of sha's direct parents, and is rejected otherwise. The check and the
// delete/recreate are separate calls, so a push landing between them is
// not detected.
func (c *GitLabClient) UpdateRef(ctx context.Context, ref, sha string, force bool) error {
	if !force {
		cur, err := c.GetRefSHA(ctx, ref)
		if err != nil {
			return err
		}
		ff := cur == sha
		if !ff {
			parents, err := c.GetCommitParents(ctx, sha)
			if err != nil {
				return err
			}
			for _, p := range parents {
				ff = ff || p == cur
			}
		}
		if !ff {
			return fmt.Errorf("remote: non-force update of %s rejected: branch moved", ref)
		}
	}
	if err := c.DeleteRef(ctx, ref); err != nil {
		return err
	}
	return c.CreateRef(ctx, ref, sha)
}

func (c *GitLabClient) DeleteRef(ctx context.Context, ref string) error {
	err := withRetryGL(func() error {
		_, err := c.gl.Branches.DeleteBranch(c.projectID, ref, gogitlab.WithContext(ctx))
		return err
	})
	if err != nil && isGL404(err) {
		return nil
	}
	return err
}

// Merge simulates GitHub's generic server-side merge endpoint, which
// GitLab has no equivalent of: it opens a throwaway merge request from
// head to base and accepts it immediately. The merged request is left in
// place; it is not deleted afterwards.
func (c *GitLabClient) Merge(ctx context.Context, base, head, commitMessage string) (MergeResult, error) {
	var mr *gogitlab.MergeRequest
	err := withRetryGL(func() error {
		var e error
		mr, _, e = c.gl.MergeRequests.CreateMergeRequest(c.projectID, &gogitlab.CreateMergeRequestOptions{
			Title:        gogitlab.Ptr(commitMessage),
			SourceBranch: gogitlab.Ptr(head),
			TargetBranch: gogitlab.Ptr(base),
		}, gogitlab.WithContext(ctx))
		return e
	})
	if err != nil {
		return MergeResult{}, fmt.Errorf("remote: opening trial merge request %s -> %s: %w", head, base, err)
	}

	var accepted *gogitlab.MergeRequest
	err = withRetryGL(func() error {
		var e error
		accepted, _, e = c.gl.MergeRequests.AcceptMergeRequest(c.projectID, mr.IID, &gogitlab.AcceptMergeRequestOptions{
			MergeCommitMessage: gogitlab.Ptr(commitMessage),
		}, gogitlab.WithContext(ctx))
		return e
	})
	if err != nil {
		return MergeResult{}, fmt.Errorf("remote: accepting trial merge request %s -> %s: %w", head, base, err)
	}
	return MergeResult{SHA: accepted.MergeCommitSHA}, nil
}

func (c *GitLabClient) ClosePullRequest(ctx context.Context, num int) error {
	return withRetryGL(func() error {
		_, _, err := c.gl.MergeRequests.UpdateMergeRequest(c.projectID, num, &gogitlab.UpdateMergeRequestOptions{
			StateEvent: gogitlab.Ptr("close"),
		}, gogitlab.WithContext(ctx))
		return err
	})
}

func (c *GitLabClient) ListCollaborators(ctx context.Context) ([]string, error) {
	var out []string
	opts := &gogitlab.ListProjectMembersOptions{ListOptions: gogitlab.ListOptions{PerPage: 100}}
	for {
		var members []*gogitlab.ProjectMember
		err := withRetryGL(func() error {
			var e error
			members, _, e = c.gl.ProjectMembers.ListProjectMembers(c.projectID, opts, gogitlab.WithContext(ctx))
			return e
		})
		if err != nil {
			return nil, fmt.Errorf("remote: listing project members: %w", err)
		}
		for _, m := range members {
			out = append(out, m.Username)
		}
		if len(members) < opts.PerPage {
			break
		}
		opts.Page++
	}
	return out, nil
}

func (c *GitLabClient) GetCommitParents(ctx context.Context, sha string) ([]string, error) {
	var commit *gogitlab.Commit
	err := withRetryGL(func() error {
		var e error
		commit, _, e = c.gl.Commits.GetCommit(c.projectID, sha, nil, gogitlab.WithContext(ctx))
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("remote: getting commit %s: %w", sha, err)
	}
	return commit.ParentIDs, nil
}

func withRetryGL(op func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		var glErr *gogitlab.ErrorResponse
		if isGL404(err) || (errors.As(err, &glErr) && glErr.Response != nil && glErr.Response.StatusCode/100 == 4) {
			return err
		}
	}
	return lastErr
}

func isGL404(err error) bool {
	return err != nil && strings.Contains(err.Error(), "404")
}
