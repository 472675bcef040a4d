package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v58/github"
	"golang.org/x/oauth2"
)

// GitHubClient implements Client against the GitHub REST API via
// google/go-github, the same library and major version the rest of this
// module's ecosystem (and its teacher) already depends on.
type GitHubClient struct {
	gh    *github.Client
	owner string
	repo  string
	self  string // login this client posts statuses/comments as
}

// NewGitHubClient builds a GitHubClient authenticated with token, scoped to
// owner/repo. apiHost, if non-empty, points at a GitHub Enterprise instance.
func NewGitHubClient(ctx context.Context, token, owner, repo, apiHost string) (*GitHubClient, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	gh := github.NewClient(tc)
	if apiHost != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(apiHost, apiHost)
		if err != nil {
			return nil, fmt.Errorf("remote: configuring enterprise host: %w", err)
		}
	}

	user, _, err := gh.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("remote: resolving authenticated user: %w", err)
	}

	return &GitHubClient{gh: gh, owner: owner, repo: repo, self: user.GetLogin()}, nil
}

// Self returns the login this client authenticates and posts statuses as.
func (c *GitHubClient) Self() string { return c.self }

var _ Client = (*GitHubClient)(nil)

func (c *GitHubClient) ListOpenPullRequests(ctx context.Context) ([]PullRequest, error) {
	var out []PullRequest
	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		var page []*github.PullRequest
		err := withRetry(func() error {
			var e error
			page, _, e = c.gh.PullRequests.List(ctx, c.owner, c.repo, opts)
			return e
		})
		if err != nil {
			return nil, fmt.Errorf("remote: listing pull requests: %w", err)
		}
		for _, pr := range page {
			out = append(out, fromGHPull(pr))
		}
		if len(page) < opts.PerPage {
			break
		}
		opts.Page++
	}
	return out, nil
}

func (c *GitHubClient) GetPullRequest(ctx context.Context, num int) (PullRequest, error) {
	var pr *github.PullRequest
	err := withRetry(func() error {
		var e error
		pr, _, e = c.gh.PullRequests.Get(ctx, c.owner, c.repo, num)
		return e
	})
	if err != nil {
		if is404(err) {
			return PullRequest{}, fmt.Errorf("remote: pull #%d: %w", num, ErrNotFound)
		}
		return PullRequest{}, fmt.Errorf("remote: getting pull #%d: %w", num, err)
	}
	return fromGHPull(pr), nil
}

func fromGHPull(pr *github.PullRequest) PullRequest {
	out := PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
		HeadSHA:   pr.GetHead().GetSHA(),
		TargetRef: pr.GetBase().GetRef(),
		SrcOwner:  pr.GetHead().GetRepo().GetOwner().GetLogin(),
		SrcRepo:   pr.GetHead().GetRepo().GetName(),
		SrcRef:    pr.GetHead().GetRef(),
		Closed:    pr.GetState() == "closed",
	}
	if pr.Mergeable != nil {
		m := pr.GetMergeable()
		out.Mergeable = &m
	}
	return out
}

func (c *GitHubClient) ListCommitComments(ctx context.Context, sha string) ([]Comment, error) {
	var out []Comment
	opts := &github.ListOptions{PerPage: 100}
	for {
		var page []*github.RepositoryComment
		err := withRetry(func() error {
			var e error
			page, _, e = c.gh.Repositories.ListCommitComments(ctx, c.owner, c.repo, sha, opts)
			return e
		})
		if err != nil {
			return nil, fmt.Errorf("remote: listing commit comments on %s: %w", sha, err)
		}
		for _, cm := range page {
			out = append(out, Comment{
				CreatedAt: cm.GetCreatedAt().Time,
				UpdatedAt: cm.GetUpdatedAt().Time,
				Author:    cm.GetUser().GetLogin(),
				Body:      cm.GetBody(),
			})
		}
		if len(page) < opts.PerPage {
			break
		}
		opts.Page++
	}
	return out, nil
}

func (c *GitHubClient) ListPullComments(ctx context.Context, num int) ([]Comment, error) {
	var out []Comment

	prOpts := &github.PullRequestListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		var page []*github.PullRequestComment
		err := withRetry(func() error {
			var e error
			page, _, e = c.gh.PullRequests.ListComments(ctx, c.owner, c.repo, num, prOpts)
			return e
		})
		if err != nil {
			return nil, fmt.Errorf("remote: listing pull comments on #%d: %w", num, err)
		}
		for _, cm := range page {
			out = append(out, Comment{
				CreatedAt: cm.GetCreatedAt().Time,
				UpdatedAt: cm.GetUpdatedAt().Time,
				Author:    cm.GetUser().GetLogin(),
				Body:      cm.GetBody(),
			})
		}
		if len(page) < prOpts.PerPage {
			break
		}
		prOpts.Page++
	}

	issueOpts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		var page []*github.IssueComment
		err := withRetry(func() error {
			var e error
			page, _, e = c.gh.Issues.ListComments(ctx, c.owner, c.repo, num, issueOpts)
			return e
		})
		if err != nil {
			return nil, fmt.Errorf("remote: listing issue comments on #%d: %w", num, err)
		}
		for _, cm := range page {
			out = append(out, Comment{
				CreatedAt: cm.GetCreatedAt().Time,
				UpdatedAt: cm.GetUpdatedAt().Time,
				Author:    cm.GetUser().GetLogin(),
				Body:      cm.GetBody(),
			})
		}
		if len(page) < issueOpts.PerPage {
			break
		}
		issueOpts.Page++
	}

	return out, nil
}

func (c *GitHubClient) ListStatuses(ctx context.Context, sha string) ([]Status, error) {
	var out []Status
	opts := &github.ListOptions{PerPage: 100}
	for {
		var page []*github.RepoStatus
		err := withRetry(func() error {
			var e error
			page, _, e = c.gh.Repositories.ListStatuses(ctx, c.owner, c.repo, sha, opts)
			return e
		})
		if err != nil {
			return nil, fmt.Errorf("remote: listing statuses on %s: %w", sha, err)
		}
		for _, s := range page {
			out = append(out, Status{
				State:       StatusState(s.GetState()),
				Description: s.GetDescription(),
				TargetURL:   s.GetTargetURL(),
				Creator:     s.GetCreator().GetLogin(),
				CreatedAt:   s.GetCreatedAt().Time,
			})
		}
		if len(page) < opts.PerPage {
			break
		}
		opts.Page++
	}
	return out, nil
}

func (c *GitHubClient) ListCheckRuns(ctx context.Context, sha string) ([]CheckRun, error) {
	var out []CheckRun
	opts := &github.ListCheckRunsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		var res *github.ListCheckRunsResults
		err := withRetry(func() error {
			var e error
			res, _, e = c.gh.Checks.ListCheckRunsForRef(ctx, c.owner, c.repo, sha, opts)
			return e
		})
		if err != nil {
			return nil, fmt.Errorf("remote: listing check runs on %s: %w", sha, err)
		}
		for _, run := range res.CheckRuns {
			out = append(out, CheckRun{
				Name:       run.GetName(),
				Completed:  run.GetStatus() == "completed",
				Conclusion: run.GetConclusion(),
			})
		}
		if res.GetTotal() == 0 || len(out) >= res.GetTotal() {
			break
		}
		opts.Page++
	}
	return out, nil
}

func (c *GitHubClient) PostStatus(ctx context.Context, sha string, s Status) error {
	req := &github.RepoStatus{
		State:       github.String(string(s.State)),
		Description: github.String(s.Description),
	}
	if s.TargetURL != "" {
		req.TargetURL = github.String(s.TargetURL)
	}
	return withRetry(func() error {
		_, _, err := c.gh.Repositories.CreateStatus(ctx, c.owner, c.repo, sha, req)
		return err
	})
}

func (c *GitHubClient) PostCommitComment(ctx context.Context, sha, body string) error {
	return withRetry(func() error {
		_, _, err := c.gh.Repositories.CreateComment(ctx, c.owner, c.repo, sha, &github.RepositoryComment{Body: github.String(body)})
		return err
	})
}

func (c *GitHubClient) GetRefSHA(ctx context.Context, ref string) (string, error) {
	var r *github.Reference
	err := withRetry(func() error {
		var e error
		r, _, e = c.gh.Git.GetRef(ctx, c.owner, c.repo, fullRef(ref))
		return e
	})
	if err != nil {
		if is404(err) {
			return "", ErrRefNotFound
		}
		return "", fmt.Errorf("remote: getting ref %s: %w", ref, err)
	}
	return r.GetObject().GetSHA(), nil
}

func (c *GitHubClient) CreateRef(ctx context.Context, ref, sha string) error {
	return withRetry(func() error {
		_, _, err := c.gh.Git.CreateRef(ctx, c.owner, c.repo, &github.Reference{
			Ref:    github.String(fullRef(ref)),
			Object: &github.GitObject{SHA: github.String(sha)},
		})
		return err
	})
}

func (c *GitHubClient) UpdateRef(ctx context.Context, ref, sha string, force bool) error {
	return withRetry(func() error {
		_, _, err := c.gh.Git.UpdateRef(ctx, c.owner, c.repo, &github.Reference{
			Ref:    github.String(fullRef(ref)),
			Object: &github.GitObject{SHA: github.String(sha)},
		}, force)
		return err
	})
}

func (c *GitHubClient) DeleteRef(ctx context.Context, ref string) error {
	err := withRetry(func() error {
		_, err := c.gh.Git.DeleteRef(ctx, c.owner, c.repo, fullRef(ref))
		return err
	})
	if err != nil && is404(err) {
		return nil
	}
	return err
}

func (c *GitHubClient) Merge(ctx context.Context, base, head, commitMessage string) (MergeResult, error) {
	var commit *github.RepositoryCommit
	var resp *github.Response
	err := withRetry(func() error {
		var e error
		commit, resp, e = c.gh.Repositories.Merge(ctx, c.owner, c.repo, &github.RepositoryMergeRequest{
			Base:          github.String(base),
			Head:          github.String(head),
			CommitMessage: github.String(commitMessage),
		})
		return e
	})
	if err != nil {
		return MergeResult{}, fmt.Errorf("remote: merging %s into %s: %w", head, base, err)
	}
	if resp != nil && resp.StatusCode == 204 {
		return MergeResult{}, fmt.Errorf("remote: merging %s into %s: already up to date", head, base)
	}
	return MergeResult{SHA: commit.GetSHA()}, nil
}

func (c *GitHubClient) ClosePullRequest(ctx context.Context, num int) error {
	return withRetry(func() error {
		_, _, err := c.gh.PullRequests.Edit(ctx, c.owner, c.repo, num, &github.PullRequest{
			State: github.String("closed"),
		})
		return err
	})
}

func (c *GitHubClient) ListCollaborators(ctx context.Context) ([]string, error) {
	var out []string
	opts := &github.ListCollaboratorsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		var page []*github.User
		err := withRetry(func() error {
			var e error
			page, _, e = c.gh.Repositories.ListCollaborators(ctx, c.owner, c.repo, opts)
			return e
		})
		if err != nil {
			return nil, fmt.Errorf("remote: listing collaborators: %w", err)
		}
		for _, u := range page {
			out = append(out, u.GetLogin())
		}
		if len(page) < opts.PerPage {
			break
		}
		opts.Page++
	}
	return out, nil
}

func (c *GitHubClient) GetCommitParents(ctx context.Context, sha string) ([]string, error) {
	var commit *github.RepositoryCommit
	err := withRetry(func() error {
		var e error
		commit, _, e = c.gh.Repositories.GetCommit(ctx, c.owner, c.repo, sha, nil)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("remote: getting commit %s: %w", sha, err)
	}
	var parents []string
	for _, p := range commit.Parents {
		parents = append(parents, p.GetSHA())
	}
	return parents, nil
}

func fullRef(ref string) string {
	if strings.HasPrefix(ref, "refs/") {
		return ref
	}
	return "refs/heads/" + ref
}
