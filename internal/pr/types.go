// Package pr implements the pull-request model: loading a single open PR's
// observable inputs from the remote, inferring its state, computing its
// ranking key, and advancing it one step through the review/test/land
// pipeline.
package pr

import (
	"fmt"
	"regexp"

	"github.com/landbot/landbot/internal/remote"
)

// State is one point in the state lattice, ordered least to most "ripe".
// The numeric values are the sort order used by the ranking key.
type State int

const (
	StateBad State = iota
	StateStale
	StateDiscussing
	StateUnreviewed
	StateApproved
	StatePending
	StateTested
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateBad:
		return "bad"
	case StateStale:
		return "stale"
	case StateDiscussing:
		return "discussing"
	case StateUnreviewed:
		return "unreviewed"
	case StateApproved:
		return "approved"
	case StatePending:
		return "pending"
	case StateTested:
		return "tested"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Rules carries the per-run configuration the model needs: reviewer
// recognition, verdict tokens, and the bot's own identity. Load compiles
// it into a Matcher once per PR model, so token recognition never
// re-parses the configured lists per comment.
type Rules struct {
	BotUser                  string
	Reviewers                []string
	ApprovalTokens           []string
	DisapprovalTokens        []string
	IgnoredUsers             []string
	CollaboratorsAsReviewers bool
	NoAutoMerge              bool
	DeleteSourceBranch       bool
	DeleteTestRef            bool
	GlobalTestRef            string // if set, overrides per-PR derivation entirely

	Owner             string // destination repository owner, used to build commit URLs
	Repo              string // destination repository name, used to build commit URLs
	CommitURLTemplate string // e.g. "https://github.com/%s/%s/commit/%s" (owner, repo, sha); empty disables target_url
}

// CommitURL builds the target_url for a self-status pointing at sha, so
// the status links directly to the merge commit it describes. Returns ""
// if no template is configured (some platforms tolerate a blank
// target_url).
func (r Rules) CommitURL(sha string) string {
	if r.CommitURLTemplate == "" {
		return ""
	}
	return fmt.Sprintf(r.CommitURLTemplate, r.Owner, r.Repo, sha)
}

// PR is a single open pull request together with everything the core read
// about it this run: its head comments, pull-thread comments, and its own
// self-authored statuses and check-runs.
type PR struct {
	remote.PullRequest

	TestRef    string
	TestRefTip string // current tip of TestRef as of this run; "" if the ref does not exist

	HeadComments    []remote.Comment
	RawHeadComments []remote.Comment // unfiltered by reviewer; legacy candidate-metadata comments are bot-authored, not reviewer-authored
	PullComments    []remote.Comment
	SelfStatuses []remote.Status
	CheckRuns    []remote.CheckRun

	matcher Matcher
}

// Matcher holds the compiled verdict-token recognizers built from a Rules
// value, so recognition never re-parses token lists per comment. See
// tokens.go for NewMatcher and the recognition methods.
type Matcher struct {
	rules      Rules
	priorityRe *regexp.Regexp
	rEqualsRe  *regexp.Regexp
	retryRe    *regexp.Regexp
	mergeRe    *regexp.Regexp
}

// contains, isReviewer and isIgnored are tiny membership helpers; kept as plain
// slices scanned linearly since reviewer lists are small (tens of names
// at most) and rebuilt once per run.
func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r Rules) isReviewer(author string) bool {
	return contains(r.Reviewers, author)
}

func (r Rules) isIgnored(author string) bool {
	return contains(r.IgnoredUsers, author)
}

// Comment is re-exported for callers that only need the tuple shape
// without the remote package name.
type Comment = remote.Comment

// Rules returns the configuration this model was loaded with, so callers
// outside the package (e.g. notify) can build links without re-deriving
// them.
func (p *PR) Rules() Rules {
	return p.matcher.rules
}
