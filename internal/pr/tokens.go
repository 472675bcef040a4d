package pr

import (
	"regexp"
	"strconv"
	"strings"
)

// NewMatcher precompiles the verdict-token recognizers for one run's
// configuration. The approval/disapproval token lists are configurable,
// so the regex is built once from the bot's own username instead of
// hard-coding a single retry/merge command string.
func NewMatcher(r Rules) Matcher {
	return Matcher{
		rules:      r,
		priorityRe: regexp.MustCompile(`\bp=(-?\d+)\b`),
		rEqualsRe:  regexp.MustCompile(`^r=(\w+)(?:\s+([0-9a-fA-F]+))?`),
		retryRe:    regexp.MustCompile(`^@` + regexp.QuoteMeta(r.BotUser) + `:\s*retry`),
		mergeRe:    regexp.MustCompile(`^@` + regexp.QuoteMeta(r.BotUser) + `:\s*merge`),
	}
}

func hasAnyPrefix(body string, tokens []string) bool {
	for _, t := range tokens {
		if strings.HasPrefix(body, t) {
			return true
		}
	}
	return false
}

// approvers returns the set of authors who have approved this PR via head
// comments: a reviewer's comment whose body starts with an approval token
// counts as an approval by that author, as does the `r=<name>` nomination
// form. headComments is assumed already filtered to reviewers and
// unedited comments (Load does this once per run).
func (m Matcher) approvers(headComments []Comment) []string {
	var out []string
	for _, c := range headComments {
		if hasAnyPrefix(c.Body, m.rules.ApprovalTokens) {
			out = append(out, c.Author)
			continue
		}
		if sub := m.rEqualsRe.FindStringSubmatch(c.Body); sub != nil {
			out = append(out, sub[1])
		}
	}
	return out
}

// pullThreadApprovers returns approvals recognized from the PR/issue
// thread, which additionally require a SHA-prefix binding:
// "<approval-token> <sha-prefix>" only counts when sha-prefix is a prefix
// of head_sha.
func (m Matcher) pullThreadApprovers(pullComments []Comment, headSHA string) []string {
	return m.pullThreadVerdicts(pullComments, headSHA, m.rules.ApprovalTokens)
}

func (m Matcher) pullThreadDisapprovers(pullComments []Comment, headSHA string) []string {
	return m.pullThreadVerdicts(pullComments, headSHA, m.rules.DisapprovalTokens)
}

func (m Matcher) pullThreadVerdicts(comments []Comment, headSHA string, tokens []string) []string {
	var out []string
	for _, c := range comments {
		if !m.rules.isReviewer(c.Author) {
			continue
		}
		for _, tok := range tokens {
			if !strings.HasPrefix(c.Body, tok) {
				continue
			}
			rest := strings.TrimSpace(strings.TrimPrefix(c.Body, tok))
			if rest == "" {
				// A bare token with no SHA on the pull thread carries no
				// binding to the current head, so it does not count.
				continue
			}
			fields := strings.Fields(rest)
			prefix := fields[0]
			if strings.HasPrefix(headSHA, prefix) {
				out = append(out, c.Author)
			}
		}
	}
	return out
}

// disapprovers mirrors approvers for the `r-` (disapproval) token set on
// head comments.
func (m Matcher) disapprovers(headComments []Comment) []string {
	var out []string
	for _, c := range headComments {
		if hasAnyPrefix(c.Body, m.rules.DisapprovalTokens) {
			out = append(out, c.Author)
		}
	}
	return out
}

// retryCount counts `@<bot>: retry` head comments. Each retry forgives one
// pending status and one adverse status.
func (m Matcher) retryCount(headComments []Comment) int {
	n := 0
	for _, c := range headComments {
		if m.retryRe.MatchString(strings.TrimSpace(c.Body)) {
			n++
		}
	}
	return n
}

// priority returns the max of all `p=<n>` tokens found in head comments,
// default 0.
func (m Matcher) priority(headComments []Comment) int {
	p := 0
	for _, c := range headComments {
		if sub := m.priorityRe.FindStringSubmatch(c.Body); sub != nil {
			if v, err := strconv.Atoi(sub[1]); err == nil && v > p {
				p = v
			}
		}
	}
	return p
}

// hasMergeOptIn reports whether any pull-thread comment from a reviewer is
// an explicit `@<bot>: merge` opt-in, used when `NoAutoMerge` is set.
func (m Matcher) hasMergeOptIn(pullComments []Comment) bool {
	for _, c := range pullComments {
		if m.rules.isReviewer(c.Author) && m.mergeRe.MatchString(strings.TrimSpace(c.Body)) {
			return true
		}
	}
	return false
}

// filterIgnored drops comments from the configured ignored-users list,
// applied to both head and pull-thread streams.
func filterIgnored(r Rules, comments []Comment) []Comment {
	if len(r.IgnoredUsers) == 0 {
		return comments
	}
	out := make([]Comment, 0, len(comments))
	for _, c := range comments {
		if !r.isIgnored(c.Author) {
			out = append(out, c)
		}
	}
	return out
}

// unedited filters head comments down to ones where created_at ==
// updated_at; an edited comment's verdict can't be trusted as-is.
func unedited(comments []Comment) []Comment {
	out := make([]Comment, 0, len(comments))
	for _, c := range comments {
		if !c.Edited() {
			out = append(out, c)
		}
	}
	return out
}
