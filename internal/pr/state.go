package pr

import "github.com/landbot/landbot/internal/remote"

// counts tallies this run's self-authored statuses on head_sha, by state.
type counts struct {
	errors, failures, pendings, successes int
}

func countStatuses(statuses []remote.Status) counts {
	var c counts
	for _, s := range statuses {
		switch s.State {
		case remote.StatusError:
			c.errors++
		case remote.StatusFailure:
			c.failures++
		case remote.StatusPending:
			c.pendings++
		case remote.StatusSuccess:
			c.successes++
		}
	}
	return c
}

// State computes the PR's current position in the lattice: inference
// rules evaluated top-to-bottom, first match wins. A pure function of the
// PR's loaded inputs, so the same inputs always yield the same state.
func (p *PR) State() State {
	if p.Closed {
		return StateClosed
	}

	c := countStatuses(p.SelfStatuses)
	retries := p.matcher.retryCount(p.HeadComments)

	if c.errors+c.failures > retries {
		return StateBad
	}

	disapprovals := p.matcher.disapprovers(p.HeadComments)
	disapprovals = append(disapprovals, p.matcher.pullThreadDisapprovers(p.PullComments, p.HeadSHA)...)
	if len(disapprovals) != 0 {
		return StateBad
	}

	if c.successes > 0 {
		return StateTested
	}

	if p.Mergeable != nil && !*p.Mergeable {
		return StateStale
	}

	approvals := p.Approvers()
	if len(approvals) != 0 {
		if c.pendings <= retries {
			return StateApproved
		}
		return StatePending
	}

	if len(p.HeadComments)+len(p.PullComments) != 0 {
		return StateDiscussing
	}

	return StateUnreviewed
}

// Approvers returns the de-duplicated set of reviewers whose comments
// (head or pull-thread) count as an approval of the current head_sha.
func (p *PR) Approvers() []string {
	seen := map[string]bool{}
	var out []string
	add := func(names []string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	add(p.matcher.approvers(p.HeadComments))
	add(p.matcher.pullThreadApprovers(p.PullComments, p.HeadSHA))
	return out
}

// Priority is the max `p=<n>` token across head comments, default 0.
func (p *PR) Priority() int {
	return p.matcher.priority(p.HeadComments)
}

// RetryCount is the number of `@<bot>: retry` head comments seen this run.
func (p *PR) RetryCount() int {
	return p.matcher.retryCount(p.HeadComments)
}

// RankKey is the ranking key (state, priority, -num). The PR list sorts
// ascending on this tuple; the ripest, most actionable PRs land at the
// end, and the reconciler advances from the end of the sorted slice
// backward. Within equal state, ascending priority naturally puts the
// highest-priority PR last (preferred); within equal state and priority,
// ascending -num puts the lowest (oldest) PR number last (preferred) — so
// a plain lexicographic ascending sort on this tuple already encodes both
// tie-break rules. The ordering is total because num is unique per
// destination repository.
type RankKey struct {
	State    State
	Priority int
	NegNum   int
}

func (p *PR) RankKey() RankKey {
	return RankKey{State: p.State(), Priority: p.Priority(), NegNum: -p.Number}
}

// Less is the plain ascending lexicographic comparison over (state,
// priority, -num).
func (k RankKey) Less(other RankKey) bool {
	if k.State != other.State {
		return k.State < other.State
	}
	if k.Priority != other.Priority {
		return k.Priority < other.Priority
	}
	return k.NegNum < other.NegNum
}
