package pr

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/landbot/landbot/internal/remote"
)

// candidateDescRe parses the status-description wire format this bot both
// writes and reads back: "running tests for candidate <SHA>".
var candidateDescRe = regexp.MustCompile(`^running tests for candidate (\S+)$`)

// legacyStatusCommentPrefix is an older `status: {...json...}` commit
// comment convention, predating the status-description convention.
// Supported as a third fallback source, tried after the status-description
// parse and before the test_ref-tip fallback, so PRs paused mid-flight
// under the legacy convention aren't lost.
const legacyStatusCommentPrefix = "status: "

type legacyMetadata struct {
	MergeSHA string `json:"merge_sha"`
}

// RecoverCandidate finds the trial-merge SHA for a PR currently in PENDING
// or TESTED. The candidate is never stored locally; it is recovered each
// run from (in order):
//
//  1. the latest pending self-status's description ("running tests for
//     candidate <SHA>" — the current primary wire format);
//  2. a legacy `status: {...}` commit-comment left by an older deployment;
//  3. the current tip of test_ref, a more robust recovery path that needs
//     no comment or status at all.
//
// It returns "" if none of the three sources yields a candidate, which
// callers treat as an implicit demotion back to APPROVED: they restart the
// trial merge in the same call.
func RecoverCandidate(p *PR) string {
	if sha := latestPendingCandidate(p.SelfStatuses); sha != "" {
		return sha
	}
	if sha := legacyCommentCandidate(p.RawHeadComments); sha != "" {
		return sha
	}
	return p.TestRefTip
}

func latestPendingCandidate(statuses []remote.Status) string {
	var latest *remote.Status
	for i := range statuses {
		s := &statuses[i]
		if s.State != remote.StatusPending {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return ""
	}
	if sub := candidateDescRe.FindStringSubmatch(latest.Description); sub != nil {
		return sub[1]
	}
	return ""
}

func legacyCommentCandidate(headComments []Comment) string {
	var latest *Comment
	for i := range headComments {
		c := &headComments[i]
		if !strings.HasPrefix(c.Body, legacyStatusCommentPrefix) {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return ""
	}
	raw := strings.TrimPrefix(latest.Body, legacyStatusCommentPrefix)
	var meta legacyMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return ""
	}
	return meta.MergeSHA
}
