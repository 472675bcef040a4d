// Package snapshot writes the human-readable status artifact: a JSON
// document keyed by repo name, each value an array of per-PR records,
// wrapped in a script fragment that stamps an ISO-8601 update time.
package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/landbot/landbot/internal/pr"
)

// Record is one PR's entry in the snapshot artifact.
type Record struct {
	Num         int    `json:"num"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Prio        int    `json:"prio"`
	SrcOwner    string `json:"src_owner"`
	SrcRepo     string `json:"src_repo"`
	DstOwner    string `json:"dst_owner"`
	DstRepo     string `json:"dst_repo"`
	NumComments int    `json:"num_comments"`
	LastComment string `json:"last_comment"`
	Approvals   int    `json:"approvals"`
	Ref         string `json:"ref"`
	SHA         string `json:"sha"`
	State       string `json:"state"`
}

// BuildRecords converts loaded PR models into snapshot records, in the
// order given (callers pass the already-ranked slice).
func BuildRecords(prs []*pr.PR, dstOwner, dstRepo string) []Record {
	out := make([]Record, 0, len(prs))
	for _, p := range prs {
		out = append(out, Record{
			Num:         p.Number,
			Title:       p.Title,
			Body:        p.Body,
			Prio:        p.Priority(),
			SrcOwner:    p.SrcOwner,
			SrcRepo:     p.SrcRepo,
			DstOwner:    dstOwner,
			DstRepo:     dstRepo,
			NumComments: len(p.HeadComments) + len(p.PullComments),
			LastComment: lastCommentBody(p),
			Approvals:   len(p.Approvers()),
			Ref:         p.SrcRef,
			SHA:         p.HeadSHA,
			State:       p.State().String(),
		})
	}
	return out
}

func lastCommentBody(p *pr.PR) string {
	var latest *pr.Comment
	consider := func(comments []pr.Comment) {
		for i := range comments {
			c := &comments[i]
			if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
				latest = c
			}
		}
	}
	consider(p.HeadComments)
	consider(p.PullComments)
	if latest == nil {
		return ""
	}
	return latest.Body
}

// Document is the JSON document keyed by repo name.
type Document map[string][]Record

// MarshalJSON renders the document, keyed by "<owner>/<repo>".
func MarshalJSON(repo string, records []Record) ([]byte, error) {
	doc := Document{repo: records}
	return json.MarshalIndent(doc, "", "  ")
}

// ScriptFragment wraps the JSON document in a `var landbotStatus = {...}`
// assignment stamped with an ISO-8601 update time, consumed by a static
// status page.
func ScriptFragment(repo string, records []Record, updatedAt time.Time) (string, error) {
	body, err := MarshalJSON(repo, records)
	if err != nil {
		return "", fmt.Errorf("snapshot: marshaling: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "// updated %s\n", updatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "var landbotStatus = %s;\n", body)
	return b.String(), nil
}
