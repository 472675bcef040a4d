package pr

import "fmt"

// Short renders a compact "owner/repo/ref = shortsha" descriptor used in
// log lines.
func (p *PR) Short() string {
	sha := p.HeadSHA
	if len(sha) > 8 {
		sha = sha[:8]
	}
	return fmt.Sprintf("%s/%s/%s = %s", p.SrcOwner, p.SrcRepo, p.SrcRef, sha)
}

// Describe renders a one-line human-readable descriptor used in comments
// and log entries.
func (p *PR) Describe() string {
	title := p.Title
	if len(title) > 30 {
		title = title[:30]
	}
	return fmt.Sprintf("pull #%d - %s - '%s'", p.Number, p.Short(), title)
}
