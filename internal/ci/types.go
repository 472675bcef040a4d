// Package ci implements the CI-result aggregator: given a revision, it
// queries one or more configured backends and folds their results into a
// single tri-state verdict.
package ci

import "context"

// Verdict is the tri-state result of aggregating all configured backends
// for one revision.
type Verdict string

const (
	VerdictPass    Verdict = "pass"
	VerdictFail    Verdict = "fail"
	VerdictWaiting Verdict = "waiting"
)

// Result is the aggregator's output: a verdict plus the URLs worth
// surfacing in a comment, split into principal and auxiliary lists; the
// advancement step posts these verbatim.
type Result struct {
	Verdict   Verdict
	Principal []string
	Auxiliary []string
}

// bucket is the per-report classification a single backend produces for a
// single revision, before aggregation.
type bucket int

const (
	bucketPass bucket = iota
	bucketPassWithWarnings
	bucketFail
	bucketFailAux
	bucketIgnored
	bucketWaiting
)

// report is one backend's verdict for one configured unit of work (a
// builder name, a status context, a check name) against a revision.
type report struct {
	bucket bucket
	url    string
}

// Backend queries one CI system for a revision's build reports. Each
// backend only reports on the units of work the core was configured to
// care about (builder names, or "every status"/"every check").
type Backend interface {
	Reports(ctx context.Context, sha string) ([]report, error)
	// configuredUnits is the number of builders/checks this backend has
	// been told to expect; 0 means "whatever shows up" (status/check APIs
	// have no fixed builder list, so "all reported" just means "no waiting
	// entries").
	configuredUnits() int
}
