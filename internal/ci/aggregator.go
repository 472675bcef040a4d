package ci

import "context"

// Aggregator queries every configured backend for a revision and folds the
// results into one verdict:
//
//  1. any fail/fail-auxiliary report  -> fail
//  2. every configured unit reported, all pass/pass-with-warnings -> pass
//  3. otherwise -> waiting
//
// Missing data (a builder that hasn't reported yet) always yields waiting,
// never fail — CI-query uncertainty is never classified as failure.
type Aggregator struct {
	Backends []Backend
}

func NewAggregator(backends ...Backend) *Aggregator {
	return &Aggregator{Backends: backends}
}

func (a *Aggregator) Aggregate(ctx context.Context, sha string) (Result, error) {
	var (
		fails, failAux, passes, warnings []string
		waitingCount                     int
		incomplete                       bool
	)

	for _, b := range a.Backends {
		reports, err := b.Reports(ctx, sha)
		if err != nil {
			// CI-query errors are never retried; a failed aggregation
			// leaves the PR pending rather than surfacing as fail.
			return Result{Verdict: VerdictWaiting}, nil
		}

		reported := 0
		for _, r := range reports {
			switch r.bucket {
			case bucketFail:
				fails = append(fails, r.url)
				reported++
			case bucketFailAux:
				failAux = append(failAux, r.url)
				reported++
			case bucketPass:
				passes = append(passes, r.url)
				reported++
			case bucketPassWithWarnings:
				warnings = append(warnings, r.url)
				reported++
			case bucketWaiting:
				waitingCount++
			case bucketIgnored:
				// superseded/retry builds don't count either way
			}
		}

		if units := b.configuredUnits(); units > 0 && reported < units {
			incomplete = true
		}
	}

	if len(fails) > 0 || len(failAux) > 0 {
		return Result{Verdict: VerdictFail, Principal: fails, Auxiliary: failAux}, nil
	}
	if waitingCount == 0 && !incomplete && (len(passes) > 0 || len(warnings) > 0) {
		return Result{Verdict: VerdictPass, Principal: passes, Auxiliary: warnings}, nil
	}
	return Result{Verdict: VerdictWaiting}, nil
}
