package ci

import (
	"context"

	"github.com/landbot/landbot/internal/remote"
)

// CheckRunLister is the subset of remote.Client the check-run backend
// needs.
type CheckRunLister interface {
	ListCheckRuns(ctx context.Context, sha string) ([]remote.CheckRun, error)
}

// CheckRunBackend reports on every check-run posted against the revision.
// A check still running counts as waiting; a completed check only passes
// on conclusion == success, everything else completed is a failure (a
// cancelled or timed-out check is as good a reason to block landing as an
// outright failure, so it degrades to fail-auxiliary rather than being
// silently ignored).
type CheckRunBackend struct {
	Lister CheckRunLister
}

func (b *CheckRunBackend) configuredUnits() int { return 0 }

func (b *CheckRunBackend) Reports(ctx context.Context, sha string) ([]report, error) {
	runs, err := b.Lister.ListCheckRuns(ctx, sha)
	if err != nil {
		return nil, err
	}
	var out []report
	for _, r := range runs {
		if !r.Completed {
			out = append(out, report{bucket: bucketWaiting})
			continue
		}
		switch r.Conclusion {
		case "success":
			out = append(out, report{bucket: bucketPass})
		case "failure":
			out = append(out, report{bucket: bucketFail})
		default:
			out = append(out, report{bucket: bucketFailAux})
		}
	}
	return out, nil
}
