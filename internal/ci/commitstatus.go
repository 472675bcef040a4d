package ci

import (
	"context"

	"github.com/landbot/landbot/internal/remote"
)

// StatusLister is the subset of remote.Client the commit-status backend
// needs.
type StatusLister interface {
	ListStatuses(ctx context.Context, sha string) ([]remote.Status, error)
}

// CommitStatusBackend reports on every platform-level commit status posted
// on the revision, excluding this bot's own statuses (which record the
// bot's own progress, not a CI verdict to aggregate).
type CommitStatusBackend struct {
	Lister   StatusLister
	SelfUser string
}

func (b *CommitStatusBackend) configuredUnits() int { return 0 }

func (b *CommitStatusBackend) Reports(ctx context.Context, sha string) ([]report, error) {
	statuses, err := b.Lister.ListStatuses(ctx, sha)
	if err != nil {
		return nil, err
	}
	var out []report
	for _, s := range statuses {
		if s.Creator == b.SelfUser {
			continue
		}
		switch s.State {
		case remote.StatusSuccess:
			out = append(out, report{bucket: bucketPass, url: s.TargetURL})
		case remote.StatusFailure:
			out = append(out, report{bucket: bucketFail, url: s.TargetURL})
		case remote.StatusError:
			out = append(out, report{bucket: bucketFailAux, url: s.TargetURL})
		default: // remote.StatusPending
			out = append(out, report{bucket: bucketWaiting})
		}
	}
	return out, nil
}
