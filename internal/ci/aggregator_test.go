package ci

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	reports []report
	units   int
	err     error
}

func (f *fakeBackend) Reports(ctx context.Context, sha string) ([]report, error) {
	return f.reports, f.err
}

func (f *fakeBackend) configuredUnits() int { return f.units }

func TestAggregate_AllPass(t *testing.T) {
	agg := NewAggregator(
		&fakeBackend{reports: []report{{bucket: bucketPass, url: "u1"}}, units: 1},
		&fakeBackend{reports: []report{{bucket: bucketPassWithWarnings, url: "u2"}}, units: 1},
	)
	res, err := agg.Aggregate(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, VerdictPass, res.Verdict)
	assert.Equal(t, []string{"u1"}, res.Principal)
	assert.Equal(t, []string{"u2"}, res.Auxiliary)
}

func TestAggregate_AnyFailDominates(t *testing.T) {
	agg := NewAggregator(
		&fakeBackend{reports: []report{{bucket: bucketPass, url: "u1"}}},
		&fakeBackend{reports: []report{{bucket: bucketFail, url: "u2"}}},
	)
	res, err := agg.Aggregate(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, VerdictFail, res.Verdict)
	assert.Equal(t, []string{"u2"}, res.Principal)
}

func TestAggregate_FailAuxiliaryAlsoDominates(t *testing.T) {
	agg := NewAggregator(
		&fakeBackend{reports: []report{{bucket: bucketPass, url: "u1"}, {bucket: bucketFailAux, url: "u2"}}},
	)
	res, err := agg.Aggregate(context.Background(), "sha")
	require.NoError(t, err)
	assert.Equal(t, VerdictFail, res.Verdict)
	assert.Equal(t, []string{"u2"}, res.Auxiliary)
}

func TestAggregate_WaitingOnIncompleteBuilder(t *testing.T) {
	// configuredUnits says 2 builders expected, only 1 reported.
	agg := NewAggregator(&fakeBackend{reports: []report{{bucket: bucketPass, url: "u1"}}, units: 2})
	res, err := agg.Aggregate(context.Background(), "sha")
	require.NoError(t, err)
	assert.Equal(t, VerdictWaiting, res.Verdict)
}

func TestAggregate_WaitingOnExplicitWaitingReport(t *testing.T) {
	agg := NewAggregator(&fakeBackend{reports: []report{{bucket: bucketWaiting}}})
	res, err := agg.Aggregate(context.Background(), "sha")
	require.NoError(t, err)
	assert.Equal(t, VerdictWaiting, res.Verdict)
}

func TestAggregate_WaitingWhenNothingReportedYet(t *testing.T) {
	agg := NewAggregator(&fakeBackend{reports: nil})
	res, err := agg.Aggregate(context.Background(), "sha")
	require.NoError(t, err)
	assert.Equal(t, VerdictWaiting, res.Verdict)
}

func TestAggregate_BackendErrorYieldsWaitingNotError(t *testing.T) {
	agg := NewAggregator(&fakeBackend{err: errors.New("network blip")})
	res, err := agg.Aggregate(context.Background(), "sha")
	require.NoError(t, err)
	assert.Equal(t, VerdictWaiting, res.Verdict)
}

func TestAggregate_IgnoredBucketNeitherPassesNorFails(t *testing.T) {
	agg := NewAggregator(&fakeBackend{reports: []report{{bucket: bucketIgnored, url: "u1"}}, units: 1})
	res, err := agg.Aggregate(context.Background(), "sha")
	require.NoError(t, err)
	// Ignored (superseded/retry) reports don't satisfy "all units reported".
	assert.Equal(t, VerdictWaiting, res.Verdict)
}
