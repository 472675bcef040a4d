package ci

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildqueueServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildQueue_SuccessMatch(t *testing.T) {
	srv := buildqueueServer(t, `[
		{"number": 5, "results": 0, "sourceStamp": {"revision": "abc123"}},
		{"number": 4, "results": 2, "sourceStamp": {"revision": "other"}}
	]`)
	b := NewBuildQueueBackend(srv.URL, []string{"linux-x86"}, 0)
	reports, err := b.Reports(context.Background(), "abc123")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, bucketPass, reports[0].bucket)
}

func TestBuildQueue_FailureMatch(t *testing.T) {
	srv := buildqueueServer(t, `[{"number": 9, "results": 2, "sourceStamp": {"revision": "deadbeef"}}]`)
	b := NewBuildQueueBackend(srv.URL, []string{"linux-x86"}, 0)
	reports, err := b.Reports(context.Background(), "deadbeef")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, bucketFail, reports[0].bucket)
}

func TestBuildQueue_StillRunningYieldsWaiting(t *testing.T) {
	srv := buildqueueServer(t, `[{"number": 9, "sourceStamp": {"revision": "deadbeef"}}]`)
	b := NewBuildQueueBackend(srv.URL, []string{"linux-x86"}, 0)
	reports, err := b.Reports(context.Background(), "deadbeef")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, bucketWaiting, reports[0].bucket)
}

func TestBuildQueue_RetryBuildIgnoredInFavorOfEarlierBuild(t *testing.T) {
	srv := buildqueueServer(t, `[
		{"number": 9, "results": 5, "sourceStamp": {"revision": "deadbeef"}},
		{"number": 8, "results": 0, "sourceStamp": {"revision": "deadbeef"}}
	]`)
	b := NewBuildQueueBackend(srv.URL, []string{"linux-x86"}, 0)
	reports, err := b.Reports(context.Background(), "deadbeef")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, bucketPass, reports[0].bucket)
}

func TestBuildQueue_NoMatchingRevisionYieldsNoReport(t *testing.T) {
	srv := buildqueueServer(t, `[{"number": 9, "results": 0, "sourceStamp": {"revision": "other"}}]`)
	b := NewBuildQueueBackend(srv.URL, []string{"linux-x86"}, 0)
	reports, err := b.Reports(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestBuildQueue_GotRevisionPropertyFallback(t *testing.T) {
	srv := buildqueueServer(t, `[{"number": 9, "results": 0, "properties": [["got_revision", "abc123", "Source"]]}]`)
	b := NewBuildQueueBackend(srv.URL, []string{"linux-x86"}, 0)
	reports, err := b.Reports(context.Background(), "abc123")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, bucketPass, reports[0].bucket)
}

func TestBuildQueue_ConfiguredUnitsMatchesBuilderCount(t *testing.T) {
	b := NewBuildQueueBackend("http://example.invalid", []string{"a", "b", "c"}, 0)
	assert.Equal(t, 3, b.configuredUnits())
}
