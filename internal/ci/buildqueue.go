package ci

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// BuildQueueBackend queries a generic buildbot-shaped build-queue service:
// GET <baseURL>/json/builders/<builder>/builds/_all?select=... style
// history endpoints, one per configured builder, indexed by "got_revision".
// Builds whose result is "retry" are ignored (superseded).
//
// The raw payload is dynamic/optional-field JSON (the upstream buildbot
// JSON API omits fields like "results" for still-running builds); gjson
// walks it defensively at this one edge before anything downstream sees a
// typed report.
type BuildQueueBackend struct {
	BaseURL  string
	Builders []string
	NBuilds  int
	HTTP     *http.Client
}

func NewBuildQueueBackend(baseURL string, builders []string, nbuilds int) *BuildQueueBackend {
	if nbuilds <= 0 {
		nbuilds = 30
	}
	return &BuildQueueBackend{BaseURL: baseURL, Builders: builders, NBuilds: nbuilds, HTTP: &http.Client{Timeout: 60 * time.Second}}
}

func (b *BuildQueueBackend) configuredUnits() int { return len(b.Builders) }

// buildbot result codes.
const (
	resultSuccess   = 0
	resultWarnings  = 1
	resultFailure   = 2
	resultSkipped   = 3
	resultException = 4
	resultRetry     = 5
)

func (b *BuildQueueBackend) Reports(ctx context.Context, sha string) ([]report, error) {
	var out []report
	for _, builder := range b.Builders {
		builds, err := b.fetchBuilds(ctx, builder)
		if err != nil {
			return nil, fmt.Errorf("ci: fetching builds for %s: %w", builder, err)
		}
		rep, ok := b.matchRevision(builds, sha, builder)
		if ok {
			out = append(out, rep)
		}
	}
	return out, nil
}

func (b *BuildQueueBackend) fetchBuilds(ctx context.Context, builder string) (string, error) {
	url := fmt.Sprintf("%s/json/builders/%s/builds/_all?select=-%d:", b.BaseURL, builder, b.NBuilds)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// matchRevision walks the raw buildbot JSON (an object keyed by build
// number, or an array, depending on deployment) looking for the most
// recent build whose "sourceStamp.revision" (or "properties" entry named
// "got_revision") equals sha, skipping builds marked "retry".
func (b *BuildQueueBackend) matchRevision(raw, sha, builder string) (report, bool) {
	var found report
	var foundNum int64
	matched := false

	gjson.Parse(raw).ForEach(func(_, build gjson.Result) bool {
		rev := build.Get("sourceStamp.revision").String()
		if rev == "" {
			build.Get("properties").ForEach(func(_, prop gjson.Result) bool {
				if prop.Get("0").String() == "got_revision" {
					rev = prop.Get("1").String()
					return false
				}
				return true
			})
		}
		if rev != sha {
			return true
		}
		num := build.Get("number").Int()
		if matched && num < foundNum {
			// an older build than the one already kept
			return true
		}
		if !build.Get("results").Exists() {
			// still running, not yet scored
			found = report{bucket: bucketWaiting}
			foundNum = num
			matched = true
			return true
		}

		code := int(build.Get("results").Int())
		url := fmt.Sprintf("%s/builders/%s/builds/%d", b.BaseURL, builder, build.Get("number").Int())
		switch code {
		case resultRetry:
			// superseded: keep looking, don't count this build at all
			return true
		case resultSuccess:
			found = report{bucket: bucketPass, url: url}
		case resultWarnings:
			found = report{bucket: bucketPassWithWarnings, url: url}
		case resultFailure:
			found = report{bucket: bucketFail, url: url}
		case resultException:
			found = report{bucket: bucketFailAux, url: url}
		case resultSkipped:
			found = report{bucket: bucketIgnored, url: url}
		default:
			found = report{bucket: bucketIgnored, url: url}
		}
		foundNum = num
		matched = true
		return true
	})

	return found, matched
}
