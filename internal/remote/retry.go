package remote

import (
	"errors"
	"net/http"

	"github.com/google/go-github/v58/github"
)

// maxRetries bounds the number of attempts for a single transient HTTP
// operation: retried up to ten times per request, with no backoff.
const maxRetries = 10

// withRetry runs op up to maxRetries times, retrying only on errors that
// look transient (5xx, network errors). 404s and other 4xx responses are
// returned immediately so callers can distinguish them.
//
// Deliberately hand-rolled rather than github.com/hashicorp/go-retryablehttp:
// that library's default behavior adds jittered exponential backoff, which
// is explicitly unwanted here (retried with no backoff).
func withRetry(op func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransient(err) {
			return err
		}
	}
	return lastErr
}

func isTransient(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		if ghErr.Response == nil {
			return true
		}
		code := ghErr.Response.StatusCode
		if code == http.StatusNotFound {
			return false
		}
		return code >= 500
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return false
	}

	// Anything that isn't a typed API error (DNS failures, connection
	// resets, context deadline exceeded mid-dial) is treated as transient.
	return true
}

func is404(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode == http.StatusNotFound
	}
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrRefNotFound)
}
