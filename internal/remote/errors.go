package remote

import "errors"

// ErrRefNotFound is returned by GetRefSHA (and treated as benign by
// DeleteRef) when a ref does not exist on the destination repository.
var ErrRefNotFound = errors.New("remote: ref not found")

// ErrNotFound is a generic 404 from the hosting platform, surfaced
// distinctly from other 4xx/5xx errors so callers can treat a missing
// resource differently from a transient failure.
var ErrNotFound = errors.New("remote: resource not found")
