package domain

import "errors"

// Pipeline error taxonomy. Failures are recorded per source or per article
// and never abort a whole run.
var (
	// ErrFetchTransient marks network-level fetch failures that should be
	// retried with backoff without advancing the source schedule.
	ErrFetchTransient = errors.New("transient fetch error")

	// ErrFetchPermanent marks definitive fetch failures (4xx, unparsable
	// feed). The source stays scheduled but counts toward degradation.
	ErrFetchPermanent = errors.New("permanent fetch error")

	// ErrMalformedOutput marks model responses that could not be parsed or
	// violated the score/classification bounds.
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrProviderUnavailable marks model provider quota or outage errors.
	ErrProviderUnavailable = errors.New("model provider unavailable")

	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")
)
