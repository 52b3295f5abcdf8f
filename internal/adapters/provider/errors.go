package provider

import "errors"

// Sentinel kinds for provider failures. Timeouts are retryable, quota
// exhaustion is fatal for the run, malformed responses drop the batch.
var (
	ErrProviderTimeout   = errors.New("provider call timed out")
	ErrProviderQuota     = errors.New("provider quota exhausted")
	ErrProviderMalformed = errors.New("provider response malformed")
)
