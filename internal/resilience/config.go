package resilience

// ForBatch returns the retry configuration used around whole-batch database
// transactions. maxRetries is the number of retries after the first attempt;
// zero or negative falls back to the default.
func ForBatch(maxRetries int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxRetries > 0 {
		cfg.MaxAttempts = maxRetries + 1
	}
	return cfg
}
