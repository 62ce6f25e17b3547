package worker

import (
	"time"

	"leadhub.app/aggregator/internal/apperr"
)

// maxRetryDelay caps the exponential backoff so exhausted tasks still cycle
// through the queue at a useful rate.
const maxRetryDelay = 5 * time.Minute

type disposition int

const (
	dispositionSuccess disposition = iota
	dispositionRetry
	dispositionFail
)

// classify maps a handler error to what the queue should do with the task.
// Lookup and validation failures are permanent: retrying them burns attempts
// without any chance of a different answer. Everything else is assumed
// transient.
func classify(err error) disposition {
	if err == nil {
		return dispositionSuccess
	}
	if apperr.IsTerminal(err) {
		return dispositionFail
	}
	return dispositionRetry
}

// backoffDelay doubles the base delay per attempt already consumed:
// base, 2*base, 4*base, ... capped at maxRetryDelay.
func backoffDelay(base time.Duration, attempts int32) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if attempts < 1 {
		attempts = 1
	}

	delay := base
	for i := int32(1); i < attempts; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}
