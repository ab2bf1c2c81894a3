package delivery

import (
	"time"

	"github.com/brandflow/hookd/internal/models"
)

// Backoff returns the delay to wait after the given 1-indexed attempt has
// failed: initial_delay * attempt under linear, initial_delay * 2^(attempt-1)
// under exponential.
func Backoff(policy models.RetryPolicy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := time.Duration(policy.InitialDelayMs) * time.Millisecond
	if policy.Backoff == models.BackoffLinear {
		return initial * time.Duration(attempt)
	}
	return initial * time.Duration(1<<(attempt-1))
}
