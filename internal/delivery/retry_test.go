package delivery

import (
	"testing"
	"time"

	"github.com/brandflow/hookd/internal/models"
)

func TestBackoffLinear(t *testing.T) {
	policy := models.RetryPolicy{
		MaxAttempts:    5,
		Backoff:        models.BackoffLinear,
		InitialDelayMs: 1000,
	}

	for attempt, want := range map[int]time.Duration{
		1: 1 * time.Second,
		2: 2 * time.Second,
		3: 3 * time.Second,
		5: 5 * time.Second,
	} {
		if got := Backoff(policy, attempt); got != want {
			t.Errorf("linear attempt %d: got %v, want %v", attempt, got, want)
		}
	}
}

func TestBackoffExponential(t *testing.T) {
	policy := models.RetryPolicy{
		MaxAttempts:    5,
		Backoff:        models.BackoffExponential,
		InitialDelayMs: 1000,
	}

	for attempt, want := range map[int]time.Duration{
		1: 1 * time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
		4: 8 * time.Second,
		5: 16 * time.Second,
	} {
		if got := Backoff(policy, attempt); got != want {
			t.Errorf("exponential attempt %d: got %v, want %v", attempt, got, want)
		}
	}
}

func TestBackoffClampsAttempt(t *testing.T) {
	policy := models.RetryPolicy{Backoff: models.BackoffLinear, InitialDelayMs: 1000}
	if got := Backoff(policy, 0); got != time.Second {
		t.Errorf("attempt 0 should behave as attempt 1, got %v", got)
	}
}
