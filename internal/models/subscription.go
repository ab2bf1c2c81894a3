package models

import "time"

type BackoffStrategy string

const (
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

const (
	DefaultTimeoutMs = 10000
	MinTimeoutMs     = 1000
	MaxTimeoutMs     = 30000

	MinRetryAttempts  = 1
	MaxRetryAttempts  = 10
	MinInitialDelayMs = 1000
)

type RetryPolicy struct {
	MaxAttempts    int             `json:"max_attempts"`
	Backoff        BackoffStrategy `json:"backoff_strategy"`
	InitialDelayMs int             `json:"initial_delay_ms"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		Backoff:        BackoffExponential,
		InitialDelayMs: MinInitialDelayMs,
	}
}

type Subscription struct {
	ID                   string            `json:"id"`
	TenantID             string            `json:"client_id"`
	Name                 string            `json:"name"`
	URL                  string            `json:"url"`
	Events               []string          `json:"events"`
	Active               bool              `json:"active"`
	Secret               string            `json:"secret,omitempty"`
	Headers              map[string]string `json:"headers,omitempty"`
	TimeoutMs            int               `json:"timeout_ms"`
	Retry                RetryPolicy       `json:"retry_policy"`
	TotalDeliveries      int64             `json:"total_deliveries"`
	SuccessfulDeliveries int64             `json:"successful_deliveries"`
	FailedDeliveries     int64             `json:"failed_deliveries"`
	LastTriggeredAt      *time.Time        `json:"last_triggered_at,omitempty"`
	CreatedBy            string            `json:"created_by"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// Timeout returns the configured delivery timeout, falling back to the
// default when the subscription predates timeout configuration.
func (s *Subscription) Timeout() time.Duration {
	ms := s.TimeoutMs
	if ms <= 0 {
		ms = DefaultTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

func (s *Subscription) SubscribedTo(eventType string) bool {
	for _, e := range s.Events {
		if e == eventType {
			return true
		}
	}
	return false
}
