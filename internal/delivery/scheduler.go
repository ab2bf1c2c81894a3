package delivery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/brandflow/hookd/internal/models"
)

// Scheduler layers the subscription's retry policy over the one-shot
// delivery primitive. It is deliberately decoupled from Engine.Deliver so
// both "deliver once now" and "deliver with retries over time" reuse the
// same engine. After MaxAttempts failed attempts the event is permanently
// undelivered for that subscription; only the accumulated attempt history
// and failure counters record that.
type Scheduler struct {
	engine *Engine
	log    zerolog.Logger
}

func NewScheduler(engine *Engine, log zerolog.Logger) *Scheduler {
	return &Scheduler{engine: engine, log: log}
}

func (s *Scheduler) DeliverWithRetries(ctx context.Context, sub *models.Subscription, envelope models.Envelope) (Result, error) {
	maxAttempts := sub.Retry.MaxAttempts
	if maxAttempts < models.MinRetryAttempts {
		maxAttempts = models.MinRetryAttempts
	}

	var res Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var err error
		res, err = s.engine.Deliver(ctx, sub, envelope)
		if err != nil {
			return res, err
		}
		if res.Success {
			return res, nil
		}
		if attempt == maxAttempts {
			break
		}

		delay := Backoff(sub.Retry, attempt)
		s.log.Info().
			Str("subscription_id", sub.ID).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("delivery failed, scheduling retry")

		select {
		case <-ctx.Done():
			return res, nil
		case <-time.After(delay):
		}
	}

	s.log.Warn().
		Str("subscription_id", sub.ID).
		Str("event", envelope.Event).
		Int("attempts", maxAttempts).
		Msg("delivery permanently failed")
	return res, nil
}
