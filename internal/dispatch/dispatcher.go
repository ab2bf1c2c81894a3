package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/brandflow/hookd/internal/delivery"
	"github.com/brandflow/hookd/internal/models"
	"github.com/brandflow/hookd/internal/storage"
)

const defaultMaxInFlight = 50

// Dispatcher fans one domain event out to every matching active
// subscription. Deliveries run concurrently and their failures are absorbed:
// the event producer never sees webhook delivery errors as its own.
type Dispatcher struct {
	store       storage.Storage
	engine      *delivery.Engine
	maxInFlight int
	log         zerolog.Logger
}

func New(store storage.Storage, engine *delivery.Engine, maxInFlight int, log zerolog.Logger) *Dispatcher {
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	return &Dispatcher{
		store:       store,
		engine:      engine,
		maxInFlight: maxInFlight,
		log:         log,
	}
}

// Dispatch resolves the tenant's active subscriptions for eventType and
// delivers one envelope to each of them, waiting for all attempts to settle.
// Zero matches is a no-op, not an error. The only error returned is a
// subscription-resolution failure; delivery outcomes are visible solely
// through attempt history and counters.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, data map[string]any, tenantID string) error {
	subs, err := d.store.GetSubscriptionsForEvent(ctx, tenantID, eventType)
	if err != nil {
		return fmt.Errorf("dispatch: resolve subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	envelope := newEnvelope(eventType, tenantID, data)

	// In-flight attempts ride a detached context: there is no external
	// cancellation of a dispatch, each attempt is bounded only by its own
	// timeout.
	deliverCtx := context.WithoutCancel(ctx)

	p := pool.New().WithMaxGoroutines(d.maxInFlight)
	for i := range subs {
		sub := subs[i]
		p.Go(func() {
			if _, err := d.engine.Deliver(deliverCtx, &sub, envelope); err != nil {
				d.log.Error().Err(err).
					Str("subscription_id", sub.ID).
					Str("event", eventType).
					Msg("delivery attempt aborted")
			}
		})
	}
	p.Wait()

	d.log.Info().
		Str("event", eventType).
		Str("tenant_id", tenantID).
		Int("subscriptions", len(subs)).
		Msg("event dispatched")
	return nil
}

// DispatchTest sends a synthetic webhook.test envelope to one subscription,
// through the same engine as production traffic. Test attempts land in the
// same statistics as real ones; operators see them side by side.
func (d *Dispatcher) DispatchTest(ctx context.Context, sub *models.Subscription) (delivery.Result, error) {
	envelope := newEnvelope(models.EventTest, sub.TenantID, map[string]any{
		"test":            true,
		"subscription_id": sub.ID,
	})
	return d.engine.Deliver(context.WithoutCancel(ctx), sub, envelope)
}

func newEnvelope(eventType, tenantID string, data map[string]any) models.Envelope {
	return models.Envelope{
		Event:     eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TenantID:  tenantID,
		Data:      data,
	}
}
