package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brandflow/hookd/internal/models"
	"github.com/brandflow/hookd/internal/signing"
	"github.com/brandflow/hookd/internal/storage"
)

const defaultBodyLimit = 1024

// Result is the outcome of one delivery attempt. Delivery failure is a
// value, not an error: Deliver returns a non-nil error only for
// programmer-error conditions.
type Result struct {
	Success      bool
	StatusCode   int
	ResponseBody string
	DeliveryID   string
}

type Engine struct {
	store     storage.Storage
	client    *http.Client
	bodyLimit int64
	log       zerolog.Logger
}

func NewEngine(store storage.Storage, bodyLimit int64, log zerolog.Logger) *Engine {
	if bodyLimit <= 0 {
		bodyLimit = defaultBodyLimit
	}
	return &Engine{
		store:     store,
		client:    &http.Client{},
		bodyLimit: bodyLimit,
		log:       log,
	}
}

// Deliver performs one signed POST of envelope to the subscription's URL,
// records a DeliveryAttempt row for the outcome, and bumps the
// subscription's counters. The attempt is bounded by the subscription's
// configured timeout.
func (e *Engine) Deliver(ctx context.Context, sub *models.Subscription, envelope models.Envelope) (Result, error) {
	if sub == nil {
		return Result{}, errors.New("delivery: nil subscription")
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return Result{}, fmt.Errorf("delivery: marshal envelope: %w", err)
	}

	deliveryID := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, sub.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		return e.record(sub, envelope, payload, Result{
			DeliveryID:   deliveryID,
			ResponseBody: fmt.Sprintf("failed to create request: %v", err),
		}), nil
	}

	// Custom headers first so they can never shadow the engine's own.
	for k, v := range sub.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Brandflow-Webhook/1.0")
	req.Header.Set("X-Brandflow-Signature", signing.Sign(payload, sub.Secret))
	req.Header.Set("X-Brandflow-Event", envelope.Event)
	req.Header.Set("X-Brandflow-Delivery", deliveryID)

	resp, err := e.client.Do(req)
	if err != nil {
		text := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			text = "Request timeout"
		}
		return e.record(sub, envelope, payload, Result{
			DeliveryID:   deliveryID,
			ResponseBody: text,
		}), nil
	}
	defer resp.Body.Close()

	// A body-read failure must not fail the attempt.
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, e.bodyLimit))
	responseBody := string(body)
	if readErr != nil && responseBody == "" {
		responseBody = fmt.Sprintf("failed to read response body: %v", readErr)
	}

	return e.record(sub, envelope, payload, Result{
		Success:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode:   resp.StatusCode,
		ResponseBody: responseBody,
		DeliveryID:   deliveryID,
	}), nil
}

func (e *Engine) record(sub *models.Subscription, envelope models.Envelope, payload []byte, res Result) Result {
	// Persistence runs on a fresh context: a delivery timeout must not
	// prevent the attempt from being recorded.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	attempt := &models.DeliveryAttempt{
		ID:             models.NewID("att"),
		SubscriptionID: sub.ID,
		EventType:      envelope.Event,
		Payload:        json.RawMessage(payload),
		ResponseStatus: res.StatusCode,
		ResponseBody:   res.ResponseBody,
		Success:        res.Success,
		DeliveredAt:    now,
	}
	if err := e.store.CreateAttempt(ctx, attempt); err != nil {
		e.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("failed to record delivery attempt")
	}
	if err := e.store.IncrementDeliveryCounters(ctx, sub.ID, res.Success, now); err != nil {
		e.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("failed to update delivery counters")
	}

	evt := e.log.Info()
	if !res.Success {
		evt = e.log.Warn()
	}
	evt.Str("subscription_id", sub.ID).
		Str("event", envelope.Event).
		Str("delivery_id", res.DeliveryID).
		Int("status_code", res.StatusCode).
		Bool("success", res.Success).
		Msg("delivery attempt")

	return res
}
