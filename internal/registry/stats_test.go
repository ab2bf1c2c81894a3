package registry

import (
	"context"
	"testing"
	"time"

	"github.com/brandflow/hookd/internal/models"
	"github.com/brandflow/hookd/internal/storage"
)

func seedSubscription(t *testing.T, store storage.Storage, tenantID string, active bool) *models.Subscription {
	t.Helper()
	now := time.Now().UTC()
	sub := &models.Subscription{
		ID:        models.NewID("sub"),
		TenantID:  tenantID,
		Name:      "seed",
		URL:       "https://example.com/hook",
		Events:    []string{"campaign.activated"},
		Active:    active,
		Secret:    models.NewSecret(),
		TimeoutMs: models.DefaultTimeoutMs,
		Retry:     models.DefaultRetryPolicy(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return sub
}

func seedAttempt(t *testing.T, store storage.Storage, subID, eventType string, status int, success bool) {
	t.Helper()
	err := store.CreateAttempt(context.Background(), &models.DeliveryAttempt{
		ID:             models.NewID("att"),
		SubscriptionID: subID,
		EventType:      eventType,
		Payload:        []byte(`{}`),
		ResponseStatus: status,
		Success:        success,
		DeliveredAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed attempt failed: %v", err)
	}
	if err := store.IncrementDeliveryCounters(context.Background(), subID, success, time.Now().UTC()); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
}

func TestSubscriptionStatsZeroDeliveries(t *testing.T) {
	store := storage.NewMemory()
	reg := newTestRegistry(store)
	sub := seedSubscription(t, store, "client_1", true)

	stats, err := reg.SubscriptionStats(context.Background(), sub)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.SuccessRate != 0 {
		t.Errorf("success rate must be 0 with no deliveries, got %f", stats.SuccessRate)
	}
	if stats.RecentFailures != 0 {
		t.Errorf("expected no recent failures, got %d", stats.RecentFailures)
	}
}

func TestSubscriptionStatsBucketsAndRate(t *testing.T) {
	store := storage.NewMemory()
	reg := newTestRegistry(store)
	sub := seedSubscription(t, store, "client_1", true)

	seedAttempt(t, store, sub.ID, "campaign.activated", 200, true)
	seedAttempt(t, store, sub.ID, "campaign.activated", 201, true)
	seedAttempt(t, store, sub.ID, "campaign.activated", 301, false)
	seedAttempt(t, store, sub.ID, "campaign.activated", 404, false)
	seedAttempt(t, store, sub.ID, "campaign.activated", 503, false)
	seedAttempt(t, store, sub.ID, "campaign.activated", 0, false) // transport failure

	sub, _ = store.GetSubscription(context.Background(), "client_1", sub.ID)
	stats, err := reg.SubscriptionStats(context.Background(), sub)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}

	if stats.TotalDeliveries != 6 || stats.SuccessfulDeliveries != 2 || stats.FailedDeliveries != 4 {
		t.Errorf("unexpected counters: %d/%d/%d", stats.TotalDeliveries, stats.SuccessfulDeliveries, stats.FailedDeliveries)
	}
	if want := 2.0 / 6.0; stats.SuccessRate != want {
		t.Errorf("expected success rate %f, got %f", want, stats.SuccessRate)
	}
	if stats.RecentFailures != 4 {
		t.Errorf("expected 4 recent failures, got %d", stats.RecentFailures)
	}
	b := stats.StatusCodes
	if b.Status2xx != 2 || b.Status3xx != 1 || b.Status4xx != 1 || b.Status5xx != 1 || b.Unknown != 1 {
		t.Errorf("unexpected buckets: %+v", b)
	}
}

func TestTenantStatsRollup(t *testing.T) {
	store := storage.NewMemory()
	reg := newTestRegistry(store)

	active := seedSubscription(t, store, "client_1", true)
	inactive := seedSubscription(t, store, "client_1", false)
	other := seedSubscription(t, store, "client_2", true)

	seedAttempt(t, store, active.ID, "campaign.activated", 200, true)
	seedAttempt(t, store, active.ID, "approval.decided", 200, true)
	seedAttempt(t, store, inactive.ID, "campaign.activated", 500, false)
	seedAttempt(t, store, other.ID, "campaign.activated", 200, true)

	stats, err := reg.TenantStats(context.Background(), manager)
	if err != nil {
		t.Fatalf("tenant stats failed: %v", err)
	}
	if stats.Subscriptions != 2 || stats.ActiveSubscriptions != 1 {
		t.Errorf("unexpected subscription counts: %d/%d", stats.Subscriptions, stats.ActiveSubscriptions)
	}
	if stats.TotalDeliveries != 3 || stats.SuccessfulDeliveries != 2 || stats.FailedDeliveries != 1 {
		t.Errorf("unexpected rollup: %d/%d/%d", stats.TotalDeliveries, stats.SuccessfulDeliveries, stats.FailedDeliveries)
	}
	if stats.EventCounts["campaign.activated"] != 2 || stats.EventCounts["approval.decided"] != 1 {
		t.Errorf("unexpected event histogram: %v", stats.EventCounts)
	}
}
