package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/brandflow/hookd/internal/delivery"
	"github.com/brandflow/hookd/internal/models"
	"github.com/brandflow/hookd/internal/storage"
)

func newSubscription(tenantID, url string, events []string, timeoutMs int) *models.Subscription {
	now := time.Now().UTC()
	return &models.Subscription{
		ID:        models.NewID("sub"),
		TenantID:  tenantID,
		Name:      "sub",
		URL:       url,
		Events:    events,
		Active:    true,
		Secret:    models.NewSecret(),
		TimeoutMs: timeoutMs,
		Retry:     models.DefaultRetryPolicy(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newDispatcher(store storage.Storage) *Dispatcher {
	engine := delivery.NewEngine(store, 1024, zerolog.Nop())
	return New(store, engine, 50, zerolog.Nop())
}

func TestDispatchNoMatchesIsNoOp(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	store := storage.NewMemory()
	// Subscribed to a different event type, and an inactive match.
	other := newSubscription("client_1", srv.URL, []string{"brief.submitted"}, 5000)
	store.CreateSubscription(context.Background(), other)
	inactive := newSubscription("client_1", srv.URL, []string{"campaign.activated"}, 5000)
	inactive.Active = false
	store.CreateSubscription(context.Background(), inactive)

	d := newDispatcher(store)
	if err := d.Dispatch(context.Background(), "campaign.activated", map[string]any{"id": "c1"}, "client_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("expected zero HTTP calls, got %d", hits)
	}
}

func TestDispatchFanoutIsolatesSlowSubscriber(t *testing.T) {
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer okSrv.Close()

	slowSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	}))
	defer slowSrv.Close()

	store := storage.NewMemory()
	ok1 := newSubscription("client_1", okSrv.URL, []string{"execution.completed"}, 5000)
	ok2 := newSubscription("client_1", okSrv.URL, []string{"execution.completed"}, 5000)
	slow := newSubscription("client_1", slowSrv.URL, []string{"execution.completed"}, 200)
	for _, sub := range []*models.Subscription{ok1, ok2, slow} {
		store.CreateSubscription(context.Background(), sub)
	}

	d := newDispatcher(store)
	start := time.Now()
	if err := d.Dispatch(context.Background(), "execution.completed", map[string]any{"id": "e1"}, "client_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("slow subscriber delayed dispatch beyond its own timeout: %v", elapsed)
	}

	var succeeded, failed int
	for _, sub := range []*models.Subscription{ok1, ok2, slow} {
		attempts, _ := store.ListAttempts(context.Background(), sub.ID, 10)
		if len(attempts) != 1 {
			t.Fatalf("expected 1 attempt for %s, got %d", sub.ID, len(attempts))
		}
		if attempts[0].Success {
			succeeded++
		} else {
			failed++
		}
	}
	if succeeded != 2 || failed != 1 {
		t.Errorf("expected 2 successes and 1 failure, got %d/%d", succeeded, failed)
	}
}

func TestDispatchScopedToTenant(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := storage.NewMemory()
	mine := newSubscription("client_1", srv.URL, []string{"approval.decided"}, 5000)
	theirs := newSubscription("client_2", srv.URL, []string{"approval.decided"}, 5000)
	store.CreateSubscription(context.Background(), mine)
	store.CreateSubscription(context.Background(), theirs)

	d := newDispatcher(store)
	if err := d.Dispatch(context.Background(), "approval.decided", nil, "client_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("expected a single tenant-scoped delivery, got %d", hits)
	}
}

func TestDispatchTestMarksPayload(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = buf
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := storage.NewMemory()
	sub := newSubscription("client_1", srv.URL, []string{"campaign.activated"}, 5000)
	store.CreateSubscription(context.Background(), sub)

	d := newDispatcher(store)
	res, err := d.DispatchTest(context.Background(), sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatal("expected test delivery to succeed")
	}

	var envelope models.Envelope
	if err := json.Unmarshal(gotBody, &envelope); err != nil {
		t.Fatalf("invalid envelope: %v", err)
	}
	if envelope.Event != models.EventTest {
		t.Errorf("expected %s event, got %s", models.EventTest, envelope.Event)
	}
	if isTest, _ := envelope.Data["test"].(bool); !isTest {
		t.Error("expected test: true in envelope data")
	}

	// Test traffic shares production statistics.
	got, _ := store.GetSubscription(context.Background(), sub.TenantID, sub.ID)
	if got.TotalDeliveries != 1 || got.SuccessfulDeliveries != 1 {
		t.Errorf("expected test delivery counted, got %d/%d", got.TotalDeliveries, got.SuccessfulDeliveries)
	}
}
