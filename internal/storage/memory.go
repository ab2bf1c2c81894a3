package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/brandflow/hookd/internal/models"
)

// Memory is an in-process Storage used by tests and throwaway environments.
// Counter increments hold the same mutex for the whole read-modify-write, so
// the additive-counters guarantee holds within a single process.
type Memory struct {
	mu            sync.Mutex
	subscriptions map[string]*models.Subscription
	attempts      map[string][]models.DeliveryAttempt
	audit         []models.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		subscriptions: map[string]*models.Subscription{},
		attempts:      map[string][]models.DeliveryAttempt{},
	}
}

func (m *Memory) Migrate(ctx context.Context) error { return nil }
func (m *Memory) Close() error                      { return nil }

func copySubscription(sub *models.Subscription) *models.Subscription {
	cp := *sub
	cp.Events = append([]string(nil), sub.Events...)
	if sub.Headers != nil {
		cp.Headers = make(map[string]string, len(sub.Headers))
		for k, v := range sub.Headers {
			cp.Headers[k] = v
		}
	}
	if sub.LastTriggeredAt != nil {
		t := *sub.LastTriggeredAt
		cp.LastTriggeredAt = &t
	}
	return &cp
}

func (m *Memory) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[sub.ID] = copySubscription(sub)
	return nil
}

func (m *Memory) GetSubscription(ctx context.Context, tenantID, id string) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subscriptions[id]
	if !ok || sub.TenantID != tenantID {
		return nil, nil
	}
	return copySubscription(sub), nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID string) ([]models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var subs []models.Subscription
	for _, sub := range m.subscriptions {
		if sub.TenantID == tenantID {
			subs = append(subs, *copySubscription(sub))
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.After(subs[j].CreatedAt) })
	return subs, nil
}

func (m *Memory) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.subscriptions[sub.ID]
	if !ok {
		return nil
	}
	cp := copySubscription(sub)
	cp.TotalDeliveries = existing.TotalDeliveries
	cp.SuccessfulDeliveries = existing.SuccessfulDeliveries
	cp.FailedDeliveries = existing.FailedDeliveries
	cp.UpdatedAt = time.Now().UTC()
	m.subscriptions[sub.ID] = cp
	return nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, id)
	delete(m.attempts, id)
	return nil
}

func (m *Memory) SetSubscriptionActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subscriptions[id]; ok {
		sub.Active = active
		sub.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *Memory) UpdateSubscriptionSecret(ctx context.Context, id, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subscriptions[id]; ok {
		sub.Secret = secret
		sub.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var subs []models.Subscription
	for _, sub := range m.subscriptions {
		if sub.TenantID == tenantID && sub.Active && sub.SubscribedTo(eventType) {
			subs = append(subs, *copySubscription(sub))
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.After(subs[j].CreatedAt) })
	return subs, nil
}

func (m *Memory) CreateAttempt(ctx context.Context, a *models.DeliveryAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[a.SubscriptionID] = append(m.attempts[a.SubscriptionID], *a)
	return nil
}

func (m *Memory) ListAttempts(ctx context.Context, subscriptionID string, limit int) ([]models.DeliveryAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.attempts[subscriptionID]
	// newest first
	out := make([]models.DeliveryAttempt, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *Memory) IncrementDeliveryCounters(ctx context.Context, subscriptionID string, success bool, triggeredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil
	}
	sub.TotalDeliveries++
	if success {
		sub.SuccessfulDeliveries++
	} else {
		sub.FailedDeliveries++
	}
	t := triggeredAt
	sub.LastTriggeredAt = &t
	return nil
}

func (m *Memory) EventTypeCounts(ctx context.Context, tenantID string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int64{}
	for id, sub := range m.subscriptions {
		if sub.TenantID != tenantID {
			continue
		}
		for _, a := range m.attempts[id] {
			counts[a.EventType]++
		}
	}
	return counts, nil
}

func (m *Memory) CreateAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, *e)
	return nil
}

func (m *Memory) ListAuditEntries(ctx context.Context, subscriptionID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AuditEntry, 0, limit)
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if m.audit[i].SubscriptionID == subscriptionID {
			out = append(out, m.audit[i])
		}
	}
	return out, nil
}
