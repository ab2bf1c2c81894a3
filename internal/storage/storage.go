package storage

import (
	"context"
	"time"

	"github.com/brandflow/hookd/internal/models"
)

type Storage interface {
	// Subscriptions
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	GetSubscription(ctx context.Context, tenantID, id string) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID string) ([]models.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *models.Subscription) error
	DeleteSubscription(ctx context.Context, id string) error
	SetSubscriptionActive(ctx context.Context, id string, active bool) error
	UpdateSubscriptionSecret(ctx context.Context, id, secret string) error
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]models.Subscription, error)

	// Delivery attempts
	CreateAttempt(ctx context.Context, a *models.DeliveryAttempt) error
	ListAttempts(ctx context.Context, subscriptionID string, limit int) ([]models.DeliveryAttempt, error)

	// IncrementDeliveryCounters bumps total_deliveries and exactly one of
	// the success/failure counters in a single statement, so concurrent
	// handler processes can never interleave a read-modify-write.
	IncrementDeliveryCounters(ctx context.Context, subscriptionID string, success bool, triggeredAt time.Time) error

	// EventTypeCounts returns, per event type, how many delivery attempts
	// the tenant's subscriptions have accumulated.
	EventTypeCounts(ctx context.Context, tenantID string) (map[string]int64, error)

	// Audit log
	CreateAuditEntry(ctx context.Context, e *models.AuditEntry) error
	ListAuditEntries(ctx context.Context, subscriptionID string, limit int) ([]models.AuditEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
