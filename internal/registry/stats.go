package registry

import (
	"context"

	"github.com/brandflow/hookd/internal/models"
)

// recentWindow is how many of the latest attempts feed the recent-failure
// count and status-code distribution.
const recentWindow = 20

type StatusBuckets struct {
	Status2xx int `json:"2xx"`
	Status3xx int `json:"3xx"`
	Status4xx int `json:"4xx"`
	Status5xx int `json:"5xx"`
	Unknown   int `json:"unknown"`
}

func (b *StatusBuckets) add(statusCode int) {
	switch {
	case statusCode >= 200 && statusCode < 300:
		b.Status2xx++
	case statusCode >= 300 && statusCode < 400:
		b.Status3xx++
	case statusCode >= 400 && statusCode < 500:
		b.Status4xx++
	case statusCode >= 500 && statusCode < 600:
		b.Status5xx++
	default:
		b.Unknown++
	}
}

type SubscriptionStats struct {
	TotalDeliveries      int64         `json:"total_deliveries"`
	SuccessfulDeliveries int64         `json:"successful_deliveries"`
	FailedDeliveries     int64         `json:"failed_deliveries"`
	SuccessRate          float64       `json:"success_rate"`
	RecentFailures       int           `json:"recent_failures"`
	StatusCodes          StatusBuckets `json:"status_codes"`
}

// SubscriptionStats derives the read-side statistics for one subscription
// from its stored counters and recent attempt history.
func (r *Registry) SubscriptionStats(ctx context.Context, sub *models.Subscription) (*SubscriptionStats, error) {
	attempts, err := r.store.ListAttempts(ctx, sub.ID, recentWindow)
	if err != nil {
		return nil, err
	}

	stats := &SubscriptionStats{
		TotalDeliveries:      sub.TotalDeliveries,
		SuccessfulDeliveries: sub.SuccessfulDeliveries,
		FailedDeliveries:     sub.FailedDeliveries,
	}
	if sub.TotalDeliveries > 0 {
		stats.SuccessRate = float64(sub.SuccessfulDeliveries) / float64(sub.TotalDeliveries)
	}
	for _, a := range attempts {
		if !a.Success {
			stats.RecentFailures++
		}
		stats.StatusCodes.add(a.ResponseStatus)
	}
	return stats, nil
}

type TenantStats struct {
	Subscriptions        int              `json:"subscriptions"`
	ActiveSubscriptions  int              `json:"active_subscriptions"`
	TotalDeliveries      int64            `json:"total_deliveries"`
	SuccessfulDeliveries int64            `json:"successful_deliveries"`
	FailedDeliveries     int64            `json:"failed_deliveries"`
	SuccessRate          float64          `json:"success_rate"`
	EventCounts          map[string]int64 `json:"event_counts"`
}

// TenantStats rolls subscription counters up across the tenant plus an
// event-type popularity histogram over the attempt history.
func (r *Registry) TenantStats(ctx context.Context, id Identity) (*TenantStats, error) {
	if !id.member() {
		return nil, ErrUnauthorized
	}

	subs, err := r.store.ListSubscriptions(ctx, id.TenantID)
	if err != nil {
		return nil, err
	}

	stats := &TenantStats{Subscriptions: len(subs)}
	for _, sub := range subs {
		if sub.Active {
			stats.ActiveSubscriptions++
		}
		stats.TotalDeliveries += sub.TotalDeliveries
		stats.SuccessfulDeliveries += sub.SuccessfulDeliveries
		stats.FailedDeliveries += sub.FailedDeliveries
	}
	if stats.TotalDeliveries > 0 {
		stats.SuccessRate = float64(stats.SuccessfulDeliveries) / float64(stats.TotalDeliveries)
	}

	counts, err := r.store.EventTypeCounts(ctx, id.TenantID)
	if err != nil {
		return nil, err
	}
	stats.EventCounts = counts
	return stats, nil
}
