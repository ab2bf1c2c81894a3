package models

import "time"

type AuditAction string

const (
	AuditCreated           AuditAction = "created"
	AuditUpdated           AuditAction = "updated"
	AuditDeleted           AuditAction = "deleted"
	AuditTested            AuditAction = "tested"
	AuditSecretRegenerated AuditAction = "secret_regenerated"
	AuditActivated         AuditAction = "activated"
	AuditDeactivated       AuditAction = "deactivated"
)

// AuditEntry records an administrative action against a subscription. Its
// lifecycle is independent from delivery history: entries survive deletion
// of the subscription they describe.
type AuditEntry struct {
	ID             string         `json:"id"`
	SubscriptionID string         `json:"subscription_id"`
	TenantID       string         `json:"tenant_id"`
	Action         AuditAction    `json:"action"`
	ActorID        string         `json:"actor_id"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
