package models

import (
	"encoding/json"
	"time"
)

// DeliveryAttempt is an append-only audit record of one concrete try to
// deliver an envelope to one subscription. Exactly one row is written per
// try, success or failure.
type DeliveryAttempt struct {
	ID             string          `json:"id"`
	SubscriptionID string          `json:"subscription_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	ResponseStatus int             `json:"response_status"` // 0 when no response was received
	ResponseBody   string          `json:"response_body"`
	Success        bool            `json:"success"`
	DeliveredAt    time.Time       `json:"delivered_at"`
}
