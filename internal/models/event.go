package models

// EventTest is the synthetic event type used by endpoint probes and manual
// test deliveries. It is not part of the subscribable catalog.
const EventTest = "webhook.test"

// EventCatalog is the closed set of event types a subscription may register
// for. Event types are validated against this set at every boundary so a
// typo can never create a permanently unmatched subscription.
var EventCatalog = []string{
	"campaign.activated",
	"campaign.completed",
	"brief.submitted",
	"brief.approved",
	"asset.uploaded",
	"asset.approved",
	"approval.requested",
	"approval.decided",
	"execution.completed",
	"execution.failed",
	"client.created",
	"content.generated",
}

func ValidEventType(eventType string) bool {
	for _, e := range EventCatalog {
		if e == eventType {
			return true
		}
	}
	return false
}

// InvalidEventTypes returns the members of events that are not in the
// catalog, preserving order.
func InvalidEventTypes(events []string) []string {
	var invalid []string
	for _, e := range events {
		if !ValidEventType(e) {
			invalid = append(invalid, e)
		}
	}
	return invalid
}

// Event is an immutable domain fact handed to the dispatcher. It is produced
// by the rest of the application and never persisted here.
type Event struct {
	Type     string         `json:"type"`
	TenantID string         `json:"tenant_id"`
	Data     map[string]any `json:"data"`
}

// Envelope is the canonical JSON object posted to a subscriber.
type Envelope struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	TenantID  string         `json:"tenant_id"`
	Data      map[string]any `json:"data"`
}
