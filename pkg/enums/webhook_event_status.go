package enums

import "fmt"

// WebhookEventStatus tracks a received notification through the processing
// pipeline: pending -> processing -> completed|failed.
type WebhookEventStatus string

const (
	WebhookEventStatusPending    WebhookEventStatus = "pending"
	WebhookEventStatusProcessing WebhookEventStatus = "processing"
	WebhookEventStatusCompleted  WebhookEventStatus = "completed"
	WebhookEventStatusFailed     WebhookEventStatus = "failed"
)

var validWebhookEventStatuses = []WebhookEventStatus{
	WebhookEventStatusPending,
	WebhookEventStatusProcessing,
	WebhookEventStatusCompleted,
	WebhookEventStatusFailed,
}

// String implements fmt.Stringer.
func (s WebhookEventStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s WebhookEventStatus) IsValid() bool {
	for _, candidate := range validWebhookEventStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the pipeline for its row.
func (s WebhookEventStatus) IsTerminal() bool {
	return s == WebhookEventStatusCompleted || s == WebhookEventStatusFailed
}

// CanTransitionTo enforces the event state machine. No transition skips
// processing, and terminal states never move backward.
func (s WebhookEventStatus) CanTransitionTo(next WebhookEventStatus) bool {
	switch s {
	case WebhookEventStatusPending:
		return next == WebhookEventStatusProcessing
	case WebhookEventStatusProcessing:
		return next == WebhookEventStatusCompleted || next == WebhookEventStatusFailed
	default:
		return false
	}
}

// ParseWebhookEventStatus converts raw input into a WebhookEventStatus.
func ParseWebhookEventStatus(value string) (WebhookEventStatus, error) {
	for _, candidate := range validWebhookEventStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid webhook event status %q", value)
}
