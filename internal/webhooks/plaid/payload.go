package plaidwebhook

import (
	"encoding/json"
	"fmt"

	"github.com/nestfin/nestfin-backend/pkg/enums"
)

// NotificationError is the error block some ITEM notifications carry.
type NotificationError struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Notification is one parsed inbound webhook. Raw keeps the original body for
// the event log; unknown fields survive there even when this struct ignores
// them.
type Notification struct {
	WebhookType         enums.WebhookType  `json:"webhook_type"`
	WebhookCode         enums.WebhookCode  `json:"webhook_code"`
	ItemID              string             `json:"item_id"`
	EventID             string             `json:"event_id"`
	NewTransactions     int                `json:"new_transactions"`
	RemovedTransactions []string           `json:"removed_transactions"`
	Error               *NotificationError `json:"error"`

	Raw json.RawMessage `json:"-"`
}

// ParseNotification decodes an inbound body. The caller acknowledges parse
// failures instead of surfacing them; a payload that cannot parse today will
// not parse on the sender's retry either.
func ParseNotification(body []byte) (*Notification, error) {
	var notification Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	if notification.WebhookType == "" {
		return nil, fmt.Errorf("notification missing webhook_type")
	}
	if notification.WebhookCode == "" {
		return nil, fmt.Errorf("notification missing webhook_code")
	}
	if notification.ItemID == "" {
		return nil, fmt.Errorf("notification missing item_id")
	}
	notification.Raw = json.RawMessage(body)
	return &notification, nil
}

// ErrorMessage extracts the human-readable error text, if any.
func (n *Notification) ErrorMessage() string {
	if n == nil || n.Error == nil {
		return ""
	}
	if n.Error.ErrorMessage != "" {
		return n.Error.ErrorMessage
	}
	return n.Error.ErrorCode
}
