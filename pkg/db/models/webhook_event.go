package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nestfin/nestfin-backend/pkg/enums"
)

// WebhookEvent is the durable record of one received upstream notification.
// Rows are append-only and never deleted; the processing pipeline only
// advances their status.
type WebhookEvent struct {
	ID           uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WebhookType  enums.WebhookType        `gorm:"column:webhook_type;not null;index:idx_webhook_events_dedup,priority:1"`
	WebhookCode  enums.WebhookCode        `gorm:"column:webhook_code;not null;index:idx_webhook_events_dedup,priority:2"`
	ItemID       string                   `gorm:"column:item_id;not null;index:idx_webhook_events_dedup,priority:3"`
	EventID      *string                  `gorm:"column:event_id;uniqueIndex:uq_webhook_events_event_id"`
	Payload      json.RawMessage          `gorm:"column:payload;type:jsonb"`
	Status       enums.WebhookEventStatus `gorm:"column:status;not null;default:'pending'"`
	ErrorMessage *string                  `gorm:"column:error_message"`
	ReceivedAt   time.Time                `gorm:"column:received_at;autoCreateTime"`
	ProcessedAt  *time.Time               `gorm:"column:processed_at"`
}
