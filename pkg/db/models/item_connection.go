package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nestfin/nestfin-backend/pkg/enums"
)

// ItemConnection is one linked institution credential. Connections are
// soft-removed (status removed) rather than deleted so the audit trail and
// transaction history survive a disconnect.
type ItemConnection struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID                string               `gorm:"column:item_id;not null;unique"`
	AccessToken           string               `gorm:"column:access_token;not null"`
	InstitutionID         string               `gorm:"column:institution_id;not null;index"`
	InstitutionName       string               `gorm:"column:institution_name;not null"`
	SyncStatus            enums.ItemSyncStatus `gorm:"column:sync_status;not null;default:'active'"`
	ErrorMessage          *string              `gorm:"column:error_message"`
	LastSyncAt            *time.Time           `gorm:"column:last_sync_at"`
	WebhookLastReceivedAt *time.Time           `gorm:"column:webhook_last_received_at"`
	CreatedAt             time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
