package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nestfin/nestfin-backend/pkg/enums"
)

// Account is a financial account under an ItemConnection.
type Account struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemConnectionID  uuid.UUID           `gorm:"column:item_connection_id;type:uuid;not null;index"`
	AccountID         string              `gorm:"column:account_id;not null;unique"`
	Name              string              `gorm:"column:name;not null"`
	Type              enums.AccountType   `gorm:"column:type;not null;default:'other'"`
	Subtype           *string             `gorm:"column:subtype"`
	CurrentBalance    decimal.Decimal     `gorm:"column:current_balance;type:numeric(18,2);not null"`
	AvailableBalance  decimal.NullDecimal `gorm:"column:available_balance;type:numeric(18,2)"`
	Currency          string              `gorm:"column:currency;not null;default:'USD'"`
	IsActive          bool                `gorm:"column:is_active;not null;default:true"`
	LastBalanceSyncAt *time.Time          `gorm:"column:last_balance_sync_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
