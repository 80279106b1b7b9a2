package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Transaction is one externally reported transaction. TransactionID is the
// upstream's unique identifier and the natural idempotency key: re-observing
// it overwrites the row in place, never duplicates it. Amount keeps the
// upstream sign convention verbatim (positive = outflow).
type Transaction struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID      uuid.UUID       `gorm:"column:account_id;type:uuid;not null;index"`
	TransactionID  string          `gorm:"column:transaction_id;not null;uniqueIndex:uq_transactions_transaction_id"`
	Date           time.Time       `gorm:"column:date;type:date;not null;index"`
	AuthorizedDate *time.Time      `gorm:"column:authorized_date;type:date"`
	MerchantName   *string         `gorm:"column:merchant_name"`
	Category       pq.StringArray  `gorm:"column:category;type:text[]"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(18,2);not null"`
	Currency       string          `gorm:"column:currency;not null;default:'USD'"`
	Pending        bool            `gorm:"column:pending;not null;default:false"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
