package sync

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestfin/nestfin-backend/pkg/db/models"
)

// Repository defines persistence operations for accounts and transactions.
// All writes are idempotent upserts keyed on the upstream identifier.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertAccounts(ctx context.Context, accounts []models.Account) error
	FindAccountsByConnection(ctx context.Context, connectionID uuid.UUID) ([]models.Account, error)
	AccountIDsByExternalID(ctx context.Context, connectionID uuid.UUID) (map[string]uuid.UUID, error)
	UpsertTransactions(ctx context.Context, transactions []models.Transaction) (int64, error)
	DeleteTransactionsByRefs(ctx context.Context, refs []string) (int64, error)
	ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Transaction, error)
}
