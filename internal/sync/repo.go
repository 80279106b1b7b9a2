package sync

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nestfin/nestfin-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a sync repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// UpsertAccounts converges on the upstream account id: a re-observed account
// refreshes its balances and display fields in place.
func (r *repository) UpsertAccounts(ctx context.Context, accounts []models.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name",
				"type",
				"subtype",
				"current_balance",
				"available_balance",
				"currency",
				"is_active",
				"last_balance_sync_at",
				"updated_at",
			}),
		}).
		Create(&accounts).Error
}

func (r *repository) FindAccountsByConnection(ctx context.Context, connectionID uuid.UUID) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.WithContext(ctx).
		Where("item_connection_id = ?", connectionID).
		Order("name ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) AccountIDsByExternalID(ctx context.Context, connectionID uuid.UUID) (map[string]uuid.UUID, error) {
	accounts, err := r.FindAccountsByConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]uuid.UUID, len(accounts))
	for _, account := range accounts {
		ids[account.AccountID] = account.ID
	}
	return ids, nil
}

// UpsertTransactions converges on transaction_id. A re-observed transaction
// (pending flipping to posted, a corrected amount) overwrites the existing
// row; two rows for one upstream ref can never exist.
func (r *repository) UpsertTransactions(ctx context.Context, transactions []models.Transaction) (int64, error) {
	if len(transactions) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "transaction_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"account_id",
				"date",
				"authorized_date",
				"merchant_name",
				"category",
				"amount",
				"currency",
				"pending",
				"updated_at",
			}),
		}).
		Create(&transactions)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// DeleteTransactionsByRefs removes rows for the given upstream refs. Refs
// with no local row are skipped silently; the store already agrees with the
// source of truth about their absence.
func (r *repository) DeleteTransactionsByRefs(ctx context.Context, refs []string) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("transaction_id IN ?", refs).
		Delete(&models.Transaction{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var transactions []models.Transaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("date DESC").
		Limit(limit).
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}
