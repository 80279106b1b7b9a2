package items

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestfin/nestfin-backend/pkg/db/models"
	"github.com/nestfin/nestfin-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an item connection repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, conn *models.ItemConnection) (*models.ItemConnection, error) {
	if err := r.db.WithContext(ctx).Create(conn).Error; err != nil {
		return nil, err
	}
	return conn, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ItemConnection, error) {
	var conn models.ItemConnection
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *repository) FindByItemID(ctx context.Context, itemID string) (*models.ItemConnection, error) {
	var conn models.ItemConnection
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *repository) List(ctx context.Context) ([]models.ItemConnection, error) {
	var conns []models.ItemConnection
	err := r.db.WithContext(ctx).
		Where("sync_status <> ?", enums.ItemSyncStatusRemoved).
		Order("created_at ASC").
		Find(&conns).Error
	if err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.ItemSyncStatus) ([]models.ItemConnection, error) {
	var conns []models.ItemConnection
	err := r.db.WithContext(ctx).
		Where("sync_status = ?", status).
		Order("created_at ASC").
		Find(&conns).Error
	if err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *repository) UpdateByItemID(ctx context.Context, itemID string, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.ItemConnection{}).
		Where("item_id = ?", itemID).
		Updates(updates).Error
}

// UpdateStatusGuarded applies updates only while the connection sits in one
// of the expected statuses. The boolean reports whether a row was written,
// letting callers distinguish a lost race from a hard failure.
func (r *repository) UpdateStatusGuarded(ctx context.Context, itemID string, from []enums.ItemSyncStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ItemConnection{}).
		Where("item_id = ? AND sync_status IN ?", itemID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) TouchWebhookReceived(ctx context.Context, itemID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ItemConnection{}).
		Where("item_id = ?", itemID).
		Update("webhook_last_received_at", at).Error
}
