package items

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestfin/nestfin-backend/pkg/db/models"
	"github.com/nestfin/nestfin-backend/pkg/enums"
)

// Repository defines persistence operations for linked institution
// connections.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, conn *models.ItemConnection) (*models.ItemConnection, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.ItemConnection, error)
	FindByItemID(ctx context.Context, itemID string) (*models.ItemConnection, error)
	List(ctx context.Context) ([]models.ItemConnection, error)
	ListByStatus(ctx context.Context, status enums.ItemSyncStatus) ([]models.ItemConnection, error)
	UpdateByItemID(ctx context.Context, itemID string, updates map[string]any) error
	UpdateStatusGuarded(ctx context.Context, itemID string, from []enums.ItemSyncStatus, updates map[string]any) (bool, error)
	TouchWebhookReceived(ctx context.Context, itemID string, at time.Time) error
}
