package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestfin/nestfin-backend/pkg/db/models"
	"github.com/nestfin/nestfin-backend/pkg/enums"
)

// Repository defines persistence operations for the webhook event log. The
// log is append-only: rows are created once and only their status advances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error)
	FindByEventID(ctx context.Context, eventID string) (*models.WebhookEvent, error)
	FindRecentByFingerprint(ctx context.Context, webhookType enums.WebhookType, webhookCode enums.WebhookCode, itemID string, since time.Time) (*models.WebhookEvent, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	ListByItem(ctx context.Context, itemID string, limit int) ([]models.WebhookEvent, error)
}
