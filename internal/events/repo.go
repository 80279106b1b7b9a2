package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestfin/nestfin-backend/pkg/db/models"
	"github.com/nestfin/nestfin-backend/pkg/enums"
	pkgerrors "github.com/nestfin/nestfin-backend/pkg/errors"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an event log repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, error) {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) FindByEventID(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// FindRecentByFingerprint returns the newest non-failed event matching the
// (type, code, item) fingerprint received at or after the cutoff. Failed rows
// do not count: a redelivery after a failure is a retry, not a duplicate.
func (r *repository) FindRecentByFingerprint(ctx context.Context, webhookType enums.WebhookType, webhookCode enums.WebhookCode, itemID string, since time.Time) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("webhook_type = ? AND webhook_code = ? AND item_id = ?", webhookType, webhookCode, itemID).
		Where("status <> ?", enums.WebhookEventStatusFailed).
		Where("received_at >= ?", since).
		Order("received_at DESC").
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// errAlreadyTerminal marks a guarded write that lost because the row already
// settled. Terminal rows never move backward; whether that is an error
// depends on the caller.
var errAlreadyTerminal = errors.New("event already terminal")

func (r *repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	err := r.transition(ctx, id, enums.WebhookEventStatusPending, map[string]any{
		"status": enums.WebhookEventStatusProcessing,
	})
	if errors.Is(err, errAlreadyTerminal) {
		// Claiming a settled row is a real conflict: the caller must not
		// process it again.
		return pkgerrors.New(pkgerrors.CodeStateConflict, "event is not in the expected status").
			WithDetails(map[string]any{"event_id": id.String(), "expected_status": enums.WebhookEventStatusPending.String()})
	}
	return err
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	err := r.transition(ctx, id, enums.WebhookEventStatusProcessing, map[string]any{
		"status":       enums.WebhookEventStatusCompleted,
		"processed_at": &now,
	})
	if errors.Is(err, errAlreadyTerminal) {
		return nil
	}
	return err
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	now := time.Now().UTC()
	err := r.transition(ctx, id, enums.WebhookEventStatusProcessing, map[string]any{
		"status":        enums.WebhookEventStatusFailed,
		"processed_at":  &now,
		"error_message": &errorMessage,
	})
	if errors.Is(err, errAlreadyTerminal) {
		return nil
	}
	return err
}

// transition performs a status-guarded update. The WHERE clause on the
// current status is the concurrency control: two workers racing to claim the
// same row see exactly one row affected between them. A write that lost to
// an already-terminal row reports errAlreadyTerminal so terminal marks can
// treat it as a no-op instead of a storage failure.
func (r *repository) transition(ctx context.Context, id uuid.UUID, from enums.WebhookEventStatus, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var current models.WebhookEvent
		if err := r.db.WithContext(ctx).Select("status").Where("id = ?", id).First(&current).Error; err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return errAlreadyTerminal
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "event is not in the expected status").
			WithDetails(map[string]any{
				"event_id":        id.String(),
				"expected_status": from.String(),
				"current_status":  current.Status.String(),
			})
	}
	return nil
}

func (r *repository) ListByItem(ctx context.Context, itemID string, limit int) ([]models.WebhookEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("received_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
