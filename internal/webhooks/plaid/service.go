package plaidwebhook

import (
	"context"
	"time"

	"github.com/nestfin/nestfin-backend/internal/events"
	"github.com/nestfin/nestfin-backend/internal/sync"
	"github.com/nestfin/nestfin-backend/pkg/config"
	"github.com/nestfin/nestfin-backend/pkg/db"
	"github.com/nestfin/nestfin-backend/pkg/db/models"
	"github.com/nestfin/nestfin-backend/pkg/enums"
	pkgerrors "github.com/nestfin/nestfin-backend/pkg/errors"
	"github.com/nestfin/nestfin-backend/pkg/logger"
	"github.com/nestfin/nestfin-backend/pkg/metrics"
	"github.com/nestfin/nestfin-backend/pkg/types"
)

type syncEngine interface {
	SyncTransactions(ctx context.Context, itemID string, lookbackDays int) (*sync.TransactionSyncResult, error)
	RemoveTransactions(ctx context.Context, itemID string, refs []string) (*sync.RemovalResult, error)
}

type itemLifecycle interface {
	ApplyError(ctx context.Context, itemID, message string) error
	MarkPendingExpiration(ctx context.Context, itemID string) error
	HandlePermissionRevoked(ctx context.Context, itemID string) error
	RecordWebhookReceipt(ctx context.Context, itemID string, at time.Time) error
}

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, notification *Notification) (bool, error)
	Release(ctx context.Context, notification *Notification) error
}

// ServiceParams collects the dependencies for NewService.
type ServiceParams struct {
	Guard   deliveryGuard
	Events  events.Repository
	Sync    syncEngine
	Items   itemLifecycle
	Metrics *metrics.WebhookMetrics
	Logger  *logger.Logger
	Webhook config.WebhookConfig
}

// Service is the notification router. Every delivery ends in an
// acknowledgment; failures land in the event log, never in the HTTP response.
type Service struct {
	guard   deliveryGuard
	events  events.Repository
	sync    syncEngine
	items   itemLifecycle
	metrics *metrics.WebhookMetrics
	logger  *logger.Logger
	webhook config.WebhookConfig
}

// NewService builds the webhook router with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event log repository required")
	}
	if params.Sync == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sync engine required")
	}
	if params.Items == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "item lifecycle required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		guard:   params.Guard,
		events:  params.Events,
		sync:    params.Sync,
		items:   params.Items,
		metrics: params.Metrics,
		logger:  params.Logger,
		webhook: params.Webhook,
	}, nil
}

// HandleDelivery runs one inbound notification through the pipeline:
// parse, dedup, log, route, record outcome. It never fails the caller; the
// return value is always an acknowledgment.
func (s *Service) HandleDelivery(ctx context.Context, body []byte) *types.WebhookAck {
	ack := &types.WebhookAck{Received: true}

	notification, err := ParseNotification(body)
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "unparseable webhook acknowledged")
		return ack
	}

	webhookType := notification.WebhookType.String()
	webhookCode := notification.WebhookCode.String()
	ctx = s.logger.WithFields(s.logger.WithItemID(ctx, notification.ItemID), map[string]any{
		"webhook_type": webhookType,
		"webhook_code": webhookCode,
	})
	s.metrics.IncReceived(webhookType, webhookCode)

	duplicate, guardErr := s.guard.CheckAndMark(ctx, notification)
	if guardErr != nil {
		// The guard is advisory; the event_id unique index still protects us.
		s.logger.Warn(s.logger.WithField(ctx, "error", guardErr.Error()), "idempotency guard degraded")
	}
	if duplicate {
		s.metrics.IncDuplicate(webhookType, webhookCode)
		s.logger.Info(ctx, "duplicate delivery suppressed")
		ack.Duplicate = true
		return ack
	}

	event, logErr := s.logEvent(ctx, notification)
	if logErr != nil {
		if db.IsUniqueViolation(logErr, "uq_webhook_events_event_id") {
			s.metrics.IncDuplicate(webhookType, webhookCode)
			s.logger.Info(ctx, "duplicate delivery lost insert race")
			ack.Duplicate = true
			return ack
		}
		s.logger.Error(ctx, "event log write failed", logErr)
		return ack
	}
	ctx = s.logger.WithEventID(ctx, event.ID.String())

	if receiptErr := s.items.RecordWebhookReceipt(ctx, notification.ItemID, event.ReceivedAt); receiptErr != nil {
		s.logger.Warn(s.logger.WithField(ctx, "error", receiptErr.Error()), "webhook receipt stamp failed")
	}

	if claimErr := s.events.MarkProcessing(ctx, event.ID); claimErr != nil {
		// Another worker claimed the row between insert and claim.
		s.logger.Warn(s.logger.WithField(ctx, "error", claimErr.Error()), "event already claimed")
		return ack
	}

	started := time.Now()
	if handleErr := s.route(ctx, notification); handleErr != nil {
		s.recordFailure(ctx, event, notification, handleErr)
		return ack
	}

	if completeErr := s.events.MarkCompleted(ctx, event.ID); completeErr != nil {
		s.logger.Error(ctx, "event completion write failed", completeErr)
		return ack
	}
	s.metrics.IncCompleted(webhookType, webhookCode)
	s.metrics.ObserveDuration(webhookType, webhookCode, time.Since(started))
	s.logger.Info(ctx, "notification processed")
	return ack
}

func (s *Service) logEvent(ctx context.Context, notification *Notification) (*models.WebhookEvent, error) {
	event := &models.WebhookEvent{
		WebhookType: notification.WebhookType,
		WebhookCode: notification.WebhookCode,
		ItemID:      notification.ItemID,
		Payload:     notification.Raw,
		Status:      enums.WebhookEventStatusPending,
		ReceivedAt:  time.Now().UTC(),
	}
	if notification.EventID != "" {
		eventID := notification.EventID
		event.EventID = &eventID
	}
	return s.events.Create(ctx, event)
}

func (s *Service) recordFailure(ctx context.Context, event *models.WebhookEvent, notification *Notification, handleErr error) {
	s.logger.Error(ctx, "notification handler failed", handleErr)
	if failErr := s.events.MarkFailed(ctx, event.ID, handleErr.Error()); failErr != nil {
		s.logger.Error(ctx, "event failure write failed", failErr)
	}
	s.metrics.IncFailed(notification.WebhookType.String(), notification.WebhookCode.String())

	// Unblock the fast path so the sender's redelivery gets a clean retry.
	if releaseErr := s.guard.Release(ctx, notification); releaseErr != nil {
		s.logger.Warn(s.logger.WithField(ctx, "error", releaseErr.Error()), "idempotency key release failed")
	}
}

// route dispatches on the (type, code) pair. Unknown pairs fail closed as a
// logged no-op rather than guessing a handler.
func (s *Service) route(ctx context.Context, notification *Notification) error {
	switch notification.WebhookType {
	case enums.WebhookTypeTransactions:
		return s.routeTransactions(ctx, notification)
	case enums.WebhookTypeItem:
		return s.routeItem(ctx, notification)
	default:
		s.logger.Info(ctx, "unhandled webhook type ignored")
		return nil
	}
}

func (s *Service) routeTransactions(ctx context.Context, notification *Notification) error {
	switch notification.WebhookCode {
	case enums.WebhookCodeInitialUpdate:
		_, err := s.sync.SyncTransactions(ctx, notification.ItemID, s.lookbackDays(s.webhook.InitialLookbackDays, 90))
		return err
	case enums.WebhookCodeHistoricalUpdate:
		_, err := s.sync.SyncTransactions(ctx, notification.ItemID, s.lookbackDays(s.webhook.HistoricalLookbackDays, 730))
		return err
	case enums.WebhookCodeDefaultUpdate:
		_, err := s.sync.SyncTransactions(ctx, notification.ItemID, s.lookbackDays(s.webhook.DefaultLookbackDays, 30))
		return err
	case enums.WebhookCodeTransactionsRemoved:
		_, err := s.sync.RemoveTransactions(ctx, notification.ItemID, notification.RemovedTransactions)
		return err
	default:
		s.logger.Info(ctx, "unhandled transactions code ignored")
		return nil
	}
}

func (s *Service) routeItem(ctx context.Context, notification *Notification) error {
	switch notification.WebhookCode {
	case enums.WebhookCodeError:
		return s.items.ApplyError(ctx, notification.ItemID, notification.ErrorMessage())
	case enums.WebhookCodePendingExpiration:
		return s.items.MarkPendingExpiration(ctx, notification.ItemID)
	case enums.WebhookCodePermissionRevoked:
		return s.items.HandlePermissionRevoked(ctx, notification.ItemID)
	case enums.WebhookCodeUpdateAcknowledged:
		s.logger.Info(ctx, "webhook endpoint update acknowledged")
		return nil
	default:
		s.logger.Info(ctx, "unhandled item code ignored")
		return nil
	}
}

func (s *Service) lookbackDays(configured, fallback int) int {
	if configured > 0 {
		return configured
	}
	return fallback
}
