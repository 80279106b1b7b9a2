package items

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nestfin/nestfin-backend/pkg/db/models"
	"github.com/nestfin/nestfin-backend/pkg/enums"
	pkgerrors "github.com/nestfin/nestfin-backend/pkg/errors"
	"github.com/nestfin/nestfin-backend/pkg/logger"
	"github.com/nestfin/nestfin-backend/pkg/plaid"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type aggregatorClient interface {
	ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.ExchangeResult, error)
	GetItem(ctx context.Context, accessToken string) (*plaid.Item, error)
	GetInstitution(ctx context.Context, institutionID string) (*plaid.Institution, error)
	RemoveItem(ctx context.Context, accessToken string) error
}

// AccountDeactivator flips every account under a connection to inactive when
// the connection is removed.
type AccountDeactivator interface {
	DeactivateByItemID(ctx context.Context, tx *gorm.DB, itemID string) error
}

// Service owns the connection lifecycle: linking, webhook-driven status
// transitions, and explicit disconnects.
type Service interface {
	Link(ctx context.Context, publicToken string) (*models.ItemConnection, error)
	Get(ctx context.Context, itemID string) (*models.ItemConnection, error)
	List(ctx context.Context) ([]models.ItemConnection, error)
	ApplyError(ctx context.Context, itemID, message string) error
	MarkPendingExpiration(ctx context.Context, itemID string) error
	HandlePermissionRevoked(ctx context.Context, itemID string) error
	Disconnect(ctx context.Context, itemID string) error
	MarkSynced(ctx context.Context, itemID string, at time.Time) error
	RecordWebhookReceipt(ctx context.Context, itemID string, at time.Time) error
}

type service struct {
	repo       Repository
	tx         txRunner
	aggregator aggregatorClient
	accounts   AccountDeactivator
	logger     *logger.Logger
}

// ServiceParams collects the dependencies for NewService.
type ServiceParams struct {
	Repo       Repository
	Tx         txRunner
	Aggregator aggregatorClient
	Accounts   AccountDeactivator
	Logger     *logger.Logger
}

// NewService builds an item lifecycle service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("items repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Aggregator == nil {
		return nil, fmt.Errorf("aggregator client required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("account deactivator required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		aggregator: params.Aggregator,
		accounts:   params.Accounts,
		logger:     params.Logger,
	}, nil
}

// autoTransitionSources lists the statuses a webhook-driven write may move
// away from. Disconnected and removed stay put until an explicit relink.
var autoTransitionSources = []enums.ItemSyncStatus{
	enums.ItemSyncStatusActive,
	enums.ItemSyncStatusError,
	enums.ItemSyncStatusPendingExpiration,
}

func (s *service) Link(ctx context.Context, publicToken string) (*models.ItemConnection, error) {
	if publicToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "public token is required")
	}

	exchange, err := s.aggregator.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithItemID(ctx, exchange.ItemID)

	item, err := s.aggregator.GetItem(ctx, exchange.AccessToken)
	if err != nil {
		return nil, err
	}

	institutionName := item.InstitutionID
	if item.InstitutionID != "" {
		institution, err := s.aggregator.GetInstitution(ctx, item.InstitutionID)
		if err != nil {
			// The link still works without a display name.
			s.logger.Warn(s.logger.WithField(ctx, "institution_id", item.InstitutionID), "institution lookup failed")
		} else {
			institutionName = institution.Name
		}
	}

	var conn *models.ItemConnection
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, findErr := repo.FindByItemID(ctx, exchange.ItemID)
		if findErr != nil && findErr != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load connection")
		}

		if existing != nil {
			// Relink: refresh the credential and bring the connection back.
			updates := map[string]any{
				"access_token":     exchange.AccessToken,
				"institution_id":   item.InstitutionID,
				"institution_name": institutionName,
				"sync_status":      enums.ItemSyncStatusActive,
				"error_message":    nil,
			}
			if updErr := repo.UpdateByItemID(ctx, exchange.ItemID, updates); updErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, updErr, "refresh connection")
			}
			existing.AccessToken = exchange.AccessToken
			existing.InstitutionID = item.InstitutionID
			existing.InstitutionName = institutionName
			existing.SyncStatus = enums.ItemSyncStatusActive
			existing.ErrorMessage = nil
			conn = existing
			return nil
		}

		created, createErr := repo.Create(ctx, &models.ItemConnection{
			ItemID:          exchange.ItemID,
			AccessToken:     exchange.AccessToken,
			InstitutionID:   item.InstitutionID,
			InstitutionName: institutionName,
			SyncStatus:      enums.ItemSyncStatusActive,
		})
		if createErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create connection")
		}
		conn = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "connection linked")
	return conn, nil
}

func (s *service) Get(ctx context.Context, itemID string) (*models.ItemConnection, error) {
	conn, err := s.repo.FindByItemID(ctx, itemID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "connection not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load connection")
	}
	return conn, nil
}

func (s *service) List(ctx context.Context) ([]models.ItemConnection, error) {
	conns, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list connections")
	}
	return conns, nil
}

func (s *service) ApplyError(ctx context.Context, itemID, message string) error {
	return s.autoTransition(ctx, itemID, enums.ItemSyncStatusError, map[string]any{
		"sync_status":   enums.ItemSyncStatusError,
		"error_message": &message,
	})
}

func (s *service) MarkPendingExpiration(ctx context.Context, itemID string) error {
	return s.autoTransition(ctx, itemID, enums.ItemSyncStatusPendingExpiration, map[string]any{
		"sync_status": enums.ItemSyncStatusPendingExpiration,
	})
}

// HandlePermissionRevoked marks the connection disconnected and retires its
// accounts in the same transaction. The credential is dead upstream, so the
// accounts must stop surfacing as live.
func (s *service) HandlePermissionRevoked(ctx context.Context, itemID string) error {
	if itemID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	ctx = s.logger.WithItemID(ctx, itemID)

	var applied bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var guardErr error
		applied, guardErr = repo.UpdateStatusGuarded(ctx, itemID, autoTransitionSources, map[string]any{
			"sync_status": enums.ItemSyncStatusDisconnected,
		})
		if guardErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, guardErr, "update connection status")
		}
		if !applied {
			return nil
		}
		return s.accounts.DeactivateByItemID(ctx, tx, itemID)
	})
	if err != nil {
		return err
	}
	if !applied {
		if _, findErr := s.repo.FindByItemID(ctx, itemID); findErr != nil {
			if findErr == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "connection not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load connection")
		}
		s.logger.Info(ctx, "revocation dropped by state machine")
		return nil
	}

	s.logger.Info(ctx, "connection disconnected, accounts deactivated")
	return nil
}

// autoTransition performs a webhook-driven status write. A write that finds
// the connection outside the allowed source statuses is dropped, not errored:
// the state machine is monotonic against stale webhooks.
func (s *service) autoTransition(ctx context.Context, itemID string, target enums.ItemSyncStatus, updates map[string]any) error {
	if itemID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	ctx = s.logger.WithItemID(ctx, itemID)

	applied, err := s.repo.UpdateStatusGuarded(ctx, itemID, autoTransitionSources, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update connection status")
	}
	if !applied {
		if _, findErr := s.repo.FindByItemID(ctx, itemID); findErr != nil {
			if findErr == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "connection not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load connection")
		}
		s.logger.Info(s.logger.WithField(ctx, "target_status", target.String()), "status write dropped by state machine")
		return nil
	}

	s.logger.Info(s.logger.WithField(ctx, "target_status", target.String()), "connection status updated")
	return nil
}

// Disconnect deprovisions the credential upstream (best-effort) and
// soft-removes the connection. Local state never waits on the third party.
func (s *service) Disconnect(ctx context.Context, itemID string) error {
	if itemID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	ctx = s.logger.WithItemID(ctx, itemID)

	conn, err := s.repo.FindByItemID(ctx, itemID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "connection not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load connection")
	}
	if conn.SyncStatus == enums.ItemSyncStatusRemoved {
		return nil
	}

	if removeErr := s.aggregator.RemoveItem(ctx, conn.AccessToken); removeErr != nil {
		s.logger.Warn(s.logger.WithField(ctx, "error", removeErr.Error()), "upstream item removal failed")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if updErr := repo.UpdateByItemID(ctx, itemID, map[string]any{
			"sync_status":   enums.ItemSyncStatusRemoved,
			"error_message": nil,
		}); updErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, updErr, "remove connection")
		}
		if deactErr := s.accounts.DeactivateByItemID(ctx, tx, itemID); deactErr != nil {
			return deactErr
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "connection removed")
	return nil
}

// MarkSynced stamps a successful sync and recovers an errored connection
// back to active. A pending_expiration connection keeps its status: syncing
// still works on the old consent, so a successful sync says nothing about
// the expiry that was announced.
func (s *service) MarkSynced(ctx context.Context, itemID string, at time.Time) error {
	if itemID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	applied, err := s.repo.UpdateStatusGuarded(ctx, itemID,
		[]enums.ItemSyncStatus{enums.ItemSyncStatusActive, enums.ItemSyncStatusError},
		map[string]any{
			"sync_status":   enums.ItemSyncStatusActive,
			"error_message": nil,
			"last_sync_at":  &at,
		})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp sync")
	}
	if !applied {
		s.logger.Info(s.logger.WithItemID(ctx, itemID), "sync stamp dropped by state machine")
	}
	return nil
}

func (s *service) RecordWebhookReceipt(ctx context.Context, itemID string, at time.Time) error {
	if itemID == "" {
		return nil
	}
	return s.repo.TouchWebhookReceived(ctx, itemID, at)
}

type accountDeactivatorImpl struct{}

// NewAccountDeactivator exposes the default account deactivation implementation.
func NewAccountDeactivator() AccountDeactivator {
	return accountDeactivatorImpl{}
}

func (accountDeactivatorImpl) DeactivateByItemID(ctx context.Context, tx *gorm.DB, itemID string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for account deactivation")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE accounts
		SET is_active = FALSE,
			updated_at = CURRENT_TIMESTAMP
		WHERE item_connection_id IN (
			SELECT id FROM item_connections WHERE item_id = ?
		)
	`, itemID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "deactivate accounts")
	}
	return nil
}
