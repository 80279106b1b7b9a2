package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/nestfin/nestfin-backend/pkg/config"
	"github.com/nestfin/nestfin-backend/pkg/db/models"
	"github.com/nestfin/nestfin-backend/pkg/enums"
	pkgerrors "github.com/nestfin/nestfin-backend/pkg/errors"
	"github.com/nestfin/nestfin-backend/pkg/logger"
	"github.com/nestfin/nestfin-backend/pkg/plaid"
)

type aggregatorClient interface {
	GetAccounts(ctx context.Context, accessToken string) ([]plaid.Account, error)
	GetTransactions(ctx context.Context, accessToken string, query plaid.TransactionsQuery) (*plaid.TransactionsPage, error)
}

type connectionSource interface {
	Get(ctx context.Context, itemID string) (*models.ItemConnection, error)
	MarkSynced(ctx context.Context, itemID string, at time.Time) error
}

// Service is the batch sync engine: it pulls upstream state for one
// connection and converges local rows onto it through chunked idempotent
// upserts.
type Service interface {
	SyncAccounts(ctx context.Context, itemID string) (*AccountSyncResult, error)
	SyncTransactions(ctx context.Context, itemID string, lookbackDays int) (*TransactionSyncResult, error)
	RemoveTransactions(ctx context.Context, itemID string, refs []string) (*RemovalResult, error)
	ListAccounts(ctx context.Context, itemID string) ([]models.Account, error)
}

type service struct {
	repo        Repository
	aggregator  aggregatorClient
	connections connectionSource
	batchSize   int
	logger      *logger.Logger
}

// ServiceParams collects the dependencies for NewService.
type ServiceParams struct {
	Repo        Repository
	Aggregator  aggregatorClient
	Connections connectionSource
	Webhook     config.WebhookConfig
	Logger      *logger.Logger
}

// NewService builds a sync engine with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("sync repository required")
	}
	if params.Aggregator == nil {
		return nil, fmt.Errorf("aggregator client required")
	}
	if params.Connections == nil {
		return nil, fmt.Errorf("connection source required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	batchSize := params.Webhook.UpsertBatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	return &service{
		repo:        params.Repo,
		aggregator:  params.Aggregator,
		connections: params.Connections,
		batchSize:   batchSize,
		logger:      params.Logger,
	}, nil
}

func (s *service) SyncAccounts(ctx context.Context, itemID string) (*AccountSyncResult, error) {
	conn, err := s.syncableConnection(ctx, itemID)
	if err != nil {
		return nil, err
	}
	ctx = s.logger.WithItemID(ctx, itemID)

	count, err := s.refreshAccounts(ctx, conn)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if stampErr := s.connections.MarkSynced(ctx, itemID, now); stampErr != nil {
		s.logger.Warn(s.logger.WithField(ctx, "error", stampErr.Error()), "sync stamp failed")
	}

	s.logger.Info(s.logger.WithField(ctx, "accounts", count), "accounts synced")
	return &AccountSyncResult{ItemID: itemID, Accounts: count}, nil
}

func (s *service) SyncTransactions(ctx context.Context, itemID string, lookbackDays int) (*TransactionSyncResult, error) {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	conn, err := s.syncableConnection(ctx, itemID)
	if err != nil {
		return nil, err
	}
	ctx = s.logger.WithItemID(ctx, itemID)

	// Accounts first: the transaction rows need local account ids, and a new
	// upstream account may appear mid-window.
	if _, err := s.refreshAccounts(ctx, conn); err != nil {
		return nil, err
	}
	accountIDs, err := s.repo.AccountIDsByExternalID(ctx, conn.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account map")
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -lookbackDays)
	query := plaid.TransactionsQuery{
		StartDate: start.Format(plaid.DateLayout),
		EndDate:   end.Format(plaid.DateLayout),
	}

	result := &TransactionSyncResult{ItemID: itemID}
	var batchErrs error
	var batch []models.Transaction

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if _, upsertErr := s.repo.UpsertTransactions(ctx, batch); upsertErr != nil {
			batchErrs = multierr.Append(batchErrs, upsertErr)
			result.Failed += len(batch)
		} else {
			result.Upserted += len(batch)
		}
		batch = batch[:0]
	}

	for {
		query.Offset = result.Fetched
		page, fetchErr := s.aggregator.GetTransactions(ctx, conn.AccessToken, query)
		if fetchErr != nil {
			return nil, fetchErr
		}
		if len(page.Transactions) == 0 {
			break
		}
		result.Fetched += len(page.Transactions)

		for _, upstream := range page.Transactions {
			row, ok := s.convertTransaction(ctx, upstream, accountIDs)
			if !ok {
				result.Skipped++
				continue
			}
			batch = append(batch, row)
			if len(batch) >= s.batchSize {
				flush()
			}
		}

		if result.Fetched >= page.TotalTransactions {
			break
		}
	}
	flush()

	if result.Failed > 0 && result.Upserted == 0 {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, batchErrs, "transaction sync failed")
	}
	if batchErrs != nil {
		s.logger.Warn(s.logger.WithFields(ctx, map[string]any{
			"failed": result.Failed,
			"error":  batchErrs.Error(),
		}), "transaction sync completed with failed chunks")
	}

	now := time.Now().UTC()
	if stampErr := s.connections.MarkSynced(ctx, itemID, now); stampErr != nil {
		s.logger.Warn(s.logger.WithField(ctx, "error", stampErr.Error()), "sync stamp failed")
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"fetched":  result.Fetched,
		"upserted": result.Upserted,
		"failed":   result.Failed,
		"skipped":  result.Skipped,
	}), "transactions synced")
	return result, nil
}

func (s *service) RemoveTransactions(ctx context.Context, itemID string, refs []string) (*RemovalResult, error) {
	ctx = s.logger.WithItemID(ctx, itemID)
	result := &RemovalResult{ItemID: itemID, Requested: len(refs)}
	if len(refs) == 0 {
		return result, nil
	}

	for _, chunk := range chunkStrings(refs, s.batchSize) {
		deleted, err := s.repo.DeleteTransactionsByRefs(ctx, chunk)
		if err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete transactions")
		}
		result.Deleted += int(deleted)
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"requested": result.Requested,
		"deleted":   result.Deleted,
	}), "transactions removed")
	return result, nil
}

func (s *service) ListAccounts(ctx context.Context, itemID string) ([]models.Account, error) {
	conn, err := s.connections.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.repo.FindAccountsByConnection(ctx, conn.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list accounts")
	}
	return accounts, nil
}

// syncableConnection loads the connection and refuses connections the state
// machine has taken out of rotation.
func (s *service) syncableConnection(ctx context.Context, itemID string) (*models.ItemConnection, error) {
	if itemID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	conn, err := s.connections.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	switch conn.SyncStatus {
	case enums.ItemSyncStatusDisconnected, enums.ItemSyncStatusRemoved:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "connection is not syncable").
			WithDetails(map[string]any{"sync_status": conn.SyncStatus.String()})
	}
	return conn, nil
}

func (s *service) refreshAccounts(ctx context.Context, conn *models.ItemConnection) (int, error) {
	upstream, err := s.aggregator.GetAccounts(ctx, conn.AccessToken)
	if err != nil {
		return 0, err
	}
	if len(upstream) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([]models.Account, 0, len(upstream))
	for _, account := range upstream {
		rows = append(rows, convertAccount(conn.ID, account, now))
	}
	if err := s.repo.UpsertAccounts(ctx, rows); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert accounts")
	}
	return len(rows), nil
}

func convertAccount(connectionID uuid.UUID, upstream plaid.Account, syncedAt time.Time) models.Account {
	account := models.Account{
		ItemConnectionID:  connectionID,
		AccountID:         upstream.AccountID,
		Name:              upstream.Name,
		Type:              enums.NormalizeAccountType(upstream.Type),
		Currency:          currencyOrDefault(upstream.Balances.ISOCurrencyCode),
		IsActive:          true,
		LastBalanceSyncAt: &syncedAt,
	}
	if upstream.Subtype != "" {
		subtype := upstream.Subtype
		account.Subtype = &subtype
	}
	if upstream.Balances.Current != nil {
		account.CurrentBalance = *upstream.Balances.Current
	}
	if upstream.Balances.Available != nil {
		account.AvailableBalance.Decimal = *upstream.Balances.Available
		account.AvailableBalance.Valid = true
	}
	return account
}

// convertTransaction maps an upstream transaction to a local row. Amount
// keeps the upstream sign convention: positive = money out.
func (s *service) convertTransaction(ctx context.Context, upstream plaid.Transaction, accountIDs map[string]uuid.UUID) (models.Transaction, bool) {
	accountID, ok := accountIDs[upstream.AccountID]
	if !ok {
		s.logger.Warn(s.logger.WithField(ctx, "external_account_id", upstream.AccountID), "transaction references unknown account")
		return models.Transaction{}, false
	}

	date, err := time.Parse(plaid.DateLayout, upstream.Date)
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "transaction_ref", upstream.TransactionID), "transaction has unparseable date")
		return models.Transaction{}, false
	}

	row := models.Transaction{
		AccountID:     accountID,
		TransactionID: upstream.TransactionID,
		Date:          date,
		Category:      upstream.Category,
		Amount:        upstream.Amount,
		Currency:      currencyOrDefault(upstream.ISOCurrencyCode),
		Pending:       upstream.Pending,
	}
	if upstream.AuthorizedDate != "" {
		if authorized, parseErr := time.Parse(plaid.DateLayout, upstream.AuthorizedDate); parseErr == nil {
			row.AuthorizedDate = &authorized
		}
	}
	if merchant := merchantName(upstream); merchant != "" {
		row.MerchantName = &merchant
	}
	return row, true
}

func merchantName(upstream plaid.Transaction) string {
	if upstream.MerchantName != "" {
		return upstream.MerchantName
	}
	return upstream.Name
}

func currencyOrDefault(code string) string {
	if code == "" {
		return "USD"
	}
	return code
}

func chunkStrings(values []string, size int) [][]string {
	if size <= 0 {
		size = len(values)
	}
	var chunks [][]string
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
