package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nestfin/nestfin-backend/api/responses"
	"github.com/nestfin/nestfin-backend/api/validators"
	"github.com/nestfin/nestfin-backend/internal/events"
	"github.com/nestfin/nestfin-backend/internal/items"
	syncsvc "github.com/nestfin/nestfin-backend/internal/sync"
	"github.com/nestfin/nestfin-backend/pkg/db/models"
	pkgerrors "github.com/nestfin/nestfin-backend/pkg/errors"
	"github.com/nestfin/nestfin-backend/pkg/logger"
)

type exchangeTokenRequest struct {
	PublicToken string `json:"public_token" validate:"required"`
}

type syncTransactionsRequest struct {
	ItemID string `json:"item_id"`
	Days   int    `json:"days" validate:"omitempty,min=1,max=730"`
}

type syncAccountsRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

type connectionResponse struct {
	ItemID          string     `json:"item_id"`
	InstitutionID   string     `json:"institution_id"`
	InstitutionName string     `json:"institution_name"`
	SyncStatus      string     `json:"sync_status"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
}

type connectionAccountsResponse struct {
	connectionResponse
	Accounts []accountResponse `json:"accounts"`
}

type accountResponse struct {
	AccountID        string  `json:"account_id"`
	Name             string  `json:"name"`
	Type             string  `json:"type"`
	Subtype          *string `json:"subtype,omitempty"`
	CurrentBalance   string  `json:"current_balance"`
	AvailableBalance *string `json:"available_balance,omitempty"`
	Currency         string  `json:"currency"`
	IsActive         bool    `json:"is_active"`
}

func toConnectionResponse(conn *models.ItemConnection) connectionResponse {
	return connectionResponse{
		ItemID:          conn.ItemID,
		InstitutionID:   conn.InstitutionID,
		InstitutionName: conn.InstitutionName,
		SyncStatus:      conn.SyncStatus.String(),
		ErrorMessage:    conn.ErrorMessage,
		LastSyncAt:      conn.LastSyncAt,
	}
}

func toAccountResponse(account models.Account) accountResponse {
	resp := accountResponse{
		AccountID:      account.AccountID,
		Name:           account.Name,
		Type:           account.Type.String(),
		Subtype:        account.Subtype,
		CurrentBalance: account.CurrentBalance.StringFixed(2),
		Currency:       account.Currency,
		IsActive:       account.IsActive,
	}
	if account.AvailableBalance.Valid {
		available := account.AvailableBalance.Decimal.StringFixed(2)
		resp.AvailableBalance = &available
	}
	return resp
}

// PlaidExchangeToken links a new institution connection and seeds its
// accounts.
func PlaidExchangeToken(itemsSvc items.Service, syncSvc syncsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req exchangeTokenRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		conn, err := itemsSvc.Link(ctx, req.PublicToken)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// Seed balances so the connection is usable immediately.
		if _, seedErr := syncSvc.SyncAccounts(ctx, conn.ItemID); seedErr != nil {
			logg.Warn(logg.WithItemID(ctx, conn.ItemID), "initial account sync failed")
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toConnectionResponse(conn))
	}
}

// PlaidListAccounts returns every live connection with its accounts.
func PlaidListAccounts(itemsSvc items.Service, syncSvc syncsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		conns, err := itemsSvc.List(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payload := make([]connectionAccountsResponse, 0, len(conns))
		for i := range conns {
			conn := conns[i]
			accounts, listErr := syncSvc.ListAccounts(ctx, conn.ItemID)
			if listErr != nil {
				responses.WriteError(ctx, logg, w, listErr)
				return
			}
			entry := connectionAccountsResponse{
				connectionResponse: toConnectionResponse(&conn),
				Accounts:           make([]accountResponse, 0, len(accounts)),
			}
			for _, account := range accounts {
				entry.Accounts = append(entry.Accounts, toAccountResponse(account))
			}
			payload = append(payload, entry)
		}

		responses.WriteSuccess(w, payload)
	}
}

type syncResultEntry struct {
	syncsvc.TransactionSyncResult
	Error *string `json:"error,omitempty"`
}

// PlaidSyncTransactions drives the sync engine outside the webhook path.
// With no item_id it walks every live connection, reporting per-item
// results instead of aborting on the first failure.
func PlaidSyncTransactions(itemsSvc items.Service, syncSvc syncsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req syncTransactionsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		days := req.Days
		if days == 0 {
			days = 90
		}

		if req.ItemID != "" {
			result, err := syncSvc.SyncTransactions(ctx, req.ItemID, days)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			responses.WriteSuccess(w, []syncResultEntry{{TransactionSyncResult: *result}})
			return
		}

		conns, err := itemsSvc.List(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		results := make([]syncResultEntry, 0, len(conns))
		for i := range conns {
			result, syncErr := syncSvc.SyncTransactions(ctx, conns[i].ItemID, days)
			if syncErr != nil {
				logg.Warn(logg.WithItemID(ctx, conns[i].ItemID), "transaction sync failed")
				msg := syncErr.Error()
				results = append(results, syncResultEntry{
					TransactionSyncResult: syncsvc.TransactionSyncResult{ItemID: conns[i].ItemID},
					Error:                 &msg,
				})
				continue
			}
			results = append(results, syncResultEntry{TransactionSyncResult: *result})
		}
		responses.WriteSuccess(w, results)
	}
}

// PlaidSyncAccounts refreshes balances for one connection.
func PlaidSyncAccounts(syncSvc syncsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req syncAccountsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := syncSvc.SyncAccounts(ctx, req.ItemID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PlaidDisconnectItem soft-removes a connection after best-effort upstream
// deprovisioning.
func PlaidDisconnectItem(itemsSvc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		itemID := chi.URLParam(r, "itemID")
		if itemID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item id required"))
			return
		}

		if err := itemsSvc.Disconnect(ctx, itemID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"item_id": itemID, "status": "removed"})
	}
}

type eventResponse struct {
	ID           string     `json:"id"`
	WebhookType  string     `json:"webhook_type"`
	WebhookCode  string     `json:"webhook_code"`
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	ReceivedAt   time.Time  `json:"received_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// PlaidItemEvents lists the recent webhook event log for one connection.
func PlaidItemEvents(eventsRepo events.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		itemID := chi.URLParam(r, "itemID")
		if itemID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item id required"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rows, err := eventsRepo.ListByItem(ctx, itemID, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list events"))
			return
		}

		payload := make([]eventResponse, 0, len(rows))
		for _, row := range rows {
			payload = append(payload, eventResponse{
				ID:           row.ID.String(),
				WebhookType:  row.WebhookType.String(),
				WebhookCode:  row.WebhookCode.String(),
				Status:       row.Status.String(),
				ErrorMessage: row.ErrorMessage,
				ReceivedAt:   row.ReceivedAt,
				ProcessedAt:  row.ProcessedAt,
			})
		}
		responses.WriteSuccess(w, payload)
	}
}
