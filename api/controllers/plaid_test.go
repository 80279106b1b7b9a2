package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nestfin/nestfin-backend/internal/items"
	syncsvc "github.com/nestfin/nestfin-backend/internal/sync"
	"github.com/nestfin/nestfin-backend/pkg/db/models"
	"github.com/nestfin/nestfin-backend/pkg/logger"
)

type fanoutItemsService struct {
	items.Service
	conns []models.ItemConnection
}

func (f fanoutItemsService) List(context.Context) ([]models.ItemConnection, error) {
	return f.conns, nil
}

type fanoutSyncService struct {
	syncsvc.Service
	failFor string
	days    []int
}

func (f *fanoutSyncService) SyncTransactions(_ context.Context, itemID string, days int) (*syncsvc.TransactionSyncResult, error) {
	f.days = append(f.days, days)
	if itemID == f.failFor {
		return nil, errors.New("institution unavailable")
	}
	return &syncsvc.TransactionSyncResult{ItemID: itemID, Fetched: 3, Upserted: 3}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestPlaidSyncTransactionsFansOutWithoutItemID(t *testing.T) {
	itemsSvc := fanoutItemsService{conns: []models.ItemConnection{
		{ItemID: "item-1"},
		{ItemID: "item-2"},
	}}
	syncSvc := &fanoutSyncService{failFor: "item-2"}

	handler := PlaidSyncTransactions(itemsSvc, syncSvc, testLogger())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plaid/sync-transactions", strings.NewReader(`{}`))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	for _, days := range syncSvc.days {
		if days != 90 {
			t.Fatalf("expected default 90 day window, got %d", days)
		}
	}

	var envelope struct {
		Data []syncResultEntry `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 2 {
		t.Fatalf("expected a result per connection, got %d", len(envelope.Data))
	}
	if envelope.Data[0].Error != nil || envelope.Data[0].Upserted != 3 {
		t.Fatalf("unexpected first result %+v", envelope.Data[0])
	}
	if envelope.Data[1].Error == nil {
		t.Fatalf("expected failure recorded for item-2, got %+v", envelope.Data[1])
	}
}

func TestPlaidSyncTransactionsSingleItem(t *testing.T) {
	syncSvc := &fanoutSyncService{}

	handler := PlaidSyncTransactions(fanoutItemsService{}, syncSvc, testLogger())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plaid/sync-transactions",
		strings.NewReader(`{"item_id":"item-1","days":30}`))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(syncSvc.days) != 1 || syncSvc.days[0] != 30 {
		t.Fatalf("expected one sync with a 30 day window, got %v", syncSvc.days)
	}
}

func TestPlaidSyncTransactionsRejectsBadWindow(t *testing.T) {
	handler := PlaidSyncTransactions(fanoutItemsService{}, &fanoutSyncService{}, testLogger())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plaid/sync-transactions",
		strings.NewReader(`{"item_id":"item-1","days":1000}`))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range window, got %d", rec.Code)
	}
}
