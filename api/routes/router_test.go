package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/nestfin/nestfin-backend/api/controllers"
	"github.com/nestfin/nestfin-backend/internal/events"
	syncsvc "github.com/nestfin/nestfin-backend/internal/sync"
	plaidwebhook "github.com/nestfin/nestfin-backend/internal/webhooks/plaid"
	"github.com/nestfin/nestfin-backend/pkg/config"
	"github.com/nestfin/nestfin-backend/pkg/db/models"
	"github.com/nestfin/nestfin-backend/pkg/enums"
	"github.com/nestfin/nestfin-backend/pkg/logger"
	"github.com/nestfin/nestfin-backend/pkg/metrics"
	"github.com/nestfin/nestfin-backend/pkg/types"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubItemsService struct{}

func (stubItemsService) Link(context.Context, string) (*models.ItemConnection, error) {
	return &models.ItemConnection{ItemID: "item-1"}, nil
}
func (stubItemsService) Get(context.Context, string) (*models.ItemConnection, error) {
	return &models.ItemConnection{ItemID: "item-1"}, nil
}
func (stubItemsService) List(context.Context) ([]models.ItemConnection, error) {
	return nil, nil
}
func (stubItemsService) ApplyError(context.Context, string, string) error { return nil }
func (stubItemsService) MarkPendingExpiration(context.Context, string) error { return nil }
func (stubItemsService) HandlePermissionRevoked(context.Context, string) error { return nil }
func (stubItemsService) Disconnect(context.Context, string) error { return nil }
func (stubItemsService) MarkSynced(context.Context, string, time.Time) error { return nil }
func (stubItemsService) RecordWebhookReceipt(context.Context, string, time.Time) error {
	return nil
}

type stubSyncService struct{}

func (stubSyncService) SyncAccounts(_ context.Context, itemID string) (*syncsvc.AccountSyncResult, error) {
	return &syncsvc.AccountSyncResult{ItemID: itemID}, nil
}

func (stubSyncService) SyncTransactions(_ context.Context, itemID string, _ int) (*syncsvc.TransactionSyncResult, error) {
	return &syncsvc.TransactionSyncResult{ItemID: itemID}, nil
}

func (stubSyncService) RemoveTransactions(_ context.Context, itemID string, refs []string) (*syncsvc.RemovalResult, error) {
	return &syncsvc.RemovalResult{ItemID: itemID, Requested: len(refs)}, nil
}

func (stubSyncService) ListAccounts(context.Context, string) ([]models.Account, error) {
	return nil, nil
}

type stubEventsRepo struct{}

func (r stubEventsRepo) WithTx(*gorm.DB) events.Repository { return r }

func (stubEventsRepo) Create(_ context.Context, event *models.WebhookEvent) (*models.WebhookEvent, error) {
	event.ID = uuid.New()
	return event, nil
}

func (stubEventsRepo) FindByID(context.Context, uuid.UUID) (*models.WebhookEvent, error) {
	return nil, gorm.ErrRecordNotFound
}

func (stubEventsRepo) FindByEventID(context.Context, string) (*models.WebhookEvent, error) {
	return nil, gorm.ErrRecordNotFound
}

func (stubEventsRepo) FindRecentByFingerprint(context.Context, enums.WebhookType, enums.WebhookCode, string, time.Time) (*models.WebhookEvent, error) {
	return nil, gorm.ErrRecordNotFound
}

func (stubEventsRepo) MarkProcessing(context.Context, uuid.UUID) error { return nil }
func (stubEventsRepo) MarkCompleted(context.Context, uuid.UUID) error { return nil }
func (stubEventsRepo) MarkFailed(context.Context, uuid.UUID, string) error { return nil }
func (stubEventsRepo) ListByItem(context.Context, string, int) ([]models.WebhookEvent, error) {
	return nil, nil
}

type passthroughGuard struct{}

func (passthroughGuard) CheckAndMark(context.Context, *plaidwebhook.Notification) (bool, error) {
	return false, nil
}
func (passthroughGuard) Release(context.Context, *plaidwebhook.Notification) error { return nil }

func newTestRouter(t *testing.T, dbErr, redisErr error) http.Handler {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	cfg := &config.Config{}
	cfg.App.Env = "test"

	webhookService, err := plaidwebhook.NewService(plaidwebhook.ServiceParams{
		Guard:   passthroughGuard{},
		Events:  stubEventsRepo{},
		Sync:    stubSyncService{},
		Items:   stubItemsService{},
		Metrics: metrics.NewWebhookMetrics(nil),
		Logger:  logg,
	})
	if err != nil {
		t.Fatalf("webhook service setup: %v", err)
	}

	return NewRouter(RouterParams{
		Config:         cfg,
		Logger:         logg,
		DB:             stubPinger{err: dbErr},
		Redis:          stubPinger{err: redisErr},
		Items:          stubItemsService{},
		Sync:           stubSyncService{},
		Events:         stubEventsRepo{},
		WebhookService: webhookService,
		Gatherer:       prometheus.NewRegistry(),
	})
}

func TestRouterHealthLive(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-NestFin-Env") != "test" {
		t.Fatalf("expected environment header, got %q", rec.Header().Get("X-NestFin-Env"))
	}
}

func TestRouterHealthReadyReportsDependencies(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	broken := newTestRouter(t, context.DeadlineExceeded, nil)
	rec = httptest.NewRecorder()
	broken.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when postgres is down, got %d", rec.Code)
	}
}

func TestRouterWebhookAlwaysAcks(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	for _, body := range []string{
		`{"webhook_type":"TRANSACTIONS","webhook_code":"DEFAULT_UPDATE","item_id":"item-1"}`,
		`not even json`,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/plaid", strings.NewReader(body))
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for body %q, got %d", body, rec.Code)
		}
		var ack types.WebhookAck
		if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
			t.Fatalf("decode ack: %v", err)
		}
		if !ack.Received {
			t.Fatalf("expected received ack for body %q", body)
		}
	}
}

func TestRouterPlaidRoutesWired(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plaid/accounts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from accounts listing, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/plaid/items/item-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from disconnect, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plaid/items/item-1/events", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from events listing, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRouterMetricsExposed(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics, got %d", rec.Code)
	}
}

var _ controllers.Pinger = stubPinger{}
