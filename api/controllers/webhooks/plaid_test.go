package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nestfin/nestfin-backend/pkg/types"
)

type fakePlaidWebhookService struct {
	calls int
	ack   *types.WebhookAck
	body  []byte
}

func (f *fakePlaidWebhookService) HandleDelivery(_ context.Context, body []byte) *types.WebhookAck {
	f.calls++
	f.body = body
	if f.ack != nil {
		return f.ack
	}
	return &types.WebhookAck{Received: true}
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
func (failingBody) Close() error { return nil }

func TestPlaidWebhook_AcksDelivery(t *testing.T) {
	service := &fakePlaidWebhookService{}
	handler := PlaidWebhook(service, nil)

	payload := `{"webhook_type":"TRANSACTIONS","webhook_code":"DEFAULT_UPDATE","item_id":"item-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/plaid", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}
	if string(service.body) != payload {
		t.Fatalf("service received mangled body: %s", service.body)
	}

	var ack types.WebhookAck
	if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.Received || ack.Duplicate {
		t.Fatalf("unexpected ack %+v", ack)
	}
}

func TestPlaidWebhook_DuplicateAckPassesThrough(t *testing.T) {
	service := &fakePlaidWebhookService{ack: &types.WebhookAck{Received: true, Duplicate: true}}
	handler := PlaidWebhook(service, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/plaid", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ack types.WebhookAck
	if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.Duplicate {
		t.Fatalf("expected duplicate flag, got %+v", ack)
	}
}

func TestPlaidWebhook_BodyReadFailureStillAcks(t *testing.T) {
	service := &fakePlaidWebhookService{}
	handler := PlaidWebhook(service, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/plaid", nil)
	req.Body = failingBody{}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on read failure, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not see an unreadable body")
	}
	var ack types.WebhookAck
	if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.Received {
		t.Fatalf("expected received ack, got %+v", ack)
	}
}

func TestPlaidWebhook_MissingServiceStillAcks(t *testing.T) {
	handler := PlaidWebhook(nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/plaid", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
