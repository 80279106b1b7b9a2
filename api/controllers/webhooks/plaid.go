package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/nestfin/nestfin-backend/pkg/logger"
	"github.com/nestfin/nestfin-backend/pkg/types"
)

type PlaidWebhookService interface {
	HandleDelivery(ctx context.Context, body []byte) *types.WebhookAck
}

// PlaidWebhook receives aggregator deliveries. The endpoint acknowledges
// every delivery with 200 so the upstream never retries into a failure loop;
// processing outcomes live in the event log, not the HTTP status.
func PlaidWebhook(svc PlaidWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			if logg != nil {
				logg.Error(ctx, "webhook service unavailable", nil)
			}
			writeAck(w, &types.WebhookAck{Received: true})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "webhook body read failed")
			}
			writeAck(w, &types.WebhookAck{Received: true})
			return
		}

		writeAck(w, svc.HandleDelivery(ctx, body))
	}
}

// writeAck emits the bare acknowledgment body the aggregator expects,
// without the API's usual data envelope.
func writeAck(w http.ResponseWriter, ack *types.WebhookAck) {
	if ack == nil {
		ack = &types.WebhookAck{Received: true}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ack)
}
