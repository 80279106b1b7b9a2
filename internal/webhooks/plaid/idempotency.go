package plaidwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nestfin/nestfin-backend/internal/events"
	"github.com/nestfin/nestfin-backend/pkg/redis"
)

// IdempotencyGuard suppresses duplicate deliveries with two advisory layers:
// a Redis SETNX fast path on the delivery id and an event-log lookback on the
// (type, code, item) fingerprint. Both are advisory only; the unique index on
// event_id is the final arbiter when two deliveries race past the guard.
type IdempotencyGuard struct {
	store  redis.IdempotencyStore
	events events.Repository
	window time.Duration
	ttl    time.Duration
	scope  string
}

// NewIdempotencyGuard validates and assembles a guard.
func NewIdempotencyGuard(store redis.IdempotencyStore, eventLog events.Repository, window, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if eventLog == nil {
		return nil, errors.New("event log repository is required")
	}
	if window <= 0 {
		return nil, errors.New("dedup window must be positive")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store:  store,
		events: eventLog,
		window: window,
		ttl:    ttl,
		scope:  scope,
	}, nil
}

// CheckAndMark reports whether the notification is a duplicate delivery and
// marks it seen. An exact delivery-id match is a duplicate regardless of age.
// The fingerprint window only applies to id-less deliveries: a fresh delivery
// id is the sender saying this is a new notification, and it is processed
// even when a look-alike completed moments ago.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, notification *Notification) (bool, error) {
	if notification == nil {
		return false, errors.New("notification is required")
	}

	if notification.EventID != "" {
		key := g.store.IdempotencyKey(g.scope, notification.EventID)
		set, err := g.store.SetNX(ctx, key, "1", g.ttl)
		if err != nil {
			return false, fmt.Errorf("set idempotency key: %w", err)
		}
		if !set {
			return true, nil
		}

		// Redis can lose keys; the event log remembers.
		_, err = g.events.FindByEventID(ctx, notification.EventID)
		if err == nil {
			return true, nil
		}
		if err != gorm.ErrRecordNotFound {
			return false, fmt.Errorf("lookup delivery id: %w", err)
		}
		return false, nil
	}

	since := time.Now().UTC().Add(-g.window)
	_, err := g.events.FindRecentByFingerprint(ctx, notification.WebhookType, notification.WebhookCode, notification.ItemID, since)
	if err == nil {
		return true, nil
	}
	if err != gorm.ErrRecordNotFound {
		return false, fmt.Errorf("lookup fingerprint: %w", err)
	}
	return false, nil
}

// Release drops the fast-path key so a failed delivery can be retried by the
// sender without waiting out the TTL.
func (g *IdempotencyGuard) Release(ctx context.Context, notification *Notification) error {
	if notification == nil || notification.EventID == "" {
		return nil
	}
	key := g.store.IdempotencyKey(g.scope, notification.EventID)
	return g.store.Del(ctx, key)
}
