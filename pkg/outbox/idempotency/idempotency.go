// Package idempotency deduplicates event deliveries per consumer. A delivery
// first claims the event with a short lease; the claim becomes a long-lived
// "done" marker only after the handler succeeds.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/shopfloor-backend/pkg/redis"
)

const (
	stateInFlight = "in_flight"
	stateDone     = "done"

	defaultLease = 5 * time.Minute
)

// ErrInFlight is returned by Claim while another delivery of the same event
// holds the lease. Callers should nack and let Pub/Sub redeliver.
var ErrInFlight = errors.New("event is being processed by another delivery")

// Manager stores claims under sf:idempotency:evt:<consumer>:<event_id>.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	lease time.Duration
}

// NewManager keeps completed markers for ttl. A zero ttl keeps them forever.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	lease := defaultLease
	if ttl > 0 && ttl < lease {
		lease = ttl
	}
	return &Manager{store: store, ttl: ttl, lease: lease}, nil
}

// Claim reports whether this delivery should run the handler. It returns
// false for events an earlier delivery completed and ErrInFlight while one is
// still running.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	ok, err := m.store.SetNX(ctx, key, stateInFlight, m.lease)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	state, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		return false, ErrInFlight
	case err != nil:
		return false, err
	case state == stateDone:
		return false, nil
	default:
		return false, ErrInFlight
	}
}

// Complete overwrites the lease with a done marker.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, stateDone, m.ttl)
}

// Release drops the claim so a redelivery can retry the event.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey(fmt.Sprintf("evt:%s", consumer), eventID.String()), nil
}
