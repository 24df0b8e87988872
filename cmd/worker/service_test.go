package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

func TestServiceRunStopsOnConsumerError(t *testing.T) {
	failing := consumerFunc(func(context.Context) error { return errors.New("subscription gone") })
	svc := newTestService(t, okPinger{}, failing)

	err := svc.Run(context.Background())
	if err == nil {
		t.Fatalf("expected consumer error")
	}
	if got := err.Error(); got != "planning-runs: subscription gone" {
		t.Fatalf("unexpected error: %s", got)
	}
}

func TestServiceRunFailsReadiness(t *testing.T) {
	called := false
	c := consumerFunc(func(context.Context) error {
		called = true
		return nil
	})
	svc := newTestService(t, failingPinger{}, c)

	if err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected readiness error")
	}
	if called {
		t.Fatalf("consumers must not start before dependencies are ready")
	}
}

func TestServiceRunReturnsOnCancel(t *testing.T) {
	blocking := consumerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	svc := newTestService(t, okPinger{}, blocking)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewServiceRequiresConsumer(t *testing.T) {
	_, err := NewService(ServiceParams{
		Logger: testLogger(),
		DB:     okPinger{},
		Redis:  okPinger{},
		PubSub: okPinger{},
	})
	if err == nil {
		t.Fatalf("expected error without planning consumer")
	}
}

func newTestService(t *testing.T, db pinger, c consumer) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:          testLogger(),
		DB:              db,
		Redis:           okPinger{},
		PubSub:          okPinger{},
		PlanningRunsSub: c,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

type consumerFunc func(ctx context.Context) error

func (f consumerFunc) Run(ctx context.Context) error { return f(ctx) }

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestServiceRunTreatsSilentExitAsFailure(t *testing.T) {
	quiet := consumerFunc(func(context.Context) error { return nil })
	svc := newTestService(t, okPinger{}, quiet)

	err := svc.Run(context.Background())
	if err == nil || err.Error() != "planning-runs: stopped without error" {
		t.Fatalf("expected silent exit to be reported, got %v", err)
	}
}
