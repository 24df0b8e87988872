package planning

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	planningsvc "github.com/angelmondragon/shopfloor-backend/internal/planning"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/payloads"
)

func TestConsumerRecordsPlanningRun(t *testing.T) {
	recorder := &fakeRecorder{}
	manager := &fakeIdempotency{}
	consumer := mustConsumer(t, recorder, manager)

	salesOrderID := uuid.New()
	productID := uuid.New()
	envelope := buildEnvelope(t, uuid.New(), payloads.QuoteConvertedEvent{
		QuoteID:      uuid.New(),
		SalesOrderID: salesOrderID,
		ProductID:    productID,
		Quantity:     decimal.NewFromInt(12),
		ConvertedAt:  time.Now().UTC(),
	})

	if err := consumer.Process(context.Background(), enums.EventQuoteConverted, envelope); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(recorder.inputs) != 1 {
		t.Fatalf("expected 1 planning run, got %d", len(recorder.inputs))
	}
	input := recorder.inputs[0]
	if input.SalesOrderID != salesOrderID || input.ProductID != productID {
		t.Fatalf("unexpected run input: %+v", input)
	}
	if !input.Quantity.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("unexpected quantity: %s", input.Quantity)
	}
	if manager.consumer != consumerName {
		t.Fatalf("unexpected consumer name: %s", manager.consumer)
	}
	if manager.released || !manager.completed {
		t.Fatalf("successful events should be completed, not released")
	}
}

func TestConsumerIgnoresOtherEvents(t *testing.T) {
	recorder := &fakeRecorder{}
	manager := &fakeIdempotency{}
	consumer := mustConsumer(t, recorder, manager)

	envelope := buildEnvelope(t, uuid.New(), map[string]any{})
	if err := consumer.Process(context.Background(), enums.EventPurchaseOrderReceived, envelope); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(recorder.inputs) != 0 {
		t.Fatalf("expected no planning runs for unrelated events")
	}
	if manager.claimed {
		t.Fatalf("idempotency should not be consulted for unrelated events")
	}
}

func TestConsumerIsIdempotent(t *testing.T) {
	recorder := &fakeRecorder{}
	manager := &fakeIdempotency{already: true}
	consumer := mustConsumer(t, recorder, manager)

	envelope := buildEnvelope(t, uuid.New(), payloads.QuoteConvertedEvent{SalesOrderID: uuid.New()})
	if err := consumer.Process(context.Background(), enums.EventQuoteConverted, envelope); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(recorder.inputs) != 0 {
		t.Fatalf("expected no planning runs for duplicate events")
	}
}

func TestConsumerReleasesClaimOnRecordFailure(t *testing.T) {
	recorder := &fakeRecorder{err: errors.New("database down")}
	manager := &fakeIdempotency{}
	consumer := mustConsumer(t, recorder, manager)

	envelope := buildEnvelope(t, uuid.New(), payloads.QuoteConvertedEvent{SalesOrderID: uuid.New()})
	if err := consumer.Process(context.Background(), enums.EventQuoteConverted, envelope); err == nil {
		t.Fatalf("expected error when recording fails")
	}
	if !manager.released {
		t.Fatalf("expected claim release on failure")
	}
}

func TestConsumerRejectsUnknownPayloadVersion(t *testing.T) {
	recorder := &fakeRecorder{}
	manager := &fakeIdempotency{}
	consumer := mustConsumer(t, recorder, manager)

	envelope := buildEnvelope(t, uuid.New(), payloads.QuoteConvertedEvent{SalesOrderID: uuid.New()})
	envelope.Version = 2
	err := consumer.Process(context.Background(), enums.EventQuoteConverted, envelope)
	var decodeErr *decodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if !manager.released {
		t.Fatalf("expected claim release for undecodable payload")
	}
	if len(recorder.inputs) != 0 {
		t.Fatalf("expected no planning runs")
	}
}

func TestConsumerReleasesClaimOnPayloadDecodeFailure(t *testing.T) {
	recorder := &fakeRecorder{}
	manager := &fakeIdempotency{}
	consumer := mustConsumer(t, recorder, manager)

	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       []byte("{invalid json"),
	}
	err := consumer.Process(context.Background(), enums.EventQuoteConverted, envelope)
	if err == nil {
		t.Fatalf("expected error for bad payload")
	}
	var decodeErr *decodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected decode error, got %T", err)
	}
	if !manager.released {
		t.Fatalf("expected claim release on payload error")
	}
}

func TestHandleMessageAcksMalformedAndNacksFailures(t *testing.T) {
	manager := &fakeIdempotency{}
	consumer := mustConsumer(t, &fakeRecorder{}, manager)

	if consumer.handleMessage(context.Background(), "m-1", map[string]string{"event_type": "bogus"}, nil) {
		t.Fatalf("unknown event types should be acked")
	}
	attrs := map[string]string{"event_type": string(enums.EventQuoteConverted)}
	if consumer.handleMessage(context.Background(), "m-2", attrs, []byte("not json")) {
		t.Fatalf("malformed envelopes should be acked")
	}

	failing := mustConsumer(t, &fakeRecorder{err: errors.New("boom")}, &fakeIdempotency{})
	envelope := buildEnvelope(t, uuid.New(), payloads.QuoteConvertedEvent{SalesOrderID: uuid.New()})
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	if !failing.handleMessage(context.Background(), "m-3", attrs, data) {
		t.Fatalf("record failures should be nacked for redelivery")
	}
}

func TestHandleMessageAcksPlanningDataErrors(t *testing.T) {
	attrs := map[string]string{"event_type": string(enums.EventQuoteConverted)}
	for _, code := range []pkgerrors.Code{pkgerrors.CodeCircularBOM, pkgerrors.CodeUnknownItem, pkgerrors.CodeValidation} {
		manager := &fakeIdempotency{}
		consumer := mustConsumer(t, &fakeRecorder{err: pkgerrors.New(code, "bad product structure")}, manager)

		envelope := buildEnvelope(t, uuid.New(), payloads.QuoteConvertedEvent{SalesOrderID: uuid.New()})
		data, err := json.Marshal(envelope)
		if err != nil {
			t.Fatalf("marshal envelope: %v", err)
		}
		if consumer.handleMessage(context.Background(), "m-5", attrs, data) {
			t.Fatalf("%s: permanent planning errors should be acked", code)
		}
		if !manager.completed || manager.released {
			t.Fatalf("%s: expected event marked processed, completed=%v released=%v", code, manager.completed, manager.released)
		}
	}

	retryable := &fakeIdempotency{}
	consumer := mustConsumer(t, &fakeRecorder{err: pkgerrors.New(pkgerrors.CodeDependency, "db unavailable")}, retryable)
	envelope := buildEnvelope(t, uuid.New(), payloads.QuoteConvertedEvent{SalesOrderID: uuid.New()})
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	if !consumer.handleMessage(context.Background(), "m-6", attrs, data) {
		t.Fatalf("dependency errors should be nacked")
	}
	if retryable.completed || !retryable.released {
		t.Fatalf("dependency errors must release the claim")
	}
}

func TestInFlightEventsAreRedelivered(t *testing.T) {
	manager := &fakeIdempotency{claimErr: idempotency.ErrInFlight}
	recorder := &fakeRecorder{}
	consumer := mustConsumer(t, recorder, manager)

	envelope := buildEnvelope(t, uuid.New(), payloads.QuoteConvertedEvent{SalesOrderID: uuid.New()})
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	attrs := map[string]string{"event_type": string(enums.EventQuoteConverted)}
	if !consumer.handleMessage(context.Background(), "m-4", attrs, data) {
		t.Fatalf("in-flight events should be nacked")
	}
	if len(recorder.inputs) != 0 || manager.released {
		t.Fatalf("in-flight events must not be recorded or released")
	}
}

func TestRunRequiresSubscription(t *testing.T) {
	consumer := mustConsumer(t, &fakeRecorder{}, &fakeIdempotency{})
	if err := consumer.Run(context.Background()); err == nil {
		t.Fatalf("expected error without subscription")
	}
}

type fakeRecorder struct {
	inputs []planningsvc.RunInput
	err    error
}

func (f *fakeRecorder) RecordPlanningRun(_ context.Context, input planningsvc.RunInput) (*models.PlanningRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, input)
	return &models.PlanningRun{ID: uuid.New(), SalesOrderID: input.SalesOrderID}, nil
}

type fakeIdempotency struct {
	already   bool
	claimErr  error
	claimed   bool
	released  bool
	completed bool
	consumer  string
}

func (f *fakeIdempotency) Claim(_ context.Context, consumer string, _ uuid.UUID) (bool, error) {
	f.claimed = true
	f.consumer = consumer
	if f.claimErr != nil {
		return false, f.claimErr
	}
	return !f.already, nil
}

func (f *fakeIdempotency) Complete(_ context.Context, _ string, _ uuid.UUID) error {
	f.completed = true
	return nil
}

func (f *fakeIdempotency) Release(_ context.Context, _ string, _ uuid.UUID) error {
	f.released = true
	return nil
}

func mustConsumer(t *testing.T, recorder *fakeRecorder, manager *fakeIdempotency) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(nil, recorder, manager, logger.New(logger.Options{
		ServiceName: "planning-consumer-test",
		Level:       logger.ParseLevel("debug"),
		Output:      io.Discard,
	}))
	if err != nil {
		t.Fatalf("failed to build consumer: %v", err)
	}
	return consumer
}

func buildEnvelope(t *testing.T, eventID uuid.UUID, payload any) outbox.PayloadEnvelope {
	t.Helper()
	bytes, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now(),
		Data:       bytes,
	}
}
