package planning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	planningsvc "github.com/angelmondragon/shopfloor-backend/internal/planning"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/registry"
)

const consumerName = "planning-runs"

type runRecorder interface {
	RecordPlanningRun(ctx context.Context, input planningsvc.RunInput) (*models.PlanningRun, error)
}

type idempotencyChecker interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer records a planning run for every converted quote while honoring
// Redis idempotency.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	runs         runRecorder
	manager      idempotencyChecker
	decoders     *registry.Decoders
	logg         *logger.Logger
}

// NewConsumer builds a planning consumer. The subscription may be nil when the
// consumer is only driven through Process.
func NewConsumer(subscription *gcppubsub.Subscriber, runs runRecorder, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if runs == nil {
		return nil, fmt.Errorf("planning run recorder required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: subscription,
		runs:         runs,
		manager:      manager,
		decoders:     newDecoders(),
		logg:         logg,
	}, nil
}

func newDecoders() *registry.Decoders {
	decoders := registry.NewDecoders()
	registry.RegisterJSON[payloads.QuoteConvertedEvent](decoders, enums.EventQuoteConverted, 1)
	return decoders
}

// Run receives planning messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return errors.New("planning subscription is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if c.handleMessage(innerCtx, msg.ID, msg.Attributes, msg.Data) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// handleMessage reports whether the message should be redelivered. Malformed
// messages are acked and dropped.
func (c *Consumer) handleMessage(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	logCtx := c.logg.WithField(ctx, "message_id", messageID)

	eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(attrs["event_type"]))
	if err != nil {
		c.logg.Warn(logCtx, "invalid event type attribute")
		return false
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Warn(logCtx, "invalid payload envelope")
		return false
	}
	if strings.TrimSpace(envelope.EventID) == "" {
		envelope.EventID = strings.TrimSpace(attrs["event_id"])
	}

	if err := c.Process(logCtx, eventType, envelope); err != nil {
		var decodeErr *decodeError
		if errors.As(err, &decodeErr) {
			c.logg.Warn(logCtx, decodeErr.Error())
			return false
		}
		return true
	}
	return false
}

// Process records a planning run if the event is a quote conversion.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if eventType != enums.EventQuoteConverted {
		c.logg.Debug(logCtx, "event not handled by planning consumer")
		return nil
	}

	if envelope.EventID == "" {
		return &decodeError{msg: "event id missing"}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return &decodeError{msg: fmt.Sprintf("parse event id: %v", err)}
	}

	claimed, err := c.manager.Claim(ctx, consumerName, eventID)
	if errors.Is(err, idempotency.ErrInFlight) {
		c.logg.Info(logCtx, "event in flight on another delivery")
		return err
	}
	if err != nil {
		return fmt.Errorf("idempotency claim: %w", err)
	}
	if !claimed {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	version := envelope.Version
	if version <= 0 {
		version = 1
	}
	event, err := registry.DecodeAs[payloads.QuoteConvertedEvent](c.decoders, eventType, version, envelope.Data)
	if err != nil {
		_ = c.manager.Release(ctx, consumerName, eventID)
		return &decodeError{msg: fmt.Sprintf("decode quote converted payload: %v", err)}
	}

	run, err := c.runs.RecordPlanningRun(ctx, planningsvc.RunInput{
		SalesOrderID: event.SalesOrderID,
		ProductID:    event.ProductID,
		Quantity:     event.Quantity,
	})
	if permanent(err) {
		// redelivery cannot fix a cyclic or dangling BOM; drop the event
		c.logg.Warn(c.logg.WithFields(logCtx, pkgerrors.Dump(err).Fields()), "planning run rejected, event dropped")
		if cerr := c.manager.Complete(ctx, consumerName, eventID); cerr != nil {
			c.logg.Warn(c.logg.WithField(logCtx, "error", cerr.Error()), "failed to mark event processed")
		}
		return nil
	}
	if err != nil {
		c.logg.Error(logCtx, "failed to record planning run", err)
		_ = c.manager.Release(ctx, consumerName, eventID)
		return err
	}

	if err := c.manager.Complete(ctx, consumerName, eventID); err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "failed to mark event processed")
	}

	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"sales_order_id":  event.SalesOrderID,
		"planning_run_id": run.ID,
		"shortage_count":  run.ShortageCount,
	}), "planning run recorded")
	return nil
}

// permanent reports whether err carries a code that fails the same way on
// every attempt.
func permanent(err error) bool {
	te := pkgerrors.As(err)
	return te != nil && !pkgerrors.MetadataFor(te.Code()).Retryable
}

type decodeError struct {
	msg string
}

func (e *decodeError) Error() string { return e.msg }
