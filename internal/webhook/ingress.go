// Package webhook verifies and routes inbound processor events. The raw,
// unparsed request body is verified against the endpoint's signing secret
// before anything else touches it; handlers run after verification and must
// stay idempotent because delivery is at-least-once.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"rentpay/internal/processor"
	"rentpay/internal/usecase"
)

const processedMarkerTTL = 24 * time.Hour

type Ingress struct {
	proc        processor.Client
	settlements usecase.Settlement
	accounts    usecase.AccountSync
	redis       *redis.Client
	logger      *zap.Logger
}

func NewIngress(
	proc processor.Client,
	settlements usecase.Settlement,
	accounts usecase.AccountSync,
	rdb *redis.Client,
	logger *zap.Logger,
) *Ingress {
	return &Ingress{
		proc:        proc,
		settlements: settlements,
		accounts:    accounts,
		redis:       rdb,
		logger:      logger.With(zap.String("component", "webhook_ingress")),
	}
}

// checkoutSessionData is the slice of the session object the handlers need.
type checkoutSessionData struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

type paymentIntentData struct {
	ID string `json:"id"`
}

type chargeData struct {
	PaymentIntent string `json:"payment_intent"`
	Refunds       struct {
		Data []struct {
			ID     string `json:"id"`
			Amount int64  `json:"amount"`
		} `json:"data"`
	} `json:"refunds"`
}

// Handle verifies the payload, routes the event, and returns nil when the
// delivery should be acknowledged. A non-nil error other than
// ErrSignatureInvalid means the handler failed and the processor should
// redeliver.
func (i *Ingress) Handle(ctx context.Context, payload []byte, sigHeader string, endpoint processor.Endpoint) error {
	event, err := i.proc.VerifyEvent(payload, sigHeader, endpoint)
	if err != nil {
		i.logger.Warn("webhook signature verification failed", zap.Error(err))
		return err
	}

	kind := KindOf(event.Type)
	if kind == KindUnknown {
		i.logger.Debug("ignoring unhandled event type",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type))
		return nil
	}

	if i.alreadyProcessed(ctx, event.ID) {
		i.logger.Info("event already processed, acknowledging",
			zap.String("event_id", event.ID))
		return nil
	}

	if event.Account != "" {
		err = i.dispatchConnect(ctx, kind, event)
	} else {
		err = i.dispatchPlatform(ctx, kind, event)
	}
	if err != nil {
		// Surface as a handler failure so the processor retries later; the
		// event id is logged for manual replay.
		i.logger.Error("webhook handler failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err))
		return fmt.Errorf("handle %s event %s: %w", event.Type, event.ID, err)
	}

	i.markProcessed(ctx, event.ID)
	return nil
}

func (i *Ingress) dispatchPlatform(ctx context.Context, kind EventKind, event *processor.Event) error {
	switch kind {
	case KindCheckoutSessionCompleted:
		var session checkoutSessionData
		if err := json.Unmarshal(event.Data, &session); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		paymentID := session.Metadata["paymentId"]
		if paymentID == "" {
			// Not a session this core created; acknowledge and move on.
			i.logger.Warn("completed session without payment metadata",
				zap.String("session_id", session.ID))
			return nil
		}
		if planID := session.Metadata["planId"]; planID != "" {
			return i.settlements.ActivateSubscription(ctx, paymentID, planID, session.Metadata["userId"], session.PaymentIntent)
		}
		return i.settlements.SettleBookingPayment(ctx, paymentID, session.PaymentIntent)

	case KindCheckoutSessionExpired:
		var session checkoutSessionData
		if err := json.Unmarshal(event.Data, &session); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		if session.Metadata["paymentId"] == "" {
			return nil
		}
		return i.settlements.FailPayment(ctx, session.Metadata["paymentId"])

	case KindPaymentIntentFailed:
		var intent paymentIntentData
		if err := json.Unmarshal(event.Data, &intent); err != nil {
			return fmt.Errorf("decode payment intent: %w", err)
		}
		return i.settlements.FailPaymentByIntent(ctx, intent.ID)

	case KindChargeRefunded:
		var charge chargeData
		if err := json.Unmarshal(event.Data, &charge); err != nil {
			return fmt.Errorf("decode charge: %w", err)
		}
		for _, refund := range charge.Refunds.Data {
			if err := i.settlements.RecordRefund(ctx, charge.PaymentIntent, refund.ID, float64(refund.Amount)/100); err != nil {
				return err
			}
		}
		return nil

	case KindAccountUpdated, KindCapabilityUpdated:
		// Account events arrive on the connect endpoint; one landing here is
		// acknowledged without effect.
		i.logger.Warn("account event on platform endpoint, ignoring",
			zap.String("event_id", event.ID))
		return nil
	}
	return nil
}

func (i *Ingress) dispatchConnect(ctx context.Context, kind EventKind, event *processor.Event) error {
	switch kind {
	case KindAccountUpdated, KindCapabilityUpdated:
		return i.accounts.SyncAccount(ctx, event.Account)

	case KindCheckoutSessionCompleted, KindCheckoutSessionExpired, KindPaymentIntentFailed, KindChargeRefunded:
		i.logger.Warn("platform event on connect endpoint, ignoring",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type))
		return nil
	}
	return nil
}

func (i *Ingress) markerKey(eventID string) string {
	return fmt.Sprintf("webhook:event:%s", eventID)
}

// alreadyProcessed is a best-effort shortcut; handlers stay idempotent
// regardless, so a redis outage only costs redundant work.
func (i *Ingress) alreadyProcessed(ctx context.Context, eventID string) bool {
	if i.redis == nil {
		return false
	}
	n, err := i.redis.Exists(ctx, i.markerKey(eventID)).Result()
	if err != nil {
		i.logger.Warn("failed to check processed marker",
			zap.String("event_id", eventID),
			zap.Error(err))
		return false
	}
	return n > 0
}

func (i *Ingress) markProcessed(ctx context.Context, eventID string) {
	if i.redis == nil {
		return
	}
	if err := i.redis.Set(ctx, i.markerKey(eventID), 1, processedMarkerTTL).Err(); err != nil {
		i.logger.Warn("failed to set processed marker",
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}
