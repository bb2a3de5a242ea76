package payment

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"

	"mealmate_backend/internal/model"
	"mealmate_backend/pkg/email"
	"mealmate_backend/pkg/paypal"
)

// Provider webhook event types handled by the reconciler.
const (
	EventSubscriptionActivated = "BILLING.SUBSCRIPTION.ACTIVATED"
	EventSubscriptionUpdated   = "BILLING.SUBSCRIPTION.UPDATED"
	EventSubscriptionCancelled = "BILLING.SUBSCRIPTION.CANCELLED"
	EventSubscriptionExpired   = "BILLING.SUBSCRIPTION.EXPIRED"
	EventSubscriptionSuspended = "BILLING.SUBSCRIPTION.SUSPENDED"
	EventPaymentFailed         = "BILLING.SUBSCRIPTION.PAYMENT.FAILED"
	EventCaptureCompleted      = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureRefunded       = "PAYMENT.CAPTURE.REFUNDED"
)

// WebhookEvent is the raw provider event envelope.
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

// webhookResource is the superset of resource fields the handlers read.
type webhookResource struct {
	ID                 string        `json:"id"`
	Status             string        `json:"status"`
	CustomID           string        `json:"custom_id"`
	BillingAgreementID string        `json:"billing_agreement_id"`
	Amount             paypal.Amount `json:"amount"`
}

// ParseWebhookEvent decodes a raw webhook body.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	if ev.EventType == "" {
		return nil, errors.New("payment: webhook event missing event_type")
	}
	return &ev, nil
}

// HandleWebhookEvent applies one provider event to local state. It is
// called only after signature verification. Handler-internal problems are
// logged and reflected in the recorded outcome but never escalate to an
// HTTP failure: the provider retries non-2xx responses, and redelivery of
// data-not-found races would storm forever. Every lookup keys on the
// provider-assigned id, so redelivery converges on the same row.
func (s *Service) HandleWebhookEvent(ctx context.Context, ev *WebhookEvent, rawBody []byte) string {
	record := &model.WebhookEvent{
		EventID:   ev.ID,
		EventType: ev.EventType,
		Payload:   rawBody,
	}
	if ev.ID != "" {
		created, err := s.repo.CreateWebhookEventIfNotExists(record)
		if err != nil {
			log.Printf("webhook %s: could not record event: %v", ev.ID, err)
		} else if !created && record.Outcome != "" {
			// Same delivery already fully processed; nothing to redo.
			log.Printf("webhook %s: duplicate delivery of %s, outcome already %s", ev.ID, ev.EventType, record.Outcome)
			return record.Outcome
		}
	}

	var res webhookResource
	if len(ev.Resource) > 0 {
		if err := json.Unmarshal(ev.Resource, &res); err != nil {
			log.Printf("webhook %s: unparseable resource: %v", ev.ID, err)
			s.finishWebhook(ev.ID, model.WebhookOutcomeFailed)
			return model.WebhookOutcomeFailed
		}
	}

	var outcome string
	switch ev.EventType {
	case EventSubscriptionActivated, EventSubscriptionUpdated:
		outcome = s.syncSubscriptionFromProvider(ctx, res.ID)
	case EventSubscriptionCancelled, EventSubscriptionExpired:
		outcome = s.markSubscription(res.ID, func(sub *model.Subscription) {
			sub.Status = model.SubStatusCanceled
			sub.CancelAtPeriodEnd = true
		})
	case EventSubscriptionSuspended:
		outcome = s.markSubscription(res.ID, func(sub *model.Subscription) {
			sub.Status = model.SubStatusSuspended
		})
	case EventPaymentFailed:
		outcome = s.handlePaymentFailed(ev, res)
	case EventCaptureCompleted:
		outcome = s.handleCaptureCompleted(res)
	case EventCaptureRefunded:
		outcome = s.handleCaptureRefunded(ev, res)
	default:
		// The provider's event catalogue grows over time; unknown events
		// are acknowledged, not alerted on.
		log.Printf("webhook %s: ignoring unhandled event type %s", ev.ID, ev.EventType)
		outcome = model.WebhookOutcomeUnknown
	}

	log.Printf("webhook %s: %s -> %s", ev.ID, ev.EventType, outcome)
	s.finishWebhook(ev.ID, outcome)
	return outcome
}

func (s *Service) finishWebhook(eventID, outcome string) {
	if eventID == "" {
		return
	}
	if err := s.repo.MarkWebhookProcessed(eventID, outcome); err != nil {
		log.Printf("webhook %s: could not mark processed: %v", eventID, err)
	}
}

// providerStatusToLocal maps the provider's subscription status vocabulary
// onto ours.
func providerStatusToLocal(status string) string {
	switch status {
	case "ACTIVE":
		return model.SubStatusActive
	case "SUSPENDED":
		return model.SubStatusSuspended
	case "CANCELLED", "EXPIRED":
		return model.SubStatusCanceled
	default:
		return model.SubStatusActive
	}
}

func (s *Service) syncSubscriptionFromProvider(ctx context.Context, providerSubID string) string {
	providerSub, err := s.provider.GetSubscription(ctx, providerSubID)
	if err != nil {
		if errors.Is(err, paypal.ErrNotFound) {
			return model.WebhookOutcomeNoMatch
		}
		log.Printf("webhook: could not fetch provider subscription %s: %v", providerSubID, err)
		return model.WebhookOutcomeFailed
	}

	return s.markSubscription(providerSubID, func(sub *model.Subscription) {
		sub.Status = providerStatusToLocal(providerSub.Status)
	})
}

// markSubscription looks up the local row by provider id and applies an
// idempotent mutation. A miss is benign: the event may concern an order
// the capture callback has not committed yet, or a sandbox object.
func (s *Service) markSubscription(providerSubID string, mutate func(*model.Subscription)) string {
	sub, err := s.repo.FindSubscriptionByPaymentID(providerSubID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.WebhookOutcomeNoMatch
		}
		log.Printf("webhook: subscription lookup %s failed: %v", providerSubID, err)
		return model.WebhookOutcomeFailed
	}

	mutate(sub)
	if err := s.repo.SaveSubscription(sub); err != nil {
		log.Printf("webhook: could not save subscription %s: %v", providerSubID, err)
		return model.WebhookOutcomeFailed
	}
	return model.WebhookOutcomeApplied
}

func (s *Service) handlePaymentFailed(ev *WebhookEvent, res webhookResource) string {
	sub, err := s.repo.FindSubscriptionByPaymentID(res.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.WebhookOutcomeNoMatch
		}
		log.Printf("webhook: subscription lookup %s failed: %v", res.ID, err)
		return model.WebhookOutcomeFailed
	}

	sub.Status = model.SubStatusPastDue
	if err := s.repo.SaveSubscription(sub); err != nil {
		log.Printf("webhook: could not save subscription %s: %v", res.ID, err)
		return model.WebhookOutcomeFailed
	}

	// Audit row for the failed charge. The event id keys it: the provider
	// has no capture id for a charge that never happened.
	tx := &model.Transaction{
		UserID:        sub.UserID,
		Amount:        parseAmount(res.Amount.Value),
		Currency:      res.Amount.CurrencyCode,
		Status:        model.TxStatusFailed,
		Type:          model.TxTypeSubscription,
		PaymentMethod: paymentMethodPayPal,
		PaymentID:     ev.ID,
		PlanType:      sub.PlanType,
		PlanDuration:  sub.PlanDuration,
		Metadata:      mustJSON(map[string]string{"subscription_id": res.ID, "event_id": ev.ID}),
	}
	if _, err := s.repo.CreateTransactionIfNotExists(tx); err != nil {
		log.Printf("webhook: could not record failed transaction for %s: %v", res.ID, err)
	}

	if email.GlobalEmailService != nil {
		if to, err := s.repo.GetUserEmail(sub.UserID); err == nil {
			if err := email.GlobalEmailService.SendPaymentFailedEmail(to, string(sub.PlanType)); err != nil {
				log.Printf("webhook: could not send payment-failed email: %v", err)
			}
		}
	}

	return model.WebhookOutcomeApplied
}

// handleCaptureCompleted treats captures that carry a subscription
// correlation id as renewals: the period extends from the current end,
// not from now, so late webhook delivery cannot drift the interval.
func (s *Service) handleCaptureCompleted(res webhookResource) string {
	correlationID := res.CustomID
	if correlationID == "" {
		correlationID = res.BillingAgreementID
	}
	if correlationID == "" {
		// One-time capture; the capture callback path owns it.
		return model.WebhookOutcomeNoMatch
	}

	sub, err := s.repo.FindSubscriptionByPaymentID(correlationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.WebhookOutcomeNoMatch
		}
		log.Printf("webhook: subscription lookup %s failed: %v", correlationID, err)
		return model.WebhookOutcomeFailed
	}

	// The transaction insert, keyed on the capture id, is the idempotency
	// anchor: a capture already recorded must not extend the period again.
	tx := &model.Transaction{
		UserID:        sub.UserID,
		Amount:        parseAmount(res.Amount.Value),
		Currency:      res.Amount.CurrencyCode,
		Status:        model.TxStatusCompleted,
		Type:          model.TxTypeSubscription,
		PaymentMethod: paymentMethodPayPal,
		PaymentID:     res.ID,
		PlanType:      sub.PlanType,
		PlanDuration:  sub.PlanDuration,
		Metadata:      mustJSON(map[string]string{"subscription_id": correlationID}),
	}
	created, err := s.repo.CreateTransactionIfNotExists(tx)
	if err != nil {
		log.Printf("webhook: could not record renewal transaction %s: %v", res.ID, err)
		return model.WebhookOutcomeFailed
	}
	if !created {
		return model.WebhookOutcomeApplied
	}

	sub.Status = model.SubStatusActive
	sub.EndDate = model.PeriodEnd(sub.EndDate, sub.PlanDuration)
	if err := s.repo.SaveSubscription(sub); err != nil {
		log.Printf("webhook: could not save subscription %s: %v", correlationID, err)
		return model.WebhookOutcomeFailed
	}

	return model.WebhookOutcomeApplied
}

// handleCaptureRefunded flips the original transaction to refunded and,
// for subscription money, cancels the entitlement it paid for.
func (s *Service) handleCaptureRefunded(ev *WebhookEvent, res webhookResource) string {
	tx, err := s.repo.FindTransactionByPaymentID(res.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.WebhookOutcomeNoMatch
		}
		log.Printf("webhook: transaction lookup %s failed: %v", res.ID, err)
		return model.WebhookOutcomeFailed
	}

	tx.Status = model.TxStatusRefunded
	tx.Metadata = mustJSON(map[string]string{
		"refund_event_id":  ev.ID,
		"refunded_at":      time.Now().UTC().Format(time.RFC3339),
		"refunded_capture": res.ID,
	})
	if err := s.repo.SaveTransaction(tx); err != nil {
		log.Printf("webhook: could not save refunded transaction %s: %v", res.ID, err)
		return model.WebhookOutcomeFailed
	}

	if tx.Type == model.TxTypeSubscription {
		sub, err := s.repo.FindActiveSubscriptionByUser(tx.UserID)
		if err == nil {
			sub.Status = model.SubStatusCanceled
			sub.CancelAtPeriodEnd = true
			if err := s.repo.SaveSubscription(sub); err != nil {
				log.Printf("webhook: could not cancel subscription for refunded tx %s: %v", res.ID, err)
				return model.WebhookOutcomeFailed
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("webhook: subscription lookup for user %d failed: %v", tx.UserID, err)
			return model.WebhookOutcomeFailed
		}
	}

	return model.WebhookOutcomeApplied
}

func parseAmount(value string) float64 {
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return amount
}
