package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"mealmate_backend/internal/model"
	"mealmate_backend/pkg/paypal"
)

func makeEvent(id, eventType string, resource map[string]interface{}) (*WebhookEvent, []byte) {
	raw, _ := json.Marshal(map[string]interface{}{
		"id":         id,
		"event_type": eventType,
		"resource":   resource,
	})
	ev, err := ParseWebhookEvent(raw)
	if err != nil {
		panic(fmt.Sprintf("bad test event: %v", err))
	}
	return ev, raw
}

func seedSubscription(repo *fakeRepository, userID uint, providerID string, duration model.PlanDuration, endDate time.Time) *model.Subscription {
	sub := &model.Subscription{
		UserID:       userID,
		PlanType:     model.PlanPremium,
		PlanDuration: duration,
		Status:       model.SubStatusActive,
		StartDate:    endDate.AddDate(0, -1, 0),
		EndDate:      endDate,
		AutoRenew:    true,
		PaymentID:    providerID,
	}
	repo.SaveSubscription(sub)
	return sub
}

func TestWebhook_SuspendedAndReactivated(t *testing.T) {
	svc, repo, provider := newTestService()
	ctx := context.Background()

	end := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	seedSubscription(repo, 1, "I-SUB1", model.DurationMonthly, end)
	provider.subs["I-SUB1"] = &paypal.Subscription{ID: "I-SUB1", Status: "SUSPENDED"}

	ev, raw := makeEvent("WH-1", EventSubscriptionSuspended, map[string]interface{}{"id": "I-SUB1"})
	if outcome := svc.HandleWebhookEvent(ctx, ev, raw); outcome != model.WebhookOutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}
	sub, _ := repo.FindSubscriptionByPaymentID("I-SUB1")
	if sub.Status != model.SubStatusSuspended {
		t.Fatalf("expected suspended, got %s", sub.Status)
	}

	provider.subs["I-SUB1"].Status = "ACTIVE"
	ev, raw = makeEvent("WH-2", EventSubscriptionActivated, map[string]interface{}{"id": "I-SUB1"})
	if outcome := svc.HandleWebhookEvent(ctx, ev, raw); outcome != model.WebhookOutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}
	sub, _ = repo.FindSubscriptionByPaymentID("I-SUB1")
	if sub.Status != model.SubStatusActive {
		t.Fatalf("expected active after reactivation, got %s", sub.Status)
	}
}

func TestWebhook_DuplicateDeliveryShortCircuits(t *testing.T) {
	svc, repo, provider := newTestService()
	ctx := context.Background()

	end := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	seedSubscription(repo, 2, "I-SUB2", model.DurationMonthly, end)
	provider.subs["I-SUB2"] = &paypal.Subscription{ID: "I-SUB2", Status: "CANCELLED"}

	ev, raw := makeEvent("WH-DUP", EventSubscriptionCancelled, map[string]interface{}{"id": "I-SUB2"})
	first := svc.HandleWebhookEvent(ctx, ev, raw)
	second := svc.HandleWebhookEvent(ctx, ev, raw)

	if first != model.WebhookOutcomeApplied || second != model.WebhookOutcomeApplied {
		t.Fatalf("expected applied twice, got %s then %s", first, second)
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected a single event row, got %d", len(repo.events))
	}

	sub, _ := repo.FindSubscriptionByPaymentID("I-SUB2")
	if sub.Status != model.SubStatusCanceled || !sub.CancelAtPeriodEnd {
		t.Fatalf("unexpected subscription after cancel events: %+v", sub)
	}
}

func TestWebhook_EventsBeforeCaptureAreBenign(t *testing.T) {
	svc, repo, provider := newTestService()
	ctx := context.Background()

	// The approval redirect can race the webhook: activation may land
	// before the capture callback writes the local row.
	provider.subs["I-RACE"] = &paypal.Subscription{ID: "I-RACE", Status: "ACTIVE"}
	ev, raw := makeEvent("WH-EARLY", EventSubscriptionActivated, map[string]interface{}{"id": "I-RACE"})
	if outcome := svc.HandleWebhookEvent(ctx, ev, raw); outcome != model.WebhookOutcomeNoMatch {
		t.Fatalf("expected no_match before local write, got %s", outcome)
	}
	if len(repo.subs) != 0 {
		t.Fatalf("a no-match event must not create rows")
	}

	// Local write lands, redelivery converges.
	end := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	seedSubscription(repo, 3, "I-RACE", model.DurationMonthly, end)
	ev, raw = makeEvent("WH-RETRY", EventSubscriptionActivated, map[string]interface{}{"id": "I-RACE"})
	if outcome := svc.HandleWebhookEvent(ctx, ev, raw); outcome != model.WebhookOutcomeApplied {
		t.Fatalf("expected applied after local write, got %s", outcome)
	}
	sub, _ := repo.FindSubscriptionByPaymentID("I-RACE")
	if sub.Status != model.SubStatusActive {
		t.Fatalf("expected active, got %s", sub.Status)
	}
}

func TestWebhook_PaymentFailedMarksPastDue(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	end := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	seedSubscription(repo, 4, "I-SUB4", model.DurationMonthly, end)

	ev, raw := makeEvent("WH-FAIL", EventPaymentFailed, map[string]interface{}{
		"id":     "I-SUB4",
		"amount": map[string]string{"currency_code": "IDR", "value": "199000"},
	})
	if outcome := svc.HandleWebhookEvent(ctx, ev, raw); outcome != model.WebhookOutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}

	sub, _ := repo.FindSubscriptionByPaymentID("I-SUB4")
	if sub.Status != model.SubStatusPastDue {
		t.Fatalf("expected past_due, got %s", sub.Status)
	}

	tx, err := repo.FindTransactionByPaymentID("WH-FAIL")
	if err != nil {
		t.Fatalf("expected failed transaction keyed by event id: %v", err)
	}
	if tx.Status != model.TxStatusFailed || tx.Amount != 199000 {
		t.Fatalf("unexpected failed transaction: %+v", tx)
	}
}

func TestWebhook_RenewalExtendsFromPeriodEnd(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	// The webhook may arrive days late; extension is anchored on the
	// current period end, never on delivery time.
	end := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	sub := seedSubscription(repo, 5, "I-SUB5", model.DurationMonthly, end)
	sub.Status = model.SubStatusPastDue
	repo.SaveSubscription(sub)

	ev, raw := makeEvent("WH-RENEW", EventCaptureCompleted, map[string]interface{}{
		"id":        "CAP-RENEW-1",
		"custom_id": "I-SUB5",
		"amount":    map[string]string{"currency_code": "IDR", "value": "199000"},
	})
	if outcome := svc.HandleWebhookEvent(ctx, ev, raw); outcome != model.WebhookOutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}

	renewed, _ := repo.FindSubscriptionByPaymentID("I-SUB5")
	if renewed.Status != model.SubStatusActive {
		t.Fatalf("expected active after renewal, got %s", renewed.Status)
	}
	want := end.AddDate(0, 1, 0)
	if !renewed.EndDate.Equal(want) {
		t.Fatalf("expected end date %v, got %v", want, renewed.EndDate)
	}

	if _, err := repo.FindTransactionByPaymentID("CAP-RENEW-1"); err != nil {
		t.Fatalf("expected renewal transaction: %v", err)
	}

	// Redelivery with a fresh event id must not double-extend.
	ev, raw = makeEvent("WH-RENEW-2", EventCaptureCompleted, map[string]interface{}{
		"id":        "CAP-RENEW-1",
		"custom_id": "I-SUB5",
		"amount":    map[string]string{"currency_code": "IDR", "value": "199000"},
	})
	svc.HandleWebhookEvent(ctx, ev, raw)
	if len(repo.txs) != 1 {
		t.Fatalf("redelivered capture must not duplicate the transaction, got %d rows", len(repo.txs))
	}
	renewed, _ = repo.FindSubscriptionByPaymentID("I-SUB5")
	if !renewed.EndDate.Equal(want) {
		t.Fatalf("redelivered capture must not extend again: %v", renewed.EndDate)
	}
}

func TestWebhook_RefundCancelsSubscription(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	checkout, _ := svc.CreateCheckout(ctx, CheckoutInput{PlanID: "premium-monthly"})
	capture, err := svc.CapturePayment(ctx, 6, checkout.CorrelationID)
	if err != nil {
		t.Fatalf("unexpected capture error: %v", err)
	}

	ev, raw := makeEvent("WH-REFUND", EventCaptureRefunded, map[string]interface{}{
		"id":     capture.CaptureID,
		"amount": map[string]string{"currency_code": "IDR", "value": "199000"},
	})
	if outcome := svc.HandleWebhookEvent(ctx, ev, raw); outcome != model.WebhookOutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}

	tx, _ := repo.FindTransactionByPaymentID(capture.CaptureID)
	if tx.Status != model.TxStatusRefunded {
		t.Fatalf("expected refunded transaction, got %s", tx.Status)
	}

	if _, err := repo.FindActiveSubscriptionByUser(6); err == nil {
		t.Fatalf("refund of subscription money must cancel the entitlement")
	}
}

func TestWebhook_RefundOfUnknownCaptureIsBenign(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	ev, raw := makeEvent("WH-GHOST", EventCaptureRefunded, map[string]interface{}{"id": "CAP-NOPE"})
	if outcome := svc.HandleWebhookEvent(ctx, ev, raw); outcome != model.WebhookOutcomeNoMatch {
		t.Fatalf("expected no_match, got %s", outcome)
	}
	if len(repo.txs) != 0 || len(repo.subs) != 0 {
		t.Fatalf("no-match refund must not create rows")
	}
}

func TestWebhook_UnknownEventTypeAcknowledged(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	ev, raw := makeEvent("WH-NEW", "CUSTOMER.DISPUTE.CREATED", map[string]interface{}{"id": "X"})
	if outcome := svc.HandleWebhookEvent(ctx, ev, raw); outcome != model.WebhookOutcomeUnknown {
		t.Fatalf("expected unknown_event outcome, got %s", outcome)
	}

	record, ok := repo.events["WH-NEW"]
	if !ok || record.Outcome != model.WebhookOutcomeUnknown || record.ProcessedAt == nil {
		t.Fatalf("expected recorded unknown event, got %+v", record)
	}
}

func TestParseWebhookEvent_RejectsMissingType(t *testing.T) {
	if _, err := ParseWebhookEvent([]byte(`{"id":"WH-X"}`)); err == nil {
		t.Fatalf("expected error for missing event_type")
	}
	if _, err := ParseWebhookEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed body")
	}
}
