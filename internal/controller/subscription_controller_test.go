package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"mealmate_backend/internal/model"
	"mealmate_backend/pkg/payment"
	"mealmate_backend/pkg/paypal"
)

// stubVerifier returns a fixed verdict and remembers the last delivery.
type stubVerifier struct {
	verdict  bool
	lastSig  paypal.WebhookSignature
	lastBody []byte
}

func (v *stubVerifier) VerifyWebhookSignature(ctx context.Context, sig paypal.WebhookSignature, body []byte) bool {
	v.lastSig = sig
	v.lastBody = append([]byte(nil), body...)
	return v.verdict
}

// stubRepository counts writes so tests can assert that rejected
// deliveries never touch state.
type stubRepository struct {
	writes int
	events map[string]*model.WebhookEvent
}

func newStubRepository() *stubRepository {
	return &stubRepository{events: make(map[string]*model.WebhookEvent)}
}

func (r *stubRepository) FindActiveSubscriptionByUser(userID uint) (*model.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepository) FindSubscriptionByPaymentID(paymentID string) (*model.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepository) CreateSubscription(sub *model.Subscription) error {
	r.writes++
	return nil
}

func (r *stubRepository) SaveSubscription(sub *model.Subscription) error {
	r.writes++
	return nil
}

func (r *stubRepository) ListSubscriptionsByStatus(statuses ...string) ([]model.Subscription, error) {
	return nil, nil
}

func (r *stubRepository) FindTransactionByPaymentID(paymentID string) (*model.Transaction, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepository) CreateTransactionIfNotExists(tx *model.Transaction) (bool, error) {
	r.writes++
	return true, nil
}

func (r *stubRepository) SaveTransaction(tx *model.Transaction) error {
	r.writes++
	return nil
}

func (r *stubRepository) UpdateUserSubscriptionPlan(userID uint, planID string) error {
	r.writes++
	return nil
}

func (r *stubRepository) GetUserEmail(userID uint) (string, error) {
	return "user@example.com", nil
}

func (r *stubRepository) CreateWebhookEventIfNotExists(event *model.WebhookEvent) (bool, error) {
	if existing, ok := r.events[event.EventID]; ok {
		*event = *existing
		return false, nil
	}
	r.writes++
	cp := *event
	r.events[event.EventID] = &cp
	return true, nil
}

func (r *stubRepository) MarkWebhookProcessed(eventID, outcome string) error {
	if event, ok := r.events[eventID]; ok {
		now := time.Now()
		event.Outcome = outcome
		event.ProcessedAt = &now
	}
	return nil
}

type stubProvider struct{}

func (stubProvider) CreateOrder(ctx context.Context, in paypal.OrderRequest) (*paypal.Order, error) {
	return &paypal.Order{}, nil
}

func (stubProvider) CaptureOrder(ctx context.Context, orderID string) (*paypal.Order, error) {
	return &paypal.Order{}, nil
}

func (stubProvider) GetOrder(ctx context.Context, orderID string) (*paypal.Order, error) {
	return &paypal.Order{}, nil
}

func (stubProvider) CreateSubscription(ctx context.Context, in paypal.SubscriptionRequest) (*paypal.Subscription, error) {
	return &paypal.Subscription{}, nil
}

func (stubProvider) GetSubscription(ctx context.Context, subscriptionID string) (*paypal.Subscription, error) {
	return nil, paypal.ErrNotFound
}

func (stubProvider) CancelSubscription(ctx context.Context, subscriptionID, reason string) error {
	return nil
}

func newWebhookTestApp(verdict bool) (*fiber.App, *stubVerifier, *stubRepository) {
	repo := newStubRepository()
	InitPaymentController(payment.NewService(repo, stubProvider{}))

	verifier := &stubVerifier{verdict: verdict}
	InitSubscriptionController(verifier)

	app := fiber.New()
	app.Post("/api/subscriptions/paypal/webhook", HandlePayPalWebhook)
	return app, verifier, repo
}

func postWebhook(t *testing.T, app *fiber.App, body []byte) (int, []byte) {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/subscriptions/paypal/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Paypal-Transmission-Id", "tid-1")
	req.Header.Set("Paypal-Transmission-Time", "2025-03-10T12:00:00Z")
	req.Header.Set("Paypal-Transmission-Sig", "sig")
	req.Header.Set("Paypal-Cert-Url", "https://provider.test/cert")
	req.Header.Set("Paypal-Auth-Algo", "SHA256withRSA")

	resp, err := app.Test(req)
	assert.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	return resp.StatusCode, raw
}

func TestHandlePayPalWebhook_RejectsBadSignature(t *testing.T) {
	app, verifier, repo := newWebhookTestApp(false)

	body := []byte(`{"id":"WH-1","event_type":"BILLING.SUBSCRIPTION.CANCELLED","resource":{"id":"I-1"}}`)
	status, respBody := postWebhook(t, app, body)

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, string(respBody), "Invalid signature")
	assert.Equal(t, 0, repo.writes, "rejected delivery must not touch state")
	assert.Equal(t, "tid-1", verifier.lastSig.TransmissionID)
	assert.Equal(t, body, verifier.lastBody)
}

func TestHandlePayPalWebhook_AcknowledgesVerifiedEvents(t *testing.T) {
	app, _, repo := newWebhookTestApp(true)

	body := []byte(`{"id":"WH-2","event_type":"BILLING.SUBSCRIPTION.CANCELLED","resource":{"id":"I-UNKNOWN"}}`)
	status, respBody := postWebhook(t, app, body)

	assert.Equal(t, fiber.StatusOK, status)

	var out map[string]bool
	assert.NoError(t, json.Unmarshal(respBody, &out))
	assert.True(t, out["received"])

	// Benign no-match is still recorded with its outcome.
	event, ok := repo.events["WH-2"]
	assert.True(t, ok)
	assert.Equal(t, model.WebhookOutcomeNoMatch, event.Outcome)
}

func TestHandlePayPalWebhook_AcknowledgesUnparseableAfterVerify(t *testing.T) {
	app, _, repo := newWebhookTestApp(true)

	status, _ := postWebhook(t, app, []byte(`not json at all`))

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 0, repo.writes)
}
